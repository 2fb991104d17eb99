package config

import (
	"github.com/danmuck/mirbridge/internal/bridge"
	"github.com/danmuck/mirbridge/internal/msgs"
	"github.com/danmuck/mirbridge/internal/rewrite"
	"github.com/danmuck/mirbridge/internal/rosbridge"
)

func (c Config) Namespace() rewrite.Namespace {
	return rewrite.NewNamespace(c.TFPrefix)
}

func (c Config) Rosbridge() rosbridge.Config {
	rc := rosbridge.DefaultConfig()
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Secure = c.Secure
	rc.TLS.CAFile = c.CAFile
	rc.MaxConnectAttempts = c.MaxConnectAttempts
	if c.CallTimeout > 0 {
		rc.CallTimeout = c.CallTimeout
	}
	return rc
}

func BindingSpecs(entries []TopicConfig) []bridge.BindingSpec {
	specs := make([]bridge.BindingSpec, 0, len(entries))
	for _, e := range entries {
		specs = append(specs, bridge.BindingSpec{
			Topic:  e.Topic,
			Type:   e.Type,
			Latch:  e.Latch,
			Filter: e.Filter,
			Local:  e.Local,
		})
	}
	return specs
}

// Bindings resolves the configured topic tables, falling back to the built-in
// MiR tables for a direction that has none.
func (c Config) Bindings(reg *msgs.Registry) (outbound, inbound []bridge.TopicBinding, err error) {
	ns := c.Namespace()
	if len(c.Outbound) > 0 {
		if outbound, err = bridge.ResolveBindings(BindingSpecs(c.Outbound), reg, ns); err != nil {
			return nil, nil, err
		}
	} else {
		outbound = bridge.DefaultOutbound(ns)
	}
	if len(c.Inbound) > 0 {
		if inbound, err = bridge.ResolveBindings(BindingSpecs(c.Inbound), reg, ns); err != nil {
			return nil, nil, err
		}
	} else {
		inbound = bridge.DefaultInbound(ns)
	}
	return outbound, inbound, nil
}
