// Package codec converts between native message structs and structured trees.
//
// Encoding goes through the json tags of the native types, which are also the
// rosbridge field names. Decoding is strict: every field of the target type
// must be present and no unknown field may remain, so a payload that does not
// match its declared type is reported instead of half-filled.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/danmuck/mirbridge/internal/msgs"
	"github.com/danmuck/mirbridge/internal/structured"
	"github.com/go-viper/mapstructure/v2"
)

// DecodeError reports a payload that does not fit its declared type.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports a native value that cannot be represented as a tree.
type EncodeError struct {
	Value string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: encode %s: %v", e.Value, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// JSON is the default codec.
type JSON struct{}

func (JSON) Encode(msg any) (structured.Value, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return structured.Value{}, &EncodeError{Value: fmt.Sprintf("%T", msg), Err: err}
	}
	v, err := structured.Parse(raw)
	if err != nil {
		return structured.Value{}, &EncodeError{Value: fmt.Sprintf("%T", msg), Err: err}
	}
	return v, nil
}

// Decode builds a fresh *T for t from v.
func (JSON) Decode(t msgs.Type, v structured.Value) (any, error) {
	if t.New == nil {
		return nil, &DecodeError{Type: t.Name, Err: msgs.ErrUnknownType}
	}
	out := t.New()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		ErrorUnset:  true,
		Result:      out,
	})
	if err != nil {
		return nil, &DecodeError{Type: t.Name, Err: err}
	}
	if err := dec.Decode(v.ToAny()); err != nil {
		return nil, &DecodeError{Type: t.Name, Err: err}
	}
	return out, nil
}
