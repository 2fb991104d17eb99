package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/mirbridge/internal/bridge"
	"github.com/danmuck/mirbridge/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

type stubStatus struct {
	state   bridge.State
	catalog bridge.Catalog
}

func (s stubStatus) State() bridge.State     { return s.state }
func (s stubStatus) Catalog() bridge.Catalog { return s.catalog }

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	var body map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return rr, body
}

func TestReadyReflectsSessionState(t *testing.T) {
	testlog.Start(t)
	s := New("mir_bridge", ":0", stubStatus{state: bridge.StateConnecting}, zerolog.Nop())
	rr, body := get(t, s, "/ready")
	if rr.Code != http.StatusServiceUnavailable || body["ready"] != false || body["state"] != "connecting" {
		t.Fatalf("unexpected /ready while connecting: %d %#v", rr.Code, body)
	}

	s = New("mir_bridge", ":0", stubStatus{state: bridge.StateReady}, zerolog.Nop())
	rr, body = get(t, s, "/ready")
	if rr.Code != http.StatusOK || body["ready"] != true {
		t.Fatalf("unexpected /ready when ready: %d %#v", rr.Code, body)
	}

	rr, body = get(t, s, "/health")
	if rr.Code != http.StatusOK || body["status"] != "ok" || body["service"] != "mir_bridge" {
		t.Fatalf("unexpected /health: %d %#v", rr.Code, body)
	}
}

func TestCatalogListsEntries(t *testing.T) {
	testlog.Start(t)
	catalog := bridge.NewCatalog(
		bridge.CatalogEntry{Topic: "/scan", Type: "sensor_msgs/LaserScan", HasPublishers: true},
		bridge.CatalogEntry{Topic: "/cmd_vel", Type: "geometry_msgs/TwistStamped", HasSubscribers: true},
	)
	s := New("mir_bridge", ":0", stubStatus{state: bridge.StateReady, catalog: catalog}, zerolog.Nop())
	rr, body := get(t, s, "/catalog")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	topics, ok := body["topics"].([]any)
	if !ok || len(topics) != 2 {
		t.Fatalf("unexpected topics %#v", body["topics"])
	}
	first := topics[0].(map[string]any)
	if first["topic"] != "/cmd_vel" || first["has_subscribers"] != true {
		t.Fatalf("unexpected first entry %#v", first)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	s := New("mir_bridge", ":0", stubStatus{}, zerolog.Nop())
	_, _ = get(t, s, "/health")
	rr, _ := get(t, s, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "mirbridge_http_requests_total") {
		t.Fatalf("metrics missing http counter: %d", rr.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	s := New("mir_bridge", addr, stubStatus{state: bridge.StateReady}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	testlog.Start(t)
	s := New("mir_bridge", ":0", stubStatus{}, zerolog.Nop(), WithCORS("http://dashboard.local"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://dashboard.local" {
		t.Fatalf("expected allow-origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://elsewhere.local")
	rr = httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected foreign origin to be refused, got %d", rr.Code)
	}
}
