package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/subtrackhq/subtrack-backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	HealthLive(testConfig())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if env := resp.Header().Get("X-Subtrack-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestHealthReadyAllDependenciesUp(t *testing.T) {
	deps := map[string]Pinger{
		"db":    &stubPinger{},
		"redis": &stubPinger{},
	}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != "ready" {
		t.Fatalf("expected ready, got %q", envelope.Data.Status)
	}
	if envelope.Data.Checks["db"] != "ok" || envelope.Data.Checks["redis"] != "ok" {
		t.Fatalf("expected all checks ok, got %v", envelope.Data.Checks)
	}
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	deps := map[string]Pinger{
		"db":    &stubPinger{},
		"redis": &stubPinger{err: errors.New("connection refused")},
	}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps)(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Details["redis"] != "down" {
		t.Fatalf("expected redis down, got %v", envelope.Error.Details)
	}
	if envelope.Error.Details["db"] != "ok" {
		t.Fatalf("expected db ok, got %v", envelope.Error.Details)
	}
}

func TestHealthReadySkipsNilDependency(t *testing.T) {
	deps := map[string]Pinger{
		"db":     &stubPinger{},
		"pubsub": nil,
	}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	HealthReady(testConfig(), nil, deps)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 when optional dependency absent, got %d", resp.Code)
	}
}
