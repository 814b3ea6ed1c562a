package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"audiobookgo/pkg/config"
	"audiobookgo/pkg/extract"
	"audiobookgo/pkg/request"
	"audiobookgo/pkg/tracker"
	"audiobookgo/pkg/tts"
)

// stubEngine is a minimal tts.Engine for handler tests.
type stubEngine struct {
	name string
	fail bool
}

func (s *stubEngine) Name() string   { return s.name }
func (s *stubEngine) Parallel() bool { return false }

func (s *stubEngine) Speak(ctx context.Context, text string, cfg *tts.Config) ([]byte, error) {
	if s.fail {
		return nil, errors.New("synthesis failed")
	}
	return []byte("AUDIO:" + text), nil
}

func (s *stubEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{{ID: "stub-voice", Name: "Stub"}}, nil
}

func newTestServer(t *testing.T, engine *stubEngine) *httptest.Server {
	t.Helper()

	ttsCfg := &config.TTSConfig{Provider: engine.name, ChunkSize: 4000, Oversize: "keep"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	conv := tts.NewConverter(engine, ttsCfg, tracker.New(), log)

	ttsH := NewTTSHandler(
		map[string]*tts.Converter{engine.name: conv},
		map[string]tts.Engine{engine.name: engine},
		engine.name,
		nil,
	)
	statsH := NewStatsHandler(tracker.New(), nil)

	srv := NewServer("localhost:0", ttsH, nil, statsH, log, func() {})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local"})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("health = %d %q", resp.StatusCode, body)
	}
}

func TestVersionEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local"})

	resp, err := http.Get(ts.URL + "/api/version")
	if err != nil {
		t.Fatalf("GET /api/version: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Version == "" {
		t.Error("empty version")
	}
}

func TestConvertEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local"})

	body := `{"text": "Hello world."}`
	resp, err := http.Post(ts.URL+"/api/tts/convert", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST convert: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var payload ConvertResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Success || payload.ID == "" {
		t.Errorf("response = %+v", payload)
	}
	// []byte round-trips through JSON as base64
	if string(payload.Audio) != "AUDIO:Hello world." {
		t.Errorf("audio = %q", payload.Audio)
	}
	if payload.Progress.Total != 1 || payload.Progress.Processed != 1 {
		t.Errorf("progress = %+v", payload.Progress)
	}
}

func TestConvertEmptyTextRejected(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local"})

	resp, err := http.Post(ts.URL+"/api/tts/convert", "application/json", strings.NewReader(`{"text": ""}`))
	if err != nil {
		t.Fatalf("POST convert: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestConvertUnknownProvider(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local"})

	body := `{"text": "hi", "provider": "nonexistent"}`
	resp, err := http.Post(ts.URL+"/api/tts/convert", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST convert: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestConvertAllChunksFailedMapsTo502(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local", fail: true})

	resp, err := http.Post(ts.URL+"/api/tts/convert", "application/json", strings.NewReader(`{"text": "hi"}`))
	if err != nil {
		t.Fatalf("POST convert: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	var payload ConvertResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Success || payload.Error == "" {
		t.Errorf("response = %+v", payload)
	}
}

func TestVoicesEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local"})

	resp, err := http.Get(ts.URL + "/api/tts/voices?provider=local")
	if err != nil {
		t.Fatalf("GET voices: %v", err)
	}
	defer resp.Body.Close()

	var payload VoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Provider != "local" || len(payload.Voices) != 1 {
		t.Errorf("voices = %+v", payload)
	}

	bad, err := http.Get(ts.URL + "/api/tts/voices?provider=bogus")
	if err != nil {
		t.Fatalf("GET voices: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown provider status = %d", bad.StatusCode)
	}
}

func TestExtractRoutesAbsentWithoutHandler(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local"})

	resp, err := http.Post(ts.URL+"/api/extract", "application/json", strings.NewReader(`{"url": "https://example.com"}`))
	if err != nil {
		t.Fatalf("POST extract: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when extraction is not configured", resp.StatusCode)
	}
}

func TestExtractEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Article Title\n\nArticle body text goes here.")
	}))
	defer upstream.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ex := extract.New(request.New(nil, nil, request.Policy{MaxRetries: 1}),
		&config.ExtractConfig{JinaKey: "k", BaseURL: upstream.URL}, log)

	engine := &stubEngine{name: "local"}
	ttsCfg := &config.TTSConfig{Provider: "local", ChunkSize: 4000, Oversize: "keep"}
	conv := tts.NewConverter(engine, ttsCfg, nil, log)
	ttsH := NewTTSHandler(map[string]*tts.Converter{"local": conv}, map[string]tts.Engine{"local": engine}, "local", nil)

	srv := NewServer("localhost:0", ttsH, NewExtractHandler(ex), NewStatsHandler(tracker.New(), nil), log, func() {})
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/extract", "application/json", strings.NewReader(`{"url": "https://example.com/article"}`))
	if err != nil {
		t.Fatalf("POST extract: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var content extract.Content
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if content.Title != "Article Title" || content.WordCount == 0 {
		t.Errorf("content = %+v", content)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubEngine{name: "local"})

	// Run one conversion so the tracker has something to report.
	resp, err := http.Post(ts.URL+"/api/tts/convert", "application/json", strings.NewReader(`{"text": "hi"}`))
	if err != nil {
		t.Fatalf("POST convert: %v", err)
	}
	resp.Body.Close()

	statsResp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer statsResp.Body.Close()

	var payload StatsResponse
	if err := json.NewDecoder(statsResp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Version == "" || payload.Providers == nil {
		t.Errorf("stats = %+v", payload)
	}
}

func TestShutdownEndpoint(t *testing.T) {
	called := make(chan struct{})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := &stubEngine{name: "local"}
	ttsCfg := &config.TTSConfig{Provider: "local", ChunkSize: 4000, Oversize: "keep"}
	conv := tts.NewConverter(engine, ttsCfg, nil, log)
	ttsH := NewTTSHandler(map[string]*tts.Converter{"local": conv}, map[string]tts.Engine{"local": engine}, "local", nil)

	srv := NewServer("localhost:0", ttsH, nil, NewStatsHandler(tracker.New(), nil), log, func() { close(called) })
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/shutdown", "", nil)
	if err != nil {
		t.Fatalf("POST shutdown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	// the callback fires after a short flush delay
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback not invoked")
	}
}
