// Package api wires the HTTP route surface to the conversion,
// extraction and stats handlers.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"audiobookgo/pkg/version"
)

// NewServer creates and configures the HTTP server. The extract
// handler may be nil when no extraction path is configured; its
// routes are then not registered. shutdown triggers a graceful stop.
func NewServer(addr string, ttsH *TTSHandler, extractH *ExtractHandler, statsH *StatsHandler, reqLog *slog.Logger, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Conversion Endpoints
	mux.HandleFunc("POST /api/tts/convert", ttsH.HandleConvert)
	mux.HandleFunc("GET /api/tts/voices", ttsH.HandleVoices)

	// 4. Extraction Endpoint
	if extractH != nil {
		mux.HandleFunc("POST /api/extract", extractH.HandleExtract)
	}

	// 5. Stats Endpoint
	mux.Handle("GET /api/stats", statsH)

	// 6. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      requestLogging(reqLog, mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // conversions can take a while
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
