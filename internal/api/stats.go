package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"audiobookgo/pkg/store"
	"audiobookgo/pkg/tracker"
	"audiobookgo/pkg/version"
)

// StatsHandler serves per-provider usage counters.
type StatsHandler struct {
	tracker *tracker.Tracker
	state   store.StateStore
	started time.Time
}

// NewStatsHandler creates a StatsHandler. state may be nil.
func NewStatsHandler(t *tracker.Tracker, state store.StateStore) *StatsHandler {
	return &StatsHandler{
		tracker: t,
		state:   state,
		started: time.Now(),
	}
}

// ProviderStatsDTO is the per-provider section of the stats response.
type ProviderStatsDTO struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APISuccess  int64 `json:"api_success"`
	APIFailures int64 `json:"api_errors"`
	Retries     int64 `json:"retries"`
	ChunksOK    int64 `json:"chunks_ok"`
	ChunksFail  int64 `json:"chunks_failed"`
	HitRate     int64 `json:"hit_rate"`
}

// StatsResponse is the GET /api/stats payload.
type StatsResponse struct {
	Version        string                      `json:"version"`
	UptimeSec      int64                       `json:"uptime_sec"`
	LastConversion string                      `json:"last_conversion_id,omitempty"`
	Providers      map[string]ProviderStatsDTO `json:"providers"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Version:   version.Version,
		UptimeSec: int64(time.Since(h.started).Seconds()),
		Providers: make(map[string]ProviderStatsDTO, len(snapshot)),
	}
	if h.state != nil {
		if id, ok := h.state.GetState(r.Context(), lastConversionKey); ok {
			resp.LastConversion = id
		}
	}

	for name, s := range snapshot {
		dto := ProviderStatsDTO{
			CacheHits:   s.CacheHits,
			CacheMisses: s.CacheMisses,
			APISuccess:  s.APISuccess,
			APIFailures: s.APIFailures,
			Retries:     s.Retries,
			ChunksOK:    s.ChunksOK,
			ChunksFail:  s.ChunksFail,
		}
		if total := s.CacheHits + s.CacheMisses; total > 0 {
			dto.HitRate = s.CacheHits * 100 / total
		}
		resp.Providers[name] = dto
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write stats response", "error", err)
	}
}
