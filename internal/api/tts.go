package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"audiobookgo/pkg/store"
	"audiobookgo/pkg/tts"
)

// lastConversionKey is the state key holding the most recent
// conversion ID, surfaced by the stats endpoint.
const lastConversionKey = "last_conversion_id"

// TTSHandler handles conversion and voice listing endpoints. It holds
// one converter per configured engine; the request's provider field
// selects among them.
type TTSHandler struct {
	converters      map[string]*tts.Converter
	engines         map[string]tts.Engine
	defaultProvider string
	state           store.StateStore
}

// NewTTSHandler creates a TTSHandler over the configured engines.
// state may be nil when persistence is disabled.
func NewTTSHandler(converters map[string]*tts.Converter, engines map[string]tts.Engine, defaultProvider string, state store.StateStore) *TTSHandler {
	return &TTSHandler{
		converters:      converters,
		engines:         engines,
		defaultProvider: defaultProvider,
		state:           state,
	}
}

// ConvertRequest is the POST /api/tts/convert body.
type ConvertRequest struct {
	Text      string `json:"text"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Voice     string `json:"voice,omitempty"`
	Format    string `json:"format,omitempty"`
	ChunkSize int    `json:"chunk_size,omitempty"`
	TimeoutMS int64  `json:"timeout_ms,omitempty"`
}

// ChunkDTO mirrors one chunk's terminal state in the response.
type ChunkDTO struct {
	Index     int    `json:"index"`
	Processed bool   `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// ConvertResponse is the conversion result. Audio is base64 in JSON.
type ConvertResponse struct {
	ID        string               `json:"id"`
	Success   bool                 `json:"success"`
	Format    string               `json:"format,omitempty"`
	Audio     []byte               `json:"audio,omitempty"`
	Progress  tts.ProgressSnapshot `json:"progress"`
	Chunks    []ChunkDTO           `json:"chunks"`
	Error     string               `json:"error,omitempty"`
	ElapsedMS int64                `json:"elapsed_ms"`
}

// HandleConvert handles POST /api/tts/convert.
func (h *TTSHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = h.defaultProvider
	}
	conv, ok := h.converters[provider]
	if !ok {
		http.Error(w, "unknown provider: "+provider, http.StatusBadRequest)
		return
	}

	result, err := conv.Convert(r.Context(), &tts.Request{
		Text:      req.Text,
		Provider:  provider,
		Model:     req.Model,
		Voice:     req.Voice,
		Format:    req.Format,
		ChunkSize: req.ChunkSize,
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		if tts.IsInvalidInput(err) || tts.IsConfigurationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("conversion error", "provider", provider, "error", err)
		http.Error(w, "conversion failed", http.StatusInternalServerError)
		return
	}

	if h.state != nil && result.Success {
		if err := h.state.SetState(r.Context(), lastConversionKey, result.ID); err != nil {
			slog.Warn("failed to persist conversion id", "error", err)
		}
	}

	resp := ConvertResponse{
		ID:        result.ID,
		Success:   result.Success,
		Format:    result.Format,
		Audio:     result.Audio,
		Progress:  result.Progress,
		Chunks:    make([]ChunkDTO, 0, len(result.Chunks)),
		ElapsedMS: result.Elapsed.Milliseconds(),
	}
	for _, ch := range result.Chunks {
		resp.Chunks = append(resp.Chunks, ChunkDTO{Index: ch.Index, Processed: ch.Processed, Error: ch.Error})
	}

	status := http.StatusOK
	if result.Err != nil {
		resp.Error = result.Err.Error()
		var noChunks *tts.NoSuccessfulChunksError
		if errors.As(result.Err, &noChunks) {
			status = http.StatusBadGateway
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write convert response", "error", err)
	}
}

// VoicesResponse lists the voices one provider offers.
type VoicesResponse struct {
	Provider string      `json:"provider"`
	Voices   []tts.Voice `json:"voices"`
}

// HandleVoices handles GET /api/tts/voices?provider=.
func (h *TTSHandler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		provider = h.defaultProvider
	}
	engine, ok := h.engines[provider]
	if !ok {
		http.Error(w, "unknown provider: "+provider, http.StatusBadRequest)
		return
	}

	voices, err := engine.Voices(r.Context())
	if err != nil {
		slog.Error("voice listing failed", "provider", provider, "error", err)
		http.Error(w, "voice listing failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(VoicesResponse{Provider: provider, Voices: voices}); err != nil {
		slog.Error("Failed to write voices response", "error", err)
	}
}
