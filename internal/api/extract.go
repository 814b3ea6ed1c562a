package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"audiobookgo/pkg/extract"
	"audiobookgo/pkg/request"
)

// ExtractHandler handles the content extraction endpoint.
type ExtractHandler struct {
	extractor *extract.Extractor
}

// NewExtractHandler creates an ExtractHandler.
func NewExtractHandler(ex *extract.Extractor) *ExtractHandler {
	return &ExtractHandler{extractor: ex}
}

// ExtractRequest is the POST /api/extract body.
type ExtractRequest struct {
	URL string `json:"url"`
}

// HandleExtract handles POST /api/extract.
func (h *ExtractHandler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	content, err := h.extractor.Extract(r.Context(), req.URL)
	if err != nil {
		var statusErr *request.StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		slog.Warn("extraction failed", "url", req.URL, "error", err)
		http.Error(w, "extraction failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(content); err != nil {
		slog.Error("Failed to write extract response", "error", err)
	}
}
