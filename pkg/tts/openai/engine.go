// Package openai implements the tts.Engine interface against the
// OpenAI speech API. Requests go through the shared resilient HTTP
// client, so transient upstream failures are retried with backoff and
// chunk audio is cached in the shared store.
package openai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"audiobookgo/pkg/request"
	"audiobookgo/pkg/tts"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Engine synthesizes speech via the OpenAI audio/speech endpoint.
type Engine struct {
	client  *request.Client
	key     string
	baseURL string
}

// New creates an OpenAI engine. The credential and base URL are fixed
// at construction and never mutated afterward.
func New(client *request.Client, key, baseURL string) *Engine {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Engine{
		client:  client,
		key:     key,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider identity.
func (e *Engine) Name() string { return "openai" }

// Parallel reports that chunks may be synthesized concurrently.
func (e *Engine) Parallel() bool { return true }

// speechRequest is the JSON body of the speech endpoint.
type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// Speak synthesizes one chunk of text. Whitespace-only text is a
// no-op success with no audio.
func (e *Engine) Speak(ctx context.Context, text string, cfg *tts.Config) ([]byte, error) {
	if cfg.Provider != e.Name() {
		return nil, tts.NewConfigurationError("engine %q cannot serve provider %q", e.Name(), cfg.Provider)
	}
	if e.key == "" {
		return nil, tts.NewConfigurationError("openai: no API key configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	body, err := json.Marshal(speechRequest{
		Model:          cfg.Model,
		Input:          text,
		Voice:          cfg.Voice,
		ResponseFormat: cfg.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + e.key,
		"Content-Type":  "application/json",
	}

	resp, err := e.client.DoCached(ctx, "POST", e.baseURL+"/audio/speech",
		headers, body, chunkKey(e.Name(), cfg, text), nil)
	if err != nil {
		var statusErr *request.StatusError
		if errors.As(err, &statusErr) {
			msg := apiError(statusErr.Body, statusErr.Status)
			tts.Log("OPENAI", text, statusErr.Status, 0, errors.New(msg))
			return nil, fmt.Errorf("openai: %s", msg)
		}
		tts.Log("OPENAI", text, 0, 0, err)
		return nil, fmt.Errorf("openai: %w", err)
	}

	tts.Log("OPENAI", text, resp.Status, len(resp.Body), nil)
	return resp.Body, nil
}

// Voices returns the fixed voice set the speech API accepts.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	names := []string{"alloy", "ash", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer"}
	voices := make([]tts.Voice, 0, len(names))
	for _, n := range names {
		voices = append(voices, tts.Voice{ID: n, Name: n, IsNeural: true})
	}
	return voices, nil
}

// apiError extracts error.message from an API error body, falling
// back to the bare status code.
func apiError(body []byte, status int) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return fmt.Sprintf("status %d", status)
}

// chunkKey derives the cache key for one chunk's audio.
func chunkKey(provider string, cfg *tts.Config, text string) string {
	h := sha256.Sum256([]byte(provider + "|" + cfg.Model + "|" + cfg.Voice + "|" + cfg.Format + "|" + text))
	return "tts:" + hex.EncodeToString(h[:])
}
