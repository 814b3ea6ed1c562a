// Package geminitts implements the tts.Engine interface on top of
// Google Gemini speech generation via the genai SDK.
package geminitts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"audiobookgo/pkg/config"
	"audiobookgo/pkg/tracker"
	"audiobookgo/pkg/tts"
)

const defaultModel = "gemini-2.5-flash-preview-tts"

// Engine synthesizes speech through Gemini's audio response modality.
type Engine struct {
	genaiClient *genai.Client
	apiKey      string
	modelName   string
	tracker     *tracker.Tracker

	mu sync.RWMutex
}

// New creates a Gemini engine. Model availability is validated
// eagerly but failures only log a warning, so startup survives a
// flaky or rate-limited API; truly invalid keys fail on synthesis.
func New(ctx context.Context, cfg *config.GeminiTTSConfig, t *tracker.Tracker) (*Engine, error) {
	e := &Engine{
		apiKey:    cfg.Key,
		modelName: cfg.Model,
		tracker:   t,
	}
	if e.modelName == "" {
		e.modelName = defaultModel
	}
	if e.apiKey == "" {
		// Can't initialize without key. Speak reports the missing
		// configuration instead.
		return e, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: e.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	e.genaiClient = client

	if err := e.validateModel(ctx); err != nil {
		slog.Warn("Gemini model validation failed (proceeding anyway)", "error", err)
	}
	return e, nil
}

// Name returns the provider identity.
func (e *Engine) Name() string { return "gemini" }

// Parallel reports that chunks may be synthesized concurrently.
func (e *Engine) Parallel() bool { return true }

// Speak synthesizes one chunk of text. Whitespace-only text is a
// no-op success with no audio.
func (e *Engine) Speak(ctx context.Context, text string, cfg *tts.Config) ([]byte, error) {
	if cfg.Provider != e.Name() {
		return nil, tts.NewConfigurationError("engine %q cannot serve provider %q", e.Name(), cfg.Provider)
	}

	e.mu.RLock()
	client := e.genaiClient
	model := e.modelName
	e.mu.RUnlock()

	if client == nil {
		return nil, tts.NewConfigurationError("gemini: no API key configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if cfg.Model != "" {
		model = cfg.Model
	}

	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
	}
	if cfg.Voice != "" {
		genCfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(text), genCfg)
	if err != nil {
		tts.Log("GEMINI", text, 0, 0, err)
		if e.tracker != nil {
			e.tracker.TrackAPIFailure("gemini")
		}
		return nil, fmt.Errorf("gemini: generate audio: %w", err)
	}

	audio := audioPayload(resp)
	if len(audio) == 0 {
		err := fmt.Errorf("gemini: response contains no audio data")
		tts.Log("GEMINI", text, 0, 0, err)
		if e.tracker != nil {
			e.tracker.TrackAPIFailure("gemini")
		}
		return nil, err
	}

	tts.Log("GEMINI", text, 200, len(audio), nil)
	if e.tracker != nil {
		e.tracker.TrackAPISuccess("gemini")
	}
	return audio, nil
}

// audioPayload extracts the inline audio bytes from a response.
func audioPayload(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// Voices returns the prebuilt Gemini speech voices.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	names := []string{"Zephyr", "Puck", "Charon", "Kore", "Fenrir", "Leda", "Orus", "Aoede"}
	voices := make([]tts.Voice, 0, len(names))
	for _, n := range names {
		voices = append(voices, tts.Voice{ID: n, Name: n, IsNeural: true})
	}
	return voices, nil
}

// validateModel checks if the configured model is available for the API key.
func (e *Engine) validateModel(ctx context.Context) error {
	name := e.modelName
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}

	_, err := e.genaiClient.Models.Get(ctx, name, nil)
	if err == nil {
		slog.Debug("Gemini model validation success", "model", e.modelName)
		return nil
	}

	slog.Warn("Gemini model validation failed, fetching available models...", "model", e.modelName, "error", err)

	iter, listErr := e.genaiClient.Models.List(ctx, nil)
	if listErr != nil {
		return listErr
	}

	var available []string
	for {
		m, nextErr := iter.Next(ctx)
		if nextErr == iterator.Done {
			break
		}
		if nextErr != nil {
			break
		}
		if strings.Contains(strings.ToLower(m.Name), "tts") {
			available = append(available, m.Name)
		}
	}

	slog.Error("Configured model not found", "configured", e.modelName)
	for _, m := range available {
		slog.Error("- " + m)
	}
	return err
}
