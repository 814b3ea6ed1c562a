// Package local implements the tts.Engine interface without any
// remote service. It either shells out to a configured external
// synthesizer (stdin text, stdout audio) or falls back to a built-in
// deterministic WAV generator. A single mutex serializes synthesis,
// the engine models one exclusive local audio resource.
package local

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"audiobookgo/pkg/config"
	"audiobookgo/pkg/tts"
)

const defaultSampleRate = 22050

// Engine synthesizes audio in-process.
type Engine struct {
	cmd        []string
	sampleRate int
	latency    time.Duration
	mu         sync.Mutex
}

// New creates a local engine from config. An empty command selects
// the built-in generator.
func New(cfg *config.LocalTTSConfig) (*Engine, error) {
	e := &Engine{
		sampleRate: cfg.SampleRate,
		latency:    time.Duration(cfg.Latency),
	}
	if e.sampleRate <= 0 {
		e.sampleRate = defaultSampleRate
	}
	if cfg.Command != "" {
		args, err := shellwords.NewParser().Parse(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("parse synthesizer command: %w", err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("synthesizer command empty")
		}
		e.cmd = args
	}
	return e, nil
}

// Name returns the provider identity.
func (e *Engine) Name() string { return "local" }

// Parallel reports false: the engine wraps one exclusive resource and
// chunks are synthesized strictly in order.
func (e *Engine) Parallel() bool { return false }

// Speak synthesizes one chunk of text. Whitespace-only text is a
// no-op success with no audio.
func (e *Engine) Speak(ctx context.Context, text string, cfg *tts.Config) ([]byte, error) {
	if cfg.Provider != e.Name() {
		return nil, tts.NewConfigurationError("engine %q cannot serve provider %q", e.Name(), cfg.Provider)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.cmd) > 0 {
		return e.execSpeak(ctx, text)
	}
	return e.generate(ctx, text)
}

// execSpeak pipes the text through the external synthesizer.
func (e *Engine) execSpeak(ctx context.Context, text string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tts.Log("LOCAL", text, 0, 0, err)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("synthesizer: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("synthesizer: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("synthesizer produced no audio")
	}
	tts.Log("LOCAL", text, 200, stdout.Len(), nil)
	return stdout.Bytes(), nil
}

// generate produces a deterministic WAV tone whose length tracks the
// text length, with simulated synthesis latency.
func (e *Engine) generate(ctx context.Context, text string) ([]byte, error) {
	if e.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.latency):
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples := synthesizeTone(text, e.sampleRate)
	audio := encodeWAV(samples, e.sampleRate)
	tts.Log("LOCAL", text, 200, len(audio), nil)
	return audio, nil
}

// Voices returns the built-in voice set.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "default", Name: "Built-in tone generator", Language: "en-US"},
	}, nil
}
