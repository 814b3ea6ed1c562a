// Package tts converts text into synthesized audio. A Converter
// segments the input, fans chunks out to a provider Engine, tracks
// per-chunk progress and reassembles the surviving audio into one
// payload.
package tts

import (
	"context"
)

// Engine is the interface synthesis providers implement.
type Engine interface {
	// Name returns the provider identity ("openai", "gemini", "local").
	Name() string

	// Parallel reports whether chunks may be dispatched concurrently.
	// Local single-resource engines return false and are driven
	// strictly in ordinal order.
	Parallel() bool

	// Speak synthesizes one chunk of text and returns the raw audio
	// bytes. The returned bytes are opaque to the caller.
	Speak(ctx context.Context, text string, cfg *Config) ([]byte, error)

	// Voices returns the voices the provider offers.
	Voices(ctx context.Context) ([]Voice, error)
}

// Config carries the per-conversion synthesis settings handed to an
// engine. Engines reject a Config whose Provider does not match their
// own Name before doing any I/O.
type Config struct {
	Provider string
	Model    string
	Voice    string
	Format   string
}

// Voice represents an available synthesis voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	IsNeural bool   `json:"is_neural,omitempty"`
}
