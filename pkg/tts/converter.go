package tts

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"audiobookgo/pkg/config"
	"audiobookgo/pkg/textseg"
	"audiobookgo/pkg/tracker"
)

// Request describes one conversion. Fields left empty fall back to
// the configured defaults for the selected provider. Immutable once
// handed to Convert.
type Request struct {
	Text      string
	Provider  string
	Model     string
	Voice     string
	Format    string
	ChunkSize int
	Timeout   time.Duration
}

// Chunk is one segment of the input text and its synthesis outcome.
// Processed means the chunk reached a terminal state; Error is the
// authoritative failure signal. A failed chunk is both Processed and
// carries an Error. Audio is never overwritten once set.
type Chunk struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Audio     []byte `json:"-"`
	Processed bool   `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// Result is the immutable outcome of one conversion. Success means
// the conversion produced usable output, not that every chunk
// succeeded; check Progress.Failed for degradation. Err is set on
// terminal failure only.
type Result struct {
	ID       string
	Success  bool
	Format   string
	Audio    []byte
	Chunks   []Chunk
	Progress ProgressSnapshot
	Err      error
	Elapsed  time.Duration
}

// Converter drives the conversion lifecycle: validate, segment,
// dispatch chunks to the engine, reassemble audio.
type Converter struct {
	engine   Engine
	cfg      *config.TTSConfig
	oversize textseg.OversizePolicy
	tracker  *tracker.Tracker
	log      *slog.Logger
}

// NewConverter creates a Converter bound to one engine. The oversize
// policy in cfg must already have passed config validation.
func NewConverter(engine Engine, cfg *config.TTSConfig, tr *tracker.Tracker, log *slog.Logger) *Converter {
	policy, _ := textseg.ParsePolicy(cfg.Oversize)
	if log == nil {
		log = slog.Default()
	}
	return &Converter{
		engine:   engine,
		cfg:      cfg,
		oversize: policy,
		tracker:  tr,
		log:      log,
	}
}

// Convert runs one request end to end. It returns an error only for
// validation and configuration failures; a conversion whose every
// chunk failed still returns a Result, with Err set to a
// NoSuccessfulChunksError.
func (c *Converter) Convert(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	if strings.TrimSpace(req.Text) == "" {
		return nil, &InvalidInputError{Reason: "text must not be empty"}
	}

	cfg := c.resolve(req)
	if cfg.Provider != c.engine.Name() {
		return nil, NewConfigurationError("provider %q does not match engine %q", cfg.Provider, c.engine.Name())
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = c.cfg.ChunkSize
	}
	pieces, err := textseg.SplitWithPolicy(req.Text, chunkSize, c.oversize)
	if err != nil {
		return nil, &InvalidInputError{Reason: err.Error()}
	}

	chunks := make([]Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = Chunk{Index: i, Text: text}
	}

	id := uuid.NewString()
	prog := NewProgress(len(chunks))
	c.log.Info("conversion started", "id", id, "provider", cfg.Provider, "chunks", len(chunks), "bytes", len(req.Text))

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = time.Duration(c.cfg.Timeout)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if c.engine.Parallel() {
		var wg sync.WaitGroup
		for i := range chunks {
			wg.Add(1)
			go func(ch *Chunk) {
				defer wg.Done()
				c.processChunk(ctx, ch, cfg, prog)
			}(&chunks[i])
		}
		wg.Wait()
	} else {
		for i := range chunks {
			c.processChunk(ctx, &chunks[i], cfg, prog)
		}
	}

	snap := prog.Snapshot()
	result := &Result{
		ID:       id,
		Format:   cfg.Format,
		Chunks:   chunks,
		Progress: snap,
		Elapsed:  time.Since(start),
	}

	if snap.Failed >= snap.Total {
		result.Err = &NoSuccessfulChunksError{Total: len(chunks)}
		c.log.Error("conversion failed", "id", id, "provider", cfg.Provider, "chunks", len(chunks))
		return result, nil
	}

	var buf bytes.Buffer
	for i := range chunks {
		ch := &chunks[i]
		if ch.Processed && ch.Error == "" && len(ch.Audio) > 0 {
			buf.Write(ch.Audio)
		}
	}
	result.Audio = buf.Bytes()
	result.Success = true
	c.log.Info("conversion finished", "id", id, "provider", cfg.Provider,
		"processed", snap.Processed, "failed", snap.Failed, "audio_bytes", buf.Len(), "elapsed", result.Elapsed)
	return result, nil
}

// processChunk drives one chunk to its terminal state.
func (c *Converter) processChunk(ctx context.Context, ch *Chunk, cfg *Config, prog *Progress) {
	if err := ctx.Err(); err != nil {
		c.failChunk(ch, cfg, prog, "not dispatched: "+err.Error())
		return
	}

	audio, err := c.engine.Speak(ctx, ch.Text, cfg)
	if err != nil {
		c.failChunk(ch, cfg, prog, err.Error())
		return
	}

	ch.Processed = true
	if ch.Audio == nil {
		ch.Audio = audio
	}
	prog.MarkSuccess()
	if c.tracker != nil {
		c.tracker.TrackChunk(cfg.Provider, true)
	}
}

func (c *Converter) failChunk(ch *Chunk, cfg *Config, prog *Progress, msg string) {
	ch.Processed = true
	ch.Error = msg
	prog.MarkFailure()
	if c.tracker != nil {
		c.tracker.TrackChunk(cfg.Provider, false)
	}
	c.log.Warn("chunk failed", "provider", cfg.Provider, "index", ch.Index, "error", msg)
}

// resolve merges the request with the configured per-provider defaults.
func (c *Converter) resolve(req *Request) *Config {
	cfg := &Config{
		Provider: req.Provider,
		Model:    req.Model,
		Voice:    req.Voice,
		Format:   req.Format,
	}
	if cfg.Provider == "" {
		cfg.Provider = c.cfg.Provider
	}
	switch cfg.Provider {
	case "openai":
		if cfg.Model == "" {
			cfg.Model = c.cfg.OpenAI.Model
		}
		if cfg.Voice == "" {
			cfg.Voice = c.cfg.OpenAI.Voice
		}
		if cfg.Format == "" {
			cfg.Format = c.cfg.OpenAI.Format
		}
	case "gemini":
		if cfg.Model == "" {
			cfg.Model = c.cfg.Gemini.Model
		}
		if cfg.Voice == "" {
			cfg.Voice = c.cfg.Gemini.Voice
		}
		if cfg.Format == "" {
			cfg.Format = "wav"
		}
	case "local":
		if cfg.Format == "" {
			cfg.Format = "wav"
		}
	}
	return cfg
}
