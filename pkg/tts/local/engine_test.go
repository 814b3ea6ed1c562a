package local

import (
	"bytes"
	"context"
	"runtime"
	"testing"
	"time"

	"audiobookgo/pkg/config"
	"audiobookgo/pkg/tts"
)

func testConfig() *tts.Config {
	return &tts.Config{Provider: "local", Format: "wav"}
}

func TestSpeakBuiltinProducesWAV(t *testing.T) {
	engine, err := New(&config.LocalTTSConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := engine.Speak(context.Background(), "Hello there.", testConfig())
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !bytes.HasPrefix(audio, []byte("RIFF")) || !bytes.Contains(audio[:12], []byte("WAVE")) {
		t.Errorf("output is not a WAV container: %q", audio[:12])
	}
}

func TestSpeakDeterministic(t *testing.T) {
	engine, err := New(&config.LocalTTSConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a, _ := engine.Speak(context.Background(), "same text", testConfig())
	b, _ := engine.Speak(context.Background(), "same text", testConfig())
	c, _ := engine.Speak(context.Background(), "different text", testConfig())
	if !bytes.Equal(a, b) {
		t.Error("identical text must produce identical audio")
	}
	if bytes.Equal(a, c) {
		t.Error("different text should produce different audio")
	}
}

func TestSpeakEmptyTextNoop(t *testing.T) {
	engine, err := New(&config.LocalTTSConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := engine.Speak(context.Background(), " \n\t ", testConfig())
	if err != nil || audio != nil {
		t.Errorf("expected silent no-op, got %d bytes, %v", len(audio), err)
	}
}

func TestSpeakProviderMismatch(t *testing.T) {
	engine, err := New(&config.LocalTTSConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cfg := testConfig()
	cfg.Provider = "openai"
	_, err = engine.Speak(context.Background(), "hello", cfg)
	if !tts.IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestSpeakSimulatedLatencyCancelable(t *testing.T) {
	engine, err := New(&config.LocalTTSConfig{Latency: config.Duration(time.Minute)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = engine.Speak(ctx, "hello", testConfig())
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the latency sleep")
	}
}

func TestSpeakExternalCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	engine, err := New(&config.LocalTTSConfig{Command: `sh -c "cat; printf ' [synth]'"`})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := engine.Speak(context.Background(), "hello", testConfig())
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if string(audio) != "hello [synth]" {
		t.Errorf("audio = %q", audio)
	}
}

func TestSpeakExternalCommandFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	engine, err := New(&config.LocalTTSConfig{Command: `sh -c "echo broken >&2; exit 1"`})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = engine.Speak(context.Background(), "hello", testConfig())
	if err == nil {
		t.Fatal("expected error from failing synthesizer")
	}
}

func TestNewRejectsBadCommand(t *testing.T) {
	if _, err := New(&config.LocalTTSConfig{Command: `unclosed "quote`}); err == nil {
		t.Error("expected parse error")
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := []int16{0, 100, -100, 32000}
	wav := encodeWAV(samples, 22050)
	if len(wav) != 44+len(samples)*2 {
		t.Errorf("wav length = %d, want %d", len(wav), 44+len(samples)*2)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Error("malformed RIFF header")
	}
}
