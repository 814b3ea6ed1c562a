package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"audiobookgo/internal/api"
	"audiobookgo/pkg/config"
	"audiobookgo/pkg/db"
	"audiobookgo/pkg/extract"
	"audiobookgo/pkg/logging"
	"audiobookgo/pkg/request"
	"audiobookgo/pkg/store"
	"audiobookgo/pkg/tracker"
	"audiobookgo/pkg/tts"
	"audiobookgo/pkg/tts/geminitts"
	"audiobookgo/pkg/tts/local"
	"audiobookgo/pkg/tts/openai"
	"audiobookgo/pkg/version"
)

const configPath = "configs/audiobook.yaml"

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: " + configPath)
		return
	}

	if err := run(context.Background(), configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	if path := appCfg.Log.Synthesis.Path; path != "" {
		tts.SetLogPath(path)
	}

	slog.Info("Audiobookgo Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := dbConn.PruneCache(time.Duration(appCfg.DB.CacheTTL)); err != nil {
		slog.Error("Cache pruning failed", "error", err)
	}

	tr := tracker.New()
	reqClient := request.New(st, tr, request.Policy{
		MaxRetries: appCfg.Request.Retries,
		BaseDelay:  time.Duration(appCfg.Request.Backoff.BaseDelay),
		MaxDelay:   time.Duration(appCfg.Request.Backoff.MaxDelay),
		Timeout:    time.Duration(appCfg.Request.Timeout),
	})

	engines, err := initEngines(ctx, appCfg, reqClient, tr)
	if err != nil {
		return err
	}
	if _, ok := engines[appCfg.TTS.Provider]; !ok {
		return fmt.Errorf("configured provider %q is not available", appCfg.TTS.Provider)
	}

	converters := make(map[string]*tts.Converter, len(engines))
	for name, engine := range engines {
		converters[name] = tts.NewConverter(engine, &appCfg.TTS, tr, slog.With("component", "converter", "provider", name))
	}

	ttsH := api.NewTTSHandler(converters, engines, appCfg.TTS.Provider, st)
	statsH := api.NewStatsHandler(tr, st)

	var extractH *api.ExtractHandler
	if appCfg.Extract.JinaKey != "" || appCfg.Extract.HTMLFallback {
		ex := extract.New(reqClient, &appCfg.Extract, slog.With("component", "extract"))
		extractH = api.NewExtractHandler(ex)
		slog.Info("Content extraction enabled", "reader_api", ex.Configured(), "html_fallback", appCfg.Extract.HTMLFallback)
	} else {
		slog.Info("Content extraction disabled (no Jina key, no HTML fallback)")
	}

	return runServer(ctx, appCfg, ttsH, extractH, statsH)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initEngines builds every usable engine. The local engine is always
// available; remote engines surface missing credentials per request.
func initEngines(ctx context.Context, appCfg *config.Config, reqClient *request.Client, tr *tracker.Tracker) (map[string]tts.Engine, error) {
	engines := make(map[string]tts.Engine)

	localEngine, err := local.New(&appCfg.TTS.Local)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local engine: %w", err)
	}
	engines[localEngine.Name()] = localEngine

	openaiEngine := openai.New(reqClient, appCfg.TTS.OpenAI.Key, appCfg.TTS.OpenAI.BaseURL)
	engines[openaiEngine.Name()] = openaiEngine

	geminiEngine, err := geminitts.New(ctx, &appCfg.TTS.Gemini, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini engine: %w", err)
	}
	engines[geminiEngine.Name()] = geminiEngine

	return engines, nil
}

func runServer(ctx context.Context, appCfg *config.Config, ttsH *api.TTSHandler, extractH *api.ExtractHandler, statsH *api.StatsHandler) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(appCfg.Server.Address, ttsH, extractH, statsH, logging.RequestLogger, shutdownFunc)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", appCfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
