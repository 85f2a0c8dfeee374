package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg := LoadConfig()
	logger := NewLogger(cfg.AppEnv)

	store, err := NewFileStore(cfg.WorkDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.WorkDir).Msg("work dir init failed")
	}

	cache := NewMetadataCache(cfg, logger)
	extractor := NewExtractor(cfg.YtdlpPath, logger)
	registry := NewRegistry(store, cache, extractor.Fetch, logger)

	app := &App{
		cfg:       cfg,
		log:       logger,
		registry:  registry,
		extractor: extractor,
		cache:     cache,
		store:     store,
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app.Router(),
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Int("workers", WorkerPoolSize).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	registry.Close()
	logger.Info().Msg("shutdown complete")
}
