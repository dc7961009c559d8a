package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DarkIrata/ffxiv-act-minioverlay/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load action catalog")
	}

	services, err := setupServices(ctx, cfg, cat)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}

	if len(services.Sources) == 0 {
		log.Warn().Msg("no combat log source configured; set TIMERS_LOG_FILE or NATS_URL")
	}

	log.Info().
		Str("port", cfg.Port).
		Strs("sets", cfg.ActionSets).
		Int("sources", len(services.Sources)).
		Msg("starting timer service")

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := services.Engine.Run(ctx); err != nil {
			log.Error().Err(err).Msg("timer engine failed")
		}
	}()
	go func() {
		defer wg.Done()
		services.Gateway.Start(ctx)
	}()

	for _, s := range services.Sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.source.Run(ctx, services.Engine); err != nil {
				log.Error().Err(err).Str("source", s.name).Msg("log source failed")
			}
		}()
	}

	server := setupServer(cfg.Port, services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	services.Close()

	// A source blocked reading stdin does not notice cancellation
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("timed out waiting for workers")
	}

	log.Info().Msg("timer service shutdown complete")
}
