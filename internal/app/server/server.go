package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ad-delivery-engine/internal/api"
	"ad-delivery-engine/internal/config"
	"ad-delivery-engine/internal/engine"
	"ad-delivery-engine/internal/listener"
	"ad-delivery-engine/internal/recorder"
	"ad-delivery-engine/internal/storage"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()

	// Campaign snapshot
	snap := storage.NewSnapshot()
	refresh := func(ctx context.Context) error {
		campaigns, err := store.LoadEligibleCampaigns(ctx, time.Now())
		if err != nil {
			return err
		}
		snap.Replace(campaigns)
		log.Info().Int("campaigns", len(campaigns)).Msg("snapshot refreshed")
		return nil
	}
	// A failed warmup degrades to serving no ads, it is not fatal.
	if err := refresh(rootCtx); err != nil {
		log.Warn().Err(err).Msg("initial snapshot load failed; serving empty list")
	}

	// Attribution recorder
	rec := recorder.New(store, cfg.Recorder.BufferSize, cfg.Recorder.MobileMaxWidth)

	// HTTP
	h := api.NewDeliveryHandler(snap, rec, engineParams(cfg))
	r := api.Router(h)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Listener (LISTEN/NOTIFY) plus periodic fallback refresh
	go listener.ListenAndRefresh(rootCtx, store, refresh, cfg.Listener.Channel, cfg.Backoff())
	go periodicRefresh(rootCtx, refresh, cfg.RefreshEvery())

	// Server goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
	rec.Shutdown() // drain queued attribution events
}

// periodicRefresh covers the date rollover case: campaigns that start or
// end today drop in or out even when no NOTIFY arrives.
func periodicRefresh(ctx context.Context, refresh func(context.Context) error, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := refresh(ctx); err != nil {
				log.Error().Err(err).Msg("periodic refresh failed")
			}
		}
	}
}

func engineParams(cfg config.Config) engine.Params {
	return engine.Params{
		RotationInterval: time.Duration(cfg.Engine.RotationMs) * time.Millisecond,
		SkipAfter:        time.Duration(cfg.Engine.SkipAfterSeconds) * time.Second,
		MinVisibleTime:   time.Duration(cfg.Engine.MinVisibleMs) * time.Millisecond,
		LoopUnder:        time.Duration(cfg.Engine.LoopUnderSeconds) * time.Second,
		MaxCreative:      time.Duration(cfg.Engine.MaxCreativeSeconds) * time.Second,
	}
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
