// Command waves-engine runs the player engine and its JSON-RPC control
// facade as a standalone process: load config, wire up the catalog, the
// engine, the audio sink, and the control plane, then serve until signalled.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waves-audio/engine/internal/audio"
	"github.com/waves-audio/engine/internal/catalog"
	"github.com/waves-audio/engine/internal/config"
	"github.com/waves-audio/engine/internal/control"
	"github.com/waves-audio/engine/internal/engine"
	"github.com/waves-audio/engine/internal/metrics"
	"github.com/waves-audio/engine/internal/remote"
	"github.com/waves-audio/engine/internal/telemetry"
)

const sampleRate = 44100

// mirrorStateReader adapts *control.Mirror to remote.StateReader: Mirror's
// own RemoteSnapshot already builds a remote.Snapshot, this just gives it
// the method name the interface expects.
type mirrorStateReader struct {
	m *control.Mirror
}

func (r mirrorStateReader) Snapshot() remote.Snapshot { return r.m.RemoteSnapshot() }

func main() {
	cfg, err := config.Load()
	if err != nil {
		panicExit("config.Load", err)
	}

	log := telemetry.NewLogger(cfg.Log.Level, boolOr(cfg.Log.Pretty, false))
	log.Info().Str("bindAddr", cfg.Control.BindAddr).Msg("starting waves-engine")

	source, err := catalog.OpenFileSource(cfg.Catalog.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open catalog")
	}

	var cache *catalog.Cache
	if cfg.Catalog.CacheFile != "" {
		cache, err = catalog.OpenCache(cfg.Catalog.CacheFile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open catalog cache")
		}
	}

	loader := catalog.NewLoader(cfg.Playback.ToLoaderConfig(), source, cache)

	sink, err := audio.NewBeepSink(sampleRate)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialise audio sink")
	}

	eng := engine.New(engine.Config{
		Normalisation: cfg.Normalisation.ToNormalisationConfig(),
		Prefetch:      engine.DefaultPrefetchConfig(),
		Gapless:       cfg.Playback.GaplessOrDefault(),
	}, loader, sink, nil)

	facade := control.NewFacade(eng, nil, log)
	remoteControl := remote.NewBroadcastControl(facade, remote.NewLoggingControl(log))
	facade.SetRemote(remoteControl)

	mpris, err := remote.NewMPRISAdapter(eng, remoteControl, mirrorStateReader{facade.Mirror()})
	if err != nil {
		log.Warn().Err(err).Msg("MPRIS adapter unavailable")
	}
	defer mpris.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	events := eng.AddEventSender()
	go facade.Run(ctx, events)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe("127.0.0.1:9090", mux); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Control.BindAddr,
		Handler:           control.NewRouter(facade),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := eng.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("engine run loop exited")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("control server stopped")
	}

	eng.Close()
	log.Info().Msg("waves-engine stopped")
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func panicExit(step string, err error) {
	os.Stderr.WriteString(step + ": " + err.Error() + "\n")
	os.Exit(1)
}
