// Command waves-loadtest drives the engine against a fixture catalog
// directory without any real audio output, logging the event stream to
// stderr. Useful for exercising load/preload/normalisation end to end in CI
// or by hand, the way the teacher's cmd/testimport exercised its importer
// against a single real album.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waves-audio/engine/internal/catalog"
	"github.com/waves-audio/engine/internal/engine"
)

func main() {
	catalogDir := flag.String("catalog", "", "directory holding manifest.json and blob files")
	trackIDs := flag.String("tracks", "", "comma-separated base-62 track ids: the first is loaded and played, each later one is sent as a Preload (a later Preload replaces an earlier one)")
	runFor := flag.Duration("for", 30*time.Second, "how long to run before stopping")
	flag.Parse()

	if *catalogDir == "" || *trackIDs == "" {
		fmt.Fprintln(os.Stderr, "usage: waves-loadtest -catalog <dir> -tracks <id[,id...]> [-for 30s]")
		os.Exit(2)
	}

	ids, err := parseTrackIDs(*trackIDs)
	if err != nil {
		log.Fatalf("parse -tracks: %v", err)
	}

	source, err := catalog.OpenFileSource(*catalogDir)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	loader := catalog.NewLoader(catalog.DefaultLoaderConfig(), source, nil)

	eng := engine.New(engine.Config{
		Normalisation: engine.DefaultNormalisationConfig(),
		Prefetch:      engine.DefaultPrefetchConfig(),
		Gapless:       true,
	}, loader, &discardSink{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), *runFor)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	events := eng.AddEventSender()
	go logEvents(events)

	go func() {
		if err := eng.Run(ctx); err != nil {
			log.Printf("engine run loop exited: %v", err)
		}
	}()

	reqID := eng.NextPlayRequestID()
	eng.Load(ids[0], reqID, true, 0)
	for _, id := range ids[1:] {
		eng.Preload(id)
	}

	<-ctx.Done()
	eng.Close()
	time.Sleep(100 * time.Millisecond) // let the final events drain before exit
}

func logEvents(events <-chan engine.Event) {
	for ev := range events {
		log.Printf("event: %#v", ev)
	}
}

func parseTrackIDs(s string) ([]engine.TrackID, error) {
	var ids []engine.TrackID
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				id, err := engine.ParseTrackID(s[start:i])
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
			}
			start = i + 1
		}
	}
	if len(ids) == 0 {
		return nil, engine.ErrInvalidTrackID
	}
	return ids, nil
}

// discardSink implements engine.Sink without touching real audio hardware,
// so this binary can run headless in CI.
type discardSink struct{}

func (discardSink) Start() error { return nil }
func (discardSink) Stop() error  { return nil }
func (discardSink) Write(samples []float64, conv engine.Converter) error {
	conv.Convert(samples)
	return nil
}
