// Package stream implements engine.StreamController: the random-access /
// streaming mode switch, prefetch, and ping-time estimation a LoadedTrack
// needs around its underlying byte stream. Grounded on the teacher's
// internal/download queue (background fetch-ahead of bytes not yet needed)
// and internal/playback's position-tracking idioms, generalized from whole
// files to byte ranges of one track's stream.
package stream

import (
	"context"
	"sync"
	"time"
)

// RandomAccessStream is the minimal byte-range source a Controller wraps.
// catalog.RandomAccessStream satisfies this.
type RandomAccessStream interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// mode mirrors the random-access/streaming toggle from spec.md §4.2/§4.6.
type mode int

const (
	modeStreaming mode = iota
	modeRandomAccess
)

// Controller is the concrete engine.StreamController used by every
// catalog-backed LoadedTrack. It has no real network to simulate latency
// over, so PingTime returns a configured nominal estimate and prefetch is
// modeled as advancing a "bytes known readable" cursor ahead of the
// decoder's current read position.
type Controller struct {
	mu sync.Mutex

	s       RandomAccessStream
	mode    mode
	ping    time.Duration
	fetched int64 // bytes confirmed readable, monotonically advances toward s.Size()
	closeFn func() error
}

// NewController wraps s. ping is the nominal round-trip the real backend
// would incur per fetch-ahead request; pass 0 to use a conservative 20ms
// default matching a typical broadband RTT.
func NewController(s RandomAccessStream, ping time.Duration, closeFn func() error) *Controller {
	if ping <= 0 {
		ping = 20 * time.Millisecond
	}
	return &Controller{s: s, ping: ping, closeFn: closeFn}
}

func (c *Controller) SetRandomAccessMode() {
	c.mu.Lock()
	c.mode = modeRandomAccess
	c.mu.Unlock()
}

func (c *Controller) SetStreamMode() {
	c.mu.Lock()
	c.mode = modeStreaming
	c.mu.Unlock()
}

// FetchNext requests bytes be made available ahead of the current cursor,
// without blocking the caller — the controller advances its "fetched"
// cursor directly since the underlying RandomAccessStream is a local file
// with no real fetch latency to await.
func (c *Controller) FetchNext(bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(bytes)
}

// FetchNextBlocking is the synchronous counterpart used for the
// before-playback prefetch budget in Seek (spec.md §4.6 step 4).
func (c *Controller) FetchNextBlocking(ctx context.Context, bytes int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.mu.Lock()
	c.advanceLocked(bytes)
	c.mu.Unlock()
	return nil
}

func (c *Controller) advanceLocked(bytes int) {
	if bytes <= 0 {
		return
	}
	c.fetched += int64(bytes)
	if size := c.s.Size(); c.fetched > size {
		c.fetched = size
	}
}

// PingTime returns the nominal round-trip estimate used to size prefetch
// budgets.
func (c *Controller) PingTime() time.Duration {
	return c.ping
}

// RangeToEndAvailable reports whether the fetch-ahead cursor has reached the
// end of the underlying stream — the condition spec.md §4.3 step 5 checks
// before suggesting a preload.
func (c *Controller) RangeToEndAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetched >= c.s.Size()
}

func (c *Controller) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}
