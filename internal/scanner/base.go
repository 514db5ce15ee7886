package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultBundleSize = 50
	defaultUpdateRate = 4 * time.Second
)

// ErrSuperseded aborts a run loop whose session is no longer current.
var ErrSuperseded = errors.New("new scan session was started, old session aborted")

// StatusBase is the externally observable state of one scanner. It is the
// only signal operators have into run health, so a superseded run must never
// clobber it.
type StatusBase struct {
	Running       bool     `json:"running"`
	Progress      int      `json:"progress"`
	Total         int      `json:"total"`
	CurrentServer string   `json:"currentServer,omitempty"`
	Servers       []string `json:"servers,omitempty"`
}

// Runnable is what the scheduler and status API see of a scanner.
type Runnable interface {
	Name() string
	Status() StatusBase
}

// Base is the shared run lifecycle for all scanners: bundle-wise concurrent
// processing of an item list, progress reporting, and session guarding via a
// monotonically increasing run generation. A run whose generation has been
// superseded stops at the next bundle boundary and cannot reset the running
// flag on its way out.
type Base[T any] struct {
	name       string
	bundleSize int
	updateRate time.Duration
	logger     *logrus.Logger

	generation atomic.Int64

	mu            sync.Mutex
	running       bool
	progress      int
	items         []T
	currentServer string
	servers       []string
}

// BaseOption tunes a scanner base.
type BaseOption[T any] func(*Base[T])

// WithBundleSize overrides how many items one bundle processes concurrently.
func WithBundleSize[T any](size int) BaseOption[T] {
	return func(b *Base[T]) {
		if size > 0 {
			b.bundleSize = size
		}
	}
}

// WithUpdateRate overrides the pause between bundles.
func WithUpdateRate[T any](rate time.Duration) BaseOption[T] {
	return func(b *Base[T]) {
		if rate >= 0 {
			b.updateRate = rate
		}
	}
}

// NewBase creates a scanner base
func NewBase[T any](name string, logger *logrus.Logger, opts ...BaseOption[T]) *Base[T] {
	base := &Base[T]{
		name:       name,
		bundleSize: defaultBundleSize,
		updateRate: defaultUpdateRate,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(base)
	}
	return base
}

// Name returns the scanner name used in logs and status reporting.
func (b *Base[T]) Name() string {
	return b.name
}

// StartRun begins a new session, resetting progress and items, and returns
// the session generation. Any previously issued generation becomes stale.
func (b *Base[T]) StartRun() int64 {
	gen := b.generation.Add(1)

	b.mu.Lock()
	b.running = true
	b.progress = 0
	b.items = nil
	b.currentServer = ""
	b.servers = nil
	b.mu.Unlock()

	b.log().WithField("session", gen).Info("Scan starting")
	return gen
}

// EndRun marks the scanner idle, but only if gen is still the current
// session. A stale run finishing late is a no-op so it cannot falsely report
// idle while a newer run is in flight.
func (b *Base[T]) EndRun(gen int64) {
	if b.generation.Load() != gen {
		b.log().WithField("session", gen).Debug("Stale session finished, ignoring")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-check under the lock: a StartRun may have landed since the
	// check above, and its running flag must survive this call.
	if b.generation.Load() != gen {
		return
	}
	b.running = false
}

// Superseded reports whether gen is no longer the current session.
func (b *Base[T]) Superseded(gen int64) bool {
	return b.generation.Load() != gen
}

// Status reports last-known run state; safe to call concurrently with a run.
func (b *Base[T]) Status() StatusBase {
	b.mu.Lock()
	defer b.mu.Unlock()

	return StatusBase{
		Running:       b.running,
		Progress:      b.progress,
		Total:         len(b.items),
		CurrentServer: b.currentServer,
		Servers:       append([]string(nil), b.servers...),
	}
}

// SetItems installs the item list for the current server's loop. A stale
// session's call is a no-op so it cannot reset the newer session's progress.
func (b *Base[T]) SetItems(gen int64, items []T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation.Load() != gen {
		return
	}
	b.items = items
	b.progress = 0
}

// SetServers records the deduplicated server list for status reporting.
// Stale sessions are ignored.
func (b *Base[T]) SetServers(gen int64, names []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation.Load() != gen {
		return
	}
	b.servers = names
}

// SetCurrentServer records which server the run is processing. Stale
// sessions are ignored.
func (b *Base[T]) SetCurrentServer(gen int64, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation.Load() != gen {
		return
	}
	b.currentServer = name
}

// Loop consumes the installed items in fixed-size bundles. Items within a
// bundle are processed concurrently, bundles sequentially. Session validity
// is re-checked at every bundle boundary; a superseded session returns
// ErrSuperseded without touching the newer session's state. processFn is
// responsible for absorbing per-item failures; progress advances for every
// item either way.
func (b *Base[T]) Loop(ctx context.Context, gen int64, processFn func(context.Context, T)) error {
	b.mu.Lock()
	items := b.items
	b.mu.Unlock()

	for start := 0; start < len(items); start += b.bundleSize {
		if b.generation.Load() != gen {
			return ErrSuperseded
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + b.bundleSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for _, item := range items[start:end] {
			wg.Add(1)
			go func(item T) {
				defer wg.Done()
				processFn(ctx, item)

				b.mu.Lock()
				if b.generation.Load() == gen {
					b.progress++
				}
				b.mu.Unlock()
			}(item)
		}
		wg.Wait()

		if end < len(items) && b.updateRate > 0 {
			select {
			case <-time.After(b.updateRate):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}

func (b *Base[T]) log() *logrus.Entry {
	return b.logger.WithField("scanner", b.name)
}
