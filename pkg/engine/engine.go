// Package engine implements the reconciliation engine: it watches the
// library for items stuck in a problem state, drives them through a
// manual-scrape-and-submit pipeline against the debrid, and reapplies the
// resulting download back onto the library once it completes.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rivencompanion/trc/internal/config"
	"github.com/rivencompanion/trc/internal/logger"
	"github.com/rivencompanion/trc/pkg/debrid"
	"github.com/rivencompanion/trc/pkg/library"
	"github.com/rivencompanion/trc/pkg/store"
)

// Tracker states, forming the per-item state machine's vocabulary.
const (
	StateDetected           = "detected"
	StateLibraryRetrying    = "library_retrying"
	StateScraping           = "scraping"
	StateFeedingDebrid      = "feeding_debrid"
	StateAwaitingCompletion = "awaiting_completion"
	StateReapplied          = "reapplied"
	StateAbandoned          = "abandoned"
)

// Engine owns the three reconciliation loops and the shared state needed
// to coordinate them: the item and download trackers, a round-robin cursor
// for slot filling, and the per-cycle set of parent shows already queued.
type Engine struct {
	cfg     *config.Config
	lib     *library.Client
	deb     *debrid.Client
	store   *store.Store
	logger  zerolog.Logger

	shutdown chan struct{}

	mu                sync.Mutex
	roundRobinCursor  int
	parentShowsQueued map[string]struct{}
}

// New wires an Engine from its dependencies.
func New(cfg *config.Config, lib *library.Client, deb *debrid.Client, st *store.Store) *Engine {
	return &Engine{
		cfg:      cfg,
		lib:      lib,
		deb:      deb,
		store:    st,
		logger:   logger.New("engine"),
		shutdown: make(chan struct{}),
	}
}

// Start validates connectivity to the library and, unless
// SkipRDValidation is set, the debrid, then runs the
// three reconciliation loops until ctx is canceled. The first loop to
// return an error cancels the others.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.validateStartup(ctx); err != nil {
		return fmt.Errorf("startup validation failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	safeGo := func(name string, fn func(context.Context) error) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					e.logger.Error().
						Interface("panic", r).
						Str("stack", string(stack)).
						Str("loop", name).
						Msg("recovered from panic in loop")
					err = fmt.Errorf("panic in %s: %v", name, r)
				}
			}()
			return fn(gctx)
		})
	}

	safeGo("problem-scan", e.runProblemScanLoop)
	safeGo("debrid-monitor", e.runDebridMonitorLoop)
	safeGo("debrid-cleanup", e.runDebridCleanupLoop)

	return g.Wait()
}

// validateStartup health-checks the library and, unless skipped, resolves
// the debrid account — aborting startup on either failure.
func (e *Engine) validateStartup(ctx context.Context) error {
	if !e.lib.HealthCheck(ctx) {
		return fmt.Errorf("library health check failed")
	}
	e.logger.Info().Msg("library health check passed")

	if e.cfg.SkipRDValidation {
		e.logger.Warn().Msg("skipping debrid validation on startup")
		return nil
	}

	user, err := e.deb.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("debrid validation failed: %w", err)
	}
	e.logger.Info().Str("user", user.Username).Msg("debrid account resolved")
	return nil
}

// interruptibleSleep blocks for d or until ctx is canceled, whichever
// comes first, returning true if it slept the full duration.
func interruptibleSleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
