// Package trc wires the reconciliation engine's dependencies together from
// the process environment and runs it to completion.
package trc

import (
	"context"
	"fmt"
	"time"

	"github.com/rivencompanion/trc/internal/config"
	"github.com/rivencompanion/trc/internal/logger"
	"github.com/rivencompanion/trc/internal/ratelimiter"
	"github.com/rivencompanion/trc/pkg/debrid"
	"github.com/rivencompanion/trc/pkg/engine"
	"github.com/rivencompanion/trc/pkg/library"
	"github.com/rivencompanion/trc/pkg/store"
)

const (
	libraryService = "library"
	debridService  = "debrid"
)

// Start builds the engine from the process environment and runs it until
// ctx is canceled.
func Start(ctx context.Context) error {
	cfg := config.Get()
	_log := logger.Default()

	fmt.Printf(`
+-------------------------------------------------------+
|                                                       |
|  ╔╦╗╦═╗╔═╗                                            |
|   ║ ╠╦╝║   the Riven companion                        |
|   ╩ ╩╚═╚═╝                                            |
|                                                       |
+-------------------------------------------------------+
|  Log Level: %s                                        |
+-------------------------------------------------------+
`, cfg.LogLevel)

	rl := ratelimiter.New(map[string]time.Duration{
		libraryService: cfg.RivenRateLimit,
		debridService:  cfg.RDRateLimit,
	})

	lib := library.New(cfg.RivenURL, cfg.RivenAPIKey, rl)
	deb := debrid.New(cfg.RDBaseURL, cfg.RDAPIKey, rl)

	st, err := store.New(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	eng := engine.New(cfg, lib, deb, st)

	_log.Info().Msg("starting reconciliation engine")
	if err := eng.Start(ctx); err != nil {
		_log.Error().Err(err).Msg("engine stopped with error")
		return err
	}
	_log.Info().Msg("reconciliation engine stopped")
	return nil
}
