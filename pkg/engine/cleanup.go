package engine

import (
	"context"
	"sort"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/rivencompanion/trc/internal/utils"
	"github.com/rivencompanion/trc/pkg/types"
)

// runDebridCleanupLoop drives the periodic inventory sweep on a gocron
// schedule, since this loop is a pure fixed-interval trigger rather than
// something that needs mid-cycle cancellation.
func (e *Engine) runDebridCleanupLoop(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return err
	}

	jd, err := utils.ConvertToJobDef(e.cfg.RDCleanupInterval.String())
	if err != nil {
		return err
	}

	if _, err := scheduler.NewJob(jd, gocron.NewTask(func() {
		e.runCleanupSweep(ctx)
	})); err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Shutdown()

	<-ctx.Done()
	return nil
}

// runCleanupSweep deletes torrents the debrid will never finish on its own
// (failed, stalled, abandoned file-selection, stuck active) and, if more
// active torrents than MaxActiveDownloads remain afterward, trims the
// excess, untracked first and least-progressed first.
func (e *Engine) runCleanupSweep(ctx context.Context) {
	torrents, err := e.deb.GetTorrents(ctx, 0)
	if err != nil {
		e.logger.Error().Err(err).Msg("cleanup sweep: failed to list torrents")
		return
	}

	tracked := e.trackedTorrentIDs()

	remaining := make([]types.Torrent, 0, len(torrents))
	for _, t := range torrents {
		if e.cleanupShouldDelete(t, tracked) {
			if err := e.deb.DeleteTorrent(ctx, t.ID); err != nil {
				e.logger.Error().Err(err).Str("torrent", t.ID).Msg("cleanup sweep: failed to delete torrent")
				continue
			}
			continue
		}
		remaining = append(remaining, t)
	}

	e.enforceMaxTorrents(ctx, remaining, tracked)
}

func (e *Engine) trackedTorrentIDs() map[string]store_DownloadTrackerMarker {
	out := make(map[string]store_DownloadTrackerMarker)
	for id := range e.store.AllDownloads() {
		out[id] = struct{}{}
	}
	return out
}

// store_DownloadTrackerMarker is an unexported marker type so
// trackedTorrentIDs can build a set without importing store just for
// struct{}; kept local to avoid a needless cross-package alias.
type store_DownloadTrackerMarker = struct{}

func (e *Engine) cleanupShouldDelete(t types.Torrent, tracked map[string]store_DownloadTrackerMarker) bool {
	if t.IsFailed() || t.IsStalled() {
		return true
	}

	_, isTracked := tracked[t.ID]

	if t.IsWaitingSelection() && !isTracked && time.Since(t.Added) > time.Hour {
		// Orphaned: nothing in our state is waiting on this torrent to be
		// selected, and it's had long enough that it isn't just mid-submit.
		e.logger.Warn().Str("torrent", t.ID).Dur("age", time.Since(t.Added)).Msg("cleanup sweep: deleting orphaned waiting-selection torrent")
		return true
	}

	if t.IsActive() && !isTracked && t.Progress < 5 && time.Since(t.Added) > e.cfg.RDStuckTorrentTimeout {
		e.logger.Warn().Str("torrent", t.ID).Dur("age", time.Since(t.Added)).Float64("progress", t.Progress).Msg("cleanup sweep: deleting stuck untracked torrent")
		return true
	}

	return false
}

// enforceMaxTorrents trims the debrid's active torrent count down to the
// configured ceiling when it's still over after the deletion pass, evicting
// untracked torrents first and, within each group, the least-progressed.
func (e *Engine) enforceMaxTorrents(ctx context.Context, torrents []types.Torrent, tracked map[string]store_DownloadTrackerMarker) {
	active := make([]types.Torrent, 0, len(torrents))
	for _, t := range torrents {
		if t.IsActive() {
			active = append(active, t)
		}
	}
	if len(active) <= e.cfg.MaxActiveDownloads {
		return
	}

	sort.Slice(active, func(i, j int) bool {
		_, iTracked := tracked[active[i].ID]
		_, jTracked := tracked[active[j].ID]
		if iTracked != jTracked {
			return !iTracked // untracked first
		}
		return active[i].Progress < active[j].Progress
	})

	excess := len(active) - e.cfg.MaxActiveDownloads
	for i := 0; i < excess; i++ {
		t := active[i]
		dl, isTracked := e.store.GetDownload(t.ID)
		if err := e.deb.DeleteTorrent(ctx, t.ID); err != nil {
			e.logger.Error().Err(err).Str("torrent", t.ID).Msg("cleanup sweep: failed to enforce torrent ceiling")
			continue
		}
		if isTracked {
			e.requeueAfterLoss(dl)
		}
	}
}
