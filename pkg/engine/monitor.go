package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rivencompanion/trc/pkg/store"
	"github.com/rivencompanion/trc/pkg/types"
)

// runDebridMonitorLoop periodically tops up debrid slots from the
// scraping queue and checks every in-flight download's status, reapplying
// completions back onto the library.
func (e *Engine) runDebridMonitorLoop(ctx context.Context) error {
	for {
		e.fillSlots(ctx)
		e.checkDownloads(ctx)
		if !interruptibleSleep(ctx, e.cfg.RDCheckInterval) {
			return nil
		}
	}
}

func (e *Engine) checkDownloads(ctx context.Context) {
	for torrentID, dl := range e.store.AllDownloads() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		e.checkOneDownload(ctx, torrentID, dl)
	}
}

func (e *Engine) checkOneDownload(ctx context.Context, torrentID string, dl store.DownloadTracker) {
	torrent, err := e.deb.GetTorrentInfo(ctx, torrentID)
	if err != nil {
		if errors.Is(err, types.ErrTorrentNotFound) {
			// Best-effort context for the log line; correctness doesn't
			// depend on this succeeding.
			if n, cerr := e.deb.GetActiveCount(ctx); cerr == nil {
				e.logger.Warn().Str("torrent", torrentID).Int("active_count", n).Msg("tracked torrent no longer exists on debrid")
			} else {
				e.logger.Warn().Str("torrent", torrentID).Msg("tracked torrent no longer exists on debrid")
			}
			e.requeueAfterLoss(dl)
			return
		}
		e.logger.Error().Err(err).Str("torrent", torrentID).Msg("failed to check torrent status")
		return
	}

	if !torrent.IsComplete() && e.cfg.RDMaxWait > 0 && !dl.StartedAt.IsZero() && time.Since(dl.StartedAt) > e.cfg.RDMaxWait {
		e.logger.Warn().Str("torrent", torrentID).Dur("age", time.Since(dl.StartedAt)).Msg("torrent stalled past max wait, giving up on it")
		if err := e.deb.DeleteTorrent(ctx, torrentID); err != nil {
			e.logger.Error().Err(err).Str("torrent", torrentID).Msg("failed to delete timed-out torrent")
		}
		e.requeueAfterLoss(dl)
		return
	}

	switch {
	case torrent.IsFailed():
		e.logger.Warn().Str("torrent", torrentID).Str("status", torrent.Status).Msg("torrent failed on debrid")
		e.deb.DeleteTorrent(ctx, torrentID)
		e.requeueAfterLoss(dl)

	case torrent.IsStalled():
		e.logger.Warn().Str("torrent", torrentID).Msg("torrent stalled on debrid")
		e.deb.DeleteTorrent(ctx, torrentID)
		e.requeueAfterLoss(dl)

	case torrent.IsWaitingSelection():
		if err := e.deb.SelectFiles(ctx, torrentID); err != nil {
			e.logger.Error().Err(err).Str("torrent", torrentID).Msg("failed to select files on waiting torrent")
		}

	case torrent.IsActive():
		fields := e.logger.Info().Str("torrent", torrentID).Float64("progress", torrent.Progress)
		if torrent.Seeders > 0 {
			fields = fields.Int("seeders", torrent.Seeders)
		}
		fields.Msg("torrent downloading")

	case torrent.IsComplete():
		e.logger.Info().Str("torrent", torrentID).Str("correlation_id", dl.CorrelationID).Msg("torrent complete, reapplying")
		e.reapplyCompletion(ctx, dl, torrent)

	default:
		e.logger.Debug().Str("torrent", torrentID).Str("status", torrent.Status).Msg("unrecognized torrent status")
	}
}

// requeueAfterLoss puts the owning tracker back into the scraping state so
// slot filling picks its next candidate, unless it has run out of
// candidates entirely.
func (e *Engine) requeueAfterLoss(dl store.DownloadTracker) {
	e.store.RemoveDownload(dl.TorrentID)

	tracker, ok := e.store.GetItemTracker(dl.ItemID)
	if !ok {
		return
	}
	if tracker.StreamIndex >= len(tracker.Streams) {
		tracker.State = StateAbandoned
	} else {
		tracker.State = StateScraping
	}
	e.store.SetItemTracker(tracker)
}

// reapplyCompletion pushes a finished download back onto the library. Real
// items are matched against a fresh scrape and fall back to a best-effort
// retry if the completed infohash is not found in it; pseudo-items
// (synthetic show-level trackers) are re-added by external id and then
// resolved to a real library item to retry, with no match check.
func (e *Engine) reapplyCompletion(ctx context.Context, dl store.DownloadTracker, torrent types.Torrent) {
	tracker, ok := e.store.GetItemTracker(dl.ItemID)
	if !ok {
		e.logger.Warn().Str("torrent", dl.TorrentID).Str("item", dl.ItemID).Msg("completed download has no owning tracker")
		e.store.RemoveDownload(dl.TorrentID)
		return
	}

	if tracker.IsPseudo {
		e.reapplyPseudoItem(ctx, tracker, dl)
	} else {
		e.reapplyRealItem(ctx, tracker, dl)
	}

	e.store.RemoveDownload(dl.TorrentID)
}

// reapplyRealItem re-scrapes the item fresh to confirm the completed stream
// is still a real candidate before pushing the library through a full
// remove/add/retry cycle so it picks up the newly downloaded file.
func (e *Engine) reapplyRealItem(ctx context.Context, tracker store.ItemTracker, dl store.DownloadTracker) {
	streamsByHash, err := e.lib.ScrapeItem(ctx, tracker.TMDBID, tracker.TVDBID, "", tracker.MediaType)
	matched := false
	if err == nil {
		for hash := range streamsByHash {
			if strings.EqualFold(hash, dl.Infohash) {
				matched = true
				break
			}
		}
	} else {
		e.logger.Error().Err(err).Str("item", tracker.ItemID).Msg("failed to re-scrape item before reapply")
	}

	if !matched {
		e.logger.Warn().Str("item", tracker.ItemID).Msg("completed stream not found in fresh scrape, falling back to retry")
		e.lib.RetryItem(ctx, tracker.ItemID)
		e.finishReapply(tracker, false)
		return
	}

	e.lib.RemoveItem(ctx, tracker.ItemID)
	e.lib.AddItem(ctx, tracker.TMDBID, tracker.TVDBID, tracker.MediaType)
	e.lib.RetryItem(ctx, tracker.ItemID)
	e.finishReapply(tracker, true)
}

func (e *Engine) reapplyPseudoItem(ctx context.Context, tracker store.ItemTracker, dl store.DownloadTracker) {
	e.lib.AddItem(ctx, tracker.TMDBID, tracker.TVDBID, tracker.MediaType)

	realItem, err := e.lib.GetItemByIDs(ctx, tracker.TMDBID, tracker.TVDBID)
	if err != nil {
		e.logger.Warn().Str("pseudo_item", tracker.ItemID).Err(err).Msg("could not resolve real item for pseudo-tracker after add, giving up")
		e.finishReapply(tracker, false)
		return
	}

	e.lib.RetryItem(ctx, realItem.ID)
	e.finishReapply(tracker, true)
}

func (e *Engine) finishReapply(tracker store.ItemTracker, success bool) {
	if success {
		tracker.State = StateReapplied
	} else {
		tracker.State = StateAbandoned
	}
	e.store.SetItemTracker(tracker)
	e.store.AddProcessed(tracker.ItemID)
	e.logger.Info().Str("item", tracker.ItemID).Bool("matched", success).Msg("reapplication complete")
}
