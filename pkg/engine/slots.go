package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rivencompanion/trc/pkg/store"
	"github.com/rivencompanion/trc/pkg/types"
)

// fillSlots rounds robin over every item currently in StateScraping,
// submitting one candidate stream per item per pass until either the
// active-download ceiling is reached or every item has exhausted its
// candidates. Fairness matters here: a single item with many candidates
// must not starve the rest of the queue of a debrid slot.
func (e *Engine) fillSlots(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if e.activeDownloadCount() >= e.cfg.MaxActiveDownloads {
			return
		}

		key, tracker, ok := e.nextEligibleTracker()
		if !ok {
			return
		}

		if !e.tryAddOneStream(ctx, key, tracker) {
			// The debrid has no room (or the item had nothing left); end
			// this pass and try again on the next monitor cycle.
			return
		}

		if !interruptibleSleep(ctx, e.cfg.TorrentAddDelay) {
			return
		}
	}
}

func (e *Engine) activeDownloadCount() int {
	return len(e.store.AllDownloads())
}

// nextEligibleTracker returns the next tracker (by a stable round-robin
// cursor over sorted keys) that still has unconsumed candidate streams.
func (e *Engine) nextEligibleTracker() (string, store.ItemTracker, bool) {
	all := e.store.AllItemTrackers()

	keys := make([]string, 0, len(all))
	for k, t := range all {
		if t.State == StateScraping && t.StreamIndex < len(t.Streams) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", store.ItemTracker{}, false
	}
	sort.Strings(keys)

	e.mu.Lock()
	idx := e.roundRobinCursor % len(keys)
	e.roundRobinCursor++
	e.mu.Unlock()

	key := keys[idx]
	return key, all[key], true
}

// tryAddOneStream submits the tracker's next candidate stream to the
// debrid, advancing stream_index regardless of outcome (a rejected
// candidate is never retried). Returns false, without consuming the
// candidate, when the debrid reports too many active downloads, and when
// the tracker has no candidate left; true otherwise.
func (e *Engine) tryAddOneStream(ctx context.Context, key string, tracker store.ItemTracker) bool {
	if tracker.StreamIndex >= len(tracker.Streams) {
		return false
	}
	stream := tracker.Streams[tracker.StreamIndex]
	tracker.StreamIndex++

	torrentID, err := e.deb.AddMagnet(ctx, types.NormalizeInfohash(stream.Infohash))
	if err != nil {
		switch {
		case errors.Is(err, types.ErrContentInfringement):
			e.logger.Warn().Str("item", key).Str("infohash", stream.Infohash).Msg("stream rejected: content infringement")
		case errors.Is(err, types.ErrTooManyActiveDownloads):
			e.logger.Warn().Str("item", key).Msg("debrid reports too many active downloads, backing off")
			tracker.StreamIndex-- // give this candidate another chance next pass
			e.store.SetItemTracker(tracker)
			return false
		default:
			e.logger.Error().Err(err).Str("item", key).Str("infohash", stream.Infohash).Msg("failed to submit stream to debrid")
		}
		e.finalizeTrackerIfExhausted(key, tracker)
		return true
	}

	torrent, err := e.resolveMagnetConversion(ctx, torrentID)
	if err != nil {
		e.logger.Error().Err(err).Str("item", key).Str("torrent", torrentID).Msg("failed to resolve magnet conversion")
		e.finalizeTrackerIfExhausted(key, tracker)
		return true
	}

	if torrent.IsFailed() || torrent.IsStalled() {
		e.logger.Warn().Str("item", key).Str("torrent", torrentID).Str("status", torrent.Status).Msg("torrent died during magnet conversion")
		if err := e.deb.DeleteTorrent(ctx, torrentID); err != nil {
			e.logger.Error().Err(err).Str("torrent", torrentID).Msg("failed to delete dead torrent")
		}
		e.finalizeTrackerIfExhausted(key, tracker)
		return true
	}

	if torrent.IsWaitingSelection() {
		if err := e.deb.SelectFiles(ctx, torrentID); err != nil {
			e.logger.Error().Err(err).Str("item", key).Str("torrent", torrentID).Msg("failed to select files")
		}
	}
	// If it's already active or complete (e.g. an instantly cached hit),
	// there is nothing left to do before handing it to the monitor loop.

	correlationID := uuid.NewString()

	e.store.SetDownload(store.DownloadTracker{
		TorrentID:     torrentID,
		Infohash:      stream.Infohash,
		ItemID:        key,
		StreamIndex:   tracker.StreamIndex - 1,
		StartedAt:     time.Now(),
		CorrelationID: correlationID,
	})

	tracker.State = StateFeedingDebrid
	e.store.SetItemTracker(tracker)
	e.logger.Info().Str("item", key).Str("torrent", torrentID).Str("correlation_id", correlationID).Msg("submitted stream to debrid")
	return true
}

func (e *Engine) finalizeTrackerIfExhausted(key string, tracker store.ItemTracker) {
	if tracker.StreamIndex >= len(tracker.Streams) {
		tracker.State = StateAbandoned
		e.logger.Warn().Str("item", key).Msg("exhausted all candidate streams")
	}
	e.store.SetItemTracker(tracker)
}

// resolveMagnetConversion polls a freshly added magnet until the debrid
// finishes converting it into a torrent (or it dies trying), so the caller
// can branch on the torrent's actual post-conversion status instead of
// blindly assuming select_files is the next step.
func (e *Engine) resolveMagnetConversion(ctx context.Context, torrentID string) (types.Torrent, error) {
	deadline := time.Now().Add(30 * time.Second)
	for {
		torrent, err := e.deb.GetTorrentInfo(ctx, torrentID)
		if err != nil {
			return types.Torrent{}, err
		}
		if !torrent.IsConverting() || !time.Now().Before(deadline) {
			return torrent, nil
		}
		if !interruptibleSleep(ctx, 2*time.Second) {
			return types.Torrent{}, ctx.Err()
		}
	}
}
