package engine

import (
	"context"
	"time"

	"github.com/rivencompanion/trc/pkg/store"
	"github.com/rivencompanion/trc/pkg/types"
)

// runProblemScanLoop periodically fetches problem items from the library
// and advances each one's tracker. It sleeps interruptibly so a shutdown
// mid-cycle doesn't wait out the full check interval.
func (e *Engine) runProblemScanLoop(ctx context.Context) error {
	for {
		e.runProblemScanCycle(ctx)
		if !interruptibleSleep(ctx, e.cfg.CheckInterval) {
			return nil
		}
	}
}

func (e *Engine) runProblemScanCycle(ctx context.Context) {
	items, err := e.lib.GetProblemItems(ctx, e.cfg.ProblemStates, 100)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to fetch problem items")
		return
	}

	e.mu.Lock()
	e.parentShowsQueued = make(map[string]struct{})
	e.mu.Unlock()

	for _, item := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}
		e.handleProblemItem(ctx, item)
	}
}

// handleProblemItem resolves the tracker key for item (a direct key for
// movies/shows, a pseudo key for seasons/episodes surfaced via their
// parent show) and advances it one step.
func (e *Engine) handleProblemItem(ctx context.Context, item types.MediaItem) {
	if !item.IsReleased() {
		e.logger.Debug().Str("item", item.DisplayName()).Msg("skipping unreleased item")
		return
	}

	if item.Type == "season" || item.Type == "episode" {
		e.handleSeasonEpisode(ctx, item)
		return
	}

	if e.store.IsProcessed(item.ID) {
		return
	}

	e.advanceTracker(ctx, item.ID, item.TMDBID, item.TVDBID, item.IMDBID, item.Type, false)
}

// handleSeasonEpisode routes a failed season/episode to its parent show's
// pseudo-tracker, deduplicating within a single scan cycle so two failed
// episodes of the same show only trigger one library retry.
func (e *Engine) handleSeasonEpisode(ctx context.Context, item types.MediaItem) {
	tmdbID, tvdbID := item.ParentShowIDs()
	if tmdbID == "" && tvdbID == "" {
		e.logger.Warn().Str("item", item.DisplayName()).Msg("season/episode item has no parent show ids, skipping")
		return
	}

	pseudoID := types.PseudoID(tmdbID, tvdbID)

	e.mu.Lock()
	_, alreadyQueued := e.parentShowsQueued[pseudoID]
	if !alreadyQueued {
		e.parentShowsQueued[pseudoID] = struct{}{}
	}
	e.mu.Unlock()

	if alreadyQueued {
		return
	}

	if e.store.IsProcessed(pseudoID) {
		return
	}

	e.advanceTracker(ctx, pseudoID, tmdbID, tvdbID, "", "show", true)
}

// advanceTracker is the core per-item state transition: it loads or
// creates the tracker for key, and depending on its retry budget either
// issues a library-side retry or starts a manual scrape.
func (e *Engine) advanceTracker(ctx context.Context, key, tmdbID, tvdbID, imdbID, mediaType string, isPseudo bool) {
	tracker, exists := e.store.GetItemTracker(key)
	if !exists {
		tracker = store.ItemTracker{
			ItemID:    key,
			State:     StateDetected,
			IsPseudo:  isPseudo,
			TMDBID:    tmdbID,
			TVDBID:    tvdbID,
			MediaType: mediaType,
		}
	}

	switch tracker.State {
	case StateScraping, StateFeedingDebrid, StateAwaitingCompletion, StateReapplied, StateAbandoned:
		// Already queued for slot filling, in flight, or finished; a fresh
		// scrape here would reset stream_index and resubmit candidates
		// already tried. Only the debrid loop and the cleanup sweep move it.
		return
	}

	if !e.cfg.SkipRivenRetry && tracker.RetryCount < e.cfg.MaxRivenRetries {
		if !tracker.LastRetry.IsZero() && time.Since(tracker.LastRetry) < e.cfg.RetryInterval {
			// Too soon since the last library retry; wait for a later scan cycle.
			return
		}
		e.retryOnLibrary(ctx, &tracker, key, isPseudo)
		return
	}

	e.startManualScrape(ctx, &tracker, key, tmdbID, tvdbID, imdbID, mediaType, isPseudo)
}

// retryOnLibrary asks the library to retry the item itself before
// resorting to a manual scrape. Real items get a remove+add+retry cycle;
// pseudo-trackers (which have no real item id to remove or retry) only get
// an add by external id.
func (e *Engine) retryOnLibrary(ctx context.Context, tracker *store.ItemTracker, key string, isPseudo bool) {
	if isPseudo {
		e.lib.AddItem(ctx, tracker.TMDBID, tracker.TVDBID, tracker.MediaType)
	} else {
		e.lib.RemoveItem(ctx, key)
		e.lib.AddItem(ctx, tracker.TMDBID, tracker.TVDBID, tracker.MediaType)
		e.lib.RetryItem(ctx, key)
	}

	tracker.RetryCount++
	tracker.LastRetry = time.Now()
	tracker.State = StateLibraryRetrying
	e.store.SetItemTracker(*tracker)
}

// startManualScrape calls the scraper directly, caps the candidate stream
// list to the configured maximum, and hands the tracker to slot filling.
func (e *Engine) startManualScrape(ctx context.Context, tracker *store.ItemTracker, key, tmdbID, tvdbID, imdbID, mediaType string, isPseudo bool) {
	streamsByHash, err := e.lib.ScrapeItem(ctx, tmdbID, tvdbID, imdbID, mediaType)
	if err != nil {
		e.logger.Error().Err(err).Str("item", key).Msg("manual scrape failed")
		return
	}

	streams := make([]store.Stream, 0, len(streamsByHash))
	for hash, s := range streamsByHash {
		streams = append(streams, store.Stream{
			Infohash: hash,
			RawTitle: s.RawTitle,
			Rank:     s.Rank,
			IsCached: s.IsCached,
		})
	}
	if len(streams) > e.cfg.MaxCandidateStreams {
		streams = streams[:e.cfg.MaxCandidateStreams]
	}

	if len(streams) == 0 {
		e.logger.Warn().Str("item", key).Msg("manual scrape returned no candidate streams")
		tracker.State = StateAbandoned
		e.store.SetItemTracker(*tracker)
		return
	}

	tracker.Streams = streams
	tracker.StreamIndex = 0
	tracker.State = StateScraping
	e.store.SetItemTracker(*tracker)
	e.logger.Info().Str("item", key).Int("candidates", len(streams)).Msg("manual scrape complete")
}
