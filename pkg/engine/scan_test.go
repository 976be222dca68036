package engine

import (
	"context"
	"testing"

	"github.com/rivencompanion/trc/internal/config"
	"github.com/rivencompanion/trc/internal/logger"
	"github.com/rivencompanion/trc/pkg/store"
	"github.com/rivencompanion/trc/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(dir + "/state.json")
	require.NoError(t, err)

	cfg := &config.Config{
		MaxRivenRetries:     3,
		MaxCandidateStreams: 10,
		MaxActiveDownloads:  3,
		ProblemStates:       []string{"Failed", "Unknown"},
	}

	e := &Engine{
		cfg:               cfg,
		store:             st,
		logger:            logger.New("engine-test"),
		shutdown:          make(chan struct{}),
		parentShowsQueued: make(map[string]struct{}),
	}
	return e, st
}

func TestHandleSeasonEpisode_DedupsWithinCycle(t *testing.T) {
	e, st := newTestEngine(t)

	e.parentShowsQueued = make(map[string]struct{})
	item := types.MediaItem{
		Type:      "episode",
		ParentIDs: &types.ParentIDs{TMDBID: "100", TVDBID: "200"},
	}
	pseudoID := types.PseudoID("100", "200")
	// Already processed, so the call stops before it would reach the
	// library client, which the test engine does not have.
	st.AddProcessed(pseudoID)

	e.mu.Lock()
	_, first := e.parentShowsQueued[pseudoID]
	e.mu.Unlock()
	assert.False(t, first)

	e.handleSeasonEpisode(context.Background(), item)

	e.mu.Lock()
	_, second := e.parentShowsQueued[pseudoID]
	e.mu.Unlock()
	assert.True(t, second)
}

func TestFinalizeTrackerIfExhausted(t *testing.T) {
	e, st := newTestEngine(t)

	tracker := store.ItemTracker{
		ItemID:      "abc",
		State:       StateScraping,
		Streams:     []store.Stream{{Infohash: "a"}, {Infohash: "b"}},
		StreamIndex: 2,
	}
	e.finalizeTrackerIfExhausted("abc", tracker)

	got, ok := st.GetItemTracker("abc")
	require.True(t, ok)
	assert.Equal(t, StateAbandoned, got.State)
}
