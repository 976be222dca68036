package engine

import (
	"testing"

	"github.com/rivencompanion/trc/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextEligibleTracker_RoundRobinsAcrossItems(t *testing.T) {
	e, st := newTestEngine(t)

	st.SetItemTracker(store.ItemTracker{
		ItemID: "a", State: StateScraping,
		Streams: []store.Stream{{Infohash: "1"}, {Infohash: "2"}},
	})
	st.SetItemTracker(store.ItemTracker{
		ItemID: "b", State: StateScraping,
		Streams: []store.Stream{{Infohash: "3"}},
	})

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		key, _, ok := e.nextEligibleTracker()
		require.True(t, ok)
		seen[key]++
	}

	assert.Greater(t, seen["a"], 0)
	assert.Greater(t, seen["b"], 0)
}

func TestNextEligibleTracker_SkipsExhaustedTrackers(t *testing.T) {
	e, st := newTestEngine(t)

	st.SetItemTracker(store.ItemTracker{
		ItemID:      "done",
		State:       StateScraping,
		Streams:     []store.Stream{{Infohash: "1"}},
		StreamIndex: 1,
	})

	_, _, ok := e.nextEligibleTracker()
	assert.False(t, ok)
}

func TestFinalizeTrackerIfExhausted_KeepsScrapingWhenCandidatesRemain(t *testing.T) {
	e, st := newTestEngine(t)

	tracker := store.ItemTracker{
		ItemID:      "partial",
		State:       StateScraping,
		Streams:     []store.Stream{{Infohash: "a"}, {Infohash: "b"}},
		StreamIndex: 1,
	}
	e.finalizeTrackerIfExhausted("partial", tracker)

	got, ok := st.GetItemTracker("partial")
	require.True(t, ok)
	assert.Equal(t, StateScraping, got.State)
}
