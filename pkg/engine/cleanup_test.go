package engine

import (
	"testing"
	"time"

	"github.com/rivencompanion/trc/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCleanupShouldDelete_FailedAndStalledAlwaysGo(t *testing.T) {
	e, _ := newTestEngine(t)
	tracked := map[string]store_DownloadTrackerMarker{}

	assert.True(t, e.cleanupShouldDelete(types.Torrent{ID: "1", Status: "error"}, tracked))
	assert.True(t, e.cleanupShouldDelete(types.Torrent{ID: "2", Status: "dead"}, tracked))
}

func TestCleanupShouldDelete_OrphanedWaitingSelectionGoes(t *testing.T) {
	e, _ := newTestEngine(t)
	tracked := map[string]store_DownloadTrackerMarker{}

	assert.True(t, e.cleanupShouldDelete(types.Torrent{ID: "3", Status: "waiting_files_selection"}, tracked))
}

func TestCleanupShouldDelete_TrackedWaitingSelectionStays(t *testing.T) {
	e, _ := newTestEngine(t)
	tracked := map[string]store_DownloadTrackerMarker{"3": {}}

	assert.False(t, e.cleanupShouldDelete(types.Torrent{ID: "3", Status: "waiting_files_selection"}, tracked))
}

func TestCleanupShouldDelete_StuckActiveUntrackedTorrentGoes(t *testing.T) {
	e, _ := newTestEngine(t)
	e.cfg.RDStuckTorrentTimeout = time.Hour
	tracked := map[string]store_DownloadTrackerMarker{}

	assert.True(t, e.cleanupShouldDelete(types.Torrent{ID: "4", Status: "downloading", Added: time.Now().Add(-2 * time.Hour)}, tracked))
}

func TestCleanupShouldDelete_FreshActiveUntrackedTorrentStays(t *testing.T) {
	e, _ := newTestEngine(t)
	e.cfg.RDStuckTorrentTimeout = time.Hour
	tracked := map[string]store_DownloadTrackerMarker{}

	assert.False(t, e.cleanupShouldDelete(types.Torrent{ID: "5", Status: "downloading", Added: time.Now()}, tracked))
}
