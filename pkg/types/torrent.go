package types

import "time"

// Torrent is the debrid's view of a submitted magnet.
type Torrent struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Hash     string    `json:"hash"`
	Bytes    int64     `json:"bytes"`
	Progress float64   `json:"progress"`
	Status   string    `json:"status"`
	Seeders  int       `json:"seeders"`
	Speed    int64     `json:"speed"`
	Added    time.Time `json:"added"`
	Links    []string  `json:"links"`
}

// The five status groupings the debrid's torrent lifecycle collapses to
// (failed, stalled, waiting selection, active, complete); each listed
// status belongs to exactly one of them, and a status not listed belongs
// to none. convertingStatuses is a subset of the active group, used while
// a freshly added magnet is still being converted.
var (
	failedStatuses = map[string]struct{}{
		"magnet_error": {},
		"error":        {},
		"virus":        {},
	}
	stalledStatuses = map[string]struct{}{
		"dead": {},
	}
	waitingSelectionStatuses = map[string]struct{}{
		"waiting_files_selection": {},
	}
	convertingStatuses = map[string]struct{}{
		"magnet_conversion": {},
	}
	activeStatuses = map[string]struct{}{
		"magnet_conversion": {},
		"queued":            {},
		"downloading":       {},
		"compressing":       {},
		"uploading":         {},
	}
	completeStatuses = map[string]struct{}{
		"downloaded": {},
	}
)

// IsConverting reports whether the torrent is still being converted from a
// magnet link into a downloadable torrent, before it reaches a status the
// engine can act on (waiting_files_selection, downloaded, or a terminal
// failure).
func (t Torrent) IsConverting() bool {
	_, ok := convertingStatuses[t.Status]
	return ok
}

// IsFailed reports whether the torrent ended in an unrecoverable error.
func (t Torrent) IsFailed() bool {
	_, ok := failedStatuses[t.Status]
	return ok
}

// IsStalled reports whether the torrent has died (no seeders, no progress).
func (t Torrent) IsStalled() bool {
	_, ok := stalledStatuses[t.Status]
	return ok
}

// IsWaitingSelection reports whether the torrent is waiting on a
// select-files call before it can start downloading.
func (t Torrent) IsWaitingSelection() bool {
	_, ok := waitingSelectionStatuses[t.Status]
	return ok
}

// IsActive reports whether the torrent is still in progress.
func (t Torrent) IsActive() bool {
	_, ok := activeStatuses[t.Status]
	return ok
}

// IsComplete reports whether the torrent finished downloading.
func (t Torrent) IsComplete() bool {
	_, ok := completeStatuses[t.Status]
	return ok
}
