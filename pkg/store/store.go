// Package store is the durable state layer for the reconciliation engine:
// item trackers, debrid download trackers, and the processed-items set,
// persisted as a single JSON document with an atomic replace on every save.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rivencompanion/trc/internal/logger"
)

// ItemTracker is the control block for a single item (or pseudo-item)
// being pushed through the reconciliation state machine.
type ItemTracker struct {
	ItemID             string    `json:"item_id"`
	RetryCount         int       `json:"retry_count"`
	LastRetry          time.Time `json:"last_retry,omitempty"`
	ManualScrapeStart  time.Time `json:"manual_scrape_started,omitempty"`
	Streams            []Stream  `json:"streams,omitempty"`
	StreamIndex        int       `json:"stream_index"`
	State              string    `json:"state"`
	IsPseudo           bool      `json:"is_pseudo,omitempty"`
	TMDBID             string    `json:"tmdb_id,omitempty"`
	TVDBID             string    `json:"tvdb_id,omitempty"`
	MediaType          string    `json:"media_type,omitempty"`
}

// Stream is the persisted form of a candidate stream on a tracker.
type Stream struct {
	Infohash string `json:"infohash"`
	RawTitle string `json:"raw_title"`
	Rank     int    `json:"rank"`
	IsCached bool   `json:"is_cached,omitempty"`
}

// DownloadTracker tracks a torrent submitted to the debrid on behalf of an
// item. ItemID references the owning item/pseudo-item tracker by key;
// it does not own it.
type DownloadTracker struct {
	TorrentID     string    `json:"torrent_id"`
	Infohash      string    `json:"infohash"`
	ItemID        string    `json:"item_id"`
	StreamIndex   int       `json:"stream_index"`
	StartedAt     time.Time `json:"started_at"`
	LastCheck     time.Time `json:"last_check,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

type document struct {
	ItemTrackers    map[string]ItemTracker    `json:"item_trackers"`
	RDDownloads     map[string]DownloadTracker `json:"rd_downloads"`
	ProcessedItems  []string                   `json:"processed_items"`
}

// Store is the mutex-guarded, disk-backed state container.
type Store struct {
	mu       sync.RWMutex
	path     string
	doc      document
	logger   zerolog.Logger
	processed map[string]struct{}
}

// New resolves path to a concrete file (falling back to a file inside it
// if path already exists as a directory), loads any existing state, and
// returns a ready Store. A missing or empty file starts fresh.
func New(path string) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.New("store"),
		doc: document{
			ItemTrackers: make(map[string]ItemTracker),
			RDDownloads:  make(map[string]DownloadTracker),
		},
		processed: make(map[string]struct{}),
	}

	if info, err := os.Stat(s.path); err == nil && info.IsDir() {
		s.logger.Warn().Str("path", s.path).Msg("state path is a directory, using file inside it")
		s.path = filepath.Join(s.path, "state.json")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	if err := s.load(); err != nil {
		s.logger.Error().Err(err).Msg("failed to load state, starting fresh")
	}

	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info().Str("path", s.path).Msg("no state file found, starting fresh")
			return nil
		}
		return err
	}
	if len(data) == 0 {
		s.logger.Info().Str("path", s.path).Msg("empty state file, starting fresh")
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding state file: %w", err)
	}
	if doc.ItemTrackers == nil {
		doc.ItemTrackers = make(map[string]ItemTracker)
	}
	if doc.RDDownloads == nil {
		doc.RDDownloads = make(map[string]DownloadTracker)
	}
	s.doc = doc
	s.processed = make(map[string]struct{}, len(doc.ProcessedItems))
	for _, id := range doc.ProcessedItems {
		s.processed[id] = struct{}{}
	}
	s.logger.Info().Str("path", s.path).Msg("loaded state")
	return nil
}

// save writes the current document atomically: write to a temp file in the
// same directory, then rename over the target, so a crash mid-write never
// leaves a truncated state file.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".trc_state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

func (s *Store) saveLocked() {
	if err := s.save(); err != nil {
		s.logger.Error().Err(err).Msg("failed to save state")
	}
}

// SetItemTracker upserts an item tracker and persists.
func (s *Store) SetItemTracker(t ItemTracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ItemTrackers[t.ItemID] = t
	s.saveLocked()
}

// GetItemTracker returns the tracker for itemID, if any.
func (s *Store) GetItemTracker(itemID string) (ItemTracker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.doc.ItemTrackers[itemID]
	return t, ok
}

// RemoveItemTracker deletes a tracker and persists.
func (s *Store) RemoveItemTracker(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.ItemTrackers[itemID]; !ok {
		return
	}
	delete(s.doc.ItemTrackers, itemID)
	s.saveLocked()
}

// AllItemTrackers returns a snapshot of every tracked item.
func (s *Store) AllItemTrackers() map[string]ItemTracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ItemTracker, len(s.doc.ItemTrackers))
	for k, v := range s.doc.ItemTrackers {
		out[k] = v
	}
	return out
}

// SetDownload upserts a download tracker and persists.
func (s *Store) SetDownload(d DownloadTracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.RDDownloads[d.TorrentID] = d
	s.saveLocked()
}

// GetDownload returns the download tracker for torrentID, if any.
func (s *Store) GetDownload(torrentID string) (DownloadTracker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doc.RDDownloads[torrentID]
	return d, ok
}

// RemoveDownload deletes a download tracker and persists.
func (s *Store) RemoveDownload(torrentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.RDDownloads[torrentID]; !ok {
		return
	}
	delete(s.doc.RDDownloads, torrentID)
	s.saveLocked()
}

// AllDownloads returns a snapshot of every tracked download.
func (s *Store) AllDownloads() map[string]DownloadTracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]DownloadTracker, len(s.doc.RDDownloads))
	for k, v := range s.doc.RDDownloads {
		out[k] = v
	}
	return out
}

// AddProcessed records itemID in the append-only processed set. A run
// never clears this set; it is persisted with the rest of the state, so an
// item is not reprocessed across restarts either.
func (s *Store) AddProcessed(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[itemID]; ok {
		return
	}
	s.processed[itemID] = struct{}{}
	s.doc.ProcessedItems = append(s.doc.ProcessedItems, itemID)
	s.saveLocked()
}

// IsProcessed reports whether itemID has already been recorded as processed.
func (s *Store) IsProcessed(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[itemID]
	return ok
}
