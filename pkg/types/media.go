package types

import (
	"fmt"
	"strings"
	"time"
)

// ParentIDs carries the owning show's external ids for a season or episode
// item, used to re-scrape at the show/season level when a leaf item fails.
type ParentIDs struct {
	IMDBID string `json:"imdb_id,omitempty"`
	TMDBID string `json:"tmdb_id,omitempty"`
	TVDBID string `json:"tvdb_id,omitempty"`
}

// MediaItem is a library item as reported by the orchestrator.
type MediaItem struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	State         string     `json:"state"`
	Type          string     `json:"type"`
	IMDBID        string     `json:"imdb_id,omitempty"`
	TMDBID        string     `json:"tmdb_id,omitempty"`
	TVDBID        string     `json:"tvdb_id,omitempty"`
	ScrapedTimes  int        `json:"scraped_times,omitempty"`
	ParentTitle   string     `json:"parent_title,omitempty"`
	SeasonNumber  int        `json:"season_number,omitempty"`
	EpisodeNumber int        `json:"episode_number,omitempty"`
	ParentIDs     *ParentIDs `json:"parent_ids,omitempty"`
	AiredAt       string     `json:"aired_at,omitempty"`
}

// DisplayName returns a human-readable label for structured log fields.
func (m MediaItem) DisplayName() string {
	switch {
	case m.Type == "episode" && m.SeasonNumber > 0 && m.EpisodeNumber > 0:
		title := m.ParentTitle
		if title == "" {
			title = m.Title
		}
		return fmt.Sprintf("%s S%02dE%02d", title, m.SeasonNumber, m.EpisodeNumber)
	case m.Type == "season" && m.SeasonNumber > 0:
		title := m.ParentTitle
		if title == "" {
			title = m.Title
		}
		return fmt.Sprintf("%s Season %d", title, m.SeasonNumber)
	default:
		return m.Title
	}
}

// IsReleased reports whether the item's aired_at is in the past. A missing
// or unparseable aired_at is treated as released.
func (m MediaItem) IsReleased() bool {
	if m.AiredAt == "" {
		return true
	}
	raw := strings.Replace(m.AiredAt, " ", "T", 1)
	if idx := strings.Index(raw, "."); idx >= 0 {
		raw = raw[:idx]
	}
	airedAt, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.Local)
	if err != nil {
		return true
	}
	return !airedAt.After(time.Now())
}

// ParentShowIDs returns the owning show's tmdb/tvdb ids for a season or
// episode item, or empty strings if the item carries none.
func (m MediaItem) ParentShowIDs() (tmdbID, tvdbID string) {
	if m.ParentIDs == nil {
		return "", ""
	}
	return m.ParentIDs.TMDBID, m.ParentIDs.TVDBID
}

// Stream is a scraped candidate result for an item.
type Stream struct {
	Infohash string `json:"infohash"`
	RawTitle string `json:"raw_title"`
	Rank     int    `json:"rank"`
	IsCached bool   `json:"is_cached,omitempty"`
}

// PseudoID builds the synthetic key used to track a parent show surfaced
// indirectly through a failed season or episode, since the show itself
// never appears in the problem-item feed under its own id.
func PseudoID(tmdbID, tvdbID string) string {
	return fmt.Sprintf("tmdb:%s|tvdb:%s", tmdbID, tvdbID)
}

// IsPseudoID reports whether id was produced by PseudoID rather than being
// a real library item id.
func IsPseudoID(id string) bool {
	return strings.HasPrefix(id, "tmdb:") && strings.Contains(id, "|tvdb:")
}

// ParsePseudoID splits a pseudo id back into its tmdb/tvdb components.
// The second return value is false if id is not a pseudo id.
func ParsePseudoID(id string) (tmdbID, tvdbID string, ok bool) {
	if !IsPseudoID(id) {
		return "", "", false
	}
	parts := strings.SplitN(id, "|", 2)
	tmdbID = strings.TrimPrefix(parts[0], "tmdb:")
	tvdbID = strings.TrimPrefix(parts[1], "tvdb:")
	return tmdbID, tvdbID, true
}

// NormalizeInfohash lower-cases an infohash for case-insensitive comparison,
// since debrid services and scrapers disagree on casing.
func NormalizeInfohash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}
