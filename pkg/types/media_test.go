package types

import (
	"testing"
	"time"
)

func TestMediaItem_DisplayName(t *testing.T) {
	cases := []struct {
		name string
		item MediaItem
		want string
	}{
		{
			name: "episode",
			item: MediaItem{Type: "episode", ParentTitle: "Severance", SeasonNumber: 2, EpisodeNumber: 3},
			want: "Severance S02E03",
		},
		{
			name: "season",
			item: MediaItem{Type: "season", ParentTitle: "Severance", SeasonNumber: 2},
			want: "Severance Season 2",
		},
		{
			name: "movie",
			item: MediaItem{Type: "movie", Title: "Arrival"},
			want: "Arrival",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.DisplayName(); got != tc.want {
				t.Errorf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMediaItem_IsReleased(t *testing.T) {
	future := time.Now().Add(24 * time.Hour).Format("2006-01-02 15:04:05")
	past := time.Now().Add(-24 * time.Hour).Format("2006-01-02 15:04:05")

	cases := []struct {
		name    string
		airedAt string
		want    bool
	}{
		{"missing aired_at treated as released", "", true},
		{"unparseable aired_at treated as released", "not-a-date", true},
		{"past date is released", past, true},
		{"future date is not released", future, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := MediaItem{AiredAt: tc.airedAt}
			if got := item.IsReleased(); got != tc.want {
				t.Errorf("IsReleased() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPseudoID_RoundTrips(t *testing.T) {
	id := PseudoID("100", "200")
	if !IsPseudoID(id) {
		t.Fatalf("expected %q to be recognized as a pseudo id", id)
	}
	tmdbID, tvdbID, ok := ParsePseudoID(id)
	if !ok {
		t.Fatalf("ParsePseudoID failed to parse %q", id)
	}
	if tmdbID != "100" || tvdbID != "200" {
		t.Errorf("got tmdb=%q tvdb=%q, want tmdb=100 tvdb=200", tmdbID, tvdbID)
	}
}

func TestIsPseudoID_RejectsRealIDs(t *testing.T) {
	if IsPseudoID("12345") {
		t.Errorf("expected a plain numeric id to not be recognized as pseudo")
	}
}

func TestNormalizeInfohash(t *testing.T) {
	if got := NormalizeInfohash(" ABC123 "); got != "abc123" {
		t.Errorf("NormalizeInfohash = %q, want %q", got, "abc123")
	}
}
