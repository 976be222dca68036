package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"RIVEN_URL", "RIVEN_API_KEY", "RD_API_KEY",
		"CHECK_INTERVAL_HOURS", "RETRY_INTERVAL_MINUTES", "RD_CHECK_INTERVAL_MINUTES",
		"RD_MAX_WAIT_HOURS", "RD_CLEANUP_INTERVAL_HOURS", "RD_STUCK_TORRENT_HOURS",
		"MAX_RIVEN_RETRIES", "MAX_RD_TORRENTS", "MAX_ACTIVE_RD_DOWNLOADS",
		"TORRENT_ADD_DELAY_SECONDS", "SKIP_RIVEN_RETRY", "SKIP_RD_VALIDATION",
		"RD_RATE_LIMIT_SECONDS", "RIVEN_RATE_LIMIT_SECONDS", "LOG_LEVEL", "STATE_FILE",
	}
	for _, k := range keys {
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unsetenv %s: %v", k, err)
		}
	}
	Reload()
}

func TestLoad_MissingAPIKeysFails(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	c := &Config{}
	if err := c.load(); err == nil {
		t.Fatalf("expected error when RIVEN_API_KEY and RD_API_KEY are unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	if err := os.Setenv("RIVEN_API_KEY", "riven-key"); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("RD_API_KEY", "rd-key"); err != nil {
		t.Fatal(err)
	}

	c := &Config{}
	if err := c.load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := c.RivenURL, "http://localhost:8083"; got != want {
		t.Errorf("RivenURL = %q, want %q", got, want)
	}
	if got, want := c.CheckInterval, 6*time.Hour; got != want {
		t.Errorf("CheckInterval = %v, want %v", got, want)
	}
	if got, want := c.TorrentAddDelay, 30*time.Second; got != want {
		t.Errorf("TorrentAddDelay = %v, want %v", got, want)
	}
	if got, want := c.MaxActiveDownloads, 3; got != want {
		t.Errorf("MaxActiveDownloads = %d, want %d", got, want)
	}
	if !c.IsProblemState("Failed") || !c.IsProblemState("Unknown") {
		t.Errorf("expected default problem states to include Failed and Unknown")
	}
	if c.IsProblemState("Completed") {
		t.Errorf("Completed should not be a problem state")
	}
}

func TestLoad_OverridesAndBooleans(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	if err := os.Setenv("RIVEN_API_KEY", "riven-key"); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("RD_API_KEY", "rd-key"); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("SKIP_RIVEN_RETRY", "true"); err != nil {
		t.Fatal(err)
	}
	if err := os.Setenv("MAX_RD_TORRENTS", "25"); err != nil {
		t.Fatal(err)
	}

	c := &Config{}
	if err := c.load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !c.SkipRivenRetry {
		t.Errorf("expected SkipRivenRetry to be true")
	}
	if c.SkipRDValidation {
		t.Errorf("expected SkipRDValidation to remain false")
	}
	if got, want := c.MaxCandidateStreams, 25; got != want {
		t.Errorf("MaxCandidateStreams = %d, want %d", got, want)
	}
}
