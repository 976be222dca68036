package config

import (
	"cmp"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rivencompanion/trc/internal/utils"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the process-wide configuration, resolved once from the
// environment and never mutated afterward.
type Config struct {
	RivenURL    string
	RivenAPIKey string

	RDAPIKey  string
	RDBaseURL string

	CheckInterval         time.Duration
	RetryInterval         time.Duration
	RDCheckInterval       time.Duration
	RDMaxWait             time.Duration
	RDCleanupInterval     time.Duration
	RDStuckTorrentTimeout time.Duration

	MaxRivenRetries     int
	MaxCandidateStreams int
	MaxActiveDownloads  int
	TorrentAddDelay     time.Duration

	SkipRivenRetry   bool
	SkipRDValidation bool

	RDRateLimit    time.Duration
	RivenRateLimit time.Duration

	ProblemStates []string

	LogLevel  string
	StateFile string
}

// Get returns the process-wide Config, building it from the environment on
// first call. A missing required key is fatal at startup.
func Get() *Config {
	once.Do(func() {
		instance = &Config{}
		if err := instance.load(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(1)
		}
	})
	return instance
}

// Reload discards the cached instance so the next Get() rebuilds it. Used by tests.
func Reload() {
	instance = nil
	once = sync.Once{}
}

func (c *Config) load() error {
	c.RivenURL = cmp.Or(os.Getenv("RIVEN_URL"), "http://localhost:8083")
	c.RivenAPIKey = os.Getenv("RIVEN_API_KEY")

	c.RDAPIKey = os.Getenv("RD_API_KEY")
	c.RDBaseURL = "https://api.real-debrid.com/rest/1.0"

	c.CheckInterval = hoursEnv("CHECK_INTERVAL_HOURS", 6)
	c.RetryInterval = minutesEnv("RETRY_INTERVAL_MINUTES", 10)
	c.RDCheckInterval = minutesEnv("RD_CHECK_INTERVAL_MINUTES", 5)
	c.RDMaxWait = hoursEnv("RD_MAX_WAIT_HOURS", 2)
	c.RDCleanupInterval = hoursEnv("RD_CLEANUP_INTERVAL_HOURS", 1)
	c.RDStuckTorrentTimeout = hoursEnv("RD_STUCK_TORRENT_HOURS", 24)

	c.MaxRivenRetries = intEnv("MAX_RIVEN_RETRIES", 3)
	c.MaxCandidateStreams = intEnv("MAX_RD_TORRENTS", 10)
	c.MaxActiveDownloads = intEnv("MAX_ACTIVE_RD_DOWNLOADS", 3)
	c.TorrentAddDelay = secondsEnv("TORRENT_ADD_DELAY_SECONDS", 30)

	c.SkipRivenRetry = boolEnv("SKIP_RIVEN_RETRY")
	c.SkipRDValidation = boolEnv("SKIP_RD_VALIDATION")

	c.RDRateLimit = secondsEnv("RD_RATE_LIMIT_SECONDS", 5)
	c.RivenRateLimit = secondsEnv("RIVEN_RATE_LIMIT_SECONDS", 1)

	c.ProblemStates = []string{"Failed", "Unknown"}

	c.LogLevel = cmp.Or(strings.ToLower(os.Getenv("LOG_LEVEL")), "info")
	c.StateFile = cmp.Or(os.Getenv("STATE_FILE"), "data/trc_state.json")

	return c.validate()
}

func (c *Config) validate() error {
	if c.RivenAPIKey == "" {
		return fmt.Errorf("RIVEN_API_KEY is required")
	}
	if c.RDAPIKey == "" {
		return fmt.Errorf("RD_API_KEY is required")
	}
	return nil
}

// IsProblemState reports whether state belongs to the configured problem set.
func (c *Config) IsProblemState(state string) bool {
	return utils.Contains(c.ProblemStates, state)
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func floatEnv(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func boolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "true" || v == "1" || v == "yes"
}

func hoursEnv(key string, fallbackHours float64) time.Duration {
	return time.Duration(floatEnv(key, fallbackHours) * float64(time.Hour))
}

func minutesEnv(key string, fallbackMinutes float64) time.Duration {
	return time.Duration(floatEnv(key, fallbackMinutes) * float64(time.Minute))
}

func secondsEnv(key string, fallbackSeconds float64) time.Duration {
	return time.Duration(floatEnv(key, fallbackSeconds) * float64(time.Second))
}
