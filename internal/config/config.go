package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamed0406/sitepulse/internal/domain"
)

type Config struct {
	Addr          string // API bind address, e.g. "127.0.0.1:8080" or ":8080" in Docker
	LogDir        string
	LogLevel      string
	LogStdout     bool
	DatabaseURL   string // empty means in-memory store
	EndpointsFile string // optional YAML seed list

	CheckInterval time.Duration
	BatchSize     int
	BatchPause    time.Duration
	CycleTimeout  time.Duration

	// Check holds the defaults for workspaces without their own settings.
	Check domain.CheckConfig

	BaselineWindow        time.Duration // 0 = all history
	UptimeWindow          time.Duration
	PeripheralTTL         time.Duration
	PeripheralConcurrency int

	NotifyWorkers     int
	NotifyQueue       int
	SlackWebhookURL   string
	DiscordWebhookURL string

	PublicAPIKeys  []string
	AdminAPIKeys   []string
	AllowedOrigins []string
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
}

// Load reads an optional .env file before FromEnv. Variables already set in
// the environment win.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	d := domain.DefaultCheckConfig()
	return Config{
		Addr:          str("API_ADDR", "127.0.0.1:8080"),
		LogDir:        str("LOG_DIR", "logs"),
		LogLevel:      str("LOG_LEVEL", "info"),
		LogStdout:     boolean("LOG_STDOUT", false),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		EndpointsFile: os.Getenv("ENDPOINTS_FILE"),

		CheckInterval: millis("CHECK_INTERVAL_MS", time.Minute, 1),
		BatchSize:     integer("BATCH_SIZE", 10, 1),
		BatchPause:    millis("BATCH_PAUSE_MS", 200*time.Millisecond, 0),
		CycleTimeout:  millis("CYCLE_TIMEOUT_MS", 5*time.Minute, 1),

		Check: domain.CheckConfig{
			Timeout:          millis("TIMEOUT_MS", d.Timeout, 1),
			MaxRetries:       integer("MAX_RETRIES", d.MaxRetries, 1),
			RetryDelay:       millis("RETRY_DELAY_MS", d.RetryDelay, 0),
			FailureThreshold: integer("FAILURE_THRESHOLD", d.FailureThreshold, 1),
			NotifyDelay:      millis("NOTIFY_DELAY_MS", d.NotifyDelay, 0),
		},

		BaselineWindow:        hours("BASELINE_WINDOW_HOURS", 30*24*time.Hour),
		UptimeWindow:          hours("UPTIME_WINDOW_HOURS", 24*time.Hour),
		PeripheralTTL:         millis("PERIPHERAL_TTL_MS", time.Hour, 1),
		PeripheralConcurrency: integer("PERIPHERAL_CONCURRENCY", 4, 1),

		NotifyWorkers:     integer("NOTIFY_WORKERS", 2, 1),
		NotifyQueue:       integer("NOTIFY_QUEUE", 128, 1),
		SlackWebhookURL:   os.Getenv("SLACK_WEBHOOK_URL"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),

		PublicAPIKeys:  list("PUBLIC_API_KEYS"),
		AdminAPIKeys:   list("ADMIN_API_KEYS"),
		AllowedOrigins: list("ALLOWED_ORIGINS"),
		PublicRPM:      integer("PUBLIC_RPM", 120, 0),
		PublicBurst:    integer("PUBLIC_BURST", 60, 1),
		AdminRPM:       integer("ADMIN_RPM", 600, 0),
		AdminBurst:     integer("ADMIN_BURST", 120, 1),
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// integer falls back to def when unset, unparsable or below floor.
func integer(key string, def, floor int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= floor {
			return n
		}
	}
	return def
}

func millis(key string, def time.Duration, floor int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && ms >= floor {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func hours(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if h, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && h >= 0 {
			return time.Duration(h) * time.Hour
		}
	}
	return def
}

func boolean(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
