package domain

import (
	"time"

	"github.com/google/uuid"
)

type EndpointID string

type WorkspaceID string

func NewEndpointID() EndpointID { return EndpointID(uuid.NewString()) }

type Endpoint struct {
	ID          EndpointID    `json:"id"`
	WorkspaceID WorkspaceID   `json:"workspace_id"`
	Name        string        `json:"name"`
	URL         string        `json:"url"`
	Interval    time.Duration `json:"interval"` // stored for display; cycles run on CHECK_INTERVAL_MS
	Active      bool          `json:"active"`
	CreatedAt   time.Time     `json:"created_at"`
}

// DisplayName falls back to the URL for unnamed endpoints.
func (e Endpoint) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.URL
}

// CheckConfig is the per-workspace probing and alerting policy.
type CheckConfig struct {
	Timeout          time.Duration `json:"timeout"`
	MaxRetries       int           `json:"max_retries"`
	RetryDelay       time.Duration `json:"retry_delay"`
	FailureThreshold int           `json:"failure_threshold"`
	NotifyDelay      time.Duration `json:"notify_delay"`
}

func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		Timeout:          60 * time.Second,
		MaxRetries:       5,
		RetryDelay:       5 * time.Second,
		FailureThreshold: 2,
		NotifyDelay:      0,
	}
}

// Normalize replaces unusable values with defaults. A zero NotifyDelay or
// RetryDelay is valid and kept; a negative RetryDelay falls back to the
// default and a negative NotifyDelay becomes zero.
func (c CheckConfig) Normalize() CheckConfig {
	d := DefaultCheckConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.FailureThreshold < 1 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.NotifyDelay < 0 {
		c.NotifyDelay = 0
	}
	return c
}

type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// CheckRecord is written once per probe outcome and never mutated.
type CheckRecord struct {
	ID             string     `json:"id"`
	EndpointID     EndpointID `json:"endpoint_id"`
	CheckedAt      time.Time  `json:"checked_at"`
	Status         Status     `json:"status"`
	ResponseTimeMS *int64     `json:"response_time_ms"` // pointer to allow nil
	StatusCode     *int       `json:"status_code"`
	Error          *string    `json:"error"`
	IsSlow         bool       `json:"is_slow"`
}

type AlertState struct {
	ConsecutiveFailures int        `json:"consecutive_failures"`
	ConfirmedDownAt     *time.Time `json:"confirmed_down_at"`
	Notified            bool       `json:"notified"`
}

// CachedFields are projections of the latest check kept for fast reads.
type CachedFields struct {
	LastStatus         Status     `json:"last_status,omitempty"`
	LastResponseTimeMS *int64     `json:"last_response_time_ms"`
	LastCheckedAt      *time.Time `json:"last_checked_at"`
	IsSlow             bool       `json:"is_slow"`
	UptimePercent      float64    `json:"uptime_percent"`
}

type RuntimeState struct {
	EndpointID EndpointID `json:"endpoint_id"`
	AlertState
	CachedFields
}

// Baseline is the rolling response-time average over non-slow up records.
type Baseline struct {
	Samples   int     `json:"samples"`
	AverageMS float64 `json:"average_ms"`
}
