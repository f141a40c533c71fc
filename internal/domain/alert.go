package domain

import "time"

// AlertPayload is built once per notification and never persisted.
type AlertPayload struct {
	SiteName        string  `json:"site_name"`
	SiteURL         string  `json:"site_url"`
	Status          Status  `json:"status"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	StatusCode      *int    `json:"status_code,omitempty"`
	DowntimeSeconds *int64  `json:"downtime_seconds,omitempty"`
	Diagnosis       *string `json:"diagnosis,omitempty"`
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type AlertAction string

const (
	AlertNone     AlertAction = "none"
	AlertDown     AlertAction = "down"
	AlertRecovery AlertAction = "recovery"
)

// CheckResult is returned by a single on-demand or scheduled check.
type CheckResult struct {
	Record   CheckRecord   `json:"record"`
	State    RuntimeState  `json:"state"`
	Alert    AlertAction   `json:"alert"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
}
