package alert

import (
	"time"

	"github.com/hamed0406/sitepulse/internal/domain"
)

// BuildPayload returns nil when the decision carries no alert.
func BuildPayload(e domain.Endpoint, errorMessage *string, statusCode *int, d Decision) *domain.AlertPayload {
	p := &domain.AlertPayload{SiteName: e.DisplayName(), SiteURL: e.URL}
	switch d.Action {
	case domain.AlertDown:
		diag := Diagnose(errorMessage, statusCode)
		p.Status = domain.StatusDown
		p.ErrorMessage = errorMessage
		p.StatusCode = statusCode
		p.Diagnosis = &diag
	case domain.AlertRecovery:
		secs := int64(d.Downtime.Round(time.Second) / time.Second)
		p.Status = domain.StatusUp
		p.DowntimeSeconds = &secs
	default:
		return nil
	}
	return p
}
