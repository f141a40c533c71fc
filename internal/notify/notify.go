package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/sitepulse/internal/domain"
)

// Channel delivers one alert to one destination. attachment may be nil.
type Channel interface {
	Send(ctx context.Context, ws domain.WorkspaceID, p domain.AlertPayload, attachment *domain.Attachment) error
}

type Multi []Channel

func (m Multi) Send(ctx context.Context, ws domain.WorkspaceID, p domain.AlertPayload, a *domain.Attachment) error {
	var err error
	for _, c := range m {
		if c == nil {
			continue
		}
		err = multierr.Append(err, c.Send(ctx, ws, p, a))
	}
	return err
}

// Title by state
func Title(p domain.AlertPayload) string {
	if p.Status == domain.StatusUp {
		return "🟢 " + p.SiteName + " RECOVERED"
	}
	return "🔴 " + p.SiteName + " DOWN"
}

// Text renders the payload as plain lines for chat channels.
func Text(p domain.AlertPayload) string {
	lines := []string{"URL: " + p.SiteURL}
	if p.StatusCode != nil {
		lines = append(lines, fmt.Sprintf("HTTP: %d", *p.StatusCode))
	}
	if p.ErrorMessage != nil {
		lines = append(lines, "Error: "+*p.ErrorMessage)
	}
	if p.Diagnosis != nil {
		lines = append(lines, "Likely cause: "+*p.Diagnosis)
	}
	if p.DowntimeSeconds != nil {
		lines = append(lines, "Downtime: "+(time.Duration(*p.DowntimeSeconds)*time.Second).String())
	}
	return strings.Join(lines, "\n")
}
