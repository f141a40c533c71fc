package alert

import (
	"time"

	"github.com/hamed0406/sitepulse/internal/domain"
)

type Policy struct {
	FailureThreshold int
	NotifyDelay      time.Duration
}

func PolicyFrom(c domain.CheckConfig) Policy {
	return Policy{FailureThreshold: c.FailureThreshold, NotifyDelay: c.NotifyDelay}
}

type Phase string

const (
	Healthy       Phase = "healthy"
	Degrading     Phase = "degrading"
	ConfirmedDown Phase = "confirmed_down"
	NotifiedDown  Phase = "notified_down"
)

// PhaseOf derives the named phase from stored state.
func PhaseOf(s domain.AlertState) Phase {
	switch {
	case s.Notified:
		return NotifiedDown
	case s.ConfirmedDownAt != nil:
		return ConfirmedDown
	case s.ConsecutiveFailures > 0:
		return Degrading
	default:
		return Healthy
	}
}

// Decision tells the caller which notification, if any, to send.
type Decision struct {
	Action   domain.AlertAction
	Downtime time.Duration
}

// Step applies one check outcome. The caller must dispatch whenever the
// returned Action is not AlertNone; Notified is already set on the returned
// state for a down alert.
func Step(s domain.AlertState, status domain.Status, now time.Time, p Policy) (domain.AlertState, Decision) {
	threshold := p.FailureThreshold
	if threshold < 1 {
		threshold = 1
	}

	if status == domain.StatusUp {
		d := Decision{Action: domain.AlertNone}
		if s.Notified {
			d.Action = domain.AlertRecovery
			if s.ConfirmedDownAt != nil {
				d.Downtime = now.Sub(*s.ConfirmedDownAt)
			}
		}
		return domain.AlertState{}, d
	}

	s.ConsecutiveFailures++
	if s.ConsecutiveFailures >= threshold && s.ConfirmedDownAt == nil {
		at := now
		s.ConfirmedDownAt = &at
	}
	if s.ConfirmedDownAt != nil && !s.Notified && now.Sub(*s.ConfirmedDownAt) >= p.NotifyDelay {
		s.Notified = true
		return s, Decision{Action: domain.AlertDown}
	}
	return s, Decision{Action: domain.AlertNone}
}
