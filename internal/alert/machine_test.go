package alert

import (
	"testing"
	"time"

	"github.com/hamed0406/sitepulse/internal/domain"
)

var t0 = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

type step struct {
	status domain.Status
	at     time.Time
}

// run feeds a sequence through Step and returns every non-none action.
func run(p Policy, steps []step) (domain.AlertState, []domain.AlertAction) {
	var s domain.AlertState
	var actions []domain.AlertAction
	for _, st := range steps {
		var d Decision
		s, d = Step(s, st.status, st.at, p)
		if d.Action != domain.AlertNone {
			actions = append(actions, d.Action)
		}
	}
	return s, actions
}

func seq(statuses ...domain.Status) []step {
	out := make([]step, len(statuses))
	for i, s := range statuses {
		out[i] = step{status: s, at: t0.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

const (
	up   = domain.StatusUp
	down = domain.StatusDown
)

func TestStep_ConfirmedDownSetOnlyAtThreshold(t *testing.T) {
	for threshold := 1; threshold <= 4; threshold++ {
		p := Policy{FailureThreshold: threshold, NotifyDelay: time.Hour}
		var s domain.AlertState
		var confirmedAt *time.Time
		for n := 1; n <= 6; n++ {
			s, _ = Step(s, down, t0.Add(time.Duration(n)*time.Minute), p)
			if n < threshold && s.ConfirmedDownAt != nil {
				t.Fatalf("T=%d N=%d: confirmed too early", threshold, n)
			}
			if n >= threshold {
				if s.ConfirmedDownAt == nil {
					t.Fatalf("T=%d N=%d: want confirmed", threshold, n)
				}
				if confirmedAt == nil {
					confirmedAt = s.ConfirmedDownAt
				} else if !s.ConfirmedDownAt.Equal(*confirmedAt) {
					t.Fatalf("T=%d N=%d: confirmed timestamp moved", threshold, n)
				}
			}
		}
		if s.ConsecutiveFailures != 6 {
			t.Fatalf("want 6 failures counted, got %d", s.ConsecutiveFailures)
		}
	}
}

func TestStep_NotifiesOnceAtSecondDown(t *testing.T) {
	p := Policy{FailureThreshold: 2}
	var s domain.AlertState
	var fired []int
	for i, st := range seq(up, down, down, down) {
		var d Decision
		s, d = Step(s, st.status, st.at, p)
		if d.Action == domain.AlertDown {
			fired = append(fired, i)
		}
	}
	if len(fired) != 1 || fired[0] != 2 {
		t.Fatalf("want exactly one down alert at the 2nd down check (index 2), got %v", fired)
	}
	if PhaseOf(s) != NotifiedDown {
		t.Fatalf("want notified_down phase, got %s", PhaseOf(s))
	}
}

func TestStep_DownThenRecovery(t *testing.T) {
	s, actions := run(Policy{FailureThreshold: 2}, seq(down, down, up))
	if len(actions) != 2 || actions[0] != domain.AlertDown || actions[1] != domain.AlertRecovery {
		t.Fatalf("want [down recovery], got %v", actions)
	}
	if s != (domain.AlertState{}) {
		t.Fatalf("recovery must reset state, got %+v", s)
	}
}

func TestStep_BlipBelowThresholdIsSilent(t *testing.T) {
	s, actions := run(Policy{FailureThreshold: 2}, seq(down, up))
	if len(actions) != 0 {
		t.Fatalf("want no alerts, got %v", actions)
	}
	if s.ConsecutiveFailures != 0 {
		t.Fatalf("success must reset failures, got %d", s.ConsecutiveFailures)
	}
}

func TestStep_NotifyDelayDebounces(t *testing.T) {
	p := Policy{FailureThreshold: 1, NotifyDelay: 30 * time.Second}

	s, d := Step(domain.AlertState{}, down, t0, p)
	if d.Action != domain.AlertNone {
		t.Fatalf("first down within the delay must not notify")
	}
	if s.ConfirmedDownAt == nil || !s.ConfirmedDownAt.Equal(t0) {
		t.Fatalf("want confirmed at t0, got %v", s.ConfirmedDownAt)
	}

	s, d = Step(s, down, t0.Add(31*time.Second), p)
	if d.Action != domain.AlertDown {
		t.Fatalf("down after the delay must notify")
	}
	if !s.ConfirmedDownAt.Equal(t0) {
		t.Fatalf("confirmed timestamp must not move")
	}

	_, d = Step(s, down, t0.Add(2*time.Minute), p)
	if d.Action != domain.AlertNone {
		t.Fatalf("no second down alert in the same episode")
	}
}

func TestStep_RecoveryDowntimeFromConfirmation(t *testing.T) {
	p := Policy{FailureThreshold: 2}
	s, _ := Step(domain.AlertState{}, down, t0, p)
	s, _ = Step(s, down, t0.Add(time.Minute), p)
	_, d := Step(s, up, t0.Add(11*time.Minute), p)
	if d.Action != domain.AlertRecovery || d.Downtime != 10*time.Minute {
		t.Fatalf("want recovery with 10m downtime, got %+v", d)
	}
}

func TestStep_RecoveryWithoutNotificationIsSilent(t *testing.T) {
	// confirmed but still inside the debounce window when it recovers
	p := Policy{FailureThreshold: 1, NotifyDelay: time.Hour}
	_, actions := run(p, seq(down, down, up))
	if len(actions) != 0 {
		t.Fatalf("want no alerts when the down alert never fired, got %v", actions)
	}
}

func TestPhaseOf(t *testing.T) {
	at := t0
	cases := []struct {
		s    domain.AlertState
		want Phase
	}{
		{domain.AlertState{}, Healthy},
		{domain.AlertState{ConsecutiveFailures: 1}, Degrading},
		{domain.AlertState{ConsecutiveFailures: 2, ConfirmedDownAt: &at}, ConfirmedDown},
		{domain.AlertState{ConsecutiveFailures: 2, ConfirmedDownAt: &at, Notified: true}, NotifiedDown},
	}
	for _, c := range cases {
		if got := PhaseOf(c.s); got != c.want {
			t.Fatalf("PhaseOf(%+v)=%s want %s", c.s, got, c.want)
		}
	}
}
