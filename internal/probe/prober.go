package probe

import (
	"context"
	"time"

	"github.com/hamed0406/sitepulse/internal/domain"
)

// Settings controls one Prober call.
type Settings struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

func SettingsFrom(c domain.CheckConfig) Settings {
	return Settings{Timeout: c.Timeout, MaxRetries: c.MaxRetries, RetryDelay: c.RetryDelay}
}

// Result is the final outcome of a retry series. Elapsed runs from the start
// of the first attempt, so it covers failed attempts and the delays between
// them.
type Result struct {
	Outcome  Outcome
	Elapsed  time.Duration
	Attempts int
}

type Prober struct {
	Inner Probe
	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewProber(inner Probe) *Prober {
	return &Prober{Inner: inner, sleep: sleepCtx}
}

// Probe retries failed attempts up to s.MaxRetries in total. Any Success stops
// the series, including HTTP error statuses, which are authoritative.
func (p *Prober) Probe(ctx context.Context, target string, s Settings) Result {
	attempts := s.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	start := time.Now()
	var last Outcome
	n := 0
	for n < attempts {
		n++
		last = p.Inner.Probe(ctx, target, s.Timeout)
		if _, ok := last.(Success); ok {
			break
		}
		if n < attempts {
			if err := sleep(ctx, s.RetryDelay); err != nil {
				break
			}
		}
	}
	return Result{Outcome: last, Elapsed: time.Since(start), Attempts: n}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
