package probe

import (
	"context"
	"time"
)

// Outcome is the tagged result of one probe attempt: either Success or
// Failure. Both carry the measured duration.
type Outcome interface {
	Duration() time.Duration
	outcome()
}

// Success means the remote answered. The status code may still be >= 400;
// classification happens later.
type Success struct {
	StatusCode int
	Took       time.Duration
}

// Failure means no response was obtained (transport, DNS, timeout, TLS).
type Failure struct {
	Err  error
	Took time.Duration
}

func (s Success) Duration() time.Duration { return s.Took }
func (f Failure) Duration() time.Duration { return f.Took }

func (Success) outcome() {}
func (Failure) outcome() {}

// Probe performs a single attempt against a URL.
type Probe interface {
	Probe(ctx context.Context, target string, timeout time.Duration) Outcome
}
