package peripheral

import (
	"context"
	"net/url"
	"time"
)

// Result is the outcome of one side check. It is logged, never stored on the
// endpoint's check record.
type Result struct {
	Check   string
	OK      bool
	Message string
	Took    time.Duration
}

// Checker inspects something about a target beyond plain reachability.
type Checker interface {
	Name() string
	Check(ctx context.Context, target string) Result
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
