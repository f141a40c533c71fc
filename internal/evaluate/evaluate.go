// Package evaluate classifies a probe result as up or down and decides the
// slow flag against the endpoint's rolling history.
package evaluate

import (
	"fmt"
	"time"

	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/probe"
)

type Rules struct {
	SlowMultiplier  float64
	MinSamples      int
	AbsoluteFloor   time.Duration
	RecoverySamples int
}

func DefaultRules() Rules {
	return Rules{
		SlowMultiplier:  5,
		MinSamples:      5,
		AbsoluteFloor:   10 * time.Second,
		RecoverySamples: 2,
	}
}

// History is the read-only view of past checks the evaluator needs.
// RecentUp holds the latest up records, newest first; it needs at least
// RecoverySamples-1 entries for recovery to be possible.
type History struct {
	Baseline domain.Baseline
	RecentUp []domain.CheckRecord
}

type Evaluation struct {
	Status         domain.Status
	ResponseTimeMS *int64
	StatusCode     *int
	ErrorMessage   *string
	IsSlow         bool
}

// Evaluate is deterministic in its inputs.
func Evaluate(res probe.Result, h History, r Rules) Evaluation {
	ms := res.Elapsed.Milliseconds()
	ev := Evaluation{ResponseTimeMS: &ms}

	switch o := res.Outcome.(type) {
	case probe.Success:
		code := o.StatusCode
		ev.StatusCode = &code
		if code >= 400 {
			msg := fmt.Sprintf("HTTP %d", code)
			ev.Status = domain.StatusDown
			ev.ErrorMessage = &msg
			return ev
		}
		ev.Status = domain.StatusUp
	case probe.Failure:
		msg := "unknown probe failure"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		ev.Status = domain.StatusDown
		ev.ErrorMessage = &msg
		return ev
	default:
		msg := "no probe outcome"
		ev.Status = domain.StatusDown
		ev.ErrorMessage = &msg
		return ev
	}

	ev.IsSlow = slow(ms, h, r)
	return ev
}

func slow(ms int64, h History, r Rules) bool {
	wasSlow := len(h.RecentUp) > 0 && h.RecentUp[0].IsSlow
	if !wasSlow {
		return newlySlow(ms, h.Baseline, r)
	}

	need := r.RecoverySamples
	if need < 1 {
		need = 1
	}
	if over(ms, h.Baseline, r) {
		return true
	}
	// current sample counts as the first of the recovery run
	if len(h.RecentUp) < need-1 {
		return true
	}
	for _, rec := range h.RecentUp[:need-1] {
		if rec.ResponseTimeMS == nil || over(*rec.ResponseTimeMS, h.Baseline, r) {
			return true
		}
	}
	return false
}

func newlySlow(ms int64, b domain.Baseline, r Rules) bool {
	return over(ms, b, r) && ms > r.AbsoluteFloor.Milliseconds()
}

// over reports whether ms exceeds the relative threshold. A baseline that is
// too small to judge never counts as over.
func over(ms int64, b domain.Baseline, r Rules) bool {
	if b.Samples < r.MinSamples || b.AverageMS <= 0 {
		return false
	}
	return float64(ms) > r.SlowMultiplier*b.AverageMS
}
