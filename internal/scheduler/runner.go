package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/alert"
	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/evaluate"
	"github.com/hamed0406/sitepulse/internal/live"
	"github.com/hamed0406/sitepulse/internal/probe"
	"github.com/hamed0406/sitepulse/internal/repo"
)

// ErrCheckInProgress is returned when the endpoint is already being checked.
var ErrCheckInProgress = errors.New("check already in progress")

type Prober interface {
	Probe(ctx context.Context, target string, s probe.Settings) probe.Result
}

type Notifier interface {
	Dispatch(ws domain.WorkspaceID, p domain.AlertPayload, a *domain.Attachment)
}

type Publisher interface {
	Publish(ws domain.WorkspaceID, evt live.Event)
}

type Peripherals interface {
	MaybeRun(e domain.Endpoint) bool
}

// Windows bound the history queries. Zero means all history.
type Windows struct {
	Baseline time.Duration
	Uptime   time.Duration
}

// Runner executes the check pipeline for one endpoint. Notifier, Publisher
// and Peripherals are optional.
type Runner struct {
	Log         *zap.Logger
	Store       repo.Gateway
	Prober      Prober
	Rules       evaluate.Rules
	Windows     Windows
	Notifier    Notifier
	Publisher   Publisher
	Peripherals Peripherals

	now      func() time.Time
	inFlight sync.Map
}

func NewRunner(log *zap.Logger, store repo.Gateway, prober Prober, rules evaluate.Rules, w Windows) *Runner {
	return &Runner{
		Log:     log,
		Store:   store,
		Prober:  prober,
		Rules:   rules,
		Windows: w,
		now:     time.Now,
	}
}

func (r *Runner) since(window time.Duration, now time.Time) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return now.Add(-window)
}

// RunSingleCheck probes the endpoint once (with retries), classifies the
// outcome, advances the alert state and persists everything.
func (r *Runner) RunSingleCheck(ctx context.Context, id domain.EndpointID) (res domain.CheckResult, err error) {
	if _, busy := r.inFlight.LoadOrStore(id, struct{}{}); busy {
		return res, ErrCheckInProgress
	}
	defer r.inFlight.Delete(id)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("check %s panicked: %v", id, rec)
		}
	}()

	e, err := r.Store.Endpoint(ctx, id)
	if err != nil {
		return res, fmt.Errorf("load endpoint: %w", err)
	}
	cfg, err := r.Store.CheckConfig(ctx, id)
	if err != nil {
		return res, fmt.Errorf("load check config: %w", err)
	}
	cfg = cfg.Normalize()

	out := r.Prober.Probe(ctx, e.URL, probe.SettingsFrom(cfg))

	hist, err := r.history(ctx, id)
	if err != nil {
		return res, err
	}
	ev := evaluate.Evaluate(out, hist, r.Rules)

	now := r.now().UTC()
	rec := domain.CheckRecord{
		ID:             uuid.NewString(),
		EndpointID:     id,
		CheckedAt:      now,
		Status:         ev.Status,
		ResponseTimeMS: ev.ResponseTimeMS,
		StatusCode:     ev.StatusCode,
		Error:          ev.ErrorMessage,
		IsSlow:         ev.IsSlow,
	}
	if err := r.Store.AppendRecord(ctx, &rec); err != nil {
		return res, fmt.Errorf("append record: %w", err)
	}

	state, err := r.Store.RuntimeState(ctx, id)
	if err != nil {
		return res, fmt.Errorf("load state: %w", err)
	}
	next, dec := alert.Step(state.AlertState, ev.Status, now, alert.PolicyFrom(cfg))
	// Notified is persisted before anything is sent.
	if err := r.Store.SaveAlertState(ctx, id, next); err != nil {
		return res, fmt.Errorf("save alert state: %w", err)
	}
	if p := alert.BuildPayload(*e, ev.ErrorMessage, ev.StatusCode, dec); p != nil {
		r.notify(e, *p, alert.PhaseOf(next))
	}

	uptime, err := r.Store.Uptime(ctx, id, r.since(r.Windows.Uptime, now))
	if err != nil {
		r.Log.Warn("runner_uptime_error", zap.String("endpoint_id", string(id)), zap.Error(err))
		uptime = state.UptimePercent
	}

	cached := domain.CachedFields{
		LastStatus:         ev.Status,
		LastResponseTimeMS: ev.ResponseTimeMS,
		LastCheckedAt:      &now,
		IsSlow:             ev.IsSlow,
		UptimePercent:      uptime,
	}
	if err := r.Store.UpdateCachedFields(ctx, id, cached); err != nil {
		return res, fmt.Errorf("update cached fields: %w", err)
	}

	r.publish(e, rec)
	if r.Peripherals != nil {
		r.Peripherals.MaybeRun(*e)
	}

	return domain.CheckResult{
		Record:   rec,
		State:    domain.RuntimeState{EndpointID: id, AlertState: next, CachedFields: cached},
		Alert:    dec.Action,
		Attempts: out.Attempts,
		Elapsed:  out.Elapsed,
	}, nil
}

// history is read before the new record is appended, so RecentUp[0] is the
// previous up sample.
func (r *Runner) history(ctx context.Context, id domain.EndpointID) (evaluate.History, error) {
	base, err := r.Store.Baseline(ctx, id, r.since(r.Windows.Baseline, r.now()))
	if err != nil {
		return evaluate.History{}, fmt.Errorf("load baseline: %w", err)
	}
	limit := r.Rules.RecoverySamples - 1
	if limit < 1 {
		limit = 1
	}
	recent, err := r.Store.RecentRecords(ctx, id, repo.RecordFilter{Status: domain.StatusUp}, limit)
	if err != nil {
		return evaluate.History{}, fmt.Errorf("load recent records: %w", err)
	}
	return evaluate.History{Baseline: base, RecentUp: recent}, nil
}

func (r *Runner) notify(e *domain.Endpoint, p domain.AlertPayload, phase alert.Phase) {
	if r.Notifier == nil {
		r.Log.Warn("runner_no_notifier", zap.String("endpoint_id", string(e.ID)), zap.String("status", string(p.Status)))
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.Log.Error("runner_notify_panic", zap.String("endpoint_id", string(e.ID)), zap.Any("panic", rec))
		}
	}()
	r.Notifier.Dispatch(e.WorkspaceID, p, nil)
	r.Log.Info("runner_alert_dispatched",
		zap.String("endpoint_id", string(e.ID)),
		zap.String("url", e.URL),
		zap.String("status", string(p.Status)),
		zap.String("phase", string(phase)),
	)
}

func (r *Runner) publish(e *domain.Endpoint, rec domain.CheckRecord) {
	if r.Publisher == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.Log.Error("runner_publish_panic", zap.String("endpoint_id", string(e.ID)), zap.Any("panic", p))
		}
	}()
	r.Publisher.Publish(e.WorkspaceID, live.Event{
		Type:         "check",
		SiteID:       e.ID,
		Status:       rec.Status,
		ResponseTime: rec.ResponseTimeMS,
		IsSlow:       rec.IsSlow,
	})
}
