package peripheral

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/domain"
)

// Runner fires side checks for an endpoint at most once per TTL. Work runs
// in the background behind a fixed number of slots.
type Runner struct {
	log    *zap.Logger
	checks []Checker
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	lastRun map[domain.EndpointID]time.Time

	slots  chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(log *zap.Logger, ttl time.Duration, concurrency int, checks ...Checker) *Runner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:     log,
		checks:  checks,
		ttl:     ttl,
		now:     time.Now,
		lastRun: make(map[domain.EndpointID]time.Time),
		slots:   make(chan struct{}, concurrency),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// MaybeRun returns immediately. It reports whether a run was started.
func (r *Runner) MaybeRun(e domain.Endpoint) bool {
	if r == nil || len(r.checks) == 0 || !r.claim(e.ID) {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("peripheral_panic", zap.String("endpoint_id", string(e.ID)), zap.Any("panic", rec))
			}
		}()
		select {
		case r.slots <- struct{}{}:
		case <-r.ctx.Done():
			return
		}
		defer func() { <-r.slots }()
		r.run(e)
	}()
	return true
}

func (r *Runner) claim(id domain.EndpointID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if last, ok := r.lastRun[id]; ok && now.Sub(last) < r.ttl {
		return false
	}
	r.lastRun[id] = now
	return true
}

func (r *Runner) run(e domain.Endpoint) {
	for _, c := range r.checks {
		if r.ctx.Err() != nil {
			return
		}
		res := c.Check(r.ctx, e.URL)
		fields := []zap.Field{
			zap.String("endpoint_id", string(e.ID)),
			zap.String("url", e.URL),
			zap.String("check", res.Check),
			zap.Bool("ok", res.OK),
			zap.String("message", res.Message),
			zap.Duration("took", res.Took),
		}
		if res.OK {
			r.log.Info("peripheral_check", fields...)
		} else {
			r.log.Warn("peripheral_check", fields...)
		}
	}
}

// Wait blocks until every started run has finished.
func (r *Runner) Wait() { r.wg.Wait() }

// Close cancels pending runs and waits for the rest.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}
