package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/repo"
)

type Checker interface {
	RunSingleCheck(ctx context.Context, id domain.EndpointID) (domain.CheckResult, error)
}

type Config struct {
	BatchSize    int
	BatchPause   time.Duration
	CycleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{BatchSize: 10, BatchPause: 200 * time.Millisecond, CycleTimeout: 5 * time.Minute}
}

// Scheduler runs a check cycle over every active endpoint on a fixed
// interval. At most one cycle is active at a time.
type Scheduler struct {
	log       *zap.Logger
	endpoints repo.EndpointStore
	checker   Checker
	cfg       Config

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.Mutex
	cron *cron.Cron
}

func New(log *zap.Logger, endpoints repo.EndpointStore, checker Checker, cfg Config) *Scheduler {
	d := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = d.CycleTimeout
	}
	return &Scheduler{log: log, endpoints: endpoints, checker: checker, cfg: cfg}
}

// Start runs a cycle now and then every interval. cron.Every rounds the
// interval down to whole seconds, with a one second minimum.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	s.cron = cron.New(cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(s.log))))
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.tick))
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tick()
	}()
	s.log.Info("scheduler_started", zap.Duration("interval", interval), zap.Int("batch_size", s.cfg.BatchSize))
	return nil
}

// Stop halts the ticker and waits for running cycles and in-flight checks.
// A check can outlive its cycle by its full retry series, so the wait is
// bounded by ctx; checks still running when ctx ends finish in the background.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	cronDone := c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler_stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler_stop_timeout", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	s.RunCycle(context.Background())
}

// RunCycle checks every active endpoint in batches. It returns false when a
// previous cycle is still running. The guard is released on completion or
// when the cycle timeout fires, whichever comes first; checks already started
// keep running to completion.
func (s *Scheduler) RunCycle(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Info("scheduler_cycle_skipped")
		return false
	}
	defer s.running.Store(false)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	start := time.Now()
	eps, err := s.endpoints.ActiveEndpoints(cctx)
	if err != nil {
		s.log.Error("scheduler_list_error", zap.Error(err))
		return true
	}
	if len(eps) == 0 {
		return true
	}

	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.runBatches(cctx, eps)
	}()

	select {
	case <-done:
		s.log.Info("scheduler_cycle_done", zap.Int("endpoints", len(eps)), zap.Duration("took", time.Since(start)))
	case <-cctx.Done():
		s.log.Warn("scheduler_cycle_timeout",
			zap.Int("endpoints", len(eps)),
			zap.Duration("timeout", s.cfg.CycleTimeout),
			zap.Error(cctx.Err()),
		)
	}
	return true
}

func (s *Scheduler) runBatches(ctx context.Context, eps []domain.Endpoint) {
	detached := context.WithoutCancel(ctx)
	for i := 0; i < len(eps); i += s.cfg.BatchSize {
		if ctx.Err() != nil {
			return
		}
		end := min(i+s.cfg.BatchSize, len(eps))

		var wg sync.WaitGroup
		for _, e := range eps[i:end] {
			wg.Add(1)
			go func(e domain.Endpoint) {
				defer wg.Done()
				s.checkOne(detached, e)
			}(e)
		}
		wg.Wait()

		if end < len(eps) && s.cfg.BatchPause > 0 {
			t := time.NewTimer(s.cfg.BatchPause)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

func (s *Scheduler) checkOne(ctx context.Context, e domain.Endpoint) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("scheduler_check_panic", zap.String("endpoint_id", string(e.ID)), zap.Any("panic", rec))
		}
	}()

	res, err := s.checker.RunSingleCheck(ctx, e.ID)
	switch {
	case errors.Is(err, ErrCheckInProgress):
		s.log.Info("scheduler_check_in_progress", zap.String("endpoint_id", string(e.ID)))
	case err != nil:
		s.log.Error("scheduler_check_error",
			zap.String("endpoint_id", string(e.ID)),
			zap.String("url", e.URL),
			zap.Error(err),
		)
	default:
		fields := []zap.Field{
			zap.String("endpoint_id", string(e.ID)),
			zap.String("url", e.URL),
			zap.String("status", string(res.Record.Status)),
			zap.Bool("slow", res.Record.IsSlow),
			zap.Int("attempts", res.Attempts),
			zap.Duration("elapsed", res.Elapsed),
		}
		if res.Record.StatusCode != nil {
			fields = append(fields, zap.Int("http_status", *res.Record.StatusCode))
		}
		s.log.Debug("scheduler_checked", fields...)
	}
}
