package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/repo/memory"
)

type fakeChecker struct {
	mu      sync.Mutex
	seen    map[domain.EndpointID]int
	running atomic.Int32
	peak    atomic.Int32
	hold    time.Duration
	gate    chan struct{}
	panicOn domain.EndpointID
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{seen: make(map[domain.EndpointID]int)}
}

func (f *fakeChecker) RunSingleCheck(ctx context.Context, id domain.EndpointID) (domain.CheckResult, error) {
	f.mu.Lock()
	f.seen[id]++
	f.mu.Unlock()

	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if id == f.panicOn {
		panic("boom")
	}
	if f.gate != nil {
		<-f.gate
	}
	time.Sleep(f.hold)
	return domain.CheckResult{Record: domain.CheckRecord{EndpointID: id, Status: domain.StatusUp}}, nil
}

func (f *fakeChecker) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.seen {
		n += c
	}
	return n
}

func seedEndpoints(t *testing.T, n int) (*memory.Store, []domain.EndpointID) {
	t.Helper()
	st := memory.New(domain.DefaultCheckConfig())
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]domain.EndpointID, 0, n)
	for i := 0; i < n; i++ {
		e := &domain.Endpoint{
			URL:       fmt.Sprintf("https://site%02d.example", i),
			Active:    true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := st.AddEndpoint(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, e.ID)
	}
	paused := &domain.Endpoint{URL: "https://paused.example", Active: false}
	_ = st.AddEndpoint(context.Background(), paused)
	return st, ids
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRunCycle_ChecksEveryActiveEndpointInBatches(t *testing.T) {
	st, ids := seedEndpoints(t, 25)
	chk := newFakeChecker()
	chk.hold = 5 * time.Millisecond
	s := New(zap.NewNop(), st, chk, Config{BatchSize: 10, BatchPause: time.Millisecond, CycleTimeout: 5 * time.Second})

	if !s.RunCycle(context.Background()) {
		t.Fatal("cycle should run")
	}
	if chk.total() != 25 {
		t.Fatalf("want 25 checks, got %d", chk.total())
	}
	for _, id := range ids {
		if chk.seen[id] != 1 {
			t.Fatalf("endpoint %s checked %d times", id, chk.seen[id])
		}
	}
	if p := chk.peak.Load(); p > 10 {
		t.Fatalf("batch bound exceeded: peak %d", p)
	}
}

func TestRunCycle_SkipsWhileAnotherCycleRuns(t *testing.T) {
	st, _ := seedEndpoints(t, 1)
	chk := newFakeChecker()
	chk.gate = make(chan struct{})
	s := New(zap.NewNop(), st, chk, Config{BatchSize: 10, CycleTimeout: 5 * time.Second})

	done := make(chan bool, 1)
	go func() { done <- s.RunCycle(context.Background()) }()
	waitFor(t, func() bool { return chk.running.Load() == 1 })

	if s.RunCycle(context.Background()) {
		t.Fatal("overlapping cycle must be skipped")
	}
	close(chk.gate)
	if !<-done {
		t.Fatal("first cycle should report it ran")
	}
	if chk.total() != 1 {
		t.Fatalf("want 1 check, got %d", chk.total())
	}
}

func TestRunCycle_PanicIsIsolated(t *testing.T) {
	st, ids := seedEndpoints(t, 3)
	chk := newFakeChecker()
	chk.panicOn = ids[1]
	s := New(zap.NewNop(), st, chk, Config{BatchSize: 10, CycleTimeout: 5 * time.Second})

	if !s.RunCycle(context.Background()) {
		t.Fatal("cycle should run")
	}
	if chk.total() != 3 {
		t.Fatalf("every endpoint must be attempted, got %d", chk.total())
	}
	if !s.RunCycle(context.Background()) {
		t.Fatal("guard must be released after a panic")
	}
}

func TestRunCycle_TimeoutReleasesGuardAndStopsBatches(t *testing.T) {
	st, ids := seedEndpoints(t, 2)
	chk := newFakeChecker()
	chk.gate = make(chan struct{})
	s := New(zap.NewNop(), st, chk, Config{BatchSize: 1, CycleTimeout: 50 * time.Millisecond})

	returned := make(chan struct{})
	go func() {
		s.RunCycle(context.Background())
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not return on timeout")
	}
	if s.running.Load() {
		t.Fatal("guard still held after timeout")
	}

	close(chk.gate)
	s.wg.Wait()
	chk.mu.Lock()
	defer chk.mu.Unlock()
	if chk.seen[ids[0]] != 1 || chk.seen[ids[1]] != 0 {
		t.Fatalf("want only the first batch launched, got %v", chk.seen)
	}
}

func TestStartStop_RunsImmediateCycle(t *testing.T) {
	st, _ := seedEndpoints(t, 2)
	chk := newFakeChecker()
	s := New(zap.NewNop(), st, chk, Config{})

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(time.Hour); err == nil {
		t.Fatal("second start must fail")
	}
	waitFor(t, func() bool { return chk.total() == 2 })
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStop_GivesUpAtDeadline(t *testing.T) {
	st, _ := seedEndpoints(t, 1)
	chk := newFakeChecker()
	chk.gate = make(chan struct{})
	s := New(zap.NewNop(), st, chk, Config{CycleTimeout: time.Hour})

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return chk.total() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := s.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("stop blocked past its deadline: %s", time.Since(start))
	}
	close(chk.gate)
}

func TestStart_RejectsNonPositiveInterval(t *testing.T) {
	st, _ := seedEndpoints(t, 0)
	if err := New(zap.NewNop(), st, newFakeChecker(), Config{}).Start(0); err == nil {
		t.Fatal("want error for zero interval")
	}
}

func TestRunCycle_WithRealRunner(t *testing.T) {
	f := newFixture(t, thresholdConfig(2, 0), down())
	s := New(zap.NewNop(), f.store, f.runner, Config{BatchSize: 5, CycleTimeout: 5 * time.Second})
	for i := 0; i < 3; i++ {
		s.RunCycle(context.Background())
		f.clock = f.clock.Add(time.Minute)
	}
	if got := f.notifier.statuses(); len(got) != 1 || got[0] != domain.StatusDown {
		t.Fatalf("want one down alert across cycles, got %v", got)
	}
}
