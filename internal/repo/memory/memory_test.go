package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/repo"
)

func ms(v int64) *int64 { return &v }

func TestMemoryStore_AddAndListEndpoints(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultCheckConfig())

	active := &domain.Endpoint{URL: "https://example.com", Active: true}
	if err := s.AddEndpoint(ctx, active); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}
	if active.ID == "" {
		t.Fatalf("expected endpoint ID to be set")
	}
	paused := &domain.Endpoint{URL: "https://paused.example", Active: false}
	if err := s.AddEndpoint(ctx, paused); err != nil {
		t.Fatalf("AddEndpoint: %v", err)
	}

	all, _ := s.ListEndpoints(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(all))
	}
	act, _ := s.ActiveEndpoints(ctx)
	if len(act) != 1 || act[0].ID != active.ID {
		t.Fatalf("unexpected active list: %+v", act)
	}

	dup := &domain.Endpoint{URL: "https://example.com"}
	if err := s.AddEndpoint(ctx, dup); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	if _, err := s.Endpoint(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_CheckConfigPerWorkspace(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultCheckConfig())

	a := &domain.Endpoint{URL: "https://a.example", WorkspaceID: "w1"}
	b := &domain.Endpoint{URL: "https://b.example", WorkspaceID: "w2"}
	_ = s.AddEndpoint(ctx, a)
	_ = s.AddEndpoint(ctx, b)

	custom := domain.CheckConfig{Timeout: time.Second, MaxRetries: 1, FailureThreshold: 3}
	if err := s.SetWorkspaceConfig(ctx, "w1", custom); err != nil {
		t.Fatal(err)
	}

	ca, _ := s.CheckConfig(ctx, a.ID)
	if ca.FailureThreshold != 3 || ca.MaxRetries != 1 {
		t.Fatalf("want workspace config, got %+v", ca)
	}
	cb, _ := s.CheckConfig(ctx, b.ID)
	if cb != domain.DefaultCheckConfig() {
		t.Fatalf("want defaults, got %+v", cb)
	}
}

func TestMemoryStore_RecordsBaselineUptime(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultCheckConfig())
	id := domain.EndpointID("E1")
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

	recs := []domain.CheckRecord{
		{Status: domain.StatusUp, ResponseTimeMS: ms(100)},
		{Status: domain.StatusUp, ResponseTimeMS: ms(300)},
		{Status: domain.StatusUp, ResponseTimeMS: ms(20000), IsSlow: true},
		{Status: domain.StatusDown, ResponseTimeMS: ms(5000)},
	}
	for i := range recs {
		recs[i].EndpointID = id
		recs[i].CheckedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.AppendRecord(ctx, &recs[i]); err != nil {
			t.Fatalf("AppendRecord: %v", err)
		}
	}

	b, _ := s.Baseline(ctx, id, time.Time{})
	if b.Samples != 2 || b.AverageMS != 200 {
		t.Fatalf("baseline must skip slow and down records, got %+v", b)
	}
	b, _ = s.Baseline(ctx, id, base.Add(30*time.Second))
	if b.Samples != 1 || b.AverageMS != 300 {
		t.Fatalf("baseline window not applied, got %+v", b)
	}

	ups, _ := s.RecentRecords(ctx, id, repo.RecordFilter{Status: domain.StatusUp}, 2)
	if len(ups) != 2 || *ups[0].ResponseTimeMS != 20000 || *ups[1].ResponseTimeMS != 300 {
		t.Fatalf("want newest up records first, got %+v", ups)
	}

	up, _ := s.Uptime(ctx, id, time.Time{})
	if up != 75 {
		t.Fatalf("want 75%% uptime, got %v", up)
	}
	empty, _ := s.Uptime(ctx, "nobody", time.Time{})
	if empty != 100 {
		t.Fatalf("want 100%% with no records, got %v", empty)
	}
}

func TestMemoryStore_StateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(domain.DefaultCheckConfig())
	id := domain.EndpointID("E1")

	st, _ := s.RuntimeState(ctx, id)
	if st.ConsecutiveFailures != 0 || st.Notified {
		t.Fatalf("want zero state, got %+v", st)
	}

	now := time.Now().UTC()
	_ = s.SaveAlertState(ctx, id, domain.AlertState{ConsecutiveFailures: 2, ConfirmedDownAt: &now})
	_ = s.UpdateCachedFields(ctx, id, domain.CachedFields{LastStatus: domain.StatusDown, UptimePercent: 50})

	st, _ = s.RuntimeState(ctx, id)
	if st.ConsecutiveFailures != 2 || st.LastStatus != domain.StatusDown || st.UptimePercent != 50 {
		t.Fatalf("state not kept across both writers: %+v", st)
	}
}
