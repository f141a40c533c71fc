package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/repo"
)

type Store struct {
	mu         sync.RWMutex
	defaults   domain.CheckConfig
	endpoints  map[domain.EndpointID]*domain.Endpoint
	workspaces map[domain.WorkspaceID]domain.CheckConfig
	records    map[domain.EndpointID][]domain.CheckRecord // oldest first
	states     map[domain.EndpointID]domain.RuntimeState
}

func New(defaults domain.CheckConfig) *Store {
	return &Store{
		defaults:   defaults.Normalize(),
		endpoints:  make(map[domain.EndpointID]*domain.Endpoint),
		workspaces: make(map[domain.WorkspaceID]domain.CheckConfig),
		records:    make(map[domain.EndpointID][]domain.CheckRecord),
		states:     make(map[domain.EndpointID]domain.RuntimeState),
	}
}

// ---- EndpointStore ----

func (m *Store) AddEndpoint(ctx context.Context, e *domain.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.endpoints {
		if cur.URL == e.URL && cur.WorkspaceID == e.WorkspaceID {
			return repo.ErrDuplicate
		}
	}
	if e.ID == "" {
		e.ID = domain.NewEndpointID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	m.endpoints[e.ID] = &cp
	m.states[e.ID] = domain.RuntimeState{EndpointID: e.ID}
	return nil
}

func (m *Store) ListEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	return m.list(false), nil
}

func (m *Store) ActiveEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	return m.list(true), nil
}

func (m *Store) list(activeOnly bool) []domain.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Endpoint, 0, len(m.endpoints))
	for _, e := range m.endpoints {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Store) Endpoint(ctx context.Context, id domain.EndpointID) (*domain.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.endpoints[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Store) CheckConfig(ctx context.Context, id domain.EndpointID) (domain.CheckConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.endpoints[id]
	if !ok {
		return domain.CheckConfig{}, repo.ErrNotFound
	}
	if c, ok := m.workspaces[e.WorkspaceID]; ok {
		return c, nil
	}
	return m.defaults, nil
}

func (m *Store) SetWorkspaceConfig(ctx context.Context, ws domain.WorkspaceID, c domain.CheckConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaces[ws] = c.Normalize()
	return nil
}

// ---- RecordStore ----

func (m *Store) AppendRecord(ctx context.Context, r *domain.CheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	m.records[r.EndpointID] = append(m.records[r.EndpointID], *r)
	return nil
}

func (m *Store) RecentRecords(ctx context.Context, id domain.EndpointID, f repo.RecordFilter, limit int) ([]domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.records[id]
	var out []domain.CheckRecord
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		r := all[i]
		if !f.Since.IsZero() && r.CheckedAt.Before(f.Since) {
			break
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.ExcludeSlow && r.IsSlow {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Store) Baseline(ctx context.Context, id domain.EndpointID, since time.Time) (domain.Baseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b domain.Baseline
	var sum int64
	for _, r := range m.records[id] {
		if r.Status != domain.StatusUp || r.IsSlow || r.ResponseTimeMS == nil {
			continue
		}
		if !since.IsZero() && r.CheckedAt.Before(since) {
			continue
		}
		b.Samples++
		sum += *r.ResponseTimeMS
	}
	if b.Samples > 0 {
		b.AverageMS = float64(sum) / float64(b.Samples)
	}
	return b, nil
}

func (m *Store) Uptime(ctx context.Context, id domain.EndpointID, since time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total, up int
	for _, r := range m.records[id] {
		if !since.IsZero() && r.CheckedAt.Before(since) {
			continue
		}
		total++
		if r.Status == domain.StatusUp {
			up++
		}
	}
	if total == 0 {
		return 100, nil
	}
	return float64(up) * 100 / float64(total), nil
}

// ---- StateStore ----

func (m *Store) RuntimeState(ctx context.Context, id domain.EndpointID) (domain.RuntimeState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	if !ok {
		return domain.RuntimeState{EndpointID: id}, nil
	}
	return s, nil
}

func (m *Store) SaveAlertState(ctx context.Context, id domain.EndpointID, a domain.AlertState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.states[id]
	s.EndpointID = id
	s.AlertState = a
	m.states[id] = s
	return nil
}

func (m *Store) UpdateCachedFields(ctx context.Context, id domain.EndpointID, f domain.CachedFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.states[id]
	s.EndpointID = id
	s.CachedFields = f
	m.states[id] = s
	return nil
}

var _ repo.Gateway = (*Store)(nil)
