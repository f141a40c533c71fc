package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/sitepulse/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Ports used by the check engine.
type EndpointStore interface {
	AddEndpoint(ctx context.Context, e *domain.Endpoint) error
	ListEndpoints(ctx context.Context) ([]domain.Endpoint, error)
	ActiveEndpoints(ctx context.Context) ([]domain.Endpoint, error)
	Endpoint(ctx context.Context, id domain.EndpointID) (*domain.Endpoint, error)
	// CheckConfig returns the workspace settings of the endpoint's owner,
	// falling back to store defaults.
	CheckConfig(ctx context.Context, id domain.EndpointID) (domain.CheckConfig, error)
	SetWorkspaceConfig(ctx context.Context, ws domain.WorkspaceID, c domain.CheckConfig) error
}

// RecordFilter narrows RecentRecords. Zero values mean "any".
type RecordFilter struct {
	Status      domain.Status
	ExcludeSlow bool
	Since       time.Time
}

type RecordStore interface {
	AppendRecord(ctx context.Context, r *domain.CheckRecord) error
	// RecentRecords returns matching records newest first.
	RecentRecords(ctx context.Context, id domain.EndpointID, f RecordFilter, limit int) ([]domain.CheckRecord, error)
	// Baseline averages response times of non-slow up records since the
	// given time; a zero time means all history.
	Baseline(ctx context.Context, id domain.EndpointID, since time.Time) (domain.Baseline, error)
	// Uptime is the percentage of up records since the given time, 100 when
	// there are none.
	Uptime(ctx context.Context, id domain.EndpointID, since time.Time) (float64, error)
}

type StateStore interface {
	// RuntimeState returns a zero state for endpoints never checked.
	RuntimeState(ctx context.Context, id domain.EndpointID) (domain.RuntimeState, error)
	SaveAlertState(ctx context.Context, id domain.EndpointID, s domain.AlertState) error
	UpdateCachedFields(ctx context.Context, id domain.EndpointID, f domain.CachedFields) error
}

// Gateway is everything the check engine persists through.
type Gateway interface {
	EndpointStore
	RecordStore
	StateStore
}
