package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/repo"
)

var _ repo.Gateway = (*Store)(nil)

// Schema is applied by Migrate; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS endpoints (
  id           TEXT PRIMARY KEY,
  workspace_id TEXT NOT NULL DEFAULT '',
  name         TEXT NOT NULL DEFAULT '',
  url          TEXT NOT NULL,
  interval_ms  BIGINT NOT NULL DEFAULT 60000,
  active       BOOLEAN NOT NULL DEFAULT TRUE,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (workspace_id, url)
);

CREATE TABLE IF NOT EXISTS workspace_settings (
  workspace_id      TEXT PRIMARY KEY,
  timeout_ms        BIGINT NOT NULL,
  max_retries       INTEGER NOT NULL,
  retry_delay_ms    BIGINT NOT NULL,
  failure_threshold INTEGER NOT NULL,
  notify_delay_ms   BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS check_records (
  id               TEXT PRIMARY KEY,
  endpoint_id      TEXT NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
  checked_at       TIMESTAMPTZ NOT NULL,
  status           TEXT NOT NULL,
  response_time_ms BIGINT NULL,
  status_code      INTEGER NULL,
  error            TEXT NULL,
  is_slow          BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_check_records_endpoint_time ON check_records (endpoint_id, checked_at DESC);

CREATE TABLE IF NOT EXISTS endpoint_state (
  endpoint_id           TEXT PRIMARY KEY REFERENCES endpoints(id) ON DELETE CASCADE,
  consecutive_failures  INTEGER NOT NULL DEFAULT 0,
  confirmed_down_at     TIMESTAMPTZ NULL,
  notified              BOOLEAN NOT NULL DEFAULT FALSE,
  last_status           TEXT NOT NULL DEFAULT '',
  last_response_time_ms BIGINT NULL,
  last_checked_at       TIMESTAMPTZ NULL,
  is_slow               BOOLEAN NOT NULL DEFAULT FALSE,
  uptime_percent        DOUBLE PRECISION NOT NULL DEFAULT 100
);
`

type Store struct {
	pool     *pgxpool.Pool
	log      *zap.Logger
	defaults domain.CheckConfig
}

func New(ctx context.Context, dsn string, defaults domain.CheckConfig, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log, defaults: defaults.Normalize()}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- EndpointStore ----

func (s *Store) AddEndpoint(ctx context.Context, e *domain.Endpoint) error {
	if e.ID == "" {
		e.ID = domain.NewEndpointID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO endpoints (id, workspace_id, name, url, interval_ms, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.ID), string(e.WorkspaceID), e.Name, e.URL, e.Interval.Milliseconds(), e.Active, e.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repo.ErrDuplicate
		}
		return fmt.Errorf("insert endpoint: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO endpoint_state (endpoint_id) VALUES ($1)`, string(e.ID)); err != nil {
		return fmt.Errorf("insert endpoint state: %w", err)
	}
	return tx.Commit(ctx)
}

const endpointCols = `id, workspace_id, name, url, interval_ms, active, created_at`

func scanEndpoint(row pgx.Row) (domain.Endpoint, error) {
	var (
		e          domain.Endpoint
		id, ws     string
		intervalMS int64
	)
	if err := row.Scan(&id, &ws, &e.Name, &e.URL, &intervalMS, &e.Active, &e.CreatedAt); err != nil {
		return e, err
	}
	e.ID = domain.EndpointID(id)
	e.WorkspaceID = domain.WorkspaceID(ws)
	e.Interval = time.Duration(intervalMS) * time.Millisecond
	return e, nil
}

func (s *Store) ListEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	return s.queryEndpoints(ctx, `SELECT `+endpointCols+` FROM endpoints ORDER BY created_at, id`)
}

func (s *Store) ActiveEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	return s.queryEndpoints(ctx, `SELECT `+endpointCols+` FROM endpoints WHERE active ORDER BY created_at, id`)
}

func (s *Store) queryEndpoints(ctx context.Context, q string) ([]domain.Endpoint, error) {
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []domain.Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Endpoint(ctx context.Context, id domain.EndpointID) (*domain.Endpoint, error) {
	e, err := scanEndpoint(s.pool.QueryRow(ctx, `SELECT `+endpointCols+` FROM endpoints WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get endpoint: %w", err)
	}
	return &e, nil
}

func (s *Store) CheckConfig(ctx context.Context, id domain.EndpointID) (domain.CheckConfig, error) {
	var (
		found                             bool
		timeoutMS, retryDelayMS, notifyMS *int64
		maxRetries, failureThreshold      *int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT TRUE, w.timeout_ms, w.max_retries, w.retry_delay_ms, w.failure_threshold, w.notify_delay_ms
		   FROM endpoints e
		   LEFT JOIN workspace_settings w ON w.workspace_id = e.workspace_id
		  WHERE e.id = $1`, string(id),
	).Scan(&found, &timeoutMS, &maxRetries, &retryDelayMS, &failureThreshold, &notifyMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CheckConfig{}, repo.ErrNotFound
	}
	if err != nil {
		return domain.CheckConfig{}, fmt.Errorf("check config: %w", err)
	}
	if timeoutMS == nil {
		return s.defaults, nil
	}
	return domain.CheckConfig{
		Timeout:          time.Duration(*timeoutMS) * time.Millisecond,
		MaxRetries:       *maxRetries,
		RetryDelay:       time.Duration(*retryDelayMS) * time.Millisecond,
		FailureThreshold: *failureThreshold,
		NotifyDelay:      time.Duration(*notifyMS) * time.Millisecond,
	}.Normalize(), nil
}

func (s *Store) SetWorkspaceConfig(ctx context.Context, ws domain.WorkspaceID, c domain.CheckConfig) error {
	c = c.Normalize()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workspace_settings
		  (workspace_id, timeout_ms, max_retries, retry_delay_ms, failure_threshold, notify_delay_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id) DO UPDATE SET
		  timeout_ms = EXCLUDED.timeout_ms,
		  max_retries = EXCLUDED.max_retries,
		  retry_delay_ms = EXCLUDED.retry_delay_ms,
		  failure_threshold = EXCLUDED.failure_threshold,
		  notify_delay_ms = EXCLUDED.notify_delay_ms`,
		string(ws), c.Timeout.Milliseconds(), c.MaxRetries, c.RetryDelay.Milliseconds(),
		c.FailureThreshold, c.NotifyDelay.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert workspace settings: %w", err)
	}
	return nil
}

// ---- RecordStore ----

func (s *Store) AppendRecord(ctx context.Context, r *domain.CheckRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO check_records
		   (id, endpoint_id, checked_at, status, response_time_ms, status_code, error, is_slow)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, string(r.EndpointID), r.CheckedAt, string(r.Status), r.ResponseTimeMS, r.StatusCode, r.Error, r.IsSlow,
	)
	if err != nil {
		return fmt.Errorf("insert check record: %w", err)
	}
	return nil
}

func (s *Store) RecentRecords(ctx context.Context, id domain.EndpointID, f repo.RecordFilter, limit int) ([]domain.CheckRecord, error) {
	q := `SELECT id, checked_at, status, response_time_ms, status_code, error, is_slow
	        FROM check_records
	       WHERE endpoint_id = $1`
	args := []any{string(id)}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.ExcludeSlow {
		q += " AND NOT is_slow"
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		q += fmt.Sprintf(" AND checked_at >= $%d", len(args))
	}
	q += " ORDER BY checked_at DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckRecord
	for rows.Next() {
		var (
			r      domain.CheckRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.CheckedAt, &status, &r.ResponseTimeMS, &r.StatusCode, &r.Error, &r.IsSlow); err != nil {
			return nil, fmt.Errorf("scan check record: %w", err)
		}
		r.EndpointID = id
		r.Status = domain.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Baseline(ctx context.Context, id domain.EndpointID, since time.Time) (domain.Baseline, error) {
	var (
		b   domain.Baseline
		avg *float64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), AVG(response_time_ms)::float8
		   FROM check_records
		  WHERE endpoint_id = $1
		    AND status = 'up'
		    AND NOT is_slow
		    AND response_time_ms IS NOT NULL
		    AND ($2::timestamptz IS NULL OR checked_at >= $2)`,
		string(id), nullTime(since),
	).Scan(&b.Samples, &avg)
	if err != nil {
		return b, fmt.Errorf("baseline: %w", err)
	}
	if avg != nil {
		b.AverageMS = *avg
	}
	return b, nil
}

func (s *Store) Uptime(ctx context.Context, id domain.EndpointID, since time.Time) (float64, error) {
	var total, up int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'up')
		   FROM check_records
		  WHERE endpoint_id = $1
		    AND ($2::timestamptz IS NULL OR checked_at >= $2)`,
		string(id), nullTime(since),
	).Scan(&total, &up)
	if err != nil {
		return 0, fmt.Errorf("uptime: %w", err)
	}
	if total == 0 {
		return 100, nil
	}
	return float64(up) * 100 / float64(total), nil
}

// ---- StateStore ----

func (s *Store) RuntimeState(ctx context.Context, id domain.EndpointID) (domain.RuntimeState, error) {
	st := domain.RuntimeState{EndpointID: id}
	var last string
	err := s.pool.QueryRow(ctx,
		`SELECT consecutive_failures, confirmed_down_at, notified,
		        last_status, last_response_time_ms, last_checked_at, is_slow, uptime_percent
		   FROM endpoint_state
		  WHERE endpoint_id = $1`, string(id),
	).Scan(&st.ConsecutiveFailures, &st.ConfirmedDownAt, &st.Notified,
		&last, &st.LastResponseTimeMS, &st.LastCheckedAt, &st.IsSlow, &st.UptimePercent)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("runtime state: %w", err)
	}
	st.LastStatus = domain.Status(last)
	return st, nil
}

func (s *Store) SaveAlertState(ctx context.Context, id domain.EndpointID, a domain.AlertState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO endpoint_state (endpoint_id, consecutive_failures, confirmed_down_at, notified)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint_id) DO UPDATE SET
		  consecutive_failures = EXCLUDED.consecutive_failures,
		  confirmed_down_at = EXCLUDED.confirmed_down_at,
		  notified = EXCLUDED.notified`,
		string(id), a.ConsecutiveFailures, a.ConfirmedDownAt, a.Notified,
	)
	if err != nil {
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}

func (s *Store) UpdateCachedFields(ctx context.Context, id domain.EndpointID, f domain.CachedFields) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO endpoint_state (endpoint_id, last_status, last_response_time_ms, last_checked_at, is_slow, uptime_percent)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (endpoint_id) DO UPDATE SET
		  last_status = EXCLUDED.last_status,
		  last_response_time_ms = EXCLUDED.last_response_time_ms,
		  last_checked_at = EXCLUDED.last_checked_at,
		  is_slow = EXCLUDED.is_slow,
		  uptime_percent = EXCLUDED.uptime_percent`,
		string(id), string(f.LastStatus), f.LastResponseTimeMS, f.LastCheckedAt, f.IsSlow, f.UptimePercent,
	)
	if err != nil {
		s.log.Debug("postgres_cached_fields_error", zap.String("endpoint_id", string(id)), zap.Error(err))
		return fmt.Errorf("update cached fields: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
