package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-recon/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it as well.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var preparedStatements = map[string]string{
	"get_property":      `SELECT data FROM properties WHERE id = $1`,
	"get_comparison":    `SELECT id, property_id, overall_consistency, critical_issues, result, created_at FROM comparison_runs WHERE id = $1`,
	"latest_comparison": `SELECT id, property_id, overall_consistency, critical_issues, result, created_at FROM comparison_runs WHERE property_id = $1 ORDER BY created_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS agencies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS properties (
	id         TEXT PRIMARY KEY,
	agency_id  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS comparison_runs (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	property_id         TEXT NOT NULL,
	overall_consistency INTEGER NOT NULL,
	critical_issues     INTEGER NOT NULL DEFAULT 0,
	result              JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_properties_agency ON properties(agency_id);
CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
CREATE INDEX IF NOT EXISTS idx_comparison_runs_property ON comparison_runs(property_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_comparison_runs_consistency ON comparison_runs(overall_consistency);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertAgency(ctx context.Context, a model.Agency) error {
	if a.ID == "" {
		return eris.New("postgres: agency id is required")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal agency")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO agencies (id, name, data, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		a.ID, a.Name, data, a.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert agency %s", a.ID)
}

func (s *PostgresStore) UpsertProperty(ctx context.Context, p model.Property) error {
	if p.ID == "" {
		return eris.New("postgres: property id is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal property")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO properties (id, agency_id, status, data, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET agency_id = EXCLUDED.agency_id, status = EXCLUDED.status,
		   data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		p.ID, p.AgencyID, p.Status, data, p.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert property %s", p.ID)
}

func (s *PostgresStore) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM properties WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: property %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get property %s", id)
	}
	return decodeProperty(data)
}

func (s *PostgresStore) ListProperties(ctx context.Context, filter PropertyFilter) ([]model.Property, error) {
	query := `SELECT data FROM properties WHERE true`
	args := []any{}
	argIdx := 1

	if filter.AgencyID != "" {
		query += fmt.Sprintf(` AND agency_id = $%d`, argIdx)
		args = append(args, filter.AgencyID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d`, argIdx)
	args = append(args, limitOf(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list properties")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		p, err := decodeProperty(data)
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "postgres: list properties iterate")
}

func (s *PostgresStore) SaveComparison(ctx context.Context, pc *model.PropertyComparison) (*model.ComparisonRun, error) {
	if pc == nil {
		return nil, eris.New("postgres: nil comparison")
	}
	run := newRun(uuid.New().String(), pc)
	data, err := json.Marshal(pc)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal comparison")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO comparison_runs (id, property_id, overall_consistency, critical_issues, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.PropertyID, run.OverallConsistency, run.CriticalIssues, data, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert comparison for %s", run.PropertyID)
	}
	return &run, nil
}

func (s *PostgresStore) GetComparison(ctx context.Context, id string) (*model.ComparisonRun, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_comparison"], id)
	return scanPostgresRun(row, id)
}

func (s *PostgresStore) LatestComparison(ctx context.Context, propertyID string) (*model.ComparisonRun, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["latest_comparison"], propertyID)
	return scanPostgresRun(row, propertyID)
}

func (s *PostgresStore) ListComparisons(ctx context.Context, filter ComparisonFilter) ([]model.ComparisonRun, error) {
	query := `SELECT id, property_id, overall_consistency, critical_issues, created_at FROM comparison_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.PropertyID != "" {
		query += fmt.Sprintf(` AND property_id = $%d`, argIdx)
		args = append(args, filter.PropertyID)
		argIdx++
	}
	if filter.MaxConsistency > 0 {
		query += fmt.Sprintf(` AND overall_consistency <= $%d`, argIdx)
		args = append(args, filter.MaxConsistency)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOf(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list comparisons")
	}
	defer rows.Close()

	var runs []model.ComparisonRun
	for rows.Next() {
		var r model.ComparisonRun
		if err := rows.Scan(&r.ID, &r.PropertyID, &r.OverallConsistency, &r.CriticalIssues, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan comparison")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list comparisons iterate")
}

func scanPostgresRun(row pgx.Row, key string) (*model.ComparisonRun, error) {
	var r model.ComparisonRun
	var result []byte
	err := row.Scan(&r.ID, &r.PropertyID, &r.OverallConsistency, &r.CriticalIssues, &result, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: comparison %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get comparison %s", key)
	}
	if r.Result, err = decodeComparison(result); err != nil {
		return nil, err
	}
	return &r, nil
}
