package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/listing-recon/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS agencies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS properties (
	id         TEXT PRIMARY KEY,
	agency_id  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS comparison_runs (
	id                  TEXT PRIMARY KEY,
	property_id         TEXT NOT NULL,
	overall_consistency INTEGER NOT NULL,
	critical_issues     INTEGER NOT NULL DEFAULT 0,
	result              TEXT NOT NULL,
	created_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_properties_agency ON properties(agency_id);
CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
CREATE INDEX IF NOT EXISTS idx_comparison_runs_property ON comparison_runs(property_id, created_at);
`

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

func sqliteTS(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertAgency(ctx context.Context, a model.Agency) error {
	if a.ID == "" {
		return eris.New("sqlite: agency id is required")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal agency")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agencies (id, name, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data, updated_at = excluded.updated_at`,
		a.ID, a.Name, string(data), sqliteTS(a.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: upsert agency %s", a.ID)
}

func (s *SQLiteStore) UpsertProperty(ctx context.Context, p model.Property) error {
	if p.ID == "" {
		return eris.New("sqlite: property id is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal property")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO properties (id, agency_id, status, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET agency_id = excluded.agency_id, status = excluded.status,
		   data = excluded.data, updated_at = excluded.updated_at`,
		p.ID, p.AgencyID, p.Status, string(data), sqliteTS(p.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: upsert property %s", p.ID)
}

func (s *SQLiteStore) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM properties WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: property %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get property %s", id)
	}
	return decodeProperty([]byte(data))
}

func (s *SQLiteStore) ListProperties(ctx context.Context, filter PropertyFilter) ([]model.Property, error) {
	query := `SELECT data FROM properties WHERE 1=1`
	var args []any

	if filter.AgencyID != "" {
		query += ` AND agency_id = ?`
		args = append(args, filter.AgencyID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limitOf(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list properties")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan property")
		}
		p, err := decodeProperty([]byte(data))
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "sqlite: list properties iterate")
}

func (s *SQLiteStore) SaveComparison(ctx context.Context, pc *model.PropertyComparison) (*model.ComparisonRun, error) {
	if pc == nil {
		return nil, eris.New("sqlite: nil comparison")
	}
	run := newRun(uuid.New().String(), pc)
	data, err := json.Marshal(pc)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal comparison")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comparison_runs (id, property_id, overall_consistency, critical_issues, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.PropertyID, run.OverallConsistency, run.CriticalIssues, string(data), sqliteTS(run.CreatedAt),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert comparison for %s", run.PropertyID)
	}
	return &run, nil
}

const sqliteRunColumns = `id, property_id, overall_consistency, critical_issues, result, created_at`

func (s *SQLiteStore) GetComparison(ctx context.Context, id string) (*model.ComparisonRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM comparison_runs WHERE id = ?`, id)
	return scanSQLiteRun(row, id)
}

func (s *SQLiteStore) LatestComparison(ctx context.Context, propertyID string) (*model.ComparisonRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM comparison_runs WHERE property_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		propertyID,
	)
	return scanSQLiteRun(row, propertyID)
}

func (s *SQLiteStore) ListComparisons(ctx context.Context, filter ComparisonFilter) ([]model.ComparisonRun, error) {
	query := `SELECT id, property_id, overall_consistency, critical_issues, created_at FROM comparison_runs WHERE 1=1`
	var args []any

	if filter.PropertyID != "" {
		query += ` AND property_id = ?`
		args = append(args, filter.PropertyID)
	}
	if filter.MaxConsistency > 0 {
		query += ` AND overall_consistency <= ?`
		args = append(args, filter.MaxConsistency)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, sqliteTS(filter.Since))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limitOf(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list comparisons")
	}
	defer rows.Close()

	var runs []model.ComparisonRun
	for rows.Next() {
		var r model.ComparisonRun
		var created string
		if err := rows.Scan(&r.ID, &r.PropertyID, &r.OverallConsistency, &r.CriticalIssues, &created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comparison")
		}
		if r.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse created_at")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list comparisons iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable, key string) (*model.ComparisonRun, error) {
	var r model.ComparisonRun
	var result, created string
	err := row.Scan(&r.ID, &r.PropertyID, &r.OverallConsistency, &r.CriticalIssues, &result, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: comparison %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get comparison %s", key)
	}
	if r.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse created_at")
	}
	if r.Result, err = decodeComparison([]byte(result)); err != nil {
		return nil, err
	}
	return &r, nil
}
