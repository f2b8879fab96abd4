package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts Options) (*SQLiteStore, error) {
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
	return &SQLiteStore{db: db, opts: opts.withDefaults()}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	sku             TEXT PRIMARY KEY,
	sources         TEXT NOT NULL DEFAULT '{}',
	pipeline_status TEXT NOT NULL DEFAULT 'scraped',
	job_id          TEXT,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s(pipeline_status);

CREATE TABLE IF NOT EXISTS golden_records (
	sku                    TEXT PRIMARY KEY,
	cluster_id             TEXT,
	name                   TEXT NOT NULL,
	description            TEXT,
	price                  REAL NOT NULL DEFAULT 0,
	brand                  TEXT,
	category               TEXT,
	product_type           TEXT,
	weight                 TEXT,
	images                 TEXT NOT NULL DEFAULT '[]',
	excel_price            REAL,
	extra                  TEXT,
	consolidation_metadata TEXT NOT NULL DEFAULT '{}',
	source_record_ids      TEXT,
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS categories (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS product_types (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS consolidation_jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'processing',
	error      TEXT,
	fetched    INTEGER NOT NULL DEFAULT 0,
	clusters   INTEGER NOT NULL DEFAULT 0,
	golden     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_consolidation_jobs_status ON consolidation_jobs(status);
`

func (s *SQLiteStore) table() string {
	return quoteIdent(s.opts.IngestionTable)
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	idx := quoteIdent("idx_" + s.opts.IngestionTable + "_status")
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteMigration, s.table(), idx))
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FetchPending(ctx context.Context, limit int) ([]model.PendingProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT sku, sources, pipeline_status, COALESCE(job_id, '') FROM %s WHERE pipeline_status = ? ORDER BY sku LIMIT ?`, s.table()),
		s.opts.PendingStatus, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch pending")
	}
	defer rows.Close()

	var out []model.PendingProduct
	for rows.Next() {
		var p model.PendingProduct
		var sources string
		if err := rows.Scan(&p.SKU, &sources, &p.PipelineStatus, &p.JobID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending")
		}
		if p.Sources, err = decodeSources(p.SKU, []byte(sources)); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate pending")
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, skus []string, status string) (int64, error) {
	if len(skus) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(skus)+2)
	args = append(args, status, time.Now().UTC())
	for _, sku := range skus {
		args = append(args, sku)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(skus)), ",")

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET pipeline_status = ?, updated_at = ? WHERE sku IN (%s)`, s.table(), placeholders),
		args...,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: update status to %s", status)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) SaveGoldenRecords(ctx context.Context, records []model.GoldenRecord) (int64, error) {
	rows, err := goldenRows(records)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var set []string
	for _, c := range goldenColumns[1:] {
		set = append(set, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, updated_at) VALUES (%s, ?) ON CONFLICT(sku) DO UPDATE SET %s, updated_at = excluded.updated_at`,
		goldenTable,
		strings.Join(goldenColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?,", len(goldenColumns)), ","),
		strings.Join(set, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin golden tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare golden upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var total int64
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx, append(row, now)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert golden %v", row[0])
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit golden tx")
	}
	return total, nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]string, error) {
	return s.listNames(ctx, "categories")
}

func (s *SQLiteStore) ListProductTypes(ctx context.Context) ([]string, error) {
	return s.listNames(ctx, "product_types")
}

func (s *SQLiteStore) listNames(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY id`, quoteIdent(table)))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", table)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		names = append(names, name)
	}
	return names, eris.Wrapf(rows.Err(), "sqlite: iterate %s", table)
}

func (s *SQLiteStore) CreateJob(ctx context.Context, jobID string) (*model.Job, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consolidation_jobs (id, status, error, fetched, clusters, golden, created_at, updated_at)
		 VALUES (?, ?, '', 0, 0, 0, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, error = '', fetched = 0, clusters = 0, golden = 0, updated_at = excluded.updated_at`,
		jobID, string(model.JobStatusProcessing), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create job %s", jobID)
	}
	return &model.Job{ID: jobID, Status: model.JobStatusProcessing, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.Job) error {
	job.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE consolidation_jobs SET status = ?, error = ?, fetched = ?, clusters = ?, golden = ?, updated_at = ? WHERE id = ?`,
		string(job.Status), job.Error, job.Fetched, job.Clusters, job.Golden, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, COALESCE(error, ''), fetched, clusters, golden, created_at, updated_at FROM consolidation_jobs WHERE id = ?`,
		jobID,
	).Scan(&j.ID, &status, &j.Error, &j.Fetched, &j.Clusters, &j.Golden, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
