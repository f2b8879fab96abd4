package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/db"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	opts    Options
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts Options) (*PostgresStore, error) {
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, opts: opts.withDefaults(), closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller owns the pool.
func NewPostgresWithPool(pool db.Pool, opts Options) *PostgresStore {
	return &PostgresStore{pool: pool, opts: opts.withDefaults()}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS %[1]s (
	sku             TEXT PRIMARY KEY,
	sources         JSONB NOT NULL DEFAULT '{}'::jsonb,
	pipeline_status TEXT NOT NULL DEFAULT 'scraped',
	job_id          TEXT,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s(pipeline_status);

CREATE TABLE IF NOT EXISTS golden_records (
	sku                    TEXT PRIMARY KEY,
	cluster_id             TEXT,
	name                   TEXT NOT NULL,
	description            TEXT,
	price                  DOUBLE PRECISION NOT NULL DEFAULT 0,
	brand                  TEXT,
	category               TEXT,
	product_type           TEXT,
	weight                 TEXT,
	images                 JSONB NOT NULL DEFAULT '[]'::jsonb,
	excel_price            DOUBLE PRECISION,
	extra                  JSONB,
	consolidation_metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	source_record_ids      JSONB,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
	id   SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS product_types (
	id   SERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS consolidation_jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'processing',
	error      TEXT,
	fetched    INTEGER NOT NULL DEFAULT 0,
	clusters   INTEGER NOT NULL DEFAULT 0,
	golden     INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_consolidation_jobs_status ON consolidation_jobs(status);
`

func (s *PostgresStore) table() string {
	return sanitizeTable(s.opts.IngestionTable)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	idx := pgx.Identifier{"idx_" + s.opts.IngestionTable + "_status"}.Sanitize()
	_, err := s.pool.Exec(ctx, fmt.Sprintf(postgresMigration, s.table(), idx))
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FetchPending(ctx context.Context, limit int) ([]model.PendingProduct, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT sku, sources, pipeline_status, COALESCE(job_id, '') FROM %s WHERE pipeline_status = $1 ORDER BY sku LIMIT $2`, s.table()),
		s.opts.PendingStatus, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch pending")
	}
	defer rows.Close()

	var out []model.PendingProduct
	for rows.Next() {
		var p model.PendingProduct
		var sources []byte
		if err := rows.Scan(&p.SKU, &sources, &p.PipelineStatus, &p.JobID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending")
		}
		if p.Sources, err = decodeSources(p.SKU, sources); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate pending")
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, skus []string, status string) (int64, error) {
	if len(skus) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET pipeline_status = $1, updated_at = $2 WHERE sku = ANY($3)`, s.table()),
		status, time.Now().UTC(), skus,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update status to %s", status)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) SaveGoldenRecords(ctx context.Context, records []model.GoldenRecord) (int64, error) {
	rows, err := goldenRows(records)
	if err != nil {
		return 0, err
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        goldenTable,
		Columns:      goldenColumns,
		ConflictKeys: []string{"sku"},
	}, rows)
	return n, eris.Wrap(err, "postgres: save golden records")
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]string, error) {
	return s.listNames(ctx, "categories")
}

func (s *PostgresStore) ListProductTypes(ctx context.Context) ([]string, error) {
	return s.listNames(ctx, "product_types")
}

func (s *PostgresStore) listNames(ctx context.Context, table string) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY id`, pgx.Identifier{table}.Sanitize()))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s", table)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		names = append(names, name)
	}
	return names, eris.Wrapf(rows.Err(), "postgres: iterate %s", table)
}

func (s *PostgresStore) CreateJob(ctx context.Context, jobID string) (*model.Job, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO consolidation_jobs (id, status, error, fetched, clusters, golden, created_at, updated_at)
		 VALUES ($1, $2, '', 0, 0, 0, $3, $3)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, error = '', fetched = 0, clusters = 0, golden = 0, updated_at = EXCLUDED.updated_at`,
		jobID, string(model.JobStatusProcessing), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create job %s", jobID)
	}
	return &model.Job{ID: jobID, Status: model.JobStatusProcessing, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.Job) error {
	job.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE consolidation_jobs SET status = $1, error = $2, fetched = $3, clusters = $4, golden = $5, updated_at = $6 WHERE id = $7`,
		string(job.Status), job.Error, job.Fetched, job.Clusters, job.Golden, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, COALESCE(error, ''), fetched, clusters, golden, created_at, updated_at FROM consolidation_jobs WHERE id = $1`,
		jobID,
	).Scan(&j.ID, &status, &j.Error, &j.Fetched, &j.Clusters, &j.Golden, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

func sanitizeTable(table string) string {
	for i := 0; i < len(table); i++ {
		if table[i] == '.' {
			return pgx.Identifier{table[:i], table[i+1:]}.Sanitize()
		}
	}
	return pgx.Identifier{table}.Sanitize()
}
