package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"presale_scraper/models"
)

// PostgresStore mirrors runs and records into a shared Postgres database so
// several scraper hosts can report into one place.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS presale_runs (
			run_key TEXT PRIMARY KEY,
			site_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			queries_run INTEGER DEFAULT 0,
			queries_failed INTEGER DEFAULT 0,
			records_found INTEGER DEFAULT 0,
			records_new INTEGER DEFAULT 0,
			pages_scraped INTEGER DEFAULT 0,
			errors_count INTEGER DEFAULT 0,
			error_message TEXT DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS presale_records (
			fingerprint TEXT PRIMARY KEY,
			site_id TEXT NOT NULL,
			city TEXT,
			district TEXT,
			data JSONB NOT NULL,
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL,
			times_seen INTEGER DEFAULT 1,
			last_run_key TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_presale_records_site ON presale_records(site_id, last_seen_at);`)
	return err
}

// SaveRun inserts or refreshes a run keyed by its RunKey.
func (s *PostgresStore) SaveRun(ctx context.Context, run *models.ScrapeRun) error {
	query := `
		INSERT INTO presale_runs (
			run_key, site_id, started_at, finished_at, status, queries_run, queries_failed,
			records_found, records_new, pages_scraped, errors_count, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_key) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			queries_run = EXCLUDED.queries_run,
			queries_failed = EXCLUDED.queries_failed,
			records_found = EXCLUDED.records_found,
			records_new = EXCLUDED.records_new,
			pages_scraped = EXCLUDED.pages_scraped,
			errors_count = EXCLUDED.errors_count,
			error_message = EXCLUDED.error_message`

	_, err := s.pool.Exec(ctx, query,
		run.RunKey, run.SiteID, run.StartedAt, run.FinishedAt, string(run.Status),
		run.QueriesRun, run.QueriesFailed, run.RecordsFound, run.RecordsNew,
		run.PagesScraped, run.ErrorsCount, run.ErrorMessage,
	)
	return err
}

// MirrorRecord is one fingerprinted record queued for UpsertRecords.
type MirrorRecord struct {
	Fingerprint string
	City        string
	District    string
	Record      models.Record
}

// UpsertRecords writes a batch of records for one run and returns how many
// fingerprints were inserted for the first time.
func (s *PostgresStore) UpsertRecords(ctx context.Context, siteID, runKey string, seenAt time.Time, records []MirrorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO presale_records (
			fingerprint, site_id, city, district, data, first_seen_at, last_seen_at, times_seen, last_run_key
		) VALUES ($1, $2, $3, $4, $5, $6, $6, 1, $7)
		ON CONFLICT (fingerprint) DO UPDATE SET
			data = EXCLUDED.data,
			last_seen_at = EXCLUDED.last_seen_at,
			times_seen = presale_records.times_seen + 1,
			last_run_key = EXCLUDED.last_run_key
		RETURNING (xmax = 0)`

	batch := &pgx.Batch{}
	for _, r := range records {
		data, err := json.Marshal(r.Record)
		if err != nil {
			return 0, fmt.Errorf("encode record %s: %w", r.Fingerprint, err)
		}
		batch.Queue(query, r.Fingerprint, siteID, r.City, r.District, data, seenAt, runKey)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range records {
		var isNew bool
		if err := results.QueryRow().Scan(&isNew); err != nil {
			return inserted, err
		}
		if isNew {
			inserted++
		}
	}
	return inserted, nil
}

func (s *PostgresStore) RecordCount(ctx context.Context, siteID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM presale_records WHERE site_id = $1`, siteID).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return count, err
}
