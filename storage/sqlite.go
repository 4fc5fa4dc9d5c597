package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"presale_scraper/models"
)

// sqliteTime is the layout timestamps are stored in; julianday() reads it.
const sqliteTime = "2006-01-02 15:04:05"

var timestampFormats = []string{
	sqliteTime,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func scanTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTimestamp(ns.String)
	return &t
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		run_key TEXT,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		queries_run INTEGER DEFAULT 0,
		queries_failed INTEGER DEFAULT 0,
		records_found INTEGER DEFAULT 0,
		records_new INTEGER DEFAULT 0,
		pages_scraped INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		error_message TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS presale_records (
		fingerprint TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		city TEXT,
		district TEXT,
		data JSON,
		first_seen_at DATETIME,
		last_seen_at DATETIME,
		times_seen INTEGER DEFAULT 1,
		first_run_id INTEGER,
		last_run_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS export_files (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		path TEXT,
		format TEXT,
		rows INTEGER,
		s3_key TEXT DEFAULT '',
		created_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_records INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_records_site ON presale_records(site_id, last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_exports_run ON export_files(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (run_key, site_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.RunKey, run.SiteID, formatTime(run.StartedAt), run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, queries_run = ?, queries_failed = ?,
			records_found = ?, records_new = ?, pages_scraped = ?, errors_count = ?, error_message = ?
		WHERE id = ?`,
		nullTime(run.FinishedAt), run.Status, run.QueriesRun, run.QueriesFailed,
		run.RecordsFound, run.RecordsNew, run.PagesScraped, run.ErrorsCount, run.ErrorMessage, run.ID)
	return err
}

const runColumns = `id, run_key, site_id, started_at, finished_at, status, queries_run, queries_failed,
	records_found, records_new, pages_scraped, errors_count, error_message`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.ScrapeRun, error) {
	var (
		run               models.ScrapeRun
		runKey, errMsg    sql.NullString
		started, finished sql.NullString
	)
	if err := row.Scan(&run.ID, &runKey, &run.SiteID, &started, &finished, &run.Status,
		&run.QueriesRun, &run.QueriesFailed, &run.RecordsFound, &run.RecordsNew,
		&run.PagesScraped, &run.ErrorsCount, &errMsg); err != nil {
		return nil, err
	}
	run.RunKey = runKey.String
	run.ErrorMessage = errMsg.String
	run.StartedAt = parseTimestamp(started.String)
	run.FinishedAt = scanTime(finished)
	return &run, nil
}

func (s *SQLiteStore) GetRun(id int64) (*models.ScrapeRun, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM scrape_runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// RecentRuns lists runs newest first. An empty siteID lists every site.
func (s *SQLiteStore) RecentRuns(siteID string, limit int) ([]models.ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT `+runColumns+` FROM scrape_runs
		WHERE (? = '' OR site_id = ?)
		ORDER BY started_at DESC, id DESC LIMIT ?`, siteID, siteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, formatTime(time.Now()), level, message, siteID)
	return err
}

const logColumns = `id, run_id, timestamp, level, message, site_id`

func (s *SQLiteStore) RunLogs(runID int64) ([]models.ScrapeLog, error) {
	return s.queryLogs(`SELECT `+logColumns+` FROM scrape_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
}

// RecentLogs returns the newest log lines first. An empty level matches all.
func (s *SQLiteStore) RecentLogs(limit int, level models.LogLevel) ([]models.ScrapeLog, error) {
	if level == "" {
		return s.queryLogs(`SELECT `+logColumns+` FROM scrape_logs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	}
	return s.queryLogs(`SELECT `+logColumns+` FROM scrape_logs WHERE level = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`, level, limit)
}

func (s *SQLiteStore) queryLogs(query string, args ...interface{}) ([]models.ScrapeLog, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var (
			l  models.ScrapeLog
			ts sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.RunID, &ts, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		l.Timestamp = parseTimestamp(ts.String)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// UpsertRecord tracks first/last sighting of a record and reports whether
// the fingerprint had not been seen before.
func (s *SQLiteStore) UpsertRecord(ctx context.Context, siteID, fingerprint, city, district string, rec models.Record, runID int64, seenAt time.Time) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode record: %w", err)
	}
	ts := formatTime(seenAt)

	var timesSeen int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO presale_records (fingerprint, site_id, city, district, data,
			first_seen_at, last_seen_at, times_seen, first_run_id, last_run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			times_seen = presale_records.times_seen + 1,
			last_run_id = excluded.last_run_id,
			data = excluded.data
		RETURNING times_seen`,
		fingerprint, siteID, city, district, string(data), ts, ts, runID, runID).Scan(&timesSeen)
	if err != nil {
		return false, err
	}
	return timesSeen == 1, nil
}

func (s *SQLiteStore) RecordCount(siteID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM presale_records WHERE site_id = ?`, siteID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) TotalRecords() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM presale_records`).Scan(&count)
	return count, err
}

// ListRecords pages through stored records, most recently seen first.
func (s *SQLiteStore) ListRecords(limit, offset int) ([]models.StoredRecord, error) {
	rows, err := s.db.Query(`
		SELECT fingerprint, site_id, city, district, data, first_seen_at, last_seen_at, times_seen
		FROM presale_records
		ORDER BY last_seen_at DESC, fingerprint
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.StoredRecord
	for rows.Next() {
		var (
			r                   models.StoredRecord
			city, district      sql.NullString
			data                sql.NullString
			firstSeen, lastSeen sql.NullString
		)
		if err := rows.Scan(&r.Fingerprint, &r.SiteID, &city, &district, &data, &firstSeen, &lastSeen, &r.TimesSeen); err != nil {
			return nil, err
		}
		r.City, r.District = city.String, district.String
		r.FirstSeenAt = parseTimestamp(firstSeen.String)
		r.LastSeenAt = parseTimestamp(lastSeen.String)
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &r.Record); err != nil {
				return nil, fmt.Errorf("decode record %s: %w", r.Fingerprint, err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) AddExport(f *models.ExportFile) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	result, err := s.db.Exec(`
		INSERT INTO export_files (run_id, path, format, rows, s3_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Path, f.Format, f.Rows, f.S3Key, formatTime(f.CreatedAt))
	if err != nil {
		return err
	}
	f.ID, err = result.LastInsertId()
	return err
}

func (s *SQLiteStore) RunExports(runID int64) ([]models.ExportFile, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, path, format, rows, s3_key, created_at
		FROM export_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.ExportFile
	for rows.Next() {
		var (
			f       models.ExportFile
			created sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.RunID, &f.Path, &f.Format, &f.Rows, &f.S3Key, &created); err != nil {
			return nil, err
		}
		f.CreatedAt = parseTimestamp(created.String)
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_records,
			success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC, id DESC LIMIT 1),
			(SELECT status FROM scrape_runs WHERE site_id = ? ORDER BY started_at DESC, id DESC LIMIT 1),
			(SELECT COUNT(*) FROM presale_records WHERE site_id = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM scrape_runs WHERE site_id = ?),
			(SELECT CAST(ROUND(AVG((julianday(finished_at) - julianday(started_at)) * 86400)) AS INTEGER)
				FROM scrape_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_records = excluded.total_records,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

const siteStatsColumns = `site_id, last_run_at, last_run_status, total_records, success_rate, avg_run_duration_sec`

func scanSiteStats(row rowScanner) (*models.SiteStats, error) {
	var (
		st      models.SiteStats
		lastRun sql.NullString
		status  sql.NullString
		rate    sql.NullFloat64
		avg     sql.NullInt64
		total   sql.NullInt64
	)
	if err := row.Scan(&st.SiteID, &lastRun, &status, &total, &rate, &avg); err != nil {
		return nil, err
	}
	st.LastRunAt = scanTime(lastRun)
	st.LastRunStatus = status.String
	st.TotalRecords = int(total.Int64)
	st.SuccessRate = rate.Float64
	st.AvgRunDurationSec = int(avg.Int64)
	return &st, nil
}

func (s *SQLiteStore) GetSiteStats(siteID string) (*models.SiteStats, error) {
	st, err := scanSiteStats(s.db.QueryRow(`SELECT `+siteStatsColumns+` FROM site_stats WHERE site_id = ?`, siteID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// AllSiteStats lists stats for every site that has run, by site id.
func (s *SQLiteStore) AllSiteStats() ([]models.SiteStats, error) {
	rows, err := s.db.Query(`SELECT ` + siteStatsColumns + ` FROM site_stats ORDER BY site_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.SiteStats
	for rows.Next() {
		st, err := scanSiteStats(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *st)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) GetLastRunTime(siteID string) (time.Time, error) {
	var started sql.NullString
	err := s.db.QueryRow(`
		SELECT started_at FROM scrape_runs
		WHERE site_id = ? AND status IN ('completed', 'partial')
		ORDER BY started_at DESC, id DESC LIMIT 1`, siteID).Scan(&started)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return parseTimestamp(started.String), nil
}

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var raw interface{}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return 0, err
		}
		raw = string(data)
	}
	result, err := s.db.Exec(`
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, raw, formatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var (
			cmd                models.Command
			params             sql.NullString
			created, processed sql.NullString
		)
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &created, &processed); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmd.CreatedAt = parseTimestamp(created.String)
		cmd.ProcessedAt = scanTime(processed)
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
