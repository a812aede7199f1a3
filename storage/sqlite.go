package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"deal_hunter/models"
)

// sqliteMaxVars stays under SQLITE_MAX_VARIABLE_NUMBER on old builds.
const sqliteMaxVars = 500

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_deals (
		url TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		title TEXT,
		price REAL,
		profit REAL,
		margin REAL,
		first_seen_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL,
		notified INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_seen_deals_pending ON seen_deals(notified, margin);

	CREATE TABLE IF NOT EXISTS searches (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		sources JSON,
		results_count INTEGER,
		deals_found INTEGER,
		new_deals INTEGER,
		source_counts JSON,
		degraded INTEGER DEFAULT 0,
		status TEXT,
		started_at DATETIME,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS saved_deals (
		url TEXT PRIMARY KEY,
		source TEXT,
		title TEXT,
		price REAL,
		profit REAL,
		margin REAL,
		image_url TEXT,
		notes TEXT,
		saved_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS hunt_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Seen deals
// =============================================================================

func (s *SQLiteStore) IsSeen(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen_deals WHERE url = ?`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkSeen is a single upsert statement, so each row changes atomically.
func (s *SQLiteStore) MarkSeen(ctx context.Context, deal *models.SeenDeal) error {
	now := time.Now().UTC()
	first := deal.FirstSeenAt
	if first.IsZero() {
		first = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_deals (url, source, title, price, profit, margin, first_seen_at, last_seen_at, notified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			source = excluded.source,
			title = excluded.title,
			price = excluded.price,
			profit = excluded.profit,
			margin = excluded.margin,
			last_seen_at = excluded.last_seen_at,
			notified = MAX(seen_deals.notified, excluded.notified)`,
		deal.URL, deal.Source, deal.Title, deal.Price, deal.Profit, deal.Margin, first, now, deal.Notified)
	return err
}

func (s *SQLiteStore) FilterUnseen(ctx context.Context, urls []string) ([]string, error) {
	urls = dedupe(urls)
	seen := make(map[string]bool)

	for start := 0; start < len(urls); start += sqliteMaxVars {
		end := min(start+sqliteMaxVars, len(urls))
		chunk := urls[start:end]

		args := make([]any, len(chunk))
		for i, u := range chunk {
			args[i] = u
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx, `SELECT url FROM seen_deals WHERE url IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var u string
			if err := rows.Scan(&u); err != nil {
				rows.Close()
				return nil, err
			}
			seen[u] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return unseenOf(urls, seen), nil
}

const seenColumns = `url, source, title, price, profit, margin, first_seen_at, last_seen_at, notified`

func scanSeen(row interface{ Scan(...any) error }) (*models.SeenDeal, error) {
	var d models.SeenDeal
	var title sql.NullString
	if err := row.Scan(&d.URL, &d.Source, &title, &d.Price, &d.Profit, &d.Margin, &d.FirstSeenAt, &d.LastSeenAt, &d.Notified); err != nil {
		return nil, err
	}
	d.Title = title.String
	return &d, nil
}

func (s *SQLiteStore) GetSeen(ctx context.Context, url string) (*models.SeenDeal, error) {
	d, err := scanSeen(s.db.QueryRowContext(ctx, `SELECT `+seenColumns+` FROM seen_deals WHERE url = ?`, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *SQLiteStore) PendingAlerts(ctx context.Context, minProfit, minMargin float64, limit int) ([]models.SeenDeal, error) {
	return s.querySeen(ctx, `
		SELECT `+seenColumns+` FROM seen_deals
		WHERE notified = 0 AND profit >= ? AND margin >= ?
		ORDER BY margin DESC, profit DESC, url
		LIMIT ?`, minProfit, minMargin, sqlLimit(limit))
}

func (s *SQLiteStore) RecentDeals(ctx context.Context, limit int) ([]models.SeenDeal, error) {
	return s.querySeen(ctx, `
		SELECT `+seenColumns+` FROM seen_deals
		ORDER BY last_seen_at DESC, url
		LIMIT ?`, sqlLimit(limit))
}

func (s *SQLiteStore) querySeen(ctx context.Context, query string, args ...any) ([]models.SeenDeal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.SeenDeal
	for rows.Next() {
		d, err := scanSeen(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	return deals, rows.Err()
}

// =============================================================================
// Searches
// =============================================================================

func (s *SQLiteStore) LogSearch(ctx context.Context, run *models.SearchRun) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return err
	}
	counts, err := json.Marshal(run.SourceCounts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO searches (id, query, sources, results_count, deals_found, new_deals, source_counts, degraded, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			results_count = excluded.results_count,
			deals_found = excluded.deals_found,
			new_deals = excluded.new_deals,
			source_counts = excluded.source_counts,
			degraded = excluded.degraded,
			status = excluded.status,
			finished_at = excluded.finished_at`,
		run.ID.String(), run.Query, string(sources), run.ResultsCount, run.DealsFound, run.NewDeals,
		string(counts), run.Degraded, run.Status, run.StartedAt, run.FinishedAt)
	return err
}

func (s *SQLiteStore) RecentSearches(ctx context.Context, limit int) ([]models.SearchRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, sources, results_count, deals_found, new_deals, source_counts, degraded, status, started_at, finished_at
		FROM searches ORDER BY started_at DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SearchRun
	for rows.Next() {
		var (
			run             models.SearchRun
			id              string
			sources, counts sql.NullString
		)
		if err := rows.Scan(&id, &run.Query, &sources, &run.ResultsCount, &run.DealsFound, &run.NewDeals,
			&counts, &run.Degraded, &run.Status, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.ID, _ = uuid.Parse(id)
		if sources.Valid {
			_ = json.Unmarshal([]byte(sources.String), &run.Sources)
		}
		if counts.Valid {
			_ = json.Unmarshal([]byte(counts.String), &run.SourceCounts)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// Saved deals
// =============================================================================

func (s *SQLiteStore) SaveDeal(ctx context.Context, deal *models.SavedDeal) error {
	if deal.SavedAt.IsZero() {
		deal.SavedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_deals (url, source, title, price, profit, margin, image_url, notes, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			price = excluded.price,
			profit = excluded.profit,
			margin = excluded.margin,
			image_url = excluded.image_url,
			notes = excluded.notes`,
		deal.URL, deal.Source, deal.Title, deal.Price, deal.Profit, deal.Margin, deal.ImageURL, deal.Notes, deal.SavedAt)
	return err
}

func (s *SQLiteStore) SavedDeals(ctx context.Context) ([]models.SavedDeal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, source, title, price, profit, margin, image_url, notes, saved_at
		FROM saved_deals ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.SavedDeal
	for rows.Next() {
		var d models.SavedDeal
		var title, image, notes sql.NullString
		if err := rows.Scan(&d.URL, &d.Source, &title, &d.Price, &d.Profit, &d.Margin, &image, &notes, &d.SavedAt); err != nil {
			return nil, err
		}
		d.Title, d.ImageURL, d.Notes = title.String, image.String, notes.String
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func (s *SQLiteStore) RemoveSavedDeal(ctx context.Context, url string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_deals WHERE url = ?`, url)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// =============================================================================
// Stats, logs, commands
// =============================================================================

func (s *SQLiteStore) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM seen_deals),
			(SELECT COUNT(*) FROM seen_deals WHERE notified = 1),
			(SELECT COUNT(*) FROM searches),
			(SELECT COUNT(*) FROM saved_deals)`).
		Scan(&stats.TotalDealsSeen, &stats.TotalNotified, &stats.TotalSearches, &stats.TotalSaved)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *SQLiteStore) Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, source string) error {
	var id *string
	if runID != nil {
		str := runID.String()
		id = &str
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hunt_logs (run_id, timestamp, level, message, source)
		VALUES (?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), level, message, source)
	return err
}

func (s *SQLiteStore) RecentLogs(ctx context.Context, limit int) ([]models.HuntLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, timestamp, level, message, source
		FROM hunt_logs ORDER BY id DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.HuntLog
	for rows.Next() {
		var l models.HuntLog
		var runID, source sql.NullString
		if err := rows.Scan(&l.ID, &runID, &l.Timestamp, &l.Level, &l.Message, &source); err != nil {
			return nil, err
		}
		if runID.Valid {
			if id, err := uuid.Parse(runID.String); err == nil {
				l.RunID = &id
			}
		}
		l.Source = source.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) EnqueueCommand(ctx context.Context, cmd models.CommandType, params *models.CommandParams) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, string(raw), time.Now().UTC())
	return err
}

func (s *SQLiteStore) PendingCommands(ctx context.Context) ([]models.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// ParseCommandParams decodes a command's params, tolerating empty ones.
func ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	var params models.CommandParams
	if len(cmd.Params) == 0 || string(cmd.Params) == "null" {
		return &params, nil
	}
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
