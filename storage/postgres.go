package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deal_hunter/models"
)

// PostgresStore shares one seen-deal table between several hunters.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS seen_deals (
			url TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			margin DOUBLE PRECISION NOT NULL DEFAULT 0,
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL,
			notified BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE INDEX IF NOT EXISTS idx_seen_deals_pending ON seen_deals(notified, margin DESC);

		CREATE TABLE IF NOT EXISTS searches (
			id UUID PRIMARY KEY,
			query TEXT NOT NULL,
			sources TEXT[] NOT NULL DEFAULT '{}',
			results_count INT NOT NULL DEFAULT 0,
			deals_found INT NOT NULL DEFAULT 0,
			new_deals INT NOT NULL DEFAULT 0,
			source_counts JSONB,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS saved_deals (
			url TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			margin DOUBLE PRECISION NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			saved_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS hunt_logs (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS commands (
			id BIGSERIAL PRIMARY KEY,
			command TEXT NOT NULL,
			params JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ
		);
	`)
	return err
}

// =============================================================================
// Seen deals
// =============================================================================

func (s *PostgresStore) IsSeen(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM seen_deals WHERE url = $1)`, url).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) MarkSeen(ctx context.Context, deal *models.SeenDeal) error {
	now := time.Now().UTC()
	first := deal.FirstSeenAt
	if first.IsZero() {
		first = now
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO seen_deals (url, source, title, price, profit, margin, first_seen_at, last_seen_at, notified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (url) DO UPDATE SET
			source = EXCLUDED.source,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			profit = EXCLUDED.profit,
			margin = EXCLUDED.margin,
			last_seen_at = GREATEST(seen_deals.last_seen_at, EXCLUDED.last_seen_at),
			notified = seen_deals.notified OR EXCLUDED.notified`,
		deal.URL, string(deal.Source), deal.Title, deal.Price, deal.Profit, deal.Margin, first, now, deal.Notified)
	return err
}

func (s *PostgresStore) FilterUnseen(ctx context.Context, urls []string) ([]string, error) {
	urls = dedupe(urls)
	if len(urls) == 0 {
		return urls, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT url FROM seen_deals WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		seen[u] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return unseenOf(urls, seen), nil
}

const pgSeenColumns = `url, source, title, price, profit, margin, first_seen_at, last_seen_at, notified`

func scanPgSeen(row pgx.Row) (*models.SeenDeal, error) {
	var d models.SeenDeal
	var source string
	if err := row.Scan(&d.URL, &source, &d.Title, &d.Price, &d.Profit, &d.Margin, &d.FirstSeenAt, &d.LastSeenAt, &d.Notified); err != nil {
		return nil, err
	}
	d.Source = models.Source(source)
	return &d, nil
}

func (s *PostgresStore) GetSeen(ctx context.Context, url string) (*models.SeenDeal, error) {
	d, err := scanPgSeen(s.pool.QueryRow(ctx, `SELECT `+pgSeenColumns+` FROM seen_deals WHERE url = $1`, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (s *PostgresStore) PendingAlerts(ctx context.Context, minProfit, minMargin float64, limit int) ([]models.SeenDeal, error) {
	return s.querySeen(ctx, `
		SELECT `+pgSeenColumns+` FROM seen_deals
		WHERE NOT notified AND profit >= $1 AND margin >= $2
		ORDER BY margin DESC, profit DESC, url
		LIMIT $3`, minProfit, minMargin, pgLimit(limit))
}

func (s *PostgresStore) RecentDeals(ctx context.Context, limit int) ([]models.SeenDeal, error) {
	return s.querySeen(ctx, `
		SELECT `+pgSeenColumns+` FROM seen_deals
		ORDER BY last_seen_at DESC, url
		LIMIT $1`, pgLimit(limit))
}

func (s *PostgresStore) querySeen(ctx context.Context, query string, args ...any) ([]models.SeenDeal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.SeenDeal
	for rows.Next() {
		d, err := scanPgSeen(rows)
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

func (s *PostgresStore) LogSearch(ctx context.Context, run *models.SearchRun) error {
	sources := make([]string, len(run.Sources))
	for i, src := range run.Sources {
		sources[i] = string(src)
	}
	counts, err := json.Marshal(run.SourceCounts)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO searches (id, query, sources, results_count, deals_found, new_deals, source_counts, degraded, status, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			results_count = EXCLUDED.results_count,
			deals_found = EXCLUDED.deals_found,
			new_deals = EXCLUDED.new_deals,
			source_counts = EXCLUDED.source_counts,
			degraded = EXCLUDED.degraded,
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at`,
		run.ID, run.Query, sources, run.ResultsCount, run.DealsFound, run.NewDeals,
		counts, run.Degraded, string(run.Status), run.StartedAt, run.FinishedAt)
	return err
}

func (s *PostgresStore) RecentSearches(ctx context.Context, limit int) ([]models.SearchRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, query, sources, results_count, deals_found, new_deals, source_counts, degraded, status, started_at, finished_at
		FROM searches ORDER BY started_at DESC LIMIT $1`, pgLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SearchRun
	for rows.Next() {
		var (
			run     models.SearchRun
			sources []string
			counts  []byte
			status  string
		)
		if err := rows.Scan(&run.ID, &run.Query, &sources, &run.ResultsCount, &run.DealsFound, &run.NewDeals,
			&counts, &run.Degraded, &status, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Status = models.RunStatus(status)
		for _, src := range sources {
			run.Sources = append(run.Sources, models.Source(src))
		}
		if len(counts) > 0 {
			_ = json.Unmarshal(counts, &run.SourceCounts)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// Saved deals
// =============================================================================

func (s *PostgresStore) SaveDeal(ctx context.Context, deal *models.SavedDeal) error {
	if deal.SavedAt.IsZero() {
		deal.SavedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO saved_deals (url, source, title, price, profit, margin, image_url, notes, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			profit = EXCLUDED.profit,
			margin = EXCLUDED.margin,
			image_url = EXCLUDED.image_url,
			notes = EXCLUDED.notes`,
		deal.URL, string(deal.Source), deal.Title, deal.Price, deal.Profit, deal.Margin, deal.ImageURL, deal.Notes, deal.SavedAt)
	return err
}

func (s *PostgresStore) SavedDeals(ctx context.Context) ([]models.SavedDeal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT url, source, title, price, profit, margin, image_url, notes, saved_at
		FROM saved_deals ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.SavedDeal
	for rows.Next() {
		var d models.SavedDeal
		var source string
		if err := rows.Scan(&d.URL, &source, &d.Title, &d.Price, &d.Profit, &d.Margin, &d.ImageURL, &d.Notes, &d.SavedAt); err != nil {
			return nil, err
		}
		d.Source = models.Source(source)
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func (s *PostgresStore) RemoveSavedDeal(ctx context.Context, url string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM saved_deals WHERE url = $1`, url)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// =============================================================================
// Stats, logs, commands
// =============================================================================

func (s *PostgresStore) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM seen_deals),
			(SELECT COUNT(*) FROM seen_deals WHERE notified),
			(SELECT COUNT(*) FROM searches),
			(SELECT COUNT(*) FROM saved_deals)`).
		Scan(&stats.TotalDealsSeen, &stats.TotalNotified, &stats.TotalSearches, &stats.TotalSaved)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *PostgresStore) Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, source string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hunt_logs (run_id, level, message, source)
		VALUES ($1, $2, $3, $4)`,
		runID, string(level), message, source)
	return err
}

func (s *PostgresStore) EnqueueCommand(ctx context.Context, cmd models.CommandType, params *models.CommandParams) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO commands (command, params) VALUES ($1, $2)`, string(cmd), raw)
	return err
}

func (s *PostgresStore) PendingCommands(ctx context.Context) ([]models.Command, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var command string
		var params []byte
		if err := rows.Scan(&cmd.ID, &command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		cmd.Command = models.CommandType(command)
		cmd.Params = params
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *PostgresStore) MarkCommandProcessed(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE commands SET processed_at = NOW() WHERE id = $1`, id)
	return err
}

// pgLimit maps "no limit" to NULL, which Postgres treats as LIMIT ALL.
func pgLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
