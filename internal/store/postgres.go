package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/HubDub0522/InsiderTape/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store over a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the given database URL and verifies connectivity.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS trades (
	ticker      TEXT NOT NULL,
	company     TEXT NOT NULL,
	insider     TEXT NOT NULL,
	title       TEXT NOT NULL,
	trade_date  TEXT NOT NULL,
	filing_date TEXT NOT NULL,
	type        TEXT NOT NULL,
	qty         BIGINT NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	value       BIGINT NOT NULL,
	owned       BIGINT NOT NULL,
	accession   TEXT NOT NULL,
	UNIQUE (accession, insider, trade_date, type, qty)
);

CREATE TABLE IF NOT EXISTS sync_log (
	quarter   TEXT PRIMARY KEY,
	synced_at TIMESTAMPTZ NOT NULL,
	row_count BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);
CREATE INDEX IF NOT EXISTS idx_trades_trade_date ON trades(trade_date);
CREATE INDEX IF NOT EXISTS idx_trades_insider ON trades(insider);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresInsertTrade = `
INSERT INTO trades
	(ticker, company, insider, title, trade_date, filing_date, type, qty, price, value, owned, accession)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (accession, insider, trade_date, type, qty) DO NOTHING`

func (s *PostgresStore) InsertTrades(ctx context.Context, trades []model.Trade) (int64, error) {
	var inserted int64
	for start := 0; start < len(trades); start += insertBatchSize {
		end := min(start+insertBatchSize, len(trades))
		n, err := s.insertBatch(ctx, trades[start:end])
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (s *PostgresStore) insertBatch(ctx context.Context, batch []model.Trade) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin batch")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var inserted int64
	for _, t := range batch {
		tag, err := tx.Exec(ctx, postgresInsertTrade,
			t.Ticker, t.Company, t.Insider, t.Title, t.TradeDate, t.FilingDate,
			t.Type, t.Qty, t.Price, t.Value, t.Owned, t.Accession,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert trade %s", t.Accession)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit batch")
	}
	return inserted, nil
}

func (s *PostgresStore) FindTrades(ctx context.Context, filter model.TradeFilter) ([]model.Trade, error) {
	query := `SELECT ticker, company, insider, title, trade_date, filing_date, type, qty, price, value, owned, accession
	          FROM trades WHERE TRUE`
	var args []any

	if filter.Ticker != "" {
		args = append(args, filter.Ticker)
		query += fmt.Sprintf(" AND ticker = $%d", len(args))
	}
	if filter.Insider != "" {
		args = append(args, "%"+filter.Insider+"%")
		query += fmt.Sprintf(" AND insider ILIKE $%d", len(args))
	}
	query += ` ORDER BY filing_date DESC, trade_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find trades")
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.Ticker, &t.Company, &t.Insider, &t.Title, &t.TradeDate,
			&t.FilingDate, &t.Type, &t.Qty, &t.Price, &t.Value, &t.Owned, &t.Accession); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trade")
		}
		trades = append(trades, t)
	}
	return trades, eris.Wrap(rows.Err(), "postgres: find trades iterate")
}

func (s *PostgresStore) GetSync(ctx context.Context, quarter string) (*model.SyncEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT quarter, synced_at, row_count FROM sync_log WHERE quarter = $1`,
		quarter,
	)

	var e model.SyncEntry
	err := row.Scan(&e.Quarter, &e.SyncedAt, &e.RowCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sync %s", quarter)
	}
	return &e, nil
}

func (s *PostgresStore) PutSync(ctx context.Context, entry model.SyncEntry) error {
	syncedAt := entry.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_log (quarter, synced_at, row_count) VALUES ($1, $2, $3)
		 ON CONFLICT (quarter) DO UPDATE SET synced_at = EXCLUDED.synced_at, row_count = EXCLUDED.row_count`,
		entry.Quarter, syncedAt, entry.RowCount,
	)
	return eris.Wrapf(err, "postgres: put sync %s", entry.Quarter)
}

func (s *PostgresStore) DeleteSync(ctx context.Context, quarter string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_log WHERE quarter = $1`, quarter)
	return eris.Wrapf(err, "postgres: delete sync %s", quarter)
}

func (s *PostgresStore) ListSync(ctx context.Context) ([]model.SyncEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT quarter, synced_at, row_count FROM sync_log ORDER BY quarter DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync")
	}
	defer rows.Close()

	var entries []model.SyncEntry
	for rows.Next() {
		var e model.SyncEntry
		if err := rows.Scan(&e.Quarter, &e.SyncedAt, &e.RowCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
