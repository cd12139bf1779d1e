package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/HubDub0522/InsiderTape/internal/model"
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
CREATE TABLE IF NOT EXISTS trades (
	ticker      TEXT NOT NULL,
	company     TEXT NOT NULL,
	insider     TEXT NOT NULL,
	title       TEXT NOT NULL,
	trade_date  TEXT NOT NULL,
	filing_date TEXT NOT NULL,
	type        TEXT NOT NULL,
	qty         INTEGER NOT NULL,
	price       REAL NOT NULL,
	value       INTEGER NOT NULL,
	owned       INTEGER NOT NULL,
	accession   TEXT NOT NULL,
	UNIQUE (accession, insider, trade_date, type, qty)
);

CREATE TABLE IF NOT EXISTS sync_log (
	quarter   TEXT PRIMARY KEY,
	synced_at DATETIME NOT NULL,
	row_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);
CREATE INDEX IF NOT EXISTS idx_trades_trade_date ON trades(trade_date);
CREATE INDEX IF NOT EXISTS idx_trades_insider ON trades(insider);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertTrade = `
INSERT OR IGNORE INTO trades
	(ticker, company, insider, title, trade_date, filing_date, type, qty, price, value, owned, accession)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) InsertTrades(ctx context.Context, trades []model.Trade) (int64, error) {
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

// insertBatch commits one bounded batch as a single transaction.
func (s *SQLiteStore) insertBatch(ctx context.Context, batch []model.Trade) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin batch")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertTrade)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	for _, t := range batch {
		res, err := stmt.ExecContext(ctx,
			t.Ticker, t.Company, t.Insider, t.Title, t.TradeDate, t.FilingDate,
			t.Type, t.Qty, t.Price, t.Value, t.Owned, t.Accession,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert trade %s", t.Accession)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit batch")
	}
	return inserted, nil
}

func (s *SQLiteStore) FindTrades(ctx context.Context, filter model.TradeFilter) ([]model.Trade, error) {
	query := `SELECT ticker, company, insider, title, trade_date, filing_date, type, qty, price, value, owned, accession
	          FROM trades WHERE 1=1`
	var args []any

	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	if filter.Insider != "" {
		query += ` AND insider LIKE ?`
		args = append(args, "%"+filter.Insider+"%")
	}
	query += ` ORDER BY filing_date DESC, trade_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find trades")
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.Ticker, &t.Company, &t.Insider, &t.Title, &t.TradeDate,
			&t.FilingDate, &t.Type, &t.Qty, &t.Price, &t.Value, &t.Owned, &t.Accession); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trade")
		}
		trades = append(trades, t)
	}
	return trades, eris.Wrap(rows.Err(), "sqlite: find trades iterate")
}

func (s *SQLiteStore) GetSync(ctx context.Context, quarter string) (*model.SyncEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT quarter, synced_at, row_count FROM sync_log WHERE quarter = ?`,
		quarter,
	)

	var e model.SyncEntry
	err := row.Scan(&e.Quarter, &e.SyncedAt, &e.RowCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sync %s", quarter)
	}
	return &e, nil
}

func (s *SQLiteStore) PutSync(ctx context.Context, entry model.SyncEntry) error {
	syncedAt := entry.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (quarter, synced_at, row_count) VALUES (?, ?, ?)
		 ON CONFLICT (quarter) DO UPDATE SET synced_at = excluded.synced_at, row_count = excluded.row_count`,
		entry.Quarter, syncedAt, entry.RowCount,
	)
	return eris.Wrapf(err, "sqlite: put sync %s", entry.Quarter)
}

func (s *SQLiteStore) DeleteSync(ctx context.Context, quarter string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_log WHERE quarter = ?`, quarter)
	return eris.Wrapf(err, "sqlite: delete sync %s", quarter)
}

func (s *SQLiteStore) ListSync(ctx context.Context) ([]model.SyncEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT quarter, synced_at, row_count FROM sync_log ORDER BY quarter DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync")
	}
	defer rows.Close()

	var entries []model.SyncEntry
	for rows.Next() {
		var e model.SyncEntry
		if err := rows.Scan(&e.Quarter, &e.SyncedAt, &e.RowCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
