// Package store persists normalized trades and the per-quarter sync log.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/HubDub0522/InsiderTape/internal/config"
	"github.com/HubDub0522/InsiderTape/internal/model"
)

// insertBatchSize bounds how many trades commit in one transaction,
// capping both lock duration and pending-write memory.
const insertBatchSize = 500

// Store defines the persistence interface for trades and sync state.
type Store interface {
	// InsertTrades persists a batch with insert-or-ignore semantics on the
	// trade uniqueness key and returns the number of genuinely new rows.
	// Batches larger than the internal bound are committed in chunks.
	InsertTrades(ctx context.Context, trades []model.Trade) (int64, error)

	// FindTrades returns trades matching the filter, ordered by
	// filing_date descending then trade_date descending.
	FindTrades(ctx context.Context, filter model.TradeFilter) ([]model.Trade, error)

	// Sync log
	GetSync(ctx context.Context, quarter string) (*model.SyncEntry, error)
	PutSync(ctx context.Context, entry model.SyncEntry) error
	DeleteSync(ctx context.Context, quarter string) error
	ListSync(ctx context.Context) ([]model.SyncEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: sqlite, postgres)", cfg.Driver)
	}
}
