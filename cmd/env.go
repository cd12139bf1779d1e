package main

import (
	"context"
	"time"

	"github.com/HubDub0522/InsiderTape/internal/fetcher"
	"github.com/HubDub0522/InsiderTape/internal/formsync"
	"github.com/HubDub0522/InsiderTape/internal/store"
)

// openStore opens the configured store and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// newFetcher builds the SEC fetcher from config.
func newFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})
}

// newEngine wires the ingestion engine around an open store.
func newEngine(st store.Store) *formsync.Engine {
	return formsync.NewEngine(st, newFetcher(), nil, cfg.Sync)
}
