// Package model defines the persisted and API-facing data types.
package model

import "time"

// Trade is one normalized insider transaction. The store enforces
// uniqueness over (accession, insider, trade_date, type, qty).
type Trade struct {
	Ticker     string  `json:"ticker"`
	Company    string  `json:"company"`
	Insider    string  `json:"insider"`
	Title      string  `json:"title"`
	TradeDate  string  `json:"trade_date"`
	FilingDate string  `json:"filing_date"`
	Type       string  `json:"type"`
	Qty        int64   `json:"qty"`
	Price      float64 `json:"price"`
	Value      int64   `json:"value"`
	Owned      int64   `json:"owned"`
	Accession  string  `json:"accession"`
}

// TradeFilter selects trades for FindTrades. Zero value matches everything.
type TradeFilter struct {
	Ticker  string `json:"ticker,omitempty"`  // exact match, uppercased
	Insider string `json:"insider,omitempty"` // case-insensitive substring
	Limit   int    `json:"limit,omitempty"`
}

// SyncEntry records one fully-ingested quarter. Its presence in the sync
// log is the sole source of truth for "this quarter is done".
type SyncEntry struct {
	Quarter  string    `json:"quarter"` // e.g. "2026Q1"
	SyncedAt time.Time `json:"synced_at"`
	RowCount int64     `json:"row_count"`
}
