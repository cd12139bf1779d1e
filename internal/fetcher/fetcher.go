// Package fetcher downloads data from SEC endpoints with per-host rate
// limiting, retries, and the User-Agent identification EDGAR requires.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadBytes fetches the URL and returns the full response body.
	// Intended for quarterly archives that are scanned in memory.
	DownloadBytes(ctx context.Context, url string) ([]byte, error)
}
