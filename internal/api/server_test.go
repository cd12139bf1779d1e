package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HubDub0522/InsiderTape/internal/config"
	"github.com/HubDub0522/InsiderTape/internal/formsync"
	"github.com/HubDub0522/InsiderTape/internal/model"
	"github.com/HubDub0522/InsiderTape/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubFetcher struct{}

func (stubFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	return nil, eris.New("offline")
}

func (stubFetcher) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	return nil, eris.New("offline")
}

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	engine := formsync.NewEngine(st, stubFetcher{}, nil, config.SyncConfig{QuartersBack: 1, BatchSize: 10})
	return NewServer(st, engine), st
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Trades(t *testing.T) {
	srv, st := newTestServer(t)

	_, err := st.InsertTrades(context.Background(), []model.Trade{
		{Ticker: "ACME", Company: "Acme Corp", Insider: "DOE JANE", TradeDate: "2026-03-15",
			FilingDate: "2026-04-10", Type: "S", Qty: 1500, Price: 212.50, Value: 318750,
			Accession: "0001-26-000001"},
		{Ticker: "BETA", Company: "Beta Inc", Insider: "SMITH ALEX", TradeDate: "2026-03-16",
			FilingDate: "2026-04-11", Type: "P", Qty: 200, Price: 18, Value: 3600,
			Accession: "0001-26-000002"},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/trades?ticker=ACME", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count  int           `json:"count"`
		Trades []model.Trade `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "ACME", resp.Trades[0].Ticker)
}

func TestServer_Trades_EmptyStoreReturnsArray(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/trades", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"trades":[]}`, rec.Body.String())
}

func TestServer_Trades_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/trades?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SyncAccepted(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/sync", strings.NewReader(`{"quarters_back":1}`))
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_Status(t *testing.T) {
	srv, st := newTestServer(t)

	require.NoError(t, st.PutSync(context.Background(), model.SyncEntry{Quarter: "2026Q1", RowCount: 310}))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Run     formsync.Status   `json:"run"`
		SyncLog []model.SyncEntry `json:"sync_log"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Run.Running)
	require.Len(t, resp.SyncLog, 1)
	assert.Equal(t, "2026Q1", resp.SyncLog[0].Quarter)
}
