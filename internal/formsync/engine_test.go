package formsync

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HubDub0522/InsiderTape/internal/config"
	"github.com/HubDub0522/InsiderTape/internal/model"
	"github.com/HubDub0522/InsiderTape/internal/store"
)

// testArchive builds a quarterly ZIP whose local headers carry true sizes,
// as the published archives do. Entries are stored uncompressed.
func testArchive(t *testing.T, tables map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range tables {
		raw := []byte(content)
		fh := &zip.FileHeader{
			Name:               name,
			Method:             zip.Store,
			CRC32:              crc32.ChecksumIEEE(raw),
			CompressedSize64:   uint64(len(raw)),
			UncompressedSize64: uint64(len(raw)),
		}
		fw, err := w.CreateRaw(fh)
		require.NoError(t, err)
		_, err = fw.Write(raw)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// fakeFetcher serves canned responses by URL. Safe for concurrent use; the
// live source fetches filings from several goroutines.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	calls     []string
}

func (f *fakeFetcher) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	body, ok := f.responses[url]
	if !ok {
		return nil, eris.Errorf("fetch %s: status 404", url)
	}
	return body, nil
}

func (f *fakeFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	body, err := f.DownloadBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func fullQuarterTables() map[string]string {
	return map[string]string{
		"SUBMISSION.tsv": "ACCESSION_NUMBER\tISSUERTRADINGSYMBOL\tISSUERNAME\tFILING_DATE\tPERIOD_OF_REPORT\n" +
			"0001-26-000001\tACME\tAcme Corp\t10-APR-2026\t31-MAR-2026\n" +
			"0001-26-000002\tBETA\tBeta Inc\t11-APR-2026\t31-MAR-2026\n",
		"REPORTINGOWNER.tsv": "ACCESSION_NUMBER\tRPTOWNERNAME\tRPTOWNER_TITLE\tRPTOWNER_RELATIONSHIP\n" +
			"0001-26-000001\tDOE JANE\tCEO\tOfficer\n" +
			"0001-26-000002\tSMITH ALEX\t\tDirector\n",
		"NONDERIV_TRANS.tsv": "ACCESSION_NUMBER\tTRANS_DATE\tTRANS_CODE\tTRANS_SHARES\tTRANS_PRICEPERSHARE\tSHRS_OWND_FOLWNG_TRANS\n" +
			"0001-26-000001\t15-MAR-2026\tS\t1500\t212.50\t42000\n" +
			"0001-26-000002\t\tP\t200\t18.00\t5000\n",
		"DERIV_TRANS.tsv": "ACCESSION_NUMBER\tTRANS_DATE\tTRANS_CODE\tTRANS_SHARES\tTRANS_PRICEPERSHARE\tCONV_EXERCISE_PRICE\tUNDLYNG_SEC_SHARES\n" +
			"0001-26-000001\t15-MAR-2026\tM\t\t\t95.00\t2500\n",
	}
}

func newTestEngine(t *testing.T, f *fakeFetcher, now time.Time) (*Engine, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	e := NewEngine(st, f, nil, config.SyncConfig{QuartersBack: 1, BatchSize: 2})
	e.now = func() time.Time { return now }
	return e, st
}

func TestEngine_SyncQuarter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	q2 := QuarterKey{Year: 2026, Quarter: 2}

	f := &fakeFetcher{responses: map[string][]byte{
		q2.ArchiveURL(): testArchive(t, fullQuarterTables()),
	}}
	e, st := newTestEngine(t, f, now)

	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 1}))

	trades, err := st.FindTrades(ctx, model.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, trades, 3)

	// Join correctness: ticker/company come from the submission table.
	byAcc := map[string][]model.Trade{}
	for _, tr := range trades {
		byAcc[tr.Accession] = append(byAcc[tr.Accession], tr)
	}
	for _, tr := range byAcc["0001-26-000001"] {
		assert.Equal(t, "ACME", tr.Ticker)
		assert.Equal(t, "Acme Corp", tr.Company)
		assert.Equal(t, "DOE JANE", tr.Insider)
	}
	// Dateless row fell back to the filing period.
	require.Len(t, byAcc["0001-26-000002"], 1)
	assert.Equal(t, "2026-03-31", byAcc["0001-26-000002"][0].TradeDate)

	entry, err := st.GetSync(ctx, "2026Q2")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(3), entry.RowCount)

	results := e.Tracker().Snapshot().Quarters
	require.Len(t, results, 1)
	assert.Equal(t, "done", results[0].Outcome)
	assert.Equal(t, int64(3), results[0].Inserted)
}

func TestEngine_Idempotence(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	q2 := QuarterKey{Year: 2026, Quarter: 2}

	f := &fakeFetcher{responses: map[string][]byte{
		q2.ArchiveURL(): testArchive(t, fullQuarterTables()),
	}}
	e, st := newTestEngine(t, f, now)

	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 1}))
	fetches := len(f.calls)

	// Second run short-circuits: no network work, no new rows.
	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 1}))
	assert.Equal(t, fetches, len(f.calls))

	trades, err := st.FindTrades(ctx, model.TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 3)

	results := e.Tracker().Snapshot().Quarters
	require.Len(t, results, 1)
	assert.Equal(t, "skipped", results[0].Outcome)
}

func TestEngine_ForceResync(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	q2 := QuarterKey{Year: 2026, Quarter: 2}

	f := &fakeFetcher{responses: map[string][]byte{
		q2.ArchiveURL(): testArchive(t, fullQuarterTables()),
	}}
	e, st := newTestEngine(t, f, now)

	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 1}))
	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 1, Force: true}))

	// Re-ingestion happened, but duplicate suppression held the row count.
	trades, err := st.FindTrades(ctx, model.TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 3)

	results := e.Tracker().Snapshot().Quarters
	require.Len(t, results, 1)
	assert.Equal(t, "done", results[0].Outcome)
	assert.Equal(t, int64(3), results[0].Rows)
	assert.Equal(t, int64(0), results[0].Inserted)
}

func TestEngine_MissingDerivativeTable(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	q2 := QuarterKey{Year: 2026, Quarter: 2}

	tables := fullQuarterTables()
	delete(tables, "DERIV_TRANS.tsv")
	f := &fakeFetcher{responses: map[string][]byte{
		q2.ArchiveURL(): testArchive(t, tables),
	}}
	e, st := newTestEngine(t, f, now)

	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 1}))

	// The quarter still completes; only derivative-sourced trades are missing.
	entry, err := st.GetSync(ctx, "2026Q2")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(2), entry.RowCount)
}

func TestEngine_MalformedTableContributesZeroRows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	q2 := QuarterKey{Year: 2026, Quarter: 2}

	// Valid archive plus a corrupt DERIV_TRANS local header whose claimed
	// size runs past the end of the buffer.
	tables := fullQuarterTables()
	delete(tables, "DERIV_TRANS.tsv")
	archive := testArchive(t, tables)

	corrupt := make([]byte, 30)
	copy(corrupt, "PK\x03\x04")
	binary.LittleEndian.PutUint32(corrupt[18:], 9999) // compressed size
	binary.LittleEndian.PutUint16(corrupt[26:], uint16(len("DERIV_TRANS.tsv")))
	archive = append(archive, corrupt...)
	archive = append(archive, []byte("DERIV_TRANS.tsv")...)

	f := &fakeFetcher{responses: map[string][]byte{
		q2.ArchiveURL(): archive,
	}}
	e, st := newTestEngine(t, f, now)

	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 1}))

	// The quarter completes on the non-derivative trades alone.
	entry, err := st.GetSync(ctx, "2026Q2")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(2), entry.RowCount)

	results := e.Tracker().Snapshot().Quarters
	require.Len(t, results, 1)
	assert.Equal(t, "done", results[0].Outcome)
}

func TestEngine_QuarterIsolation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	q2 := QuarterKey{Year: 2026, Quarter: 2}

	// Q2's archive exists; Q1's fetch fails.
	f := &fakeFetcher{responses: map[string][]byte{
		q2.ArchiveURL(): testArchive(t, fullQuarterTables()),
	}}
	e, st := newTestEngine(t, f, now)

	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 2}))

	entry, err := st.GetSync(ctx, "2026Q2")
	require.NoError(t, err)
	assert.NotNil(t, entry)

	entry, err = st.GetSync(ctx, "2026Q1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	results := e.Tracker().Snapshot().Quarters
	require.Len(t, results, 2)
	assert.Equal(t, "done", results[0].Outcome)
	assert.Equal(t, "failed", results[1].Outcome)
	assert.NotEmpty(t, results[1].Error)
}

func TestEngine_InvalidateLatest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	q1 := QuarterKey{Year: 2026, Quarter: 1}
	q2 := QuarterKey{Year: 2026, Quarter: 2}

	f := &fakeFetcher{responses: map[string][]byte{
		q1.ArchiveURL(): testArchive(t, fullQuarterTables()),
		q2.ArchiveURL(): testArchive(t, fullQuarterTables()),
	}}
	e, st := newTestEngine(t, f, now)

	require.NoError(t, e.Run(ctx, RunOpts{QuartersBack: 2}))
	require.NoError(t, e.InvalidateLatest(ctx))

	// Only the newest quarter's entry is gone.
	entry, err := st.GetSync(ctx, "2026Q2")
	require.NoError(t, err)
	assert.Nil(t, entry)

	entry, err = st.GetSync(ctx, "2026Q1")
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestEngine_RejectsOverlappingRuns(t *testing.T) {
	now := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, &fakeFetcher{}, now)

	_, ok := e.tracker.Begin()
	require.True(t, ok)
	defer e.tracker.End()

	err := e.Run(context.Background(), RunOpts{QuartersBack: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
}
