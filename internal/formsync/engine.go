package formsync

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/HubDub0522/InsiderTape/internal/config"
	"github.com/HubDub0522/InsiderTape/internal/fetcher"
	"github.com/HubDub0522/InsiderTape/internal/model"
	"github.com/HubDub0522/InsiderTape/internal/store"
)

// Engine orchestrates ingestion runs: quarterly archive backfill followed
// by optional live discovery. Quarters are processed strictly sequentially
// so peak memory stays bounded by one quarter's largest table.
type Engine struct {
	store   store.Store
	fetcher fetcher.Fetcher
	tracker *Tracker
	cfg     config.SyncConfig
	now     func() time.Time
}

// RunOpts configures one ingestion run.
type RunOpts struct {
	QuartersBack int  // how many quarters back from now to target
	Force        bool // re-ingest quarters already marked done
	Live         bool // also run live full-text-search discovery
}

// NewEngine creates an ingestion engine. tracker may be nil when no status
// surface is attached.
func NewEngine(st store.Store, f fetcher.Fetcher, tracker *Tracker, cfg config.SyncConfig) *Engine {
	if tracker == nil {
		tracker = &Tracker{}
	}
	return &Engine{
		store:   st,
		fetcher: f,
		tracker: tracker,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Tracker returns the engine's status tracker.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Run processes the targeted quarters with per-quarter isolation: one
// quarter's failure is logged and leaves it eligible for retry, without
// touching any other quarter's committed state.
func (e *Engine) Run(ctx context.Context, opts RunOpts) error {
	log := zap.L().With(zap.String("component", "formsync.engine"))

	runID, ok := e.tracker.Begin()
	if !ok {
		return eris.New("engine: a sync run is already in progress")
	}
	defer e.tracker.End()

	quartersBack := opts.QuartersBack
	if quartersBack <= 0 {
		quartersBack = e.cfg.QuartersBack
	}
	quarters := QuartersBack(e.now(), quartersBack)

	log.Info("starting sync run",
		zap.String("run_id", runID),
		zap.Int("quarters", len(quarters)),
		zap.Bool("force", opts.Force),
	)
	e.tracker.Logf("run %s: targeting %d quarters (force=%v)", runID, len(quarters), opts.Force)

	var failed int
	for _, q := range quarters {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result := e.syncQuarter(ctx, q, opts.Force)
		e.tracker.Record(result)
		if result.Outcome == "failed" {
			failed++
		}
	}

	if opts.Live {
		if err := e.runLive(ctx); err != nil {
			log.Error("live discovery failed", zap.Error(err))
			e.tracker.Logf("live discovery failed: %v", err)
			failed++
		}
	}

	log.Info("sync run complete", zap.String("run_id", runID), zap.Int("failed", failed))
	e.tracker.Logf("run %s complete (%d failures)", runID, failed)
	return nil
}

// syncQuarter ingests one quarter end to end. The sync-log entry is written
// only after every table has been normalized and persisted without error.
func (e *Engine) syncQuarter(ctx context.Context, q QuarterKey, force bool) QuarterResult {
	log := zap.L().With(zap.String("component", "formsync.engine"), zap.String("quarter", q.String()))
	result := QuarterResult{Quarter: q.String()}
	start := time.Now()

	if force {
		if err := e.store.DeleteSync(ctx, q.String()); err != nil {
			result.Outcome = "failed"
			result.Error = err.Error()
			return result
		}
	} else {
		entry, err := e.store.GetSync(ctx, q.String())
		if err != nil {
			result.Outcome = "failed"
			result.Error = err.Error()
			return result
		}
		if entry != nil {
			log.Debug("quarter already synced")
			result.Outcome = "skipped"
			return result
		}
	}

	log.Info("syncing quarter")
	e.tracker.Logf("quarter %s: starting", q)

	writer := newBatchWriter(e.store, e.cfg.BatchSize)
	src := &QuarterlyArchiveSource{Quarter: q, Fetcher: e.fetcher}

	if err := src.Discover(ctx, writer.emit(ctx)); err != nil {
		log.Error("quarter sync failed", zap.Error(err))
		e.tracker.Logf("quarter %s: failed: %v", q, err)
		result.Outcome = "failed"
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}
	if err := writer.flush(ctx); err != nil {
		log.Error("quarter sync failed", zap.Error(err))
		e.tracker.Logf("quarter %s: failed: %v", q, err)
		result.Outcome = "failed"
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}

	if err := e.store.PutSync(ctx, model.SyncEntry{
		Quarter:  q.String(),
		SyncedAt: time.Now().UTC(),
		RowCount: writer.emitted,
	}); err != nil {
		result.Outcome = "failed"
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}

	result.Outcome = "done"
	result.Rows = writer.emitted
	result.Inserted = writer.inserted
	result.Elapsed = time.Since(start)

	log.Info("quarter synced",
		zap.Int64("rows", writer.emitted),
		zap.Int64("inserted", writer.inserted),
		zap.Duration("elapsed", result.Elapsed),
	)
	e.tracker.Logf("quarter %s: done (%d rows, %d new)", q, writer.emitted, writer.inserted)
	return result
}

// runLive covers filings newer than the latest published archive.
func (e *Engine) runLive(ctx context.Context) error {
	writer := newBatchWriter(e.store, e.cfg.BatchSize)
	src := &EFTSSource{
		Fetcher: e.fetcher,
		Days:    e.cfg.LiveDays,
		Workers: e.cfg.LiveWorkers,
		Now:     e.now,
	}
	if err := src.Discover(ctx, writer.emit(ctx)); err != nil {
		return err
	}
	if err := writer.flush(ctx); err != nil {
		return err
	}
	e.tracker.Logf("live: %d rows, %d new", writer.emitted, writer.inserted)
	return nil
}

// Invalidate deletes one quarter's sync-log entry so the next run
// re-ingests it.
func (e *Engine) Invalidate(ctx context.Context, q QuarterKey) error {
	return e.store.DeleteSync(ctx, q.String())
}

// InvalidateLatest deletes the sync-log entry for the most recently
// completed quarter. The scheduler uses this to pick up late-filed and
// amended filings for the active quarter without re-downloading history.
func (e *Engine) InvalidateLatest(ctx context.Context) error {
	entries, err := e.store.ListSync(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	// ListSync orders by quarter key descending; "YYYYQn" sorts
	// chronologically.
	return e.store.DeleteSync(ctx, entries[0].Quarter)
}

// batchWriter accumulates trades and commits them in bounded batches.
type batchWriter struct {
	store    store.Store
	size     int
	buf      []model.Trade
	emitted  int64
	inserted int64
}

func newBatchWriter(st store.Store, size int) *batchWriter {
	if size <= 0 {
		size = 500
	}
	return &batchWriter{store: st, size: size, buf: make([]model.Trade, 0, size)}
}

// emit adapts the writer to a Source's emit callback under the run context.
func (w *batchWriter) emit(ctx context.Context) func(model.Trade) error {
	return func(t model.Trade) error {
		return w.add(ctx, t)
	}
}

func (w *batchWriter) add(ctx context.Context, t model.Trade) error {
	w.buf = append(w.buf, t)
	w.emitted++
	if len(w.buf) >= w.size {
		return w.flush(ctx)
	}
	return nil
}

func (w *batchWriter) flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.store.InsertTrades(ctx, w.buf)
	w.inserted += n
	if err != nil {
		return err
	}
	w.buf = w.buf[:0]
	return nil
}
