package formsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HubDub0522/InsiderTape/internal/edgar"
	"github.com/HubDub0522/InsiderTape/internal/fetcher"
	"github.com/HubDub0522/InsiderTape/internal/model"
)

const (
	eftsSearchURL = "https://efts.sec.gov/LATEST/search-index?q=%%22ownershipDocument%%22&forms=4&dateRange=custom&startdt=%s&enddt=%s&from=%d"
	eftsPageSize  = 100
	eftsMaxPages  = 20
)

// eftsResponse is the subset of the full-text-search payload we consume.
type eftsResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []eftsHit `json:"hits"`
	} `json:"hits"`
}

type eftsHit struct {
	// ID is "<accession>:<document>", e.g. "0000123456-26-000042:primary_doc.xml".
	ID     string `json:"_id"`
	Source struct {
		CIKs     []string `json:"ciks"`
		FileDate string   `json:"file_date"`
	} `json:"_source"`
}

// EFTSSource discovers recent Form 4 filings via EDGAR full-text search and
// parses each filing's ownership XML. It covers the gap between published
// quarterly archives and the present.
type EFTSSource struct {
	Fetcher fetcher.Fetcher
	Days    int // lookback window
	Workers int // concurrent per-filing fetches
	Now     func() time.Time
}

func (s *EFTSSource) Name() string { return "efts-live" }

func (s *EFTSSource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Discover pages through the search window and fetches each hit's primary
// document with a small fixed concurrency window. Per-filing failures are
// logged and skipped so one malformed filing never sinks the run.
func (s *EFTSSource) Discover(ctx context.Context, emit func(model.Trade) error) error {
	log := zap.L().With(zap.String("component", "formsync"), zap.String("source", s.Name()))

	days := s.Days
	if days <= 0 {
		days = 2
	}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	hits, err := s.search(ctx, start, end)
	if err != nil {
		return err
	}
	log.Info("discovered filings", zap.Int("count", len(hits)))

	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}

	// emit is not required to be safe for concurrent use.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, hit := range hits {
		g.Go(func() error {
			trades, err := s.fetchFiling(gctx, hit)
			if err != nil {
				log.Warn("skipping filing", zap.String("id", hit.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, t := range trades {
				if err := emit(t); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *EFTSSource) search(ctx context.Context, start, end time.Time) ([]eftsHit, error) {
	var hits []eftsHit
	for page := range eftsMaxPages {
		url := fmt.Sprintf(eftsSearchURL,
			start.Format("2006-01-02"), end.Format("2006-01-02"), page*eftsPageSize)

		body, err := s.Fetcher.DownloadBytes(ctx, url)
		if err != nil {
			return nil, eris.Wrap(err, "efts: search")
		}

		var resp eftsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, eris.Wrap(err, "efts: decode search response")
		}

		hits = append(hits, resp.Hits.Hits...)
		if len(hits) >= resp.Hits.Total.Value || len(resp.Hits.Hits) < eftsPageSize {
			break
		}
	}
	return hits, nil
}

// fetchFiling downloads one filing's ownership XML and normalizes it into
// trades through the same shape the quarterly tables produce.
func (s *EFTSSource) fetchFiling(ctx context.Context, hit eftsHit) ([]model.Trade, error) {
	accession, doc, ok := strings.Cut(hit.ID, ":")
	if !ok || len(hit.Source.CIKs) == 0 {
		return nil, eris.Errorf("efts: malformed hit id %q", hit.ID)
	}
	cik := strings.TrimLeft(hit.Source.CIKs[0], "0")
	url := fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
		cik, strings.ReplaceAll(accession, "-", ""), doc)

	body, err := s.Fetcher.DownloadBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	form, err := edgar.DecodeForm4(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return form4Trades(form, accession, hit.Source.FileDate), nil
}

// form4Trades reshapes a parsed ownership document into the row form the
// shared normalizer consumes, so both discovery paths apply identical
// fallback and coercion policy.
func form4Trades(form *edgar.Form4, accession, fileDate string) []model.Trade {
	subs := map[string]Submission{}
	sub := Submission{
		Ticker:  strings.ToUpper(strings.TrimSpace(form.Issuer.Symbol)),
		Company: strings.TrimSpace(form.Issuer.Name),
	}
	if d, ok := edgar.NormalizeDate(fileDate); ok {
		sub.Filed = d
	}
	if d, ok := edgar.NormalizeDate(form.PeriodOfReport); ok {
		sub.Period = d
	}
	subs[accession] = sub

	owners := map[string]Owner{}
	if len(form.Owners) > 0 {
		o := form.Owners[0]
		title := strings.TrimSpace(o.OfficerTitle)
		if title == "" && strings.TrimSpace(o.IsDirector) == "1" {
			title = "Director"
		}
		owners[accession] = Owner{Name: strings.TrimSpace(o.Name), Title: title}
	}

	var trades []model.Trade
	appendTxns := func(txns []edgar.Form4Transaction, derivative bool) {
		for _, txn := range txns {
			row := edgar.Row{
				"ACCESSION_NUMBER":       accession,
				"TRANS_DATE":             txn.Date,
				"TRANS_CODE":             txn.Code,
				"TRANS_SHARES":           txn.Shares,
				"TRANS_PRICEPERSHARE":    txn.PricePerShare,
				"SHRS_OWND_FOLWNG_TRANS": txn.OwnedFollowing,
				"CONV_EXERCISE_PRICE":    txn.ExercisePrice,
				"UNDLYNG_SEC_SHARES":     txn.UnderlyingShares,
			}
			if trade, ok := NormalizeRow(row, subs, owners, derivative); ok {
				trades = append(trades, *trade)
			}
		}
	}
	appendTxns(form.NonDerivative, false)
	appendTxns(form.Derivative, true)
	return trades
}
