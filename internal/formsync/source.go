package formsync

import (
	"context"

	"go.uber.org/zap"

	"github.com/HubDub0522/InsiderTape/internal/edgar"
	"github.com/HubDub0522/InsiderTape/internal/fetcher"
	"github.com/HubDub0522/InsiderTape/internal/model"
)

// Source discovers filings and emits normalized trades. The quarterly
// archive and the live full-text-search path both implement it, so the
// normalizer and writer downstream are shared.
type Source interface {
	// Name identifies the source in logs and status output.
	Name() string

	// Discover finds filings, normalizes them, and calls emit for each
	// trade. emit returning an error aborts discovery.
	Discover(ctx context.Context, emit func(model.Trade) error) error
}

// QuarterlyArchiveSource ingests one quarter's published data set archive.
type QuarterlyArchiveSource struct {
	Quarter QuarterKey
	Fetcher fetcher.Fetcher
}

func (s *QuarterlyArchiveSource) Name() string { return "archive:" + s.Quarter.String() }

// Discover downloads the quarter's ZIP and walks its tables in a fixed
// order: submission and owner tables feed the join maps, then each
// transaction table streams through the normalizer. Table buffers are
// released between stages so peak memory is bounded by one table's
// decompressed size, not the whole quarter's.
func (s *QuarterlyArchiveSource) Discover(ctx context.Context, emit func(model.Trade) error) error {
	log := zap.L().With(zap.String("component", "formsync"), zap.String("quarter", s.Quarter.String()))

	buf, err := s.Fetcher.DownloadBytes(ctx, s.Quarter.ArchiveURL())
	if err != nil {
		return err
	}
	log.Info("downloaded quarterly archive", zap.Int("bytes", len(buf)))

	// A malformed or absent table contributes zero rows; only fetch and
	// write errors fail the quarter.
	lines, found := scanTable(log, buf, "SUBMISSION")
	if !found {
		log.Warn("submission table unavailable, quarter yields no trades")
		return nil
	}
	subs := BuildSubmissionIndex(lines)
	lines = nil

	lines, found = scanTable(log, buf, "REPORTINGOWNER")
	owners := map[string]Owner{}
	if found {
		owners = BuildOwnerIndex(lines)
	} else {
		log.Warn("reporting-owner table unavailable, trades will carry empty insider names")
	}
	lines = nil

	for _, table := range []struct {
		prefix     string
		derivative bool
	}{
		{"NONDERIV_TRANS", false},
		{"DERIV_TRANS", true},
	} {
		lines, found = scanTable(log, buf, table.prefix)
		if !found {
			continue
		}
		for row := range edgar.Rows(lines) {
			trade, ok := NormalizeRow(row, subs, owners, table.derivative)
			if !ok {
				continue
			}
			if err := emit(*trade); err != nil {
				return err
			}
		}
		lines = nil
	}

	return nil
}

// scanTable extracts one table, downgrading scan failures to zero rows so a
// malformed entry never sinks the quarter's other tables.
func scanTable(log *zap.Logger, buf []byte, prefix string) ([]string, bool) {
	lines, found, err := edgar.ExtractTable(buf, prefix)
	if err != nil {
		log.Warn("table malformed, treating as zero rows",
			zap.String("table", prefix), zap.Error(err))
		return nil, false
	}
	if !found {
		log.Warn("table absent", zap.String("table", prefix))
		return nil, false
	}
	return lines, true
}
