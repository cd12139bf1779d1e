package formsync

import (
	"math"
	"strings"

	"github.com/HubDub0522/InsiderTape/internal/edgar"
	"github.com/HubDub0522/InsiderTape/internal/model"
)

// unknownType marks a transaction row whose code field was blank. A missing
// code never blocks ingestion of otherwise-usable economic data.
const unknownType = "-"

// NormalizeRow joins one transaction row against the quarter's lookup maps
// and emits a canonical trade. Returns ok=false for rows that cannot be
// resolved: unknown accession, empty ticker, or no usable trade date. Such
// rows are dropped, never fatal.
func NormalizeRow(row edgar.Row, subs map[string]Submission, owners map[string]Owner, derivative bool) (*model.Trade, bool) {
	acc := row["ACCESSION_NUMBER"]
	sub, ok := subs[acc]
	if !ok || sub.Ticker == "" {
		return nil, false
	}

	// A meaningful fraction of historical filings omit an explicit
	// transaction date; fall back to the filing's period, then its
	// filed date.
	transDate, _ := edgar.NormalizeDate(row["TRANS_DATE"])
	tradeDate, ok := firstNonEmpty(transDate, sub.Period, sub.Filed)
	if !ok {
		return nil, false
	}

	qty := absRound(parseFloatOr(row["TRANS_SHARES"], 0))
	if derivative && qty == 0 {
		qty = absRound(parseFloatOr(row["UNDLYNG_SEC_SHARES"], 0))
	}

	price := math.Abs(parseFloatOr(row["TRANS_PRICEPERSHARE"], 0))
	if derivative && price == 0 {
		price = math.Abs(parseFloatOr(row["CONV_EXERCISE_PRICE"], 0))
	}

	var owned int64
	if !derivative {
		// The derivative table does not track a running share count.
		owned = absRound(parseFloatOr(row["SHRS_OWND_FOLWNG_TRANS"], 0))
	}

	tradeType := strings.TrimSpace(row["TRANS_CODE"])
	if tradeType == "" {
		tradeType = unknownType
	}

	owner := owners[acc]

	return &model.Trade{
		Ticker:     sub.Ticker,
		Company:    sub.Company,
		Insider:    owner.Name,
		Title:      owner.Title,
		TradeDate:  tradeDate,
		FilingDate: sub.Filed,
		Type:       tradeType,
		Qty:        qty,
		Price:      price,
		Value:      int64(math.Round(float64(qty) * price)),
		Owned:      owned,
		Accession:  acc,
	}, true
}
