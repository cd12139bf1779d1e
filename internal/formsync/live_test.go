package formsync

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HubDub0522/InsiderTape/internal/edgar"
	"github.com/HubDub0522/InsiderTape/internal/model"
)

const liveTestForm4 = `<?xml version="1.0"?>
<ownershipDocument>
  <periodOfReport>2026-08-25</periodOfReport>
  <issuer>
    <issuerCik>0000320193</issuerCik>
    <issuerName>Acme Corp</issuerName>
    <issuerTradingSymbol>ACME</issuerTradingSymbol>
  </issuer>
  <reportingOwner>
    <reportingOwnerId>
      <rptOwnerName>DOE JANE</rptOwnerName>
    </reportingOwnerId>
    <reportingOwnerRelationship>
      <isOfficer>1</isOfficer>
      <officerTitle>CFO</officerTitle>
    </reportingOwnerRelationship>
  </reportingOwner>
  <nonDerivativeTable>
    <nonDerivativeTransaction>
      <transactionDate><value>2026-08-24</value></transactionDate>
      <transactionCoding><transactionCode>S</transactionCode></transactionCoding>
      <transactionAmounts>
        <transactionShares><value>1500</value></transactionShares>
        <transactionPricePerShare><value>212.50</value></transactionPricePerShare>
      </transactionAmounts>
      <postTransactionAmounts>
        <sharesOwnedFollowingTransaction><value>42000</value></sharesOwnedFollowingTransaction>
      </postTransactionAmounts>
    </nonDerivativeTransaction>
  </nonDerivativeTable>
</ownershipDocument>`

func TestForm4Trades_SharedNormalization(t *testing.T) {
	form, err := edgar.DecodeForm4(strings.NewReader(liveTestForm4))
	require.NoError(t, err)

	trades := form4Trades(form, "0001-26-000001", "2026-08-26")
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "ACME", tr.Ticker)
	assert.Equal(t, "Acme Corp", tr.Company)
	assert.Equal(t, "DOE JANE", tr.Insider)
	assert.Equal(t, "CFO", tr.Title)
	assert.Equal(t, "2026-08-24", tr.TradeDate)
	assert.Equal(t, "2026-08-26", tr.FilingDate)
	assert.Equal(t, "S", tr.Type)
	assert.Equal(t, int64(1500), tr.Qty)
	assert.Equal(t, 212.50, tr.Price)
	assert.Equal(t, int64(42000), tr.Owned)
}

func TestEFTSSource_Discover(t *testing.T) {
	now := time.Date(2026, time.August, 27, 12, 0, 0, 0, time.UTC)
	end := now.UTC()
	start := end.AddDate(0, 0, -2)
	searchURL := fmt.Sprintf(eftsSearchURL,
		start.Format("2006-01-02"), end.Format("2006-01-02"), 0)

	searchBody := `{"hits":{"total":{"value":1},"hits":[
		{"_id":"0001-26-000001:primary_doc.xml",
		 "_source":{"ciks":["0000320193"],"file_date":"2026-08-26"}}]}}`

	f := &fakeFetcher{responses: map[string][]byte{
		searchURL: []byte(searchBody),
		"https://www.sec.gov/Archives/edgar/data/320193/000126000001/primary_doc.xml": []byte(liveTestForm4),
	}}

	src := &EFTSSource{Fetcher: f, Days: 2, Workers: 2, Now: func() time.Time { return now }}

	var emitted []model.Trade
	err := src.Discover(context.Background(), func(tr model.Trade) error {
		emitted = append(emitted, tr)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, emitted, 1)
	assert.Equal(t, "ACME", emitted[0].Ticker)
	assert.Equal(t, "0001-26-000001", emitted[0].Accession)
}

func TestEFTSSource_SkipsBrokenFilings(t *testing.T) {
	now := time.Date(2026, time.August, 27, 12, 0, 0, 0, time.UTC)
	end := now.UTC()
	start := end.AddDate(0, 0, -2)
	searchURL := fmt.Sprintf(eftsSearchURL,
		start.Format("2006-01-02"), end.Format("2006-01-02"), 0)

	// Two hits; only the second filing's document is fetchable.
	searchBody := `{"hits":{"total":{"value":2},"hits":[
		{"_id":"0001-26-000009:primary_doc.xml","_source":{"ciks":["0000000009"],"file_date":"2026-08-26"}},
		{"_id":"0001-26-000001:primary_doc.xml","_source":{"ciks":["0000320193"],"file_date":"2026-08-26"}}]}}`

	f := &fakeFetcher{responses: map[string][]byte{
		searchURL: []byte(searchBody),
		"https://www.sec.gov/Archives/edgar/data/320193/000126000001/primary_doc.xml": []byte(liveTestForm4),
	}}

	src := &EFTSSource{Fetcher: f, Days: 2, Workers: 1, Now: func() time.Time { return now }}

	var emitted []model.Trade
	err := src.Discover(context.Background(), func(tr model.Trade) error {
		emitted = append(emitted, tr)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, emitted, 1)
}
