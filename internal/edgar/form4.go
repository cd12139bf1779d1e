package edgar

import (
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// Form4 is the subset of an ownership filing's primary_doc.xml consumed by
// the live discovery path. Non-derivative and derivative transactions carry
// the same economics as the quarterly TSV tables.
type Form4 struct {
	XMLName        xml.Name           `xml:"ownershipDocument"`
	PeriodOfReport string             `xml:"periodOfReport"`
	Issuer         Form4Issuer        `xml:"issuer"`
	Owners         []Form4Owner       `xml:"reportingOwner"`
	NonDerivative  []Form4Transaction `xml:"nonDerivativeTable>nonDerivativeTransaction"`
	Derivative     []Form4Transaction `xml:"derivativeTable>derivativeTransaction"`
}

// Form4Issuer identifies the issuer of the traded security.
type Form4Issuer struct {
	CIK    string `xml:"issuerCik"`
	Name   string `xml:"issuerName"`
	Symbol string `xml:"issuerTradingSymbol"`
}

// Form4Owner identifies one reporting owner on the filing.
type Form4Owner struct {
	Name         string `xml:"reportingOwnerId>rptOwnerName"`
	OfficerTitle string `xml:"reportingOwnerRelationship>officerTitle"`
	IsDirector   string `xml:"reportingOwnerRelationship>isDirector"`
	IsOfficer    string `xml:"reportingOwnerRelationship>isOfficer"`
}

// Form4Transaction is one transaction line from either table.
type Form4Transaction struct {
	Date             string `xml:"transactionDate>value"`
	Code             string `xml:"transactionCoding>transactionCode"`
	Shares           string `xml:"transactionAmounts>transactionShares>value"`
	PricePerShare    string `xml:"transactionAmounts>transactionPricePerShare>value"`
	OwnedFollowing   string `xml:"postTransactionAmounts>sharesOwnedFollowingTransaction>value"`
	ExercisePrice    string `xml:"conversionOrExercisePrice>value"`
	UnderlyingShares string `xml:"underlyingSecurity>underlyingSecurityShares>value"`
}

// DecodeForm4 parses an ownership document. EDGAR XML occasionally declares
// non-UTF-8 charsets, so the decoder resolves them via htmlindex.
func DecodeForm4(r io.Reader) (*Form4, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "form4: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var doc Form4
	if err := decoder.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "form4: decode XML")
	}
	return &doc, nil
}
