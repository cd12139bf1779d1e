package formsync

import (
	"strings"

	"github.com/HubDub0522/InsiderTape/internal/edgar"
)

// Submission is the per-filing context joined onto each transaction row.
type Submission struct {
	Ticker  string
	Company string
	Filed   string // ISO date, may be empty
	Period  string // ISO date, may be empty
}

// Owner is the reporting-owner context joined onto each transaction row.
type Owner struct {
	Name  string
	Title string
}

// BuildSubmissionIndex maps accession number to filing context. Duplicate
// accessions keep the last row seen, matching amended-filing order in the
// source tables.
func BuildSubmissionIndex(lines []string) map[string]Submission {
	index := make(map[string]Submission)
	for row := range edgar.Rows(lines) {
		acc := row["ACCESSION_NUMBER"]
		if acc == "" {
			continue
		}
		sub := Submission{
			Ticker:  strings.ToUpper(row["ISSUERTRADINGSYMBOL"]),
			Company: row["ISSUERNAME"],
		}
		if d, ok := edgar.NormalizeDate(row["FILING_DATE"]); ok {
			sub.Filed = d
		}
		if d, ok := edgar.NormalizeDate(row["PERIOD_OF_REPORT"]); ok {
			sub.Period = d
		}
		index[acc] = sub
	}
	return index
}

// BuildOwnerIndex maps accession number to the reporting owner. Multi-owner
// filings keep the first owner seen; the remainder describe the same trade
// economics and would only duplicate rows.
func BuildOwnerIndex(lines []string) map[string]Owner {
	index := make(map[string]Owner)
	for row := range edgar.Rows(lines) {
		acc := row["ACCESSION_NUMBER"]
		if acc == "" {
			continue
		}
		if _, seen := index[acc]; seen {
			continue
		}
		index[acc] = Owner{
			Name:  row["RPTOWNERNAME"],
			Title: ownerTitle(row["RPTOWNER_TITLE"], row["RPTOWNER_RELATIONSHIP"]),
		}
	}
	return index
}

// ownerTitle prefers the explicit officer title and falls back to the
// relationship classification (Director, Officer, TenPercentOwner, Other).
func ownerTitle(title, relationship string) string {
	if title != "" {
		return title
	}
	return relationship
}
