package ingest

import (
	"context"
	"fmt"
	"strings"

	"agentic_diligence/pkg/core/state"
)

// remoteFormTypes are the filing forms pulled for the freshness check.
var remoteFormTypes = []string{"10-K", "10-Q", "8-K"}

// remoteFilingLimit caps how many recent filings a job carries.
const remoteFilingLimit = 12

// RemoteLoader assembles a job input from SEC EDGAR: it resolves a ticker
// to a CIK, pulls recent filing metadata, downloads the latest annual
// report, and parses its income statement out of Item 8.
type RemoteLoader struct {
	client   *Client
	sections *SectionParser
	tables   *TableParser
}

// NewRemoteLoader creates a loader backed by the live SEC endpoints.
func NewRemoteLoader() *RemoteLoader {
	return &RemoteLoader{
		client:   NewClient(),
		sections: NewSectionParser(),
		tables:   NewTableParser(),
	}
}

// Load fetches everything a job needs for the given ticker. The returned
// input carries the company identity, recent filing metadata, and the raw
// income statement from the most recent 10-K.
func (l *RemoteLoader) Load(ctx context.Context, ticker string) (*InputFile, error) {
	cik, err := l.client.LookupCIKByTicker(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ticker %s: %w", ticker, err)
	}

	info, err := l.client.FetchCompanyInfo(ctx, cik)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions for %s: %w", ticker, err)
	}

	filings := l.client.FilingRecords(info, remoteFormTypes, remoteFilingLimit)
	if len(filings) == 0 {
		return nil, fmt.Errorf("no recent filings on record for %s", ticker)
	}

	// Recent filings arrive newest first, so the first 10-K is the latest.
	var annual *state.FilingRecord
	for i := range filings {
		if filings[i].FormType == "10-K" {
			annual = &filings[i]
			break
		}
	}
	if annual == nil {
		return nil, fmt.Errorf("no 10-K among recent filings for %s", ticker)
	}

	url, err := l.client.DocumentURL(info, annual.AccessionNumber)
	if err != nil {
		return nil, err
	}
	doc, err := l.client.FetchDocument(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download 10-K %s: %w", annual.AccessionNumber, err)
	}

	section := l.sections.FinancialSection(doc)
	if section == nil {
		return nil, fmt.Errorf("10-K %s has no recognizable financial statements section", annual.AccessionNumber)
	}

	// The first statement-shaped table under Item 8 is the income statement.
	income, err := l.tables.ParseStatement(section.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse income statement from 10-K %s: %w", annual.AccessionNumber, err)
	}

	return &InputFile{
		Target: state.TargetIdentity{
			CompanyName: info.Name,
			Ticker:      strings.ToUpper(ticker),
			CIK:         info.CIK,
		},
		Financials: &state.FinancialStatements{Income: income},
		Filings:    filings,
	}, nil
}
