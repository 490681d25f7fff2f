// Package ingest acquires raw financial inputs: SEC EDGAR filing metadata,
// statement tables from filing HTML, and local JSON statement files.
// API Documentation: https://www.sec.gov/developer
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agentic_diligence/pkg/core/state"
)

const (
	secSubmissionsURL = "https://data.sec.gov/submissions/CIK%s.json"
	secArchivesURL    = "https://www.sec.gov/Archives/edgar/data/%s/%s"
	secTickersURL     = "https://www.sec.gov/files/company_tickers.json"

	// Required User-Agent per SEC guidelines
	userAgent = "AgenticDiligence/1.0 (contact@example.com)"
)

// =============================================================================
// SEC EDGAR DATA TYPES
// =============================================================================

// CompanyInfo represents the top-level company submission response.
type CompanyInfo struct {
	CIK            string   `json:"cik"`
	EntityType     string   `json:"entityType"`
	SIC            string   `json:"sic"`
	SICDescription string   `json:"sicDescription"`
	Name           string   `json:"name"`
	Tickers        []string `json:"tickers"`
	Filings        struct {
		Recent recentFilings `json:"recent"`
	} `json:"filings"`
}

// recentFilings holds parallel arrays of filing attributes.
type recentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// Client handles SEC EDGAR API requests.
type Client struct {
	httpClient *http.Client

	// Endpoint templates, overridable in tests.
	submissionsURL string
	archivesURL    string
	tickersURL     string
}

// NewClient creates a new SEC EDGAR API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		submissionsURL: secSubmissionsURL,
		archivesURL:    secArchivesURL,
		tickersURL:     secTickersURL,
	}
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("SEC API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SEC API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse SEC response: %w", err)
	}
	return nil
}

// FetchCompanyInfo retrieves company submission data from SEC EDGAR.
// CIK is zero-padded to 10 digits automatically.
func (c *Client) FetchCompanyInfo(ctx context.Context, cik string) (*CompanyInfo, error) {
	cik = strings.TrimLeft(cik, "0")
	if len(cik) < 10 {
		cik = strings.Repeat("0", 10-len(cik)) + cik
	}
	var info CompanyInfo
	if err := c.getJSON(ctx, fmt.Sprintf(c.submissionsURL, cik), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// FilingRecords extracts filings as state records, filtered by form type.
// formTypes nil means all types; limit 0 means no limit.
func (c *Client) FilingRecords(info *CompanyInfo, formTypes []string, limit int) []state.FilingRecord {
	recent := info.Filings.Recent

	formTypeSet := make(map[string]bool)
	for _, ft := range formTypes {
		formTypeSet[ft] = true
	}

	records := make([]state.FilingRecord, 0)
	for i := range recent.AccessionNumber {
		if len(formTypes) > 0 && !formTypeSet[recent.Form[i]] {
			continue
		}
		filingDate, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		records = append(records, state.FilingRecord{
			FormType:        recent.Form[i],
			FilingDate:      filingDate,
			AccessionNumber: recent.AccessionNumber[i],
		})
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records
}

// DocumentURL builds the download URL for a filing's primary document.
func (c *Client) DocumentURL(info *CompanyInfo, accessionNumber string) (string, error) {
	recent := info.Filings.Recent
	for i := range recent.AccessionNumber {
		if recent.AccessionNumber[i] == accessionNumber {
			noDashes := strings.ReplaceAll(accessionNumber, "-", "")
			return fmt.Sprintf(c.archivesURL, info.CIK, noDashes+"/"+recent.PrimaryDocument[i]), nil
		}
	}
	return "", fmt.Errorf("accession number %s not found in submissions", accessionNumber)
}

// FetchDocument downloads a filing document body.
func (c *Client) FetchDocument(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(body), nil
}

// LookupCIKByTicker finds the CIK for a ticker symbol via the SEC
// ticker mapping file.
func (c *Client) LookupCIKByTicker(ctx context.Context, ticker string) (string, error) {
	// Response: { "0": {"cik_str": 320193, "ticker": "AAPL", "title": "..."}, ... }
	var mapping map[string]struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := c.getJSON(ctx, c.tickersURL, &mapping); err != nil {
		return "", err
	}

	ticker = strings.ToUpper(ticker)
	for _, entry := range mapping {
		if entry.Ticker == ticker {
			return fmt.Sprintf("%010d", entry.CIK), nil
		}
	}
	return "", fmt.Errorf("ticker %s not found in SEC database", ticker)
}
