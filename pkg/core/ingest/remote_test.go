package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const edgarTickerMapping = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
	"1": {"cik_str": 12345, "ticker": "GLBX", "title": "Globex Corp"}
}`

const edgarSubmissions = `{
	"cik": "12345",
	"name": "Globex Corp",
	"tickers": ["GLBX"],
	"filings": {
		"recent": {
			"accessionNumber": ["0000012345-25-000007", "0000012345-25-000001", "0000012345-24-000044"],
			"filingDate": ["2025-05-01", "2025-02-15", "2024-11-05"],
			"reportDate": ["2025-04-28", "2024-12-31", "2024-09-30"],
			"form": ["8-K", "10-K", "10-Q"],
			"primaryDocument": ["glbx-8k.htm", "glbx-10k.htm", "glbx-10q.htm"]
		}
	}
}`

const edgarAnnualReport = `
FORM 10-K

Item 1. Business
Globex makes widgets.

Item 8. Financial Statements
<table>
	<tr><th>(in thousands)</th><th>2024</th><th>2023</th></tr>
	<tr><td>Revenue</td><td>$1,200,500</td><td>$1,050,000</td></tr>
	<tr><td>Net income</td><td>150,250</td><td>120,500</td></tr>
</table>

Item 9A. Controls and Procedures
Controls are effective.
`

// edgarTestServer serves the three endpoints the loader walks: the ticker
// mapping, company submissions, and the filing archive.
func edgarTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, edgarTickerMapping)
	})
	mux.HandleFunc("/submissions/CIK0000012345.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("Expected a User-Agent header on SEC requests")
		}
		fmt.Fprint(w, edgarSubmissions)
	})
	mux.HandleFunc("/Archives/edgar/data/12345/000001234525000001/glbx-10k.htm", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, edgarAnnualReport)
	})
	return httptest.NewServer(mux)
}

func testRemoteLoader(srv *httptest.Server) *RemoteLoader {
	loader := NewRemoteLoader()
	loader.client.tickersURL = srv.URL + "/files/company_tickers.json"
	loader.client.submissionsURL = srv.URL + "/submissions/CIK%s.json"
	loader.client.archivesURL = srv.URL + "/Archives/edgar/data/%s/%s"
	return loader
}

func TestRemoteLoaderLoad(t *testing.T) {
	srv := edgarTestServer(t)
	defer srv.Close()

	in, err := testRemoteLoader(srv).Load(context.Background(), "glbx")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if in.Target.CompanyName != "Globex Corp" {
		t.Errorf("Expected company name Globex Corp, got %q", in.Target.CompanyName)
	}
	if in.Target.Ticker != "GLBX" {
		t.Errorf("Expected upper-cased ticker GLBX, got %q", in.Target.Ticker)
	}
	if in.Target.CIK != "12345" {
		t.Errorf("Expected CIK 12345, got %q", in.Target.CIK)
	}

	if len(in.Filings) != 3 {
		t.Fatalf("Expected 3 filing records, got %d", len(in.Filings))
	}
	if in.Filings[1].FormType != "10-K" || in.Filings[1].AccessionNumber != "0000012345-25-000001" {
		t.Errorf("Unexpected second filing: %+v", in.Filings[1])
	}

	income := in.Financials.Income
	if len(income) != 2 {
		t.Fatalf("Expected 2 fiscal years of income data, got %d", len(income))
	}
	if income[1].FiscalYear != 2024 {
		t.Errorf("Expected latest fiscal year 2024, got %d", income[1].FiscalYear)
	}
	if income[1].Items["revenue"] != 1200500 {
		t.Errorf("Expected revenue 1200500, got %v", income[1].Items["revenue"])
	}
	if income[1].Items["net_income"] != 150250 {
		t.Errorf("Expected net income 150250, got %v", income[1].Items["net_income"])
	}
}

func TestRemoteLoaderUnknownTicker(t *testing.T) {
	srv := edgarTestServer(t)
	defer srv.Close()

	_, err := testRemoteLoader(srv).Load(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("Expected an error for an unlisted ticker")
	}
	if !strings.Contains(err.Error(), "NOPE") {
		t.Errorf("Error should name the ticker, got: %v", err)
	}
}

func TestRemoteLoaderRequiresAnnualReport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, edgarTickerMapping)
	})
	mux.HandleFunc("/submissions/CIK0000012345.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"cik": "12345",
			"name": "Globex Corp",
			"filings": {"recent": {
				"accessionNumber": ["0000012345-24-000044"],
				"filingDate": ["2024-11-05"],
				"reportDate": ["2024-09-30"],
				"form": ["10-Q"],
				"primaryDocument": ["glbx-10q.htm"]
			}}
		}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := testRemoteLoader(srv).Load(context.Background(), "GLBX")
	if err == nil {
		t.Fatal("Expected an error when no 10-K is on record")
	}
	if !strings.Contains(err.Error(), "10-K") {
		t.Errorf("Error should mention the missing 10-K, got: %v", err)
	}
}

func TestLookupCIKByTickerPadsCIK(t *testing.T) {
	srv := edgarTestServer(t)
	defer srv.Close()

	client := testRemoteLoader(srv).client
	cik, err := client.LookupCIKByTicker(context.Background(), "glbx")
	if err != nil {
		t.Fatalf("LookupCIKByTicker failed: %v", err)
	}
	if cik != "0000012345" {
		t.Errorf("Expected zero-padded CIK 0000012345, got %q", cik)
	}
}
