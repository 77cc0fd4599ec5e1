package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pricescout/pkg/automate"
	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
	"github.com/entrhq/pricescout/pkg/scrape"
)

type fakeScraper struct {
	listings []scrape.AggregatedListing
	err      error

	calls   int
	sources []string
	query   string
	exclude []string
}

func (f *fakeScraper) Scrape(ctx context.Context, sources []string, rawQuery string, exclude []string) ([]scrape.AggregatedListing, error) {
	f.calls++
	f.sources = sources
	f.query = rawQuery
	f.exclude = exclude
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

type fakeLister struct {
	result automate.ListingResult
	req    automate.ListingRequest
}

func (f *fakeLister) CreateListing(ctx context.Context, req automate.ListingRequest) automate.ListingResult {
	f.req = req
	return f.result
}

type fakeStock struct {
	records  []automate.BarcodeRecord
	err      error
	barcodes []string
}

func (f *fakeStock) LookupBarcodes(ctx context.Context, barcodes []string) ([]automate.BarcodeRecord, error) {
	f.barcodes = barcodes
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func newTestServer(t *testing.T, scraper Scraper, lister ListingAutomator, stock BarcodeLookup) *Server {
	t.Helper()
	log, err := logging.NewLogger("server-test")
	require.NoError(t, err)
	return NewServer(config.Default().Server, scraper, lister, stock, log)
}

func postJSON(t *testing.T, s *Server, path string, body interface{}) map[string]interface{} {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded
}

func TestScrapePrices_Success(t *testing.T) {
	price := 150.0
	scraper := &fakeScraper{listings: []scrape.AggregatedListing{
		{Source: "CEX", Title: "Nintendo Switch", Price: &price},
	}}
	s := newTestServer(t, scraper, &fakeLister{}, &fakeStock{})

	resp := postJSON(t, s, "/scrape-prices", map[string]interface{}{
		"query":       "Model: Nintendo Switch",
		"competitors": []string{"CEX"},
	})

	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(1), resp["competitor_count"])
	assert.Equal(t, []string{"CEX"}, scraper.sources)
	assert.Equal(t, "Model: Nintendo Switch", scraper.query)
}

func TestCORS_AllowedOriginPreflight(t *testing.T) {
	s := newTestServer(t, &fakeScraper{}, &fakeLister{}, &fakeStock{})

	origin := config.Default().Server.AllowedOrigins[0]
	req := httptest.NewRequest(http.MethodOptions, "/scrape-prices", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	s := newTestServer(t, &fakeScraper{}, &fakeLister{}, &fakeStock{})

	req := httptest.NewRequest(http.MethodOptions, "/scrape-prices", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestScrapePrices_DefaultCompetitors(t *testing.T) {
	scraper := &fakeScraper{}
	s := newTestServer(t, scraper, &fakeLister{}, &fakeStock{})

	resp := postJSON(t, s, "/scrape-prices", map[string]interface{}{
		"query": "iPhone 13",
	})

	assert.Equal(t, true, resp["success"])
	assert.Equal(t, defaultCompetitors, scraper.sources)
}

func TestScrapePrices_MissingQuery(t *testing.T) {
	scraper := &fakeScraper{}
	s := newTestServer(t, scraper, &fakeLister{}, &fakeStock{})

	resp := postJSON(t, s, "/scrape-prices", map[string]interface{}{})

	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Missing query", resp["error"])
	assert.Equal(t, 0, scraper.calls)
}

func TestScrapePrices_ScrapeFailure(t *testing.T) {
	scraper := &fakeScraper{err: fmt.Errorf("failed to acquire browser session")}
	s := newTestServer(t, scraper, &fakeLister{}, &fakeStock{})

	resp := postJSON(t, s, "/scrape-prices", map[string]interface{}{"query": "iPhone"})

	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["error"], "acquire browser session")
}

func TestScrapePrices_InvalidBody(t *testing.T) {
	s := newTestServer(t, &fakeScraper{}, &fakeLister{}, &fakeStock{})

	req := httptest.NewRequest(http.MethodPost, "/scrape-prices", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
}

func TestBulkScrape_MixedItems(t *testing.T) {
	scraper := &fakeScraper{listings: []scrape.AggregatedListing{{Source: "CEX", Title: "PS5"}}}
	s := newTestServer(t, scraper, &fakeLister{}, &fakeStock{})

	resp := postJSON(t, s, "/bulk-scrape-competitors", map[string]interface{}{
		"items": []map[string]string{
			{"barcode": "111", "name": "PS5"},
			{"barcode": "222", "market_item": "Xbox Series X"},
			{"barcode": "333"},
		},
	})

	assert.Equal(t, true, resp["success"])
	results, ok := resp["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 3)

	first := results[0].(map[string]interface{})
	assert.Equal(t, true, first["success"])
	assert.Equal(t, "PS5", first["query_used"])

	second := results[1].(map[string]interface{})
	assert.Equal(t, true, second["success"])
	assert.Equal(t, "Xbox Series X", second["query_used"])

	third := results[2].(map[string]interface{})
	assert.Equal(t, false, third["success"])
	assert.Equal(t, "Missing name or market_item", third["error"])

	// Only the two resolvable items are scraped, against the bulk sources.
	assert.Equal(t, 2, scraper.calls)
	assert.Equal(t, bulkCompetitors, scraper.sources)
}

func TestBulkScrape_PerItemFailureDoesNotAbort(t *testing.T) {
	scraper := &fakeScraper{err: fmt.Errorf("unknown source \"CEX\"")}
	s := newTestServer(t, scraper, &fakeLister{}, &fakeStock{})

	resp := postJSON(t, s, "/bulk-scrape-competitors", map[string]interface{}{
		"items": []map[string]string{
			{"barcode": "111", "name": "PS5"},
			{"barcode": "222", "name": "Xbox"},
		},
	})

	assert.Equal(t, true, resp["success"])
	results := resp["results"].([]interface{})
	require.Len(t, results, 2)
	for _, raw := range results {
		item := raw.(map[string]interface{})
		assert.Equal(t, false, item["success"])
		assert.Contains(t, item["error"], "unknown source")
	}
}

func TestBulkScrape_NoItems(t *testing.T) {
	s := newTestServer(t, &fakeScraper{}, &fakeLister{}, &fakeStock{})

	resp := postJSON(t, s, "/bulk-scrape-competitors", map[string]interface{}{})

	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "No items provided", resp["error"])
}

func TestScrapeBarcodes_Success(t *testing.T) {
	stock := &fakeStock{records: []automate.BarcodeRecord{
		{Barcode: "12345", Found: true, Name: "Nintendo Switch"},
	}}
	s := newTestServer(t, &fakeScraper{}, &fakeLister{}, stock)

	resp := postJSON(t, s, "/scrape-barcodes", map[string]interface{}{
		"barcodes": []string{"12345"},
	})

	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(1), resp["count"])
	assert.Equal(t, []string{"12345"}, stock.barcodes)
}

func TestScrapeBarcodes_NoBarcodes(t *testing.T) {
	s := newTestServer(t, &fakeScraper{}, &fakeLister{}, &fakeStock{})

	resp := postJSON(t, s, "/scrape-barcodes", map[string]interface{}{})

	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "No barcodes provided", resp["error"])
}

func TestScrapeBarcodes_LookupFailure(t *testing.T) {
	stock := &fakeStock{err: fmt.Errorf("timed out waiting for intermediate pages to finish")}
	s := newTestServer(t, &fakeScraper{}, &fakeLister{}, stock)

	resp := postJSON(t, s, "/scrape-barcodes", map[string]interface{}{
		"barcodes": []string{"12345"},
	})

	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["error"], "timed out")
}

func TestAutomateListing_PassesThroughResult(t *testing.T) {
	lister := &fakeLister{result: automate.ListingResult{Success: true, Message: "listing saved"}}
	s := newTestServer(t, &fakeScraper{}, lister, &fakeStock{})

	resp := postJSON(t, s, "/automate-listing", map[string]string{
		"item_name":   "Nintendo Switch",
		"description": "Boxed, good condition",
		"price":       "150",
	})

	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "listing saved", resp["message"])
	assert.Equal(t, "Nintendo Switch", lister.req.ItemName)
	assert.Equal(t, "150", lister.req.Price)
}

func TestAutomateListing_FailureEnvelope(t *testing.T) {
	lister := &fakeLister{result: automate.ListingResult{Success: false, Error: "missing required fields"}}
	s := newTestServer(t, &fakeScraper{}, lister, &fakeStock{})

	resp := postJSON(t, s, "/automate-listing", map[string]string{})

	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "missing required fields", resp["error"])
}
