// Package server exposes the automation operations over a small JSON/HTTP
// API for the suite frontend. It is a thin boundary: every failure is
// converted to a structured {success, error} envelope, and the core packages
// never depend on it.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/entrhq/pricescout/pkg/automate"
	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
	"github.com/entrhq/pricescout/pkg/scrape"
)

// defaultCompetitors are scraped when the caller does not pick sources.
var defaultCompetitors = []string{"CEX", "eBay"}

// bulkCompetitors are the sources used for bulk item pricing.
var bulkCompetitors = []string{"CEX", "CashGenerator"}

// Scraper runs the competitor price pipeline.
type Scraper interface {
	Scrape(ctx context.Context, sources []string, rawQuery string, exclude []string) ([]scrape.AggregatedListing, error)
}

// ListingAutomator drives the POS new-product form.
type ListingAutomator interface {
	CreateListing(ctx context.Context, req automate.ListingRequest) automate.ListingResult
}

// BarcodeLookup extracts stock records from the secondary system.
type BarcodeLookup interface {
	LookupBarcodes(ctx context.Context, barcodes []string) ([]automate.BarcodeRecord, error)
}

// Server hosts the JSON API.
type Server struct {
	cfg     config.ServerConfig
	log     *logging.Logger
	scraper Scraper
	lister  ListingAutomator
	stock   BarcodeLookup

	httpServer *http.Server
}

// NewServer constructs the API server over the given collaborators.
func NewServer(cfg config.ServerConfig, scraper Scraper, lister ListingAutomator, stock BarcodeLookup, log *logging.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log,
		scraper: scraper,
		lister:  lister,
		stock:   stock,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	// The API is called cross-origin by the hosted frontend.
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	router.Post("/scrape-prices", s.handleScrapePrices)
	router.Post("/bulk-scrape-competitors", s.handleBulkScrape)
	router.Post("/scrape-barcodes", s.handleScrapeBarcodes)
	router.Post("/automate-listing", s.handleAutomateListing)

	s.httpServer = &http.Server{
		Addr:              cfg.BindAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving the API until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.log.Infof("API listening on %s", s.cfg.BindAddress)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the API server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type scrapePricesRequest struct {
	Query       string   `json:"query"`
	Competitors []string `json:"competitors"`
	Exclude     []string `json:"exclude"`
}

func (s *Server) handleScrapePrices(w http.ResponseWriter, r *http.Request) {
	var req scrapePricesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		s.writeError(w, "Missing query")
		return
	}

	competitors := req.Competitors
	if len(competitors) == 0 {
		competitors = defaultCompetitors
	}

	listings, err := s.scraper.Scrape(r.Context(), competitors, req.Query, req.Exclude)
	if err != nil {
		s.writeError(w, err.Error())
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"success":          true,
		"results":          listings,
		"competitor_count": len(listings),
	})
}

type bulkScrapeRequest struct {
	Items []bulkScrapeItem `json:"items"`
}

type bulkScrapeItem struct {
	Barcode    string `json:"barcode"`
	Name       string `json:"name"`
	MarketItem string `json:"market_item"`
}

type bulkScrapeResult struct {
	Barcode string                     `json:"barcode"`
	Success bool                       `json:"success"`
	Error   string                     `json:"error,omitempty"`
	Query   string                     `json:"query_used,omitempty"`
	Data    []scrape.AggregatedListing `json:"competitor_data,omitempty"`
	Count   int                        `json:"competitor_count"`
}

func (s *Server) handleBulkScrape(w http.ResponseWriter, r *http.Request) {
	var req bulkScrapeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		s.writeError(w, "No items provided")
		return
	}

	results := make([]bulkScrapeResult, 0, len(req.Items))
	for _, item := range req.Items {
		query := item.Name
		if query == "" {
			query = item.MarketItem
		}
		if query == "" {
			results = append(results, bulkScrapeResult{
				Barcode: item.Barcode,
				Error:   "Missing name or market_item",
			})
			continue
		}

		listings, err := s.scraper.Scrape(r.Context(), bulkCompetitors, query, nil)
		if err != nil {
			results = append(results, bulkScrapeResult{
				Barcode: item.Barcode,
				Error:   err.Error(),
				Query:   query,
			})
			continue
		}

		results = append(results, bulkScrapeResult{
			Barcode: item.Barcode,
			Success: true,
			Query:   query,
			Data:    listings,
			Count:   len(listings),
		})
	}

	s.writeJSON(w, map[string]interface{}{
		"success": true,
		"results": results,
	})
}

type scrapeBarcodesRequest struct {
	Barcodes []string `json:"barcodes"`
}

func (s *Server) handleScrapeBarcodes(w http.ResponseWriter, r *http.Request) {
	var req scrapeBarcodesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Barcodes) == 0 {
		s.writeError(w, "No barcodes provided")
		return
	}

	records, err := s.stock.LookupBarcodes(r.Context(), req.Barcodes)
	if err != nil {
		s.writeError(w, err.Error())
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"success":  true,
		"products": records,
		"count":    len(records),
	})
}

func (s *Server) handleAutomateListing(w http.ResponseWriter, r *http.Request) {
	var req automate.ListingRequest
	if !s.decode(w, r, &req) {
		return
	}

	result := s.lister.CreateListing(r.Context(), req)
	s.writeJSON(w, result)
}

// decode parses the request body, writing the error envelope on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, "invalid request body")
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, message string) {
	s.writeJSON(w, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// writeJSON always answers 200: application-level failures live in the
// envelope, matching what the frontend expects.
func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("failed to encode response: %v", err)
	}
}
