package automate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/time/rate"

	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
)

// redirectPollInterval is the delay between checks while the stock system
// walks through its intermediate redirect pages after login.
const redirectPollInterval = time.Second

// Specification is one row of a stock record's specification table.
type Specification struct {
	Value       string `json:"value"`
	Status      string `json:"status"`
	LastChecked string `json:"last_checked"`
}

// BarcodeRecord is the extracted stock record for one barcode. A failed
// lookup reports Found=false with the error; it never aborts sibling
// barcodes.
type BarcodeRecord struct {
	Barcode        string                   `json:"barcode"`
	Found          bool                     `json:"found"`
	Error          string                   `json:"error,omitempty"`
	Barserial      string                   `json:"barserial,omitempty"`
	Name           string                   `json:"name,omitempty"`
	Description    string                   `json:"description,omitempty"`
	CostPrice      string                   `json:"cost_price,omitempty"`
	RetailPrice    string                   `json:"retail_price,omitempty"`
	CreatedAt      string                   `json:"created_at,omitempty"`
	BoughtBy       string                   `json:"bought_by,omitempty"`
	Quantity       string                   `json:"quantity,omitempty"`
	Type           string                   `json:"type,omitempty"`
	Specifications map[string]Specification `json:"specifications,omitempty"`
}

// StockSync automates the secondary stock system: barcode lookups and the
// best-effort post-listing flag toggle.
type StockSync struct {
	sessions SessionProvider
	cfg      *config.Config
	log      *logging.Logger
	limiter  *rate.Limiter

	// screenshotDir receives debug captures on extraction failures.
	screenshotDir string
}

// NewStockSync creates a stock system automator.
func NewStockSync(sessions SessionProvider, cfg *config.Config, log *logging.Logger) *StockSync {
	dir := ""
	if homeDir, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(homeDir, ".pricescout", "screenshots")
	}
	return &StockSync{
		sessions:      sessions,
		cfg:           cfg,
		log:           log,
		limiter:       rate.NewLimiter(rate.Limit(cfg.Stock.LookupsPerSecond), 1),
		screenshotDir: dir,
	}
}

// MarkListed locates the stock record for serial and toggles its listed
// flag. Runs only after a saved listing; every failure is returned for the
// caller to log and swallow, so it can never affect the already-reported
// outcome of the primary form.
func (s *StockSync) MarkListed(ctx context.Context, serial string) error {
	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return err
	}

	page, err := session.NewPlainPage()
	if err != nil {
		return err
	}
	defer func() {
		_ = page.Close() // best effort, never escalate
	}()

	if err := s.reachSearchView(ctx, page); err != nil {
		return err
	}

	if err := s.searchFor(page, serial); err != nil {
		return err
	}

	if !s.onDetailView(page) {
		return fmt.Errorf("no exact stock match for %s", serial)
	}

	if err := page.Check(s.cfg.Stock.ListedCheckbox); err != nil {
		return fmt.Errorf("failed to toggle listed flag: %w", err)
	}
	if err := page.Click(s.cfg.Stock.SaveButton); err != nil {
		return fmt.Errorf("failed to save stock record: %w", err)
	}

	s.log.Infof("marked %s as listed on stock system", serial)
	return nil
}

// LookupBarcodes extracts the stock record for each barcode. Lookups share
// one page and are paced by the rate limiter; a single barcode's failure
// degrades to a failed entry in the result.
func (s *StockSync) LookupBarcodes(ctx context.Context, barcodes []string) ([]BarcodeRecord, error) {
	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	page, err := session.NewPlainPage()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = page.Close() // best effort, never escalate
	}()

	if err := s.reachSearchView(ctx, page); err != nil {
		return nil, err
	}

	s.log.Infof("processing %d barcodes", len(barcodes))

	records := make([]BarcodeRecord, 0, len(barcodes))
	for i, barcode := range barcodes {
		if i > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				return records, err
			}
		}

		record := s.lookupOne(page, barcode)
		if record.Error != "" {
			s.log.Warnf("barcode %s: %s", barcode, record.Error)
		}
		records = append(records, record)
	}

	return records, nil
}

// reachSearchView navigates to the stock search view, waiting through the
// manual login (unbounded) and the intermediate redirect pages (bounded by a
// check count, not wall-clock time).
func (s *StockSync) reachSearchView(ctx context.Context, page playwright.Page) error {
	if _, err := page.Goto(s.cfg.Stock.SearchURL); err != nil {
		return fmt.Errorf("failed to open stock system: %w", err)
	}
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("stock system never became idle: %w", err)
	}

	if strings.Contains(page.URL(), "login") {
		s.log.Infof("waiting for manual stock system login")
		// No timeout: a human completes the login.
		if err := page.WaitForURL("**"+trimScheme(s.cfg.Stock.BaseURL)+"/**", playwright.PageWaitForURLOptions{
			Timeout: playwright.Float(0),
		}); err != nil {
			return fmt.Errorf("page closed during login: %w", err)
		}
	}

	base := strings.TrimRight(s.cfg.Stock.BaseURL, "/")
	for checks := 0; checks < s.cfg.Stock.RedirectMaxChecks; checks++ {
		if page.IsClosed() {
			return fmt.Errorf("page closed during intermediate redirect wait")
		}

		current := strings.TrimRight(page.URL(), "/")
		switch {
		case current == base:
			// Landing page reached; go straight to the search view.
			if _, err := page.Goto(s.cfg.Stock.SearchURL); err != nil {
				return fmt.Errorf("failed to open stock search: %w", err)
			}
			if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
				State: playwright.LoadStateNetworkidle,
			}); err != nil {
				return fmt.Errorf("stock search never became idle: %w", err)
			}
			return nil
		case strings.Contains(current, "/stock/search"):
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redirectPollInterval):
		}
	}

	return fmt.Errorf("timed out waiting for intermediate pages to finish")
}

// searchFor submits the identifier on the stock search view.
func (s *StockSync) searchFor(page playwright.Page, code string) error {
	if _, err := page.Goto(s.cfg.Stock.SearchURL); err != nil {
		return fmt.Errorf("failed to open stock search: %w", err)
	}
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("stock search never became idle: %w", err)
	}

	searchInput := "input#stocksearchandfilter-query"
	if err := page.Fill(searchInput, code); err != nil {
		return fmt.Errorf("failed to fill search input: %w", err)
	}

	// An exact match navigates to the record; a miss stays on the results
	// page. Navigation timeout here is expected and tolerated.
	if _, err := page.ExpectNavigation(func() error {
		return page.Press(searchInput, "Enter")
	}, playwright.PageExpectNavigationOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		s.log.Debugf("navigation timeout for %s: %v", code, err)
	}
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("search results never became idle: %w", err)
	}

	return nil
}

// onDetailView reports whether the search landed on a stock detail view
// rather than a generic results page.
func (s *StockSync) onDetailView(page playwright.Page) bool {
	current := page.URL()
	if !strings.Contains(current, "/stock/") {
		return false
	}
	if strings.Contains(current, "/edit") {
		return true
	}

	_, err := page.WaitForSelector("#stock-name, .detail-view", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(3000),
	})
	return err == nil
}

// lookupOne extracts the record for a single barcode. Failures are reported
// in the record, with a best-effort debug screenshot.
func (s *StockSync) lookupOne(page playwright.Page, barcode string) BarcodeRecord {
	record := BarcodeRecord{Barcode: barcode}

	if err := s.searchFor(page, barcode); err != nil {
		record.Error = err.Error()
		return record
	}

	if !s.onDetailView(page) {
		record.Error = "no exact match"
		return record
	}

	if _, err := page.WaitForSelector("#stock-name", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(5000),
	}); err != nil {
		record.Error = fmt.Sprintf("detail view incomplete: %v", err)
		s.captureDebugScreenshot(page, barcode)
		return record
	}

	record.Found = true
	record.Name = s.inputValue(page, "#stock-name")
	record.Description = s.inputValue(page, "#stock-description")
	record.CostPrice = s.inputValue(page, "#stock-cost_price")
	record.RetailPrice = s.inputValue(page, "#stock-retail_price")
	record.CreatedAt = s.summaryDetail(page, "Created")
	record.BoughtBy = s.summaryDetail(page, "Bought By")
	record.Quantity = s.summaryDetail(page, "Total Quantity")
	record.Barserial = s.summaryDetail(page, "Barserial")
	record.Type = s.summaryDetail(page, "Type")
	record.Specifications = s.specifications(page)

	return record
}

// inputValue reads an input field, returning "N/A" when empty or missing.
func (s *StockSync) inputValue(page playwright.Page, selector string) string {
	if _, err := page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(3000),
	}); err != nil {
		return "N/A"
	}

	value, err := page.InputValue(selector)
	if err != nil {
		return "N/A"
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "N/A"
	}
	return value
}

// summaryDetail reads one labelled row of the record's summary card.
func (s *StockSync) summaryDetail(page playwright.Page, label string) string {
	selector := fmt.Sprintf(`.detail-view .detail:has(strong:has-text("%s"))`, label)
	node, err := page.QuerySelector(selector)
	if err != nil || node == nil {
		return "N/A"
	}

	text, err := node.TextContent()
	if err != nil {
		return "N/A"
	}

	text = strings.TrimSpace(strings.Replace(text, label, "", 1))
	text = strings.Trim(text, " :;-")
	if text == "" {
		return "N/A"
	}
	return text
}

// specifications extracts the record's specification table.
func (s *StockSync) specifications(page playwright.Page) map[string]Specification {
	rows, err := page.QuerySelectorAll("#w3 table.table tbody tr")
	if err != nil || len(rows) == 0 {
		return nil
	}

	specs := make(map[string]Specification, len(rows))
	for _, row := range rows {
		data, err := row.Evaluate(specificationRowScript)
		if err != nil {
			s.log.Debugf("error reading specification row: %v", err)
			continue
		}

		fields, ok := data.(map[string]interface{})
		if !ok {
			continue
		}

		field := stringField(fields, "field")
		if field == "" {
			continue
		}
		specs[field] = Specification{
			Value:       stringField(fields, "value"),
			Status:      stringField(fields, "status"),
			LastChecked: stringField(fields, "lastChecked"),
		}
	}

	return specs
}

// specificationRowScript reads one specification row, preferring the link
// text for the value cell when present.
const specificationRowScript = `(row) => {
	const cell = (sel) => {
		const n = row.querySelector(sel);
		return n ? n.textContent.trim() : 'N/A';
	};

	let value = 'N/A';
	const link = row.querySelector('td:nth-child(2) a');
	if (link) {
		value = link.textContent.trim() || 'N/A';
	} else {
		value = cell('td:nth-child(2)');
	}

	return {
		field: cell('td:nth-child(1)'),
		value: value,
		status: cell('td.status'),
		lastChecked: cell('td.last-checked'),
	};
}`

// captureDebugScreenshot saves the page for post-mortem. Capture failures
// are swallowed.
func (s *StockSync) captureDebugScreenshot(page playwright.Page, barcode string) {
	if s.screenshotDir == "" {
		return
	}
	if err := os.MkdirAll(s.screenshotDir, 0750); err != nil {
		return
	}

	path := filepath.Join(s.screenshotDir, fmt.Sprintf("debug_%s.png", barcode))
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	}); err != nil {
		s.log.Debugf("screenshot capture failed for %s: %v", barcode, err)
	}
}

// stringField pulls a string out of an evaluated JS object.
func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// trimScheme strips the scheme for use in a URL glob pattern.
func trimScheme(url string) string {
	if _, rest, found := strings.Cut(url, "://"); found {
		return rest
	}
	return url
}
