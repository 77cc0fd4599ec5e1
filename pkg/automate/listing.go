package automate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/pricescout/pkg/browser"
	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
)

// pollInterval is how often the completion-race observers re-check the page.
const pollInterval = 500 * time.Millisecond

// SessionProvider yields the shared browser session. Satisfied by
// *browser.Manager.
type SessionProvider interface {
	Acquire(ctx context.Context) (*browser.Session, error)
}

// ListingRequest is the input for one POS listing automation.
type ListingRequest struct {
	ItemName     string `json:"item_name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	SerialNumber string `json:"serial_number,omitempty"`
	Branch       string `json:"branch,omitempty"`
}

// ListingResult is the structured outcome reported to the caller. Failures
// at this boundary are results, not errors.
type ListingResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Lister drives the POS new-product form. The save is completed by a human;
// the outcome is resolved by racing the save confirmation against the user
// navigating away.
type Lister struct {
	sessions SessionProvider
	cfg      *config.Config
	log      *logging.Logger
	sync     *StockSync
}

// NewLister creates a POS listing automator. sync may be nil to disable the
// post-save stock sync step.
func NewLister(sessions SessionProvider, cfg *config.Config, log *logging.Logger, sync *StockSync) *Lister {
	return &Lister{
		sessions: sessions,
		cfg:      cfg,
		log:      log,
		sync:     sync,
	}
}

// CreateListing fills the POS new-product form and waits for the human to
// complete the save. The login wait and the completion race are deliberately
// unbounded; callers needing a hard deadline must impose one via ctx.
func (l *Lister) CreateListing(ctx context.Context, req ListingRequest) ListingResult {
	if req.ItemName == "" || req.Description == "" || req.Price == "" {
		return ListingResult{Success: false, Error: "missing required fields"}
	}

	session, err := l.sessions.Acquire(ctx)
	if err != nil {
		return ListingResult{Success: false, Error: err.Error()}
	}

	page, err := session.NewPlainPage()
	if err != nil {
		return ListingResult{Success: false, Error: err.Error()}
	}
	defer func() {
		_ = page.Close() // best effort, never escalate
	}()

	if err := l.fillForm(page, req); err != nil {
		return ListingResult{Success: false, Error: err.Error()}
	}

	outcome, err := l.awaitCompletion(ctx, page)
	if err != nil {
		return ListingResult{Success: false, Error: err.Error()}
	}

	if outcome == OutcomeNavigatedAway {
		return ListingResult{Success: false, Error: "listing abandoned before save"}
	}

	// The primary outcome is already decided; the sync step only degrades.
	if l.sync != nil && req.SerialNumber != "" {
		if err := l.sync.MarkListed(ctx, req.SerialNumber); err != nil {
			l.log.Warnf("stock sync failed for %s: %v", req.SerialNumber, err)
		}
	}

	return ListingResult{Success: true, Message: "listing saved"}
}

// fillForm logs in (waiting on the human if needed), opens the new-product
// form and enters every field up to and including the save click.
func (l *Lister) fillForm(page playwright.Page, req ListingRequest) error {
	l.log.Infof("starting POS automation for item %q", req.ItemName)

	if _, err := page.Goto(l.cfg.POS.BaseURL); err != nil {
		return fmt.Errorf("failed to open POS: %w", err)
	}
	// No timeout: an expired session means a human logs in manually first.
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(0),
	}); err != nil {
		return fmt.Errorf("POS never became idle: %w", err)
	}
	l.log.Infof("logged in or existing session detected")

	if _, err := page.Goto(l.cfg.POS.NewItemURL); err != nil {
		return fmt.Errorf("failed to open new-product form: %w", err)
	}
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("new-product form never became idle: %w", err)
	}

	if _, err := page.WaitForSelector("#normal-switch"); err != nil {
		return fmt.Errorf("product type switch not found: %w", err)
	}
	if _, err := page.Evaluate(normalSwitchScript); err != nil {
		return fmt.Errorf("failed to toggle product type switch: %w", err)
	}

	if err := page.Fill("#title", req.ItemName); err != nil {
		return fmt.Errorf("failed to fill title: %w", err)
	}

	storeID := req.Branch
	if storeID == "" {
		storeID = l.cfg.POS.StoreID
	}
	if _, err := page.SelectOption("#storeId", playwright.SelectOptionValues{
		Values: &[]string{storeID},
	}); err != nil {
		return fmt.Errorf("failed to select store: %w", err)
	}

	if err := page.Fill(`textarea[name="intro"]`, req.Description); err != nil {
		return fmt.Errorf("failed to fill description: %w", err)
	}

	if _, err := strconv.ParseFloat(req.Price, 64); err == nil {
		if err := page.Fill("#price", req.Price); err != nil {
			return fmt.Errorf("failed to fill price: %w", err)
		}
	} else {
		l.log.Warnf("invalid price value %q, leaving price empty", req.Price)
	}

	if req.SerialNumber != "" {
		if err := page.Fill("#barcode", req.SerialNumber); err != nil {
			return fmt.Errorf("failed to fill barcode: %w", err)
		}
	}

	if _, err := page.SelectOption("#fulfilmentOption", playwright.SelectOptionValues{
		Values: &[]string{"anyfulfilment"},
	}); err != nil {
		return fmt.Errorf("failed to select fulfilment: %w", err)
	}
	if _, err := page.SelectOption("#condition", playwright.SelectOptionValues{
		Values: &[]string{"used"},
	}); err != nil {
		return fmt.Errorf("failed to select condition: %w", err)
	}

	if _, err := page.WaitForSelector("#grade", playwright.PageWaitForSelectorOptions{
		State: playwright.WaitForSelectorStateVisible,
	}); err != nil {
		return fmt.Errorf("grade selector never became visible: %w", err)
	}
	if _, err := page.SelectOption("#grade", playwright.SelectOptionValues{
		Values: &[]string{"B"},
	}); err != nil {
		return fmt.Errorf("failed to select grade: %w", err)
	}

	saveButton := "button:has-text('Save Product')"
	if _, err := page.WaitForSelector(saveButton); err != nil {
		return fmt.Errorf("save button not found: %w", err)
	}
	// The button renders before its click handler binds; a forced click
	// fired too early lands on an inert element.
	time.Sleep(l.cfg.POS.SaveSettleDelay)
	if err := page.Click(saveButton, playwright.PageClickOptions{
		Force: playwright.Bool(true),
	}); err != nil {
		return fmt.Errorf("failed to click save: %w", err)
	}

	l.log.Infof("clicked save, awaiting completion")
	return nil
}

// awaitCompletion races the save confirmation against the user navigating
// away from the form. Both observers wait indefinitely: the save is completed
// by a human and there is no reliable server-side signal.
func (l *Lister) awaitCompletion(ctx context.Context, page playwright.Page) (Outcome, error) {
	formURL := l.cfg.POS.NewItemURL
	indicator := l.cfg.POS.SavingIndicator

	saved := Observer{
		Outcome: OutcomeSaved,
		Wait: func(ctx context.Context) error {
			// The indicator is transient: appear, then disappear.
			if err := pollUntil(ctx, func() (bool, error) {
				return page.IsVisible(indicator)
			}); err != nil {
				return err
			}
			return pollUntil(ctx, func() (bool, error) {
				visible, err := page.IsVisible(indicator)
				return !visible, err
			})
		},
	}

	navigatedAway := Observer{
		Outcome: OutcomeNavigatedAway,
		Wait: func(ctx context.Context) error {
			return pollUntil(ctx, func() (bool, error) {
				if page.IsClosed() {
					return true, nil
				}
				return !strings.HasPrefix(page.URL(), formURL), nil
			})
		},
	}

	return Race(ctx, saved, navigatedAway)
}

// pollUntil re-evaluates cond on a fixed interval until it holds, it fails,
// or ctx is cancelled.
func pollUntil(ctx context.Context, cond func() (bool, error)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// normalSwitchScript forces the "normal product" toggle off. The switch is a
// styled React control, so the aria state and the visuals are updated
// together.
const normalSwitchScript = `() => {
	const handle = document.querySelector('#normal-switch');
	const bg = handle.parentElement.querySelector('.react-switch-bg');
	const checkIcon = bg.children[0];
	const crossIcon = bg.children[1];
	if (handle.getAttribute('aria-checked') === 'true') {
		handle.setAttribute('aria-checked', 'false');
		handle.style.transform = 'translateX(0px)';
		bg.style.background = '#ccc';
		checkIcon.style.opacity = '0';
		crossIcon.style.opacity = '1';
	}
}`
