package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// blockedResourceTypes are request types aborted on automation pages to cut
// page-load time. The sites render listing data without them.
var blockedResourceTypes = map[string]struct{}{
	"image":      {},
	"stylesheet": {},
	"font":       {},
	"media":      {},
}

// NewPage opens an isolated page in the shared context with the standard
// automation setup applied: non-essential resources are blocked and the
// fixed desktop user agent is set to reduce bot-detection friction.
func (s *Session) NewPage() (playwright.Page, error) {
	page, err := s.Context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.Route("**/*", func(route playwright.Route) {
		if _, blocked := blockedResourceTypes[route.Request().ResourceType()]; blocked {
			_ = route.Abort()
			return
		}
		_ = route.Continue()
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to install resource blocking: %w", err)
	}

	if err := page.SetExtraHTTPHeaders(map[string]string{
		"User-Agent": s.userAgent,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}

	return page, nil
}

// NewPlainPage opens a page without resource blocking, for flows where the
// target application needs its stylesheets and scripts intact (the POS and
// stock systems are interactive apps, not scrape targets).
func (s *Session) NewPlainPage() (playwright.Page, error) {
	page, err := s.Context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.SetExtraHTTPHeaders(map[string]string{
		"User-Agent": s.userAgent,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}

	return page, nil
}
