package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/pricescout/pkg/browser"
	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
)

// cardExtractor is one extraction strategy. The common flat strategy pairs
// parallel selector lists positionally; sites whose markup cannot be paired
// that way get a scoped or specialised implementation.
type cardExtractor interface {
	extract(page playwright.Page, adapter *Adapter, log *logging.Logger) ([]RawListing, error)
}

// extractSource opens an isolated page on the shared session, navigates to
// the adapter's search URL and runs the adapter's extraction strategy. The
// page is closed best-effort on every path; a selector-wait timeout is
// tolerated and extraction proceeds with whatever is present.
func extractSource(ctx context.Context, session *browser.Session, adapter *Adapter, query Query, cfg config.ScrapeConfig, log *logging.Logger) ([]RawListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := session.NewPage()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", adapter.Source, err)
	}
	defer func() {
		_ = page.Close() // best effort, never escalate
	}()

	url := adapter.BuildURL(query.SearchString)
	log.Debugf("%s: navigating to %s", adapter.Source, url)

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(cfg.NavigationTimeout.Milliseconds())),
	}); err != nil {
		return nil, fmt.Errorf("%s: navigation failed: %w", adapter.Source, err)
	}

	waitSelector := adapter.PriceSelector
	if adapter.ResultListSelector != "" {
		waitSelector = adapter.ResultListSelector
	}
	if _, err := page.WaitForSelector(waitSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(cfg.SelectorTimeout.Milliseconds())),
	}); err != nil {
		log.Warnf("%s: results not found within timeout: %v", adapter.Source, err)
	}

	return adapter.strategy.extract(page, adapter, log)
}

// flatExtractor matches title/price/store elements as parallel lists and
// pairs them positionally.
type flatExtractor struct{}

func (flatExtractor) extract(page playwright.Page, adapter *Adapter, log *logging.Logger) ([]RawListing, error) {
	titles, err := evalStrings(page, adapter.TitleSelector,
		"els => els.map(e => e.innerText.trim())")
	if err != nil {
		return nil, fmt.Errorf("%s: title extraction failed: %w", adapter.Source, err)
	}

	priceTexts, err := evalStrings(page, adapter.PriceSelector,
		"els => els.map(e => e.innerText.trim())")
	if err != nil {
		return nil, fmt.Errorf("%s: price extraction failed: %w", adapter.Source, err)
	}

	var stores []string
	if adapter.ShopSelector != "" {
		// Look for the store inside the title element first, then in the
		// nearest enclosing result container.
		stores, err = evalStrings(page, adapter.TitleSelector, `(els, sel) => els.map(el => {
			let shop = el.querySelector(sel);
			if (!shop) {
				let container = el.closest('.snize-overhidden, .product-item-wrapper, .card, article');
				if (!container) container = el.parentElement;
				shop = container ? container.querySelector(sel) : null;
			}
			return shop ? shop.innerText.replace(/\s+/g, ' ').trim() : '';
		})`, adapter.ShopSelector)
		if err != nil {
			log.Warnf("%s: store extraction failed: %v", adapter.Source, err)
			stores = nil
		}
	}

	var hrefs []string
	if adapter.URLSelector != "" {
		hrefs, err = evalStrings(page, adapter.TitleSelector, `(els, sel) => els.map(el => {
			let href = el.getAttribute('href');
			if (!href) {
				const a = el.querySelector('a');
				if (a) href = a.getAttribute('href');
			}
			if (!href) {
				const q = el.querySelector(sel);
				if (q) {
					href = q.getAttribute('href');
				} else {
					const c = el.closest(sel);
					if (c) href = c.getAttribute('href');
				}
			}
			return href || '';
		})`, adapter.URLSelector)
		if err != nil {
			log.Warnf("%s: url extraction failed: %v", adapter.Source, err)
			hrefs = nil
		}
	}

	return pairListings(titles, priceTexts, stores, hrefs, adapter.BaseURL), nil
}

// pairListings joins parallel selector lists positionally. Title count is
// authoritative; shorter sibling lists leave the corresponding fields empty.
func pairListings(titles, priceTexts, stores, hrefs []string, baseURL string) []RawListing {
	listings := make([]RawListing, 0, len(titles))
	for i, title := range titles {
		if title == "" {
			continue
		}

		listing := RawListing{Title: title}
		if i < len(priceTexts) {
			listing.Price = parsePricePtr(priceTexts[i])
		}
		if i < len(stores) {
			listing.Store = stores[i]
		}
		if i < len(hrefs) {
			listing.URL = ResolveURL(baseURL, hrefs[i])
		}
		listings = append(listings, listing)
	}
	return listings
}

// cardScopedExtractor scopes title, price, store and link to an enclosing
// card element. Used where flat lists pair unreliably.
type cardScopedExtractor struct{}

func (cardScopedExtractor) extract(page playwright.Page, adapter *Adapter, log *logging.Logger) ([]RawListing, error) {
	cards, err := page.QuerySelectorAll(adapter.CardSelector)
	if err != nil {
		return nil, fmt.Errorf("%s: card query failed: %w", adapter.Source, err)
	}
	log.Debugf("%s: found %d product cards", adapter.Source, len(cards))

	var listings []RawListing
	for _, card := range cards {
		title := elementText(card, adapter.TitleSelector)
		price := parsePricePtr(elementText(card, adapter.PriceSelector))

		// A card without both a title and a parsable price is noise.
		if title == "" || price == nil {
			continue
		}

		listing := RawListing{
			Title: title,
			Price: price,
			Store: elementText(card, adapter.ShopSelector),
		}
		if href := elementAttr(card, "a", "href"); href != "" {
			listing.URL = ResolveURL(adapter.BaseURL, href)
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

// auctionExtractor handles the auction-style result page, where cards are
// drawn from the current layout with at least one legacy fallback and a card
// missing a usable title or price is skipped rather than aborting the batch.
type auctionExtractor struct{}

func (auctionExtractor) extract(page playwright.Page, adapter *Adapter, log *logging.Logger) ([]RawListing, error) {
	cards, err := page.QuerySelectorAll(adapter.ResultListSelector + " > li")
	if err != nil || len(cards) == 0 {
		cards, err = page.QuerySelectorAll(adapter.FallbackCardSelectors)
		if err != nil {
			return nil, fmt.Errorf("%s: card query failed: %w", adapter.Source, err)
		}
	}

	var listings []RawListing
	for _, card := range cards {
		data, err := card.Evaluate(auctionCardScript)
		if err != nil {
			log.Debugf("%s: error processing card: %v", adapter.Source, err)
			continue
		}

		fields, ok := data.(map[string]interface{})
		if !ok {
			continue
		}

		title := stringField(fields, "title")
		priceText := stringField(fields, "priceText")
		if title == "" || priceText == "" {
			continue
		}

		price := parsePricePtr(priceText)
		if price == nil {
			continue
		}

		listings = append(listings, RawListing{
			Title: title,
			Price: price,
			URL:   ResolveURL(adapter.BaseURL, stringField(fields, "href")),
		})
	}

	return listings, nil
}

// auctionCardScript extracts the usable fields of one result card in a single
// evaluation, tolerating whichever layout generation the card comes from.
const auctionCardScript = `(el) => {
	const pickNode = (sels) => {
		for (const s of sels) {
			const n = el.querySelector(s);
			if (n) return n;
		}
		return null;
	};

	const a = pickNode([
		'.su-card-container__content a.su-link',
		'.su-card-container__content a',
		'a.su-link',
		'a.image-treatment',
		'a.s-card__link',
		'a'
	]);
	const href = a && a.href ? a.href : '';

	const titleNode = el.querySelector('.s-card__title .su-styled-text.primary')
		|| el.querySelector('.s-card__title')
		|| el.querySelector('[role="heading"]')
		|| el.querySelector('.s-item__title')
		|| el.querySelector('.s-card__title span');
	let title = titleNode ? titleNode.innerText.trim() : '';
	if (title) {
		title = title.replace(/^New listing\s*/i, '').trim();
	}

	const priceNode = pickNode([
		'.s-card__price',
		'.s-item__price',
		'.notranslate',
		'.s-card__price .su-styled-text.positive',
		'.s-card__price span'
	]);
	const priceText = priceNode ? priceNode.innerText.trim() : '';

	return { href, title, priceText };
}`

// evalStrings runs a mapping expression over all elements matching selector
// and returns the result as a string slice.
func evalStrings(page playwright.Page, selector, expression string, args ...interface{}) ([]string, error) {
	result, err := page.EvalOnSelectorAll(selector, expression, args...)
	if err != nil {
		return nil, err
	}

	values, ok := result.([]interface{})
	if !ok {
		return nil, nil
	}

	strs := make([]string, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			strs[i] = s
		}
	}
	return strs, nil
}

// elementText returns the trimmed inner text of the first match under root,
// or "" when the selector is empty or nothing matches.
func elementText(root playwright.ElementHandle, selector string) string {
	if selector == "" {
		return ""
	}
	node, err := root.QuerySelector(selector)
	if err != nil || node == nil {
		return ""
	}
	text, err := node.InnerText()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// elementAttr returns an attribute of the first match under root.
func elementAttr(root playwright.ElementHandle, selector, attr string) string {
	node, err := root.QuerySelector(selector)
	if err != nil || node == nil {
		return ""
	}
	value, err := node.GetAttribute(attr)
	if err != nil {
		return ""
	}
	return value
}

func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
