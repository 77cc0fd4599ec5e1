package scrape

import (
	"strings"
)

// SpaceEncoding selects how spaces in the search term are encoded into the
// adapter URL. Adapter-specific: some sites want "+", others a percent-encoded
// space.
type SpaceEncoding int

const (
	// EncodePercent encodes spaces as %20.
	EncodePercent SpaceEncoding = iota

	// EncodePlus encodes spaces as +.
	EncodePlus
)

// Adapter is the immutable per-source extraction descriptor. The registry is
// populated at process start and never mutated; selectors are expected to go
// stale when a site redesigns and are maintained here as configuration data.
type Adapter struct {
	// Source is the competitor identifier, the registry key.
	Source string

	// URLTemplate is the search URL with a single {query} placeholder.
	URLTemplate string

	// BaseURL resolves relative detail links.
	BaseURL string

	PriceSelector string
	TitleSelector string
	ShopSelector  string
	URLSelector   string

	// CardSelector scopes per-card extraction when the site's markup does
	// not support positional pairing of flat selector lists.
	CardSelector string

	// ResultListSelector and FallbackCardSelectors drive the auction-style
	// extraction where result cards come from multiple layout generations.
	ResultListSelector    string
	FallbackCardSelectors string

	Encoding SpaceEncoding

	// strategy is the extraction implementation for this adapter, resolved
	// once at registration.
	strategy cardExtractor
}

// BuildURL substitutes the search term into the adapter's URL template.
func (a *Adapter) BuildURL(searchString string) string {
	encoded := searchString
	switch a.Encoding {
	case EncodePlus:
		encoded = strings.ReplaceAll(searchString, " ", "+")
	case EncodePercent:
		encoded = strings.ReplaceAll(searchString, " ", "%20")
	}
	return strings.ReplaceAll(a.URLTemplate, "{query}", encoded)
}

// ResolveURL absolutizes a scraped href against the adapter's base URL.
func ResolveURL(baseURL, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return base + "/" + href
}

// registry is the closed set of supported competitor sources.
var registry = map[string]*Adapter{
	"CashConverters": {
		Source:  "CashConverters",
		BaseURL: "https://www.cashconverters.co.uk",
		URLTemplate: "https://www.cashconverters.co.uk/search-results?" +
			"Sort=price&page=1" +
			"&f%5Bcategory%5D%5B0%5D=all&f%5Blocations%5D%5B0%5D=all" +
			"&query={query}",
		PriceSelector: ".product-item__price",
		TitleSelector: ".product-item__title__description",
		ShopSelector:  ".product-item__title__location",
		URLSelector:   ".product-item__title, .product-item__image a",
		CardSelector:  ".product-item-wrapper",
		Encoding:      EncodePercent,
		strategy:      cardScopedExtractor{},
	},
	"CashGenerator": {
		Source:  "CashGenerator",
		BaseURL: "https://cashgenerator.co.uk",
		URLTemplate: "https://cashgenerator.co.uk/pages/search-results-page?" +
			"q={query}&tab=products&sort_by=price&sort_order=asc&page=1",
		PriceSelector: ".snize-price.money",
		TitleSelector: ".snize-title",
		ShopSelector:  ".snize-attribute",
		URLSelector:   ".snize-view-link",
		Encoding:      EncodePercent,
		strategy:      flatExtractor{},
	},
	"CEX": {
		Source:        "CEX",
		BaseURL:       "https://uk.webuy.com",
		URLTemplate:   "https://uk.webuy.com/search?stext={query}&Grade=B",
		PriceSelector: ".product-main-price",
		TitleSelector: ".card-title",
		URLSelector:   ".card-title a",
		Encoding:      EncodePlus,
		strategy:      flatExtractor{},
	},
	"eBay": {
		Source:  "eBay",
		BaseURL: "https://ebay.co.uk",
		URLTemplate: "https://www.ebay.co.uk/sch/i.html?" +
			"_nkw={query}&_sacat=0&_from=R40" +
			"&LH_ItemCondition=3000&LH_PrefLoc=1" +
			"&LH_Sold=1&LH_Complete=1",
		PriceSelector:         ".s-card__price, .su-styled-text.primary.bold.large-1.s-card__price",
		TitleSelector:         ".s-card__title",
		URLSelector:           ".su-card-container__content > a",
		ResultListSelector:    "#srp-river-results > ul",
		FallbackCardSelectors: "li.s-card, li.s-item, #srp-river-results ul li",
		Encoding:              EncodePlus,
		strategy:              auctionExtractor{},
	},
}

// Lookup resolves a source identifier to its adapter.
func Lookup(source string) (*Adapter, bool) {
	adapter, ok := registry[source]
	return adapter, ok
}

// Sources returns the registered source identifiers.
func Sources() []string {
	sources := make([]string, 0, len(registry))
	for source := range registry {
		sources = append(sources, source)
	}
	return sources
}
