package scrape

// Query is the normalized form of a raw search string.
type Query struct {
	// Model is the primary subject, e.g. a product name.
	Model string

	// Filters are the remaining key/value attributes in insertion order.
	Filters []Filter

	// SearchString is the model plus filter values joined for use as the
	// literal site search term.
	SearchString string
}

// Filter is one query attribute, e.g. Storage: 256GB.
type Filter struct {
	Key   string
	Value string
}

// RawListing is one scraped competitor row.
type RawListing struct {
	// Title is the listing title as shown on the site.
	Title string

	// Price is the parsed numeric price, nil when absent or unparsable.
	Price *float64

	// Store is the branch or seller name, empty when the site has none.
	Store string

	// URL is the absolute detail link, empty when the site exposes none.
	URL string
}

// PriceSummary is the three-point statistic over a price set. All fields are
// nil when the input set is empty.
type PriceSummary struct {
	Low  *float64 `json:"low"`
	Mid  *float64 `json:"mid"`
	High *float64 `json:"high"`
}

// AggregatedListing is a RawListing tagged with its source and the summary
// computed over all listings from that source for the same query.
type AggregatedListing struct {
	Source  string       `json:"competitor"`
	Title   string       `json:"title"`
	Price   *float64     `json:"price"`
	Store   string       `json:"store,omitempty"`
	URL     string       `json:"url,omitempty"`
	Summary PriceSummary `json:"summary"`
}
