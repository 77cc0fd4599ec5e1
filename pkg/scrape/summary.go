package scrape

import (
	"sort"
	"strings"
)

// Summarize computes the {low, median, high} statistic over a price set.
// An empty input yields all-nil fields. Median follows standard statistics:
// the mean of the two central elements for even-length inputs.
func Summarize(prices []float64) PriceSummary {
	if len(prices) == 0 {
		return PriceSummary{}
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	low := sorted[0]
	high := sorted[len(sorted)-1]

	var mid float64
	n := len(sorted)
	if n%2 == 1 {
		mid = sorted[n/2]
	} else {
		mid = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return PriceSummary{Low: &low, Mid: &mid, High: &high}
}

// FilterListings keeps a listing only if the model string appears in its
// title (case-insensitive substring) and none of the exclusion terms do.
func FilterListings(listings []RawListing, model string, exclude []string) []RawListing {
	modelLower := strings.ToLower(model)

	var kept []RawListing
	for _, listing := range listings {
		titleLower := strings.ToLower(listing.Title)
		if !strings.Contains(titleLower, modelLower) {
			continue
		}
		if containsAny(titleLower, exclude) {
			continue
		}
		kept = append(kept, listing)
	}
	return kept
}

func containsAny(titleLower string, terms []string) bool {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(titleLower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// listingPrices collects the non-nil prices of a listing set.
func listingPrices(listings []RawListing) []float64 {
	prices := make([]float64, 0, len(listings))
	for _, listing := range listings {
		if listing.Price != nil {
			prices = append(prices, *listing.Price)
		}
	}
	return prices
}
