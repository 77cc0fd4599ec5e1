package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

var numericPattern = regexp.MustCompile(`\d+\.?\d*`)

// ParsePrice extracts a numeric value from raw price text. It handles
// currency symbols, thousands separators, ranges ("£188.95 to £219.95",
// keeping the lower bound) and trailing unit suffixes ("£188.95/Unit").
// Returns false when no numeric substring exists. Never fails to the caller.
func ParsePrice(text string) (float64, bool) {
	// Ranges keep the first price.
	if left, _, found := strings.Cut(text, " to "); found {
		text = left
	}

	cleaned := strings.NewReplacer(
		"£", "",
		",", "",
		"(", "",
		")", "",
	).Replace(text)
	cleaned = strings.TrimSpace(cleaned)

	match := numericPattern.FindString(cleaned)
	if match == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// parsePricePtr is ParsePrice with pointer semantics for listing fields.
func parsePricePtr(text string) *float64 {
	value, ok := ParsePrice(text)
	if !ok {
		return nil
	}
	return &value
}
