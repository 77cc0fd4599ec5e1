package scrape

import (
	"strings"
)

// ParseQuery normalizes a raw search string. Free text becomes both the model
// and the search string. A structured query uses comma-separated "Key: Value"
// pairs where one key (case-insensitive) is Model:
//
//	"Model: iPhone 15 Pro Max, Storage: 256GB, Color: Black"
//
// yields model "iPhone 15 Pro Max", filters {Storage: 256GB, Color: Black}
// and search string "iPhone 15 Pro Max, 256GB, Black".
func ParseQuery(raw string) Query {
	if !strings.Contains(strings.ToLower(raw), "model:") {
		return Query{Model: raw, SearchString: raw}
	}

	var model string
	var filters []Filter

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		key, value, found := strings.Cut(part, ":")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if strings.EqualFold(key, "model") {
			model = value
		} else {
			filters = append(filters, Filter{Key: key, Value: value})
		}
	}

	// Marker present but nothing mapped to Model: fall back to the raw string.
	if model == "" {
		return Query{Model: raw, Filters: filters, SearchString: raw}
	}

	searchParts := []string{model}
	for _, f := range filters {
		searchParts = append(searchParts, f.Value)
	}

	return Query{
		Model:        model,
		Filters:      filters,
		SearchString: strings.Join(searchParts, ", "),
	}
}
