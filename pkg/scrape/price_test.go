package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  float64
		found bool
	}{
		{"plain price", "£188.95", 188.95, true},
		{"range keeps lower bound", "£188.95 to £219.95", 188.95, true},
		{"no numeric value", "N/A", 0, false},
		{"empty string", "", 0, false},
		{"thousands separator", "£1,299.99", 1299.99, true},
		{"unit suffix", "£188.95/Unit", 188.95, true},
		{"parentheses", "(£45.00)", 45.00, true},
		{"integer price", "£70", 70, true},
		{"whitespace only", "   ", 0, false},
		{"embedded text", "from £12.50 each", 12.50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.text)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.InDelta(t, tt.want, got, 0.0001)
			}
		})
	}
}

func TestParsePricePtr(t *testing.T) {
	assert.Nil(t, parsePricePtr("N/A"))

	price := parsePricePtr("£10.00")
	if assert.NotNil(t, price) {
		assert.InDelta(t, 10.0, *price, 0.0001)
	}
}
