package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuery_Structured(t *testing.T) {
	q := ParseQuery("Model: iPhone 15 Pro Max, Storage: 256GB, Color: Black")

	assert.Equal(t, "iPhone 15 Pro Max", q.Model)
	assert.Equal(t, []Filter{
		{Key: "Storage", Value: "256GB"},
		{Key: "Color", Value: "Black"},
	}, q.Filters)
	assert.Equal(t, "iPhone 15 Pro Max, 256GB, Black", q.SearchString)
}

func TestParseQuery_FreeText(t *testing.T) {
	q := ParseQuery("nintendo switch")

	assert.Equal(t, "nintendo switch", q.Model)
	assert.Empty(t, q.Filters)
	assert.Equal(t, "nintendo switch", q.SearchString)
}

func TestParseQuery_CaseInsensitiveMarker(t *testing.T) {
	q := ParseQuery("model: PS5, Edition: Digital")

	assert.Equal(t, "PS5", q.Model)
	assert.Equal(t, []Filter{{Key: "Edition", Value: "Digital"}}, q.Filters)
	assert.Equal(t, "PS5, Digital", q.SearchString)
}

func TestParseQuery_MarkerWithoutModelSegment(t *testing.T) {
	// The marker appears in a value, but no segment actually maps to Model.
	raw := "Name: remodel: kitchen"
	q := ParseQuery(raw)

	assert.Equal(t, raw, q.Model, "model falls back to the raw string")
	assert.Equal(t, raw, q.SearchString)
}

func TestParseQuery_WhitespaceTrimming(t *testing.T) {
	q := ParseQuery("Model:  iPad Air ,  Storage:64GB  ")

	assert.Equal(t, "iPad Air", q.Model)
	assert.Equal(t, []Filter{{Key: "Storage", Value: "64GB"}}, q.Filters)
	assert.Equal(t, "iPad Air, 64GB", q.SearchString)
}

func TestParseQuery_SegmentsWithoutColonIgnored(t *testing.T) {
	q := ParseQuery("Model: MacBook Pro, just noise, Year: 2021")

	assert.Equal(t, "MacBook Pro", q.Model)
	assert.Equal(t, []Filter{{Key: "Year", Value: "2021"}}, q.Filters)
	assert.Equal(t, "MacBook Pro, 2021", q.SearchString)
}
