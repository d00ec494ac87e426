package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPrices(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []float64
	}{
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"no price", "no price mentioned", nil},
		{"single currency", "Sold for $120.50", []float64{120.50}},
		{"thousands separator", "Hammer price $1,250,000.00 at auction", []float64{1250000}},
		{"several amounts", "Was $45, now $39.99, shipping $5", []float64{45, 39.99, 5}},
		{"range midpoint", "$100 - $200", []float64{150}},
		{"range with text", "$90 - $110 range", []float64{100}},
		{"range using to", "between $10 to $20 typically", []float64{15}},
		{"dollars suffix", "went for 300 dollars last week", []float64{300}},
		{"usd suffix case insensitive", "listed at 1,200.50 usd", []float64{1200.50}},
		{"currency and usd not double counted", "$75 USD shipped", []float64{75}},
		{"zero dropped", "free! $0 or best offer", nil},
		{"mixed ordered by position", "about 50 dollars, sometimes $65", []float64{50, 65}},
		{"digits inside identifier ignored", "SKU12345 USD", nil},
		{"identifier then real price", "lot A7 USD 20, sold 40 USD", []float64{40}},
		{"malformed thousands group rejected", "$1,0000 obo", nil},
		{"extra decimal digits rejected", "$5.999 each", nil},
		{"range with malformed upper bound", "$10 - $2,0000", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPrices(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 0.001)
			}
		})
	}
}

func TestExtractPrices_CountsEveryCurrencyAmount(t *testing.T) {
	text := "Listings: $12 (worn), $1,499.99 (boxed), $7.5 (parts) and $300."
	got := ExtractPrices(text)
	assert.Equal(t, []float64{12, 1499.99, 7.5, 300}, got)
}

func TestExtractPrice_KeepsEarliestMatch(t *testing.T) {
	p, ok := ExtractPrice("Original 40 dollars, now $25")
	require.True(t, ok)
	assert.Equal(t, 40.0, p)

	p, ok = ExtractPrice("Range $10 - $30 then $50")
	require.True(t, ok)
	assert.Equal(t, 20.0, p)

	_, ok = ExtractPrice("nothing here")
	assert.False(t, ok)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"129.99", 129.99, true},
		{"$1,299.00", 1299, true},
		{"45 USD", 45, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"0", 0, false},
		{"-5", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParsePrice(%q)", tt.in)
		if tt.wantOK {
			assert.InDelta(t, tt.want, got, 0.001, "ParsePrice(%q)", tt.in)
		}
	}
}
