package search

import (
	"github.com/goccy/go-json"

	"github.com/rewired-gh/curio/internal/pricing"
)

// pagemap is the subset of Custom Search structured data that carries prices.
type pagemap struct {
	Offer    []map[string]any `json:"offer"`
	Product  []map[string]any `json:"product"`
	Metatags []map[string]any `json:"metatags"`
}

var (
	offerPriceKeys   = []string{"price", "lowprice", "highprice"}
	metatagPriceKeys = []string{"product:price:amount", "og:price:amount", "twitter:data1"}
)

// offerPrice returns the first parseable structured price in a raw pagemap.
// Offers win over products, and products over page metatags.
func offerPrice(raw []byte) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var pm pagemap
	if err := json.Unmarshal(raw, &pm); err != nil {
		return 0, false
	}

	for _, group := range [][]map[string]any{pm.Offer, pm.Product} {
		if p, ok := firstPrice(group, offerPriceKeys); ok {
			return p, true
		}
	}
	return firstPrice(pm.Metatags, metatagPriceKeys)
}

func firstPrice(entries []map[string]any, keys []string) (float64, bool) {
	for _, entry := range entries {
		for _, key := range keys {
			switch v := entry[key].(type) {
			case string:
				if p, ok := pricing.ParsePrice(v); ok {
					return p, true
				}
			case float64:
				if v > 0 {
					return v, true
				}
			}
		}
	}
	return 0, false
}
