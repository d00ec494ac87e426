package pricing

import (
	"strings"

	"github.com/rewired-gh/curio/internal/models"
)

// maxPlainQueryLength is the length above which a query is treated as already
// well-formed and left untouched.
const maxPlainQueryLength = 70

var (
	priceTerms       = []string{"price", "value", "worth", "cost"}
	marketplaceTerms = []string{"for sale", "buy", "marketplace", "ebay", "sold"}
	collectibleTerms = []string{"collectible", "collection", "collector", "vintage", "antique", "rare"}
)

// EnhanceQuery biases a raw query toward collectible marketplace results.
// Each augmentation is skipped on its own when the query already covers it,
// so running the enhancer on its own output appends nothing.
func EnhanceQuery(query string) string {
	query = strings.TrimSpace(query)
	if len(query) > maxPlainQueryLength || strings.Contains(query, " price ") {
		return query
	}

	lower := strings.ToLower(query)
	parts := []string{query}
	if !containsAny(lower, priceTerms) {
		parts = append(parts, "price value worth")
	}
	if !containsAny(lower, marketplaceTerms) {
		parts = append(parts, "for sale ebay sold listings")
	}
	if !containsAny(lower, collectibleTerms) {
		parts = append(parts, "collectible")
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// BuildQuery assembles the raw search string for an identity: name,
// manufacturer, type and category when not already mentioned, year, then the
// condition as free text.
func BuildQuery(id models.Identity) string {
	var parts []string
	mentioned := func(s string) bool {
		return strings.Contains(strings.ToLower(strings.Join(parts, " ")), strings.ToLower(s))
	}

	if name := strings.TrimSpace(id.Name); name != "" {
		parts = append(parts, name)
	}
	if m := strings.TrimSpace(id.Manufacturer); m != "" && !mentioned(m) {
		parts = append(parts, m)
	}
	if t := strings.TrimSpace(id.Type); t != "" && !strings.Contains(strings.ToLower(id.Name), strings.ToLower(t)) {
		parts = append(parts, t)
	}
	if y := strings.TrimSpace(id.YearProduced); y != "" && !mentioned(y) {
		parts = append(parts, y)
	}
	if c := strings.TrimSpace(id.Category); c != "" && !mentioned(c) {
		parts = append(parts, c)
	}
	if cond := strings.TrimSpace(id.Condition); cond != "" {
		parts = append(parts, cond)
	}
	return strings.Join(parts, " ")
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
