package pricing

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// amount matches a number with optional thousands separators and up to two decimals.
const amount = `(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`

var (
	rangePattern    = regexp.MustCompile(`\$` + amount + `\s*(?:-|–|to)\s*\$` + amount)
	currencyPattern = regexp.MustCompile(`\$` + amount)
	wordPattern     = regexp.MustCompile(`(?i)` + amount + `\s*(?:dollars|usd)\b`)
)

// Observation is a single price value extracted from text, with the byte
// offset of the match that produced it.
type Observation struct {
	Value  float64
	Offset int
}

type span struct{ start, end int }

// standalone reports whether the amount at text[start:end] is a whole number:
// not followed by another digit and, when checkLeft is set, not glued to a
// preceding word or number ("SKU12345 USD").
func standalone(text string, start, end int, checkLeft bool) bool {
	if end < len(text) && isDigit(text[end]) {
		return false
	}
	if checkLeft && start > 0 {
		c := text[start-1]
		if isDigit(c) || c == '_' || c == '.' || c == ',' ||
			('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

// ExtractObservations returns every price mention in text, ordered by position.
// Ranges ("$A - $B") collapse to their midpoint and their endpoints are not
// counted again. Non-finite and non-positive values are dropped.
func ExtractObservations(text string) []Observation {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		obs   []Observation
		taken []span
	)

	for _, m := range rangePattern.FindAllStringSubmatchIndex(text, -1) {
		a, okA := parseAmount(text[m[2]:m[3]])
		b, okB := parseAmount(text[m[4]:m[5]])
		taken = append(taken, span{m[0], m[1]})
		if !okA || !okB || !standalone(text, m[4], m[5], false) {
			continue
		}
		if mid := (a + b) / 2; valid(mid) {
			obs = append(obs, Observation{Value: mid, Offset: m[0]})
		}
	}

	for _, m := range currencyPattern.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(taken, m[0], m[1]) {
			continue
		}
		taken = append(taken, span{m[0], m[1]})
		if !standalone(text, m[2], m[3], false) {
			continue
		}
		if v, ok := parseAmount(text[m[2]:m[3]]); ok {
			obs = append(obs, Observation{Value: v, Offset: m[0]})
		}
	}

	for _, m := range wordPattern.FindAllStringSubmatchIndex(text, -1) {
		// "$100 USD" was already counted by the currency rule
		if overlaps(taken, m[2], m[3]) || !standalone(text, m[2], m[3], true) {
			continue
		}
		taken = append(taken, span{m[0], m[1]})
		if v, ok := parseAmount(text[m[2]:m[3]]); ok {
			obs = append(obs, Observation{Value: v, Offset: m[0]})
		}
	}

	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Offset < obs[j].Offset })
	return obs
}

// ExtractPrices is the bulk path: all price values found in text.
func ExtractPrices(text string) []float64 {
	obs := ExtractObservations(text)
	if len(obs) == 0 {
		return nil
	}
	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = o.Value
	}
	return values
}

// ExtractPrice returns the representative price of a single listing: the
// earliest positioned match in text.
func ExtractPrice(text string) (float64, bool) {
	obs := ExtractObservations(text)
	if len(obs) == 0 {
		return 0, false
	}
	return obs[0].Value, true
}

// ParsePrice parses a loosely formatted price string such as "$1,299.00" or
// "45 USD". Used for structured offer metadata.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, ok := ExtractPrice(s); ok {
		return v, true
	}
	return parseAmount(s)
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || !valid(v) {
		return 0, false
	}
	return v, true
}

func valid(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
