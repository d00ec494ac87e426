// Package models defines the core domain entities for curio.
// These models describe collectible identities, the price distribution and
// confidence score produced by the estimation pipeline, and the per-user
// collection records the estimates are written back onto.
//
// Distribution and confidence values are request-scoped: they are built fresh
// for every estimate and only the derived market value is persisted.
package models

import "strings"

// Identity is the set of descriptive fields used to search for an item's price.
// Every field is optional; an identity with no usable fields yields no search.
type Identity struct {
	Name         string `json:"name,omitempty"`
	Category     string `json:"category,omitempty"`
	Type         string `json:"type,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	YearProduced string `json:"yearProduced,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

// IsEmpty reports whether the identity carries no searchable text.
// Whitespace-only fields count as empty.
func (i Identity) IsEmpty() bool {
	for _, f := range []string{i.Name, i.Category, i.Type, i.Manufacturer, i.YearProduced} {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Listing is one search result returned by the search collaborator.
type Listing struct {
	Title      string   `json:"title"`
	Snippet    string   `json:"snippet"`
	Link       string   `json:"link"`
	OfferPrice *float64 `json:"pagemapOfferPrice,omitempty"`
}

// SourceCount is the number of listings a marketplace hostname contributed.
type SourceCount struct {
	Hostname string `json:"hostname"`
	Count    int    `json:"count"`
}

// SearchResults is the typed contract between the pipeline and the search collaborator.
type SearchResults struct {
	Items   []Listing     `json:"items"`
	Sources []SourceCount `json:"sources"`
}

// SourceSet maps a marketplace hostname to its listing count.
type SourceSet map[string]int

// NewSourceSet builds a SourceSet from provider source counts, merging duplicates.
func NewSourceSet(sources []SourceCount) SourceSet {
	set := make(SourceSet, len(sources))
	for _, s := range sources {
		if s.Hostname == "" {
			continue
		}
		set[s.Hostname] += s.Count
	}
	return set
}

// Distinct returns the number of distinct hostnames in the set.
func (s SourceSet) Distinct() int {
	return len(s)
}

// Float returns a pointer to v, used to populate nullable numeric fields.
func Float(v float64) *float64 {
	return &v
}
