package pricing

import (
	"math"
	"strings"

	"github.com/rewired-gh/curio/internal/models"
)

const (
	baseScore     = 20
	minFinalScore = 10
	maxFinalScore = 100

	maxVolumePoints      = 30
	maxDiversityPoints   = 15
	maxReputablePoints   = 15
	maxSpecificityPoints = 10

	marketplaceBonus = 5
	auctionBonus     = 10
	conditionBonus   = 5
)

// DefaultReputableDomains are known marketplaces and auction houses whose
// listings carry weight.
var DefaultReputableDomains = []string{
	"ebay.com", "sothebys.com", "christies.com", "ha.com", "heritageauctions.com",
	"worthpoint.com", "rubylane.com", "bonhams.com", "catawiki.com", "invaluable.com",
	"liveauctioneers.com", "hemmings.com", "phillips.com", "abebooks.com", "justcollecting.com",
}

// DefaultAuctionHouses earn the auction-house bonus.
var DefaultAuctionHouses = []string{
	"sothebys.com", "christies.com", "bonhams.com", "ha.com", "heritageauctions.com",
}

// DefaultMarketplaceDomain earns the marketplace bonus.
const DefaultMarketplaceDomain = "ebay.com"

var specificityKeywords = []string{
	"model", "serial", "edition", "condition", "mint", "sealed", "year",
	"authentic", "original", "number", "limited", "size", "brand", "maker",
}

// ScorerConfig holds the domain lists used by the confidence scorer.
type ScorerConfig struct {
	ReputableDomains  []string
	AuctionHouses     []string
	MarketplaceDomain string
}

// DefaultScorerConfig returns the built-in domain lists.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		ReputableDomains:  DefaultReputableDomains,
		AuctionHouses:     DefaultAuctionHouses,
		MarketplaceDomain: DefaultMarketplaceDomain,
	}
}

// Scorer turns a distribution plus context signals into a ConfidenceScore.
type Scorer struct {
	reputable   []string
	auction     []string
	marketplace string
}

// NewScorer creates a Scorer. Empty lists fall back to the defaults.
func NewScorer(cfg ScorerConfig) *Scorer {
	s := &Scorer{
		reputable:   normalizeDomains(cfg.ReputableDomains),
		auction:     normalizeDomains(cfg.AuctionHouses),
		marketplace: NormalizeHost(cfg.MarketplaceDomain),
	}
	if len(s.reputable) == 0 {
		s.reputable = DefaultReputableDomains
	}
	if len(s.auction) == 0 {
		s.auction = DefaultAuctionHouses
	}
	if s.marketplace == "" {
		s.marketplace = DefaultMarketplaceDomain
	}
	return s
}

// ScoreInput is everything the scorer looks at. Sources may be nil.
type ScoreInput struct {
	Distribution models.PriceDistribution
	Sources      models.SourceSet
	Query        string
	Condition    string
}

// Score computes the additive confidence score. Every term is capped on its
// own and the total is clamped to [10, 100]. Missing inputs add nothing.
func (s *Scorer) Score(in ScoreInput) models.ConfidenceScore {
	d := in.Distribution
	score := baseScore
	factors := []models.Factor{}
	add := func(label string, points int) {
		if points == 0 {
			return
		}
		score += points
		factors = append(factors, models.Factor{Label: label, Impact: points})
	}

	add("Data volume", VolumePoints(d.Count))

	if d.Count > 1 && d.Average != nil && *d.Average > 0 && d.CV != nil {
		add("Price consistency", ConsistencyPoints(*d.CV))
	}
	if d.Count > 1 && d.OutlierRatio != nil {
		add("Few outliers", OutlierPoints(*d.OutlierRatio))
	}

	add("Source diversity", min(3*in.Sources.Distinct(), maxDiversityPoints))

	reputable := 0
	hasMarketplace, hasAuction := false, false
	for host := range in.Sources {
		host = NormalizeHost(host)
		if matchesDomain(host, s.reputable) {
			reputable++
		}
		if matchesDomain(host, []string{s.marketplace}) {
			hasMarketplace = true
		}
		if matchesDomain(host, s.auction) {
			hasAuction = true
		}
	}
	add("Reputable sources", min(5*reputable, maxReputablePoints))
	if hasMarketplace {
		add("Marketplace listings", marketplaceBonus)
	}
	if hasAuction {
		add("Auction house results", auctionBonus)
	}

	add("Query specificity", SpecificityPoints(in.Query))

	if strings.TrimSpace(in.Condition) != "" {
		add("Condition specified", conditionBonus)
	}

	score = max(minFinalScore, min(score, maxFinalScore))
	return models.ConfidenceScore{
		Score:   score,
		Level:   models.LevelFor(score),
		Factors: factors,
	}
}

// VolumePoints is min(ceil(5 * ln(count + 1)), 30).
func VolumePoints(count int) int {
	if count <= 0 {
		return 0
	}
	return min(int(math.Ceil(5*math.Log(float64(count)+1))), maxVolumePoints)
}

// ConsistencyPoints bands the coefficient of variation.
func ConsistencyPoints(cv float64) int {
	switch {
	case cv < 0.1:
		return 25
	case cv < 0.2:
		return 20
	case cv < 0.3:
		return 15
	case cv < 0.5:
		return 8
	case cv < 0.8:
		return 4
	default:
		return 0
	}
}

// OutlierPoints bands the outlier ratio.
func OutlierPoints(ratio float64) int {
	switch {
	case ratio < 0.05:
		return 15
	case ratio < 0.1:
		return 10
	case ratio < 0.15:
		return 5
	default:
		return 0
	}
}

// SpecificityPoints awards 2 points per distinct specificity keyword, capped at 10.
func SpecificityPoints(query string) int {
	q := strings.ToLower(query)
	points := 0
	for _, kw := range specificityKeywords {
		if strings.Contains(q, kw) {
			points += 2
		}
	}
	return min(points, maxSpecificityPoints)
}

// NormalizeHost lowercases a hostname and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = NormalizeHost(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
