// Package feed ranks opportunity candidates and enforces the sponsored
// placement cap for one page of the Hunter feed.
package feed

import (
	"sort"

	"github.com/meghal86/smart-stake-hunter/internal/domain/opportunity"
)

// Fixed rank weights. Raw components arrive from the store layer already
// normalized to [0,1]; the formula itself lives here.
const (
	WeightRelevance = 0.60
	WeightTrust     = 0.25
	WeightFreshness = 0.15
)

// Candidate pairs an opportunity with its raw rank components.
type Candidate struct {
	Opportunity opportunity.Opportunity
	Relevance   float64
	Trust       float64
	Freshness   float64
}

// RankScore is the weighted decomposition of a candidate's rank. Recomputed
// on every query, never cached by the core.
type RankScore struct {
	RelevanceWeighted float64 `json:"relevance_weighted"`
	TrustWeighted     float64 `json:"trust_weighted"`
	FreshnessWeighted float64 `json:"freshness_weighted"`
	Total             float64 `json:"total"`
}

// Item is a ranked feed entry.
type Item struct {
	opportunity.Opportunity
	Score RankScore `json:"-"`
}

// Rank computes the weighted rank score for one candidate. Out-of-range raw
// components are clamped to [0,1] so the total stays in [0,1].
func Rank(c Candidate) RankScore {
	rel := clamp01(c.Relevance) * WeightRelevance
	trust := clamp01(c.Trust) * WeightTrust
	fresh := clamp01(c.Freshness) * WeightFreshness
	return RankScore{
		RelevanceWeighted: rel,
		TrustWeighted:     trust,
		FreshnessWeighted: fresh,
		Total:             rel + trust + fresh,
	}
}

// RankAll scores every candidate, preserving input order.
func RankAll(candidates []Candidate) []Item {
	items := make([]Item, len(candidates))
	for i, c := range candidates {
		items[i] = Item{Opportunity: c.Opportunity, Score: Rank(c)}
	}
	return items
}

// SortRecommended orders items by rank score descending, then published_at
// descending, then id ascending. The id tie-break makes the order total, so
// identical inputs always paginate identically.
func SortRecommended(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		ap, bp := a.PublishedAt, b.PublishedAt
		switch {
		case ap != nil && bp != nil && !ap.Equal(*bp):
			return ap.After(*bp)
		case ap != nil && bp == nil:
			return true
		case ap == nil && bp != nil:
			return false
		}
		return a.ID < b.ID
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
