package feed

import (
	"math"
	"testing"
	"time"

	"github.com/meghal86/smart-stake-hunter/internal/domain/opportunity"
)

func TestRank_WeightedSum(t *testing.T) {
	score := Rank(Candidate{Relevance: 1.0, Trust: 1.0, Freshness: 1.0})

	if math.Abs(score.Total-1.0) > 1e-9 {
		t.Errorf("expected total 1.0 for maxed components, got %v", score.Total)
	}
	if score.RelevanceWeighted != 0.60 || score.TrustWeighted != 0.25 || score.FreshnessWeighted != 0.15 {
		t.Errorf("unexpected weighted parts: %+v", score)
	}
}

func TestRank_ClampsRawComponents(t *testing.T) {
	score := Rank(Candidate{Relevance: 1.7, Trust: -0.3, Freshness: 0.5})

	if score.RelevanceWeighted != 0.60 {
		t.Errorf("relevance should clamp to full weight, got %v", score.RelevanceWeighted)
	}
	if score.TrustWeighted != 0 {
		t.Errorf("negative trust should clamp to 0, got %v", score.TrustWeighted)
	}
	if score.Total < 0 || score.Total > 1 {
		t.Errorf("total out of [0,1]: %v", score.Total)
	}
}

func TestSortRecommended_Ordering(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	items := []Item{
		{Opportunity: opportunity.Opportunity{ID: "c", PublishedAt: &t1}, Score: RankScore{Total: 0.5}},
		{Opportunity: opportunity.Opportunity{ID: "b", PublishedAt: &t2}, Score: RankScore{Total: 0.5}},
		{Opportunity: opportunity.Opportunity{ID: "a", PublishedAt: &t2}, Score: RankScore{Total: 0.5}},
		{Opportunity: opportunity.Opportunity{ID: "d", PublishedAt: &t1}, Score: RankScore{Total: 0.9}},
	}

	SortRecommended(items)

	want := []string{"d", "a", "b", "c"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s (order %v)", i, id, items[i].ID, ids(items))
		}
	}
}

func TestSortRecommended_NilPublishedAtSortsLast(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	items := []Item{
		{Opportunity: opportunity.Opportunity{ID: "a"}, Score: RankScore{Total: 0.5}},
		{Opportunity: opportunity.Opportunity{ID: "b", PublishedAt: &t1}, Score: RankScore{Total: 0.5}},
	}

	SortRecommended(items)

	if items[0].ID != "b" {
		t.Errorf("published item should rank ahead of unpublished at equal score, got %v", ids(items))
	}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
