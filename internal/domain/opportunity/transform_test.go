package opportunity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func baseRow() Row {
	published := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return Row{
		ID:           "opp-1",
		Slug:         "opp-1",
		Title:        "Bridge Quest",
		ProtocolName: "TestProto",
		Type:         "quest",
		Chains:       []string{"ethereum", "base"},
		TrustScore:   82,
		Status:       "published",
		CreatedAt:    published,
		UpdatedAt:    published,
		PublishedAt:  &published,
	}
}

func TestFromRow_DerivesTrustLevelAndBadges(t *testing.T) {
	row := baseRow()
	row.Featured = true
	row.Sponsored = true

	opp := FromRow(row, time.Now())

	assert.Equal(t, TrustGreen, opp.Trust.Level)
	assert.Equal(t, []Badge{BadgeFeatured, BadgeSponsored}, opp.Badges)
}

func TestFromRow_ClampsTrustScore(t *testing.T) {
	row := baseRow()
	row.TrustScore = 140
	assert.Equal(t, 100, FromRow(row, time.Now()).Trust.Score)

	row.TrustScore = -5
	opp := FromRow(row, time.Now())
	assert.Equal(t, 0, opp.Trust.Score)
	assert.Equal(t, TrustRed, opp.Trust.Level)
}

func TestFromRow_SwapsInvertedRewardBounds(t *testing.T) {
	row := baseRow()
	row.RewardMin = f64(500)
	row.RewardMax = f64(100)

	opp := FromRow(row, time.Now())

	require.NotNil(t, opp.Reward.Min)
	require.NotNil(t, opp.Reward.Max)
	assert.Equal(t, 100.0, *opp.Reward.Min)
	assert.Equal(t, 500.0, *opp.Reward.Max)
}

func TestFromRow_RewardConfidence(t *testing.T) {
	row := baseRow()
	assert.Equal(t, RewardEstimated, FromRow(row, time.Now()).Reward.Confidence)

	row.RewardConfirmed = true
	assert.Equal(t, RewardConfirmed, FromRow(row, time.Now()).Reward.Confidence)
}

func TestFromRow_EndsIn(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	row := baseRow()
	assert.Nil(t, FromRow(row, now).EndsIn, "open-ended opportunities have no deadline")

	expires := now.Add(90 * time.Minute)
	row.ExpiresAt = &expires
	opp := FromRow(row, now)
	require.NotNil(t, opp.EndsIn)
	assert.Equal(t, int64(5400), *opp.EndsIn)

	past := now.Add(-time.Hour)
	row.ExpiresAt = &past
	opp = FromRow(row, now)
	require.NotNil(t, opp.EndsIn)
	assert.Equal(t, int64(0), *opp.EndsIn, "expired deadlines floor at zero")
}

func TestFromRow_CopiesSlices(t *testing.T) {
	row := baseRow()
	row.TrustIssues = []string{"unverified-contract"}

	opp := FromRow(row, time.Now())
	row.Chains[0] = "mutated"
	row.TrustIssues[0] = "mutated"

	assert.Equal(t, "ethereum", opp.Chains[0])
	assert.Equal(t, "unverified-contract", opp.Trust.Issues[0])
}

func TestDeriveBadges_Empty(t *testing.T) {
	assert.Empty(t, DeriveBadges(false, false))
}

func TestTrustLevelFor_Boundaries(t *testing.T) {
	assert.Equal(t, TrustGreen, TrustLevelFor(70))
	assert.Equal(t, TrustAmber, TrustLevelFor(69))
	assert.Equal(t, TrustAmber, TrustLevelFor(40))
	assert.Equal(t, TrustRed, TrustLevelFor(39))
}
