package opportunity

import "time"

// Row is the raw opportunity record as stored. It is the single point where
// loosely-typed storage data enters the domain: every field is either
// required or an explicit pointer, and FromRow is the only consumer.
type Row struct {
	ID              string
	Slug            string
	Title           string
	Description     string
	ProtocolName    string
	ProtocolLogoURL string
	Type            string
	Chains          []string
	RewardMin       *float64
	RewardMax       *float64
	RewardCurrency  string
	RewardConfirmed bool
	APR             *float64
	TrustScore      int
	TrustScannedAt  *time.Time
	TrustIssues     []string
	Urgency         string
	Difficulty      string
	Featured        bool
	Sponsored       bool
	ExternalURL     string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PublishedAt     *time.Time
	ExpiresAt       *time.Time
}

// FromRow maps a storage row into the public Opportunity shape. Badges and
// the trust level are derived here and never read from storage; reward
// bounds are swapped if stored inverted; the trust score is clamped to
// [0,100]. now anchors the remaining-time computation so a page is
// internally consistent.
func FromRow(row Row, now time.Time) Opportunity {
	score := row.TrustScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	min, max := row.RewardMin, row.RewardMax
	if min != nil && max != nil && *min > *max {
		min, max = max, min
	}

	confidence := RewardEstimated
	if row.RewardConfirmed {
		confidence = RewardConfirmed
	}

	var endsIn *int64
	if row.ExpiresAt != nil {
		secs := int64(row.ExpiresAt.Sub(now) / time.Second)
		if secs < 0 {
			secs = 0
		}
		endsIn = &secs
	}

	return Opportunity{
		ID:          row.ID,
		Slug:        row.Slug,
		Title:       row.Title,
		Description: row.Description,
		Protocol: Protocol{
			Name:    row.ProtocolName,
			LogoURL: row.ProtocolLogoURL,
		},
		Type:   Type(row.Type),
		Chains: append([]string(nil), row.Chains...),
		Reward: Reward{
			Min:        min,
			Max:        max,
			Currency:   row.RewardCurrency,
			Confidence: confidence,
		},
		APR: row.APR,
		Trust: Trust{
			Score:         score,
			Level:         TrustLevelFor(score),
			LastScannedAt: row.TrustScannedAt,
			Issues:        append([]string(nil), row.TrustIssues...),
		},
		Urgency:     row.Urgency,
		Difficulty:  row.Difficulty,
		Featured:    row.Featured,
		Sponsored:   row.Sponsored,
		EndsIn:      endsIn,
		ExternalURL: row.ExternalURL,
		Badges:      DeriveBadges(row.Featured, row.Sponsored),
		Status:      Status(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		PublishedAt: row.PublishedAt,
		ExpiresAt:   row.ExpiresAt,
	}
}
