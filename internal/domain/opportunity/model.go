// Package opportunity defines the public Opportunity shape served by the
// Hunter feed and the transform from raw storage rows into that shape.
package opportunity

import "time"

// Type classifies the reward-earning action.
type Type string

const (
	TypeAirdrop Type = "airdrop"
	TypeQuest   Type = "quest"
	TypeYield   Type = "yield"
	TypePoints  Type = "points"
	TypeTestnet Type = "testnet"
)

// Status is the publication lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusExpired   Status = "expired"
)

// TrustLevel buckets the third-party trust score.
type TrustLevel string

const (
	TrustGreen TrustLevel = "green"
	TrustAmber TrustLevel = "amber"
	TrustRed   TrustLevel = "red"
)

// RewardConfidence marks whether a reward range is confirmed or estimated.
type RewardConfidence string

const (
	RewardConfirmed RewardConfidence = "confirmed"
	RewardEstimated RewardConfidence = "estimated"
)

// Badge is a display badge derived from the featured/sponsored flags.
type Badge string

const (
	BadgeFeatured  Badge = "featured"
	BadgeSponsored Badge = "sponsored"
)

// Protocol identifies the protocol behind an opportunity.
type Protocol struct {
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

// Reward is the expected reward range. Min/Max are nil when unknown.
type Reward struct {
	Min        *float64         `json:"min,omitempty"`
	Max        *float64         `json:"max,omitempty"`
	Currency   string           `json:"currency"`
	Confidence RewardConfidence `json:"confidence"`
}

// Trust carries the collaborator-computed risk rating. Score is 0-100.
type Trust struct {
	Score         int        `json:"score"`
	Level         TrustLevel `json:"level"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty"`
	Issues        []string   `json:"issues,omitempty"`
}

// Opportunity is a publishable reward-earning action. The feed core treats
// it as read-only for the duration of a query.
type Opportunity struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Protocol    Protocol `json:"protocol"`
	Type        Type     `json:"type"`
	Chains      []string `json:"chains"`
	Reward      Reward   `json:"reward"`
	APR         *float64 `json:"apr,omitempty"`
	Trust       Trust    `json:"trust"`
	Urgency     string   `json:"urgency,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Featured    bool     `json:"featured"`
	Sponsored   bool     `json:"sponsored"`

	// EndsIn is remaining time in seconds, nil for open-ended opportunities.
	EndsIn      *int64  `json:"ends_in_seconds"`
	ExternalURL string  `json:"external_url"`
	Badges      []Badge `json:"badges"`
	Status      Status  `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// DeriveBadges returns the badge list implied by the two placement flags.
// Featured always precedes sponsored.
func DeriveBadges(featured, sponsored bool) []Badge {
	badges := make([]Badge, 0, 2)
	if featured {
		badges = append(badges, BadgeFeatured)
	}
	if sponsored {
		badges = append(badges, BadgeSponsored)
	}
	return badges
}

// TrustLevelFor maps a 0-100 trust score onto a level.
func TrustLevelFor(score int) TrustLevel {
	switch {
	case score >= 70:
		return TrustGreen
	case score >= 40:
		return TrustAmber
	default:
		return TrustRed
	}
}
