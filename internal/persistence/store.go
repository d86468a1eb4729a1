// Package persistence defines the storage contracts consumed by the feed
// query service and the whale ingestion worker, plus the records that cross
// that boundary.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/meghal86/smart-stake-hunter/internal/domain/opportunity"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// SortKey selects the candidate ordering requested by the caller.
type SortKey string

const (
	SortRecommended SortKey = "recommended"
	SortNewest      SortKey = "newest"
	SortEndsSoon    SortKey = "ends_soon"
	SortTrust       SortKey = "trust"
)

// ValidSort reports whether s names a supported sort key.
func ValidSort(s SortKey) bool {
	switch s {
	case SortRecommended, SortNewest, SortEndsSoon, SortTrust:
		return true
	}
	return false
}

// CandidateFilter narrows the candidate superset fetched for one feed page.
type CandidateFilter struct {
	Types    []string
	Chains   []string
	TrustMin int
	Search   string
	Sort     SortKey
	// Limit caps the superset size, not the page size.
	Limit int
}

// Candidate is a published opportunity row plus its raw rank components,
// each already normalized to [0,1]. The components are computed here (or by
// a collaborator cache) so the ranking formula stays pure.
type Candidate struct {
	Row       opportunity.Row
	Relevance float64
	Trust     float64
	Freshness float64
}

// OpportunityStore serves feed candidates and single-opportunity lookups.
type OpportunityStore interface {
	FetchCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error)
	GetOpportunity(ctx context.Context, id string) (opportunity.Row, error)
}

// WalletSignals is the on-chain snapshot backing eligibility scoring,
// derived from ingested whale data.
type WalletSignals struct {
	Address         string
	AgeDays         int
	TxCount         int
	ActiveChains    []string
	HoldingsByChain map[string]bool
	AllowlistProof  bool
}

// SignalsStore resolves a wallet's signal snapshot. Returns ErrNotFound
// when nothing is known about the wallet.
type SignalsStore interface {
	FetchWalletSignals(ctx context.Context, address string) (WalletSignals, error)
}

// Provenance records where an ingested event came from, for observability
// and idempotency tracing.
type Provenance struct {
	Provider  string `json:"provider"`
	Method    string `json:"method"`
	RequestID string `json:"request_id"`
}

// WhaleTransfer is a normalized large-transfer event.
type WhaleTransfer struct {
	TS         time.Time
	TxHash     string
	FromAddr   string
	ToAddr     string
	Chain      string
	Token      string
	Amount     float64
	USDValue   float64
	Direction  string
	VenueHint  string
	IsCEX      bool
	Provenance Provenance
	Raw        map[string]interface{}
}

// BalanceUpdate is one leg of a transfer applied to an address balance.
type BalanceUpdate struct {
	TS         time.Time
	Address    string
	Chain      string
	Token      string
	Amount     float64
	USDValue   float64
	Provenance Provenance
}

// WhaleEntity labels a known address (exchange wallet, fund, etc.).
type WhaleEntity struct {
	Address    string
	Chain      string
	Label      string
	EntityType string
	IsCEX      bool
	Meta       map[string]interface{}
}

// WhaleStore persists ingested whale data. InsertTransfer is idempotent on
// (chain, tx_hash, from, to) and reports whether the row was new.
type WhaleStore interface {
	LatestTransferTS(ctx context.Context, chain string) (*time.Time, error)
	InsertTransfer(ctx context.Context, t WhaleTransfer) (bool, error)
	UpsertBalance(ctx context.Context, b BalanceUpdate) error
	UpsertEntity(ctx context.Context, e WhaleEntity) error
}
