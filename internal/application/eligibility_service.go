package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meghal86/smart-stake-hunter/internal/domain/eligibility"
	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// StatusUnknown is reported when no signal snapshot exists for a wallet.
// The scorer's own labels cover every other case.
const StatusUnknown = "unknown"

// EligibilityVerdict is the public eligibility sub-resource payload.
type EligibilityVerdict struct {
	Status      string    `json:"status"`
	Score       float64   `json:"score"`
	Reasons     []string  `json:"reasons"`
	CachedUntil time.Time `json:"cached_until"`
}

// EligibilityService scores wallet/opportunity pairs with a read-through
// verdict cache.
type EligibilityService struct {
	store   persistence.OpportunityStore
	signals persistence.SignalsStore
	cache   ResponseCache
	ttl     time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// NewEligibilityService wires the service. cache may be nil to disable the
// verdict cache; signals may be nil, in which case every wallet reads as
// unknown.
func NewEligibilityService(store persistence.OpportunityStore, signals persistence.SignalsStore, cache ResponseCache, ttl time.Duration, log zerolog.Logger) *EligibilityService {
	return &EligibilityService{
		store:   store,
		signals: signals,
		cache:   cache,
		ttl:     ttl,
		log:     log.With().Str("component", "eligibility").Logger(),
		now:     time.Now,
	}
}

// Check scores one wallet against one opportunity. A malformed wallet is
// rejected before any lookup; an unknown opportunity surfaces
// persistence.ErrNotFound; a wallet with no ingested history gets status
// "unknown" rather than an error.
func (s *EligibilityService) Check(ctx context.Context, wallet, opportunityID string) (*EligibilityVerdict, error) {
	if !ValidWallet(wallet) {
		return nil, fmt.Errorf("%w: %q", ErrBadWallet, wallet)
	}

	key := "elig:" + wallet + ":" + opportunityID
	if v, ok := s.readCached(ctx, key); ok {
		return v, nil
	}

	row, err := s.store.GetOpportunity(ctx, opportunityID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	verdict := &EligibilityVerdict{
		Status:      StatusUnknown,
		Reasons:     []string{"No on-chain history for this wallet"},
		CachedUntil: s.now().UTC().Add(s.ttl),
	}

	snapshot, err := s.lookupSignals(ctx, wallet)
	switch {
	case err == nil:
		chain := ""
		if len(row.Chains) > 0 {
			chain = row.Chains[0]
		}
		result := eligibility.Score(eligibilitySignals(snapshot, chain))
		verdict.Status = string(result.Label)
		verdict.Score = result.Score
		verdict.Reasons = result.Reasons
	case errors.Is(err, persistence.ErrNotFound):
		// keep the unknown verdict
	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.writeCached(ctx, key, verdict)
	return verdict, nil
}

func (s *EligibilityService) lookupSignals(ctx context.Context, wallet string) (persistence.WalletSignals, error) {
	if s.signals == nil {
		return persistence.WalletSignals{}, persistence.ErrNotFound
	}
	return s.signals.FetchWalletSignals(ctx, wallet)
}

func (s *EligibilityService) readCached(ctx context.Context, key string) (*EligibilityVerdict, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var v EligibilityVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn().Err(err).Msg("corrupt eligibility cache entry, rescoring")
		return nil, false
	}
	if s.now().UTC().After(v.CachedUntil) {
		return nil, false
	}
	return &v, true
}

func (s *EligibilityService) writeCached(ctx context.Context, key string, v *EligibilityVerdict) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to serialize eligibility verdict")
		return
	}
	s.cache.Set(ctx, key, raw, s.ttl)
}
