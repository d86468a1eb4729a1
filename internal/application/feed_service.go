// Package application orchestrates the Hunter feed: candidate fetch,
// ranking, sponsored capping, cursor pagination, response caching and
// eligibility verdicts.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/meghal86/smart-stake-hunter/internal/domain/eligibility"
	"github.com/meghal86/smart-stake-hunter/internal/domain/feed"
	"github.com/meghal86/smart-stake-hunter/internal/domain/opportunity"
	"github.com/meghal86/smart-stake-hunter/internal/etag"
	"github.com/meghal86/smart-stake-hunter/internal/metrics"
	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

var (
	// ErrStoreUnavailable marks a failed opportunity store read. It is never
	// masked as an empty page.
	ErrStoreUnavailable = errors.New("opportunity store unavailable")
	// ErrBadCursor marks an undecodable or mismatched pagination cursor.
	ErrBadCursor = errors.New("invalid cursor")
	// ErrBadSort marks an unsupported sort key.
	ErrBadSort = errors.New("unsupported sort")
	// ErrBadWallet marks a malformed wallet address, rejected before any
	// scoring runs.
	ErrBadWallet = errors.New("invalid wallet address")
)

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidWallet reports whether addr is a well-formed EVM address.
func ValidWallet(addr string) bool {
	return walletPattern.MatchString(addr)
}

const (
	// DefaultLimit is the page size when the caller does not specify one.
	DefaultLimit = 12
	// MaxLimit caps caller-requested page sizes.
	MaxLimit = 50

	// supersetFloor is the minimum candidate superset fetched per page, so
	// capping and eligibility filtering have room to drop items.
	supersetFloor = 48
)

// ResponseCache is the injected best-effort cache collaborator. Failures
// inside it must surface as misses, never as errors.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// FeedQuery carries the caller's filters for one page.
type FeedQuery struct {
	Wallet       string
	Cursor       string
	Types        []string
	Chains       []string
	TrustMin     int
	Search       string
	EligibleOnly bool
	Sort         persistence.SortKey
	Limit        int
}

// FeedPage is one query result. It is built fresh per request and never
// mutated after construction.
type FeedPage struct {
	Items  []feed.Item `json:"items"`
	Cursor *string     `json:"cursor"`
	TS     time.Time   `json:"ts"`

	// ETag validates the serialized page for conditional requests.
	ETag string `json:"-"`
}

// FeedService runs the feed query pipeline.
type FeedService struct {
	store   persistence.OpportunityStore
	signals persistence.SignalsStore
	cache   ResponseCache
	ttl     time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// NewFeedService wires the service. cache may be nil to disable response
// caching; signals may be nil if eligibility filtering is not served.
func NewFeedService(store persistence.OpportunityStore, signals persistence.SignalsStore, cache ResponseCache, cacheTTL time.Duration, log zerolog.Logger) *FeedService {
	return &FeedService{
		store:   store,
		signals: signals,
		cache:   cache,
		ttl:     cacheTTL,
		log:     log.With().Str("component", "feed").Logger(),
		now:     time.Now,
	}
}

// cachedPage is the cache payload: the serialized body plus its token, so a
// cache hit replays the exact response the token was issued for.
type cachedPage struct {
	Body []byte `json:"body"`
	ETag string `json:"etag"`
}

// GetFeedPage runs the pipeline: fetch, rank, cap, paginate, tag.
func (s *FeedService) GetFeedPage(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	if err := s.normalize(&q); err != nil {
		return nil, err
	}

	var cur cursor
	if q.Cursor != "" {
		var err error
		if cur, err = decodeCursor(q.Cursor, q.Sort); err != nil {
			return nil, err
		}
	}

	cacheKey, err := s.cacheKey(q)
	if err != nil {
		return nil, err
	}
	if page, ok := s.readCached(ctx, cacheKey); ok {
		return page, nil
	}

	supersetLimit := cur.Offset + q.Limit*4
	if supersetLimit < supersetFloor {
		supersetLimit = supersetFloor
	}

	candidates, err := s.store.FetchCandidates(ctx, persistence.CandidateFilter{
		Types:    q.Types,
		Chains:   q.Chains,
		TrustMin: q.TrustMin,
		Search:   q.Search,
		Sort:     q.Sort,
		Limit:    supersetLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now().UTC()
	items := s.rank(candidates, now, q.Sort)

	if q.EligibleOnly && q.Wallet != "" {
		items = s.filterEligible(ctx, items, q.Wallet)
	}

	// The candidate superset grows between pages, so a newcomer can shift
	// every ranked position. Resumption anchors on the last served item;
	// the stored offset is only a fallback for when that item has vanished.
	start := cur.Offset
	if cur.LastID != "" {
		if idx := indexOfID(items, cur.LastID); idx >= 0 {
			start = idx + 1
		}
	}
	if start > len(items) {
		start = len(items)
	}
	remaining := items[start:]

	page := feed.ApplySponsoredCapping(remaining, q.Limit)

	var next *string
	if len(page) > 0 {
		consumed := start + inputIndexOf(remaining, page[len(page)-1].ID) + 1
		exhausted := consumed >= len(items) && len(candidates) < supersetLimit
		if !exhausted {
			token := encodeCursor(cursor{Offset: consumed, LastID: page[len(page)-1].ID, Sort: q.Sort})
			next = &token
		}
	}

	result := &FeedPage{Items: page, Cursor: next, TS: now}
	if result.Items == nil {
		result.Items = []feed.Item{}
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize feed page: %w", err)
	}
	result.ETag = etag.HashBytes(body)

	s.writeCached(ctx, cacheKey, cachedPage{Body: body, ETag: result.ETag})
	return result, nil
}

func (s *FeedService) normalize(q *FeedQuery) error {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Sort == "" {
		q.Sort = persistence.SortRecommended
	}
	if !persistence.ValidSort(q.Sort) {
		return fmt.Errorf("%w: %q", ErrBadSort, q.Sort)
	}
	if q.Wallet != "" && !ValidWallet(q.Wallet) {
		return fmt.Errorf("%w: %q", ErrBadWallet, q.Wallet)
	}
	return nil
}

// rank scores every candidate and, for the recommended sort, reorders by
// rank score with published_at and id tie-breaks. Other sorts keep the
// store's ordering but still carry scores for observability.
func (s *FeedService) rank(candidates []persistence.Candidate, now time.Time, sort persistence.SortKey) []feed.Item {
	ranked := make([]feed.Candidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = feed.Candidate{
			Opportunity: opportunity.FromRow(c.Row, now),
			Relevance:   c.Relevance,
			Trust:       c.Trust,
			Freshness:   c.Freshness,
		}
	}
	items := feed.RankAll(ranked)
	if sort == persistence.SortRecommended {
		feed.SortRecommended(items)
	}
	return items
}

// filterEligible drops items the wallet is unlikely to qualify for. A
// missing signal snapshot disables the filter rather than emptying the
// feed.
func (s *FeedService) filterEligible(ctx context.Context, items []feed.Item, wallet string) []feed.Item {
	snapshot, err := s.signalsFor(ctx, wallet)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			s.log.Warn().Err(err).Str("wallet", wallet).Msg("signals lookup failed, skipping eligibility filter")
		}
		return items
	}

	out := items[:0:0]
	for _, item := range items {
		result := eligibility.Score(eligibilitySignals(snapshot, requiredChain(item.Opportunity)))
		if result.Label != eligibility.LabelUnlikely {
			out = append(out, item)
		}
	}
	return out
}

func (s *FeedService) signalsFor(ctx context.Context, wallet string) (persistence.WalletSignals, error) {
	if s.signals == nil {
		return persistence.WalletSignals{}, persistence.ErrNotFound
	}
	return s.signals.FetchWalletSignals(ctx, wallet)
}

func (s *FeedService) cacheKey(q FeedQuery) (string, error) {
	sig := struct {
		Wallet   string              `json:"wallet"`
		Cursor   string              `json:"cursor"`
		Types    []string            `json:"types"`
		Chains   []string            `json:"chains"`
		TrustMin int                 `json:"trust_min"`
		Search   string              `json:"search"`
		Eligible bool                `json:"eligible"`
		Sort     persistence.SortKey `json:"sort"`
		Limit    int                 `json:"limit"`
	}{q.Wallet, q.Cursor, q.Types, q.Chains, q.TrustMin, q.Search, q.EligibleOnly, q.Sort, q.Limit}

	token, err := etag.Hash(sig)
	if err != nil {
		return "", fmt.Errorf("failed to build cache key: %w", err)
	}
	return "feed:" + token, nil
}

func (s *FeedService) readCached(ctx context.Context, key string) (*FeedPage, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		metrics.FeedCacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.FeedCacheHits.WithLabelValues("hit").Inc()
	var entry cachedPage
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.log.Warn().Err(err).Msg("corrupt cache entry, recomputing")
		return nil, false
	}
	var page FeedPage
	if err := json.Unmarshal(entry.Body, &page); err != nil {
		s.log.Warn().Err(err).Msg("corrupt cached page, recomputing")
		return nil, false
	}
	page.ETag = entry.ETag
	return &page, true
}

func (s *FeedService) writeCached(ctx context.Context, key string, entry cachedPage) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to serialize cache entry")
		return
	}
	s.cache.Set(ctx, key, raw, s.ttl)
}

func indexOfID(items []feed.Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func inputIndexOf(items []feed.Item, id string) int {
	if idx := indexOfID(items, id); idx >= 0 {
		return idx
	}
	return len(items) - 1
}

func requiredChain(o opportunity.Opportunity) string {
	if len(o.Chains) == 0 {
		return ""
	}
	return o.Chains[0]
}

func eligibilitySignals(snapshot persistence.WalletSignals, chain string) eligibility.Signals {
	active := make(map[string]bool, len(snapshot.ActiveChains))
	for _, c := range snapshot.ActiveChains {
		active[c] = true
	}
	return eligibility.Signals{
		WalletAgeDays:      snapshot.AgeDays,
		TxCount:            snapshot.TxCount,
		HoldsOnChain:       snapshot.HoldingsByChain[chain],
		HasAllowlistProof:  snapshot.AllowlistProof,
		RequiredChain:      chain,
		HasActivityOnChain: func(c string) bool { return active[c] },
	}
}
