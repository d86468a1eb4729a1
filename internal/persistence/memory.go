package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meghal86/smart-stake-hunter/internal/domain/opportunity"
)

// MemoryStore is an in-memory implementation of every store contract, used
// by tests and local mock runs.
type MemoryStore struct {
	mu         sync.RWMutex
	candidates []Candidate
	signals    map[string]WalletSignals
	transfers  map[string]WhaleTransfer
	balances   map[string]BalanceUpdate
	entities   map[string]WhaleEntity
	latestTS   map[string]time.Time

	// FailFetch forces FetchCandidates to fail, for store-outage tests.
	FailFetch error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals:   make(map[string]WalletSignals),
		transfers: make(map[string]WhaleTransfer),
		balances:  make(map[string]BalanceUpdate),
		entities:  make(map[string]WhaleEntity),
		latestTS:  make(map[string]time.Time),
	}
}

// SeedCandidates replaces the candidate set.
func (m *MemoryStore) SeedCandidates(candidates []Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append([]Candidate(nil), candidates...)
}

// SeedSignals stores a wallet snapshot keyed by lowercase address.
func (m *MemoryStore) SeedSignals(s WalletSignals) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[strings.ToLower(s.Address)] = s
}

func (m *MemoryStore) FetchCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailFetch != nil {
		return nil, m.FailFetch
	}

	out := make([]Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		if matchesFilter(c.Row, filter) {
			out = append(out, c)
		}
	}
	sortCandidates(out, filter.Sort)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) GetOpportunity(ctx context.Context, id string) (opportunity.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.candidates {
		if c.Row.ID == id {
			return c.Row, nil
		}
	}
	return opportunity.Row{}, ErrNotFound
}

func (m *MemoryStore) FetchWalletSignals(ctx context.Context, address string) (WalletSignals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.signals[strings.ToLower(address)]
	if !ok {
		return WalletSignals{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) LatestTransferTS(ctx context.Context, chain string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ts, ok := m.latestTS[chain]
	if !ok {
		return nil, nil
	}
	out := ts
	return &out, nil
}

func (m *MemoryStore) InsertTransfer(ctx context.Context, t WhaleTransfer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := transferKey(t)
	if _, exists := m.transfers[key]; exists {
		return false, nil
	}
	m.transfers[key] = t
	if prev, ok := m.latestTS[t.Chain]; !ok || t.TS.After(prev) {
		m.latestTS[t.Chain] = t.TS
	}
	return true, nil
}

func (m *MemoryStore) UpsertBalance(ctx context.Context, b BalanceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[strings.ToLower(b.Chain+":"+b.Address+":"+b.Token)] = b
	return nil
}

func (m *MemoryStore) UpsertEntity(ctx context.Context, e WhaleEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[strings.ToLower(e.Chain+":"+e.Address)] = e
	return nil
}

// TransferCount reports how many distinct transfers were stored.
func (m *MemoryStore) TransferCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transfers)
}

// BalanceCount reports how many balance rows were stored.
func (m *MemoryStore) BalanceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.balances)
}

func transferKey(t WhaleTransfer) string {
	return strings.ToLower(t.Chain + ":" + t.TxHash + ":" + t.FromAddr + ":" + t.ToAddr)
}

func matchesFilter(row opportunity.Row, filter CandidateFilter) bool {
	if row.Status != string(opportunity.StatusPublished) {
		return false
	}
	if len(filter.Types) > 0 && !containsFold(filter.Types, row.Type) {
		return false
	}
	if len(filter.Chains) > 0 && !intersects(filter.Chains, row.Chains) {
		return false
	}
	if filter.TrustMin > 0 && row.TrustScore < filter.TrustMin {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(row.Title), needle) &&
			!strings.Contains(strings.ToLower(row.ProtocolName), needle) {
			return false
		}
	}
	return true
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if containsFold(b, x) {
			return true
		}
	}
	return false
}

func sortCandidates(out []Candidate, key SortKey) {
	switch key {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool {
			pi, pj := out[i].Row.PublishedAt, out[j].Row.PublishedAt
			switch {
			case pi != nil && pj != nil && !pi.Equal(*pj):
				return pi.After(*pj)
			case pi != nil && pj == nil:
				return true
			case pi == nil && pj != nil:
				return false
			}
			return out[i].Row.ID < out[j].Row.ID
		})
	case SortEndsSoon:
		sort.SliceStable(out, func(i, j int) bool {
			ei, ej := out[i].Row.ExpiresAt, out[j].Row.ExpiresAt
			switch {
			case ei != nil && ej != nil && !ei.Equal(*ej):
				return ei.Before(*ej)
			case ei != nil && ej == nil:
				return true
			case ei == nil && ej != nil:
				return false
			}
			return out[i].Row.ID < out[j].Row.ID
		})
	case SortTrust:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Row.TrustScore != out[j].Row.TrustScore {
				return out[i].Row.TrustScore > out[j].Row.TrustScore
			}
			return out[i].Row.ID < out[j].Row.ID
		})
	}
	// recommended: leave store order; the service ranks and re-sorts.
}
