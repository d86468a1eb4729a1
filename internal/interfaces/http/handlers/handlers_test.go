package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meghal86/smart-stake-hunter/internal/application"
	"github.com/meghal86/smart-stake-hunter/internal/domain/opportunity"
	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

const testWallet = "0xabcdef0123456789abcdef0123456789abcdef01"

type memCache struct {
	entries map[string][]byte
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	m.entries[key] = value
}

type fixture struct {
	store  *persistence.MemoryStore
	router *mux.Router
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()

	store := persistence.NewMemoryStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	candidates := make([]persistence.Candidate, 15)
	for i := range candidates {
		published := base.Add(-time.Duration(i) * time.Hour)
		candidates[i] = persistence.Candidate{
			Row: opportunity.Row{
				ID:           fmt.Sprintf("opp-%02d", i),
				Slug:         fmt.Sprintf("opp-%02d", i),
				Title:        fmt.Sprintf("Opportunity %d", i),
				ProtocolName: "TestProto",
				Type:         "airdrop",
				Chains:       []string{"ethereum"},
				TrustScore:   80,
				Status:       "published",
				CreatedAt:    published,
				UpdatedAt:    published,
				PublishedAt:  &published,
			},
			Relevance: 1.0 - float64(i)*0.01,
			Trust:     0.8,
			Freshness: 0.5,
		}
	}
	store.SeedCandidates(candidates)

	var cache application.ResponseCache
	if withCache {
		cache = &memCache{entries: map[string][]byte{}}
	}

	feedSvc := application.NewFeedService(store, store, cache, time.Minute, zerolog.Nop())
	eligSvc := application.NewEligibilityService(store, store, cache, time.Minute, zerolog.Nop())
	h := NewHandlers(feedSvc, eligSvc, nil, zerolog.Nop())

	router := mux.NewRouter()
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/v1/hunter/feed", h.Feed).Methods("GET")
	router.HandleFunc("/v1/hunter/opportunities/{id}/eligibility", h.Eligibility).Methods("GET")

	return &fixture{store: store, router: router}
}

func (f *fixture) get(t *testing.T, url string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestFeed_ReturnsPageWithETag(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	var page struct {
		Items  []json.RawMessage `json:"items"`
		Cursor *string           `json:"cursor"`
		TS     time.Time         `json:"ts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 12)
	assert.False(t, page.TS.IsZero())
}

func TestFeed_ConditionalRequestReturns304(t *testing.T) {
	f := newFixture(t, true)

	first := f.get(t, "/v1/hunter/feed", nil)
	require.Equal(t, http.StatusOK, first.Code)
	token := first.Header().Get("ETag")
	require.NotEmpty(t, token)

	second := f.get(t, "/v1/hunter/feed", map[string]string{"If-None-Match": token})
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.Bytes())
}

func TestFeed_InvalidWallet(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/feed?wallet=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeed_InvalidCursor(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/feed?cursor=%25bad%25", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeed_InvalidTrustMin(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/feed?trust_min=250", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeed_InvalidSort(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/feed?sort=alphabetical", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeed_SearchParamFilters(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/feed?search=Opportunity+7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "opp-07", page.Items[0].ID)
}

func TestFeed_StoreFailureReturns503(t *testing.T) {
	f := newFixture(t, false)
	f.store.FailFetch = errors.New("connection refused")

	rec := f.get(t, "/v1/hunter/feed", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEligibility_KnownWallet(t *testing.T) {
	f := newFixture(t, false)
	f.store.SeedSignals(persistence.WalletSignals{
		Address:         testWallet,
		AgeDays:         30,
		TxCount:         10,
		ActiveChains:    []string{"ethereum"},
		HoldingsByChain: map[string]bool{"ethereum": true},
		AllowlistProof:  true,
	})

	rec := f.get(t, "/v1/hunter/opportunities/opp-00/eligibility?wallet="+testWallet, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var verdict application.EligibilityVerdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	assert.Equal(t, "likely", verdict.Status)
	assert.Equal(t, 1.05, verdict.Score)
	assert.NotEmpty(t, verdict.Reasons)
}

func TestEligibility_UnknownWalletStatus(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/opportunities/opp-00/eligibility?wallet="+testWallet, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var verdict application.EligibilityVerdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	assert.Equal(t, application.StatusUnknown, verdict.Status)
}

func TestEligibility_MissingWallet(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/opportunities/opp-00/eligibility", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEligibility_UnknownOpportunity(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/v1/hunter/opportunities/missing/eligibility?wallet="+testWallet, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
}
