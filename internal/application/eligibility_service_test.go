package application

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

const testWallet = "0xabcdef0123456789abcdef0123456789abcdef01"

func TestEligibilityCheck_LikelyWallet(t *testing.T) {
	store := seedStore(3, 0)
	store.SeedSignals(persistence.WalletSignals{
		Address:         testWallet,
		AgeDays:         30,
		TxCount:         10,
		ActiveChains:    []string{"ethereum"},
		HoldingsByChain: map[string]bool{"ethereum": true},
		AllowlistProof:  true,
	})
	svc := NewEligibilityService(store, store, nil, 5*time.Minute, zerolog.Nop())

	verdict, err := svc.Check(context.Background(), testWallet, "opp-00")
	require.NoError(t, err)

	assert.Equal(t, "likely", verdict.Status)
	assert.Equal(t, 1.05, verdict.Score)
	assert.Len(t, verdict.Reasons, 5)
	assert.False(t, verdict.CachedUntil.IsZero())
}

func TestEligibilityCheck_UnknownWallet(t *testing.T) {
	store := seedStore(3, 0)
	svc := NewEligibilityService(store, store, nil, 5*time.Minute, zerolog.Nop())

	verdict, err := svc.Check(context.Background(), testWallet, "opp-00")
	require.NoError(t, err)

	assert.Equal(t, StatusUnknown, verdict.Status)
	assert.Zero(t, verdict.Score)
	assert.NotEmpty(t, verdict.Reasons)
}

func TestEligibilityCheck_NilSignalsStore(t *testing.T) {
	store := seedStore(3, 0)
	svc := NewEligibilityService(store, nil, nil, 5*time.Minute, zerolog.Nop())

	verdict, err := svc.Check(context.Background(), testWallet, "opp-00")
	require.NoError(t, err)

	assert.Equal(t, StatusUnknown, verdict.Status)
	assert.Zero(t, verdict.Score)
}

func TestEligibilityCheck_BadWallet(t *testing.T) {
	store := seedStore(3, 0)
	svc := NewEligibilityService(store, store, nil, 5*time.Minute, zerolog.Nop())

	_, err := svc.Check(context.Background(), "0xshort", "opp-00")
	assert.ErrorIs(t, err, ErrBadWallet)
}

func TestEligibilityCheck_UnknownOpportunity(t *testing.T) {
	store := seedStore(3, 0)
	svc := NewEligibilityService(store, store, nil, 5*time.Minute, zerolog.Nop())

	_, err := svc.Check(context.Background(), testWallet, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestEligibilityCheck_VerdictCached(t *testing.T) {
	store := seedStore(3, 0)
	store.SeedSignals(persistence.WalletSignals{
		Address:      testWallet,
		AgeDays:      30,
		TxCount:      10,
		ActiveChains: []string{"ethereum"},
	})
	cache := newFakeCache()
	svc := NewEligibilityService(store, store, cache, 5*time.Minute, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.Check(ctx, testWallet, "opp-00")
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	second, err := svc.Check(ctx, testWallet, "opp-00")
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, 1, cache.sets, "second check must be served from cache")
}
