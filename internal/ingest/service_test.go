package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// fakeProvider serves canned backfill results and a scripted stream.
type fakeProvider struct {
	name          string
	backfill      []persistence.WhaleTransfer
	backfillErr   error
	backfillCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) StreamTransfers(ctx context.Context, chain string) (<-chan persistence.WhaleTransfer, <-chan error, error) {
	events := make(chan persistence.WhaleTransfer)
	errs := make(chan error, 1)
	close(events)
	return events, errs, nil
}

func (f *fakeProvider) Backfill(ctx context.Context, chain string, from, to time.Time) ([]persistence.WhaleTransfer, error) {
	f.backfillCalls++
	if f.backfillErr != nil {
		return nil, f.backfillErr
	}
	return f.backfill, nil
}

func testConfig() Config {
	return Config{
		Chains:           []string{"ethereum"},
		RateLimitPerSec:  1000,
		RetryBase:        time.Millisecond,
		RetryMax:         10 * time.Millisecond,
		RetryMaxAttempts: 2,
		StreamLag:        time.Second,
		BackfillWindow:   24 * time.Hour,
	}
}

func transfer(tx string, ts time.Time) persistence.WhaleTransfer {
	return persistence.WhaleTransfer{
		TS:       ts,
		TxHash:   tx,
		FromAddr: "0xfrom",
		ToAddr:   "0xto",
		Chain:    "ethereum",
		Token:    "ETH",
		Amount:   100,
		USDValue: 250000,
	}
}

func TestBackfill_PersistsEventsAndBalanceLegs(t *testing.T) {
	store := persistence.NewMemoryStore()
	now := time.Now().UTC()
	primary := &fakeProvider{name: "alchemy", backfill: []persistence.WhaleTransfer{
		transfer("0xaaa", now.Add(-time.Hour)),
		transfer("0xbbb", now.Add(-30*time.Minute)),
	}}
	svc := NewService(testConfig(), store, primary, &fakeProvider{name: "moralis"}, zerolog.Nop())

	err := svc.backfill(context.Background(), "ethereum")
	require.NoError(t, err)

	assert.Equal(t, 2, store.TransferCount())
	// Two legs per transfer, but both transfers share from/to/token so the
	// legs collapse to two balance rows.
	assert.Equal(t, 2, store.BalanceCount())
}

func TestBackfill_DeduplicatesReplays(t *testing.T) {
	store := persistence.NewMemoryStore()
	now := time.Now().UTC()
	e := transfer("0xaaa", now.Add(-time.Hour))
	primary := &fakeProvider{name: "alchemy", backfill: []persistence.WhaleTransfer{e, e, e}}
	svc := NewService(testConfig(), store, primary, &fakeProvider{name: "moralis"}, zerolog.Nop())

	err := svc.backfill(context.Background(), "ethereum")
	require.NoError(t, err)

	assert.Equal(t, 1, store.TransferCount())
}

func TestBackfill_FallsBackToSecondaryProvider(t *testing.T) {
	store := persistence.NewMemoryStore()
	now := time.Now().UTC()
	primary := &fakeProvider{name: "alchemy", backfillErr: errors.New("rate limited")}
	fallback := &fakeProvider{name: "moralis", backfill: []persistence.WhaleTransfer{
		transfer("0xccc", now.Add(-time.Hour)),
	}}
	svc := NewService(testConfig(), store, primary, fallback, zerolog.Nop())

	err := svc.backfill(context.Background(), "ethereum")
	require.NoError(t, err)

	assert.Equal(t, 1, primary.backfillCalls)
	assert.Equal(t, 1, fallback.backfillCalls)
	assert.Equal(t, 1, store.TransferCount())
}

func TestBackfill_AllProvidersFailing(t *testing.T) {
	store := persistence.NewMemoryStore()
	primary := &fakeProvider{name: "alchemy", backfillErr: errors.New("down")}
	fallback := &fakeProvider{name: "moralis", backfillErr: errors.New("also down")}
	svc := NewService(testConfig(), store, primary, fallback, zerolog.Nop())

	err := svc.backfill(context.Background(), "ethereum")
	assert.Error(t, err)
	assert.Equal(t, 0, store.TransferCount())
}

func TestBackfill_SkipsWhenWatermarkIsFresh(t *testing.T) {
	store := persistence.NewMemoryStore()
	now := time.Now().UTC()
	// Watermark newer than the streaming horizon: nothing to backfill.
	_, err := store.InsertTransfer(context.Background(), transfer("0x000", now))
	require.NoError(t, err)

	primary := &fakeProvider{name: "alchemy"}
	svc := NewService(testConfig(), store, primary, &fakeProvider{name: "moralis"}, zerolog.Nop())

	err = svc.backfill(context.Background(), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, 0, primary.backfillCalls)
}

func TestHandleEvent_BalanceLegSigns(t *testing.T) {
	store := persistence.NewMemoryStore()
	svc := NewService(testConfig(), store, &fakeProvider{name: "alchemy"}, &fakeProvider{name: "moralis"}, zerolog.Nop())

	e := transfer("0xddd", time.Now().UTC())
	e.Amount = -42 // providers occasionally report signed amounts
	require.NoError(t, svc.handleEvent(context.Background(), e))

	assert.Equal(t, 1, store.TransferCount())
	assert.Equal(t, 2, store.BalanceCount())
}

func TestFailover_SwapsProviders(t *testing.T) {
	primary := &fakeProvider{name: "alchemy"}
	fallback := &fakeProvider{name: "moralis"}
	svc := NewService(testConfig(), persistence.NewMemoryStore(), primary, fallback, zerolog.Nop())

	require.Equal(t, "alchemy", svc.currentProvider().Name())
	svc.failover("ethereum")
	assert.Equal(t, "moralis", svc.currentProvider().Name())
	svc.failover("ethereum")
	assert.Equal(t, "alchemy", svc.currentProvider().Name())
}

func TestJitterDelay_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 0; attempt < 10; attempt++ {
		d := jitterDelay(base, attempt, max)
		if d < 0 || d > max {
			t.Fatalf("attempt %d: delay %v out of [0, %v]", attempt, d, max)
		}
	}
}
