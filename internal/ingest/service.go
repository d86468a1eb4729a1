package ingest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/meghal86/smart-stake-hunter/internal/metrics"
	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// maxSeenEntries bounds the dedup cache; hitting it flushes the cache and
// leans on the store's idempotent insert instead.
const maxSeenEntries = 1 << 20

// Config tunes one ingestion service.
type Config struct {
	Chains           []string
	RateLimitPerSec  int
	RetryBase        time.Duration
	RetryMax         time.Duration
	RetryMaxAttempts int
	StreamLag        time.Duration
	BackfillWindow   time.Duration
}

// Service ingests whale transfers for a set of chains: REST backfill up to
// the streaming horizon, then live streaming with failover to the fallback
// provider after repeated stream failures.
type Service struct {
	cfg     Config
	store   persistence.WhaleStore
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	providers [2]Provider // [0] primary, [1] fallback; swapped on failover
	seen      map[string]struct{}
}

// NewService wires an ingestion service over a primary and fallback
// provider.
func NewService(cfg Config, store persistence.WhaleStore, primary, fallback Provider, log zerolog.Logger) *Service {
	settings := gobreaker.Settings{
		Name:     "whale-backfill",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitPerSec),
		log:       log.With().Str("component", "ingest").Logger(),
		now:       time.Now,
		providers: [2]Provider{primary, fallback},
		seen:      make(map[string]struct{}),
	}
}

// Run ingests every configured chain until the context ends.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, chain := range s.cfg.Chains {
		wg.Add(1)
		go func(chain string) {
			defer wg.Done()
			s.runChain(ctx, chain)
		}(chain)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Service) runChain(ctx context.Context, chain string) {
	if err := s.backfill(ctx, chain); err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Str("chain", chain).Msg("backfill failed, proceeding to stream")
	}

	attempt := 0
	for ctx.Err() == nil {
		provider := s.currentProvider()
		s.log.Info().Str("chain", chain).Str("provider", provider.Name()).Msg("connecting stream")

		err := s.consumeStream(ctx, provider, chain)
		if ctx.Err() != nil {
			return
		}

		delay := jitterDelay(s.cfg.RetryBase, attempt, s.cfg.RetryMax)
		s.log.Error().Err(err).
			Str("chain", chain).
			Str("provider", provider.Name()).
			Dur("retry_in", delay).
			Msg("stream error")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		attempt++
		if attempt >= s.cfg.RetryMaxAttempts {
			s.failover(chain)
			attempt = 0
		}
	}
}

func (s *Service) consumeStream(ctx context.Context, provider Provider, chain string) error {
	events, errs, err := provider.StreamTransfers(ctx, chain)
	if err != nil {
		return err
	}
	for {
		select {
		case e, ok := <-events:
			if !ok {
				select {
				case streamErr := <-errs:
					return streamErr
				default:
					return fmt.Errorf("stream closed")
				}
			}
			if err := s.handleEvent(ctx, e); err != nil {
				s.log.Error().Err(err).Str("chain", chain).Str("tx", e.TxHash).Msg("failed to persist event")
			}
		case streamErr := <-errs:
			return streamErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleEvent deduplicates, rate-limits and persists one transfer, writing
// both balance legs when the transfer is new.
func (s *Service) handleEvent(ctx context.Context, e persistence.WhaleTransfer) error {
	metrics.IngestEventsIn.WithLabelValues(e.Chain).Inc()

	if !s.markSeen(e) {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	inserted, err := s.store.InsertTransfer(ctx, e)
	if err != nil {
		return fmt.Errorf("insert transfer %s: %w", e.TxHash, err)
	}
	if inserted {
		outLeg := persistence.BalanceUpdate{
			TS: e.TS, Address: e.FromAddr, Chain: e.Chain, Token: e.Token,
			Amount: -math.Abs(e.Amount), USDValue: -math.Abs(e.USDValue),
			Provenance: e.Provenance,
		}
		inLeg := persistence.BalanceUpdate{
			TS: e.TS, Address: e.ToAddr, Chain: e.Chain, Token: e.Token,
			Amount: math.Abs(e.Amount), USDValue: math.Abs(e.USDValue),
			Provenance: e.Provenance,
		}
		if err := s.store.UpsertBalance(ctx, outLeg); err != nil {
			return fmt.Errorf("upsert from-leg balance: %w", err)
		}
		if err := s.store.UpsertBalance(ctx, inLeg); err != nil {
			return fmt.Errorf("upsert to-leg balance: %w", err)
		}
		metrics.IngestEventsOut.WithLabelValues(e.Chain).Inc()
	}

	lag := s.now().Sub(e.TS)
	if lag < 0 {
		lag = 0
	}
	metrics.IngestLag.WithLabelValues(e.Chain).Observe(float64(lag.Milliseconds()))
	return nil
}

// backfill catches up from the stored watermark (or the cold-start window)
// to the streaming horizon, trying the fallback provider if the primary
// fails.
func (s *Service) backfill(ctx context.Context, chain string) error {
	now := s.now().UTC()
	horizon := now.Add(-s.cfg.StreamLag)
	start := now.Add(-s.cfg.BackfillWindow)

	last, err := s.store.LatestTransferTS(ctx, chain)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	if last != nil && last.After(start) {
		start = *last
	}
	if !start.Before(horizon) {
		return nil
	}

	primary, fallback := s.currentProviders()
	var lastErr error
	for _, provider := range []Provider{primary, fallback} {
		result, err := s.breaker.Execute(func() (interface{}, error) {
			return provider.Backfill(ctx, chain, start, horizon)
		})
		if err != nil {
			lastErr = err
			s.log.Error().Err(err).Str("chain", chain).Str("provider", provider.Name()).Msg("backfill attempt failed")
			continue
		}
		events := result.([]persistence.WhaleTransfer)
		for _, e := range events {
			if err := s.handleEvent(ctx, e); err != nil {
				return err
			}
		}
		s.log.Info().Str("chain", chain).Str("provider", provider.Name()).Int("count", len(events)).Msg("backfill done")
		return nil
	}
	return fmt.Errorf("backfill %s: all providers failed: %w", chain, lastErr)
}

func (s *Service) markSeen(e persistence.WhaleTransfer) bool {
	key := strings.ToLower(e.Chain + ":" + e.TxHash + ":" + e.FromAddr + ":" + e.ToAddr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[key]; dup {
		return false
	}
	if len(s.seen) >= maxSeenEntries {
		s.seen = make(map[string]struct{})
	}
	s.seen[key] = struct{}{}
	return true
}

func (s *Service) currentProvider() Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers[0]
}

func (s *Service) currentProviders() (Provider, Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers[0], s.providers[1]
}

func (s *Service) failover(chain string) {
	s.mu.Lock()
	s.providers[0], s.providers[1] = s.providers[1], s.providers[0]
	name := s.providers[0].Name()
	s.mu.Unlock()

	metrics.IngestFailovers.WithLabelValues(chain).Inc()
	s.log.Warn().Str("chain", chain).Str("provider", name).Msg("failing over to fallback provider")
}

// jitterDelay grows exponentially from base, plus up to one base of jitter,
// capped at max.
func jitterDelay(base time.Duration, attempt int, max time.Duration) time.Duration {
	exp := float64(base) * math.Pow(2, float64(attempt))
	d := time.Duration(exp + rand.Float64()*float64(base))
	if d > max {
		return max
	}
	return d
}
