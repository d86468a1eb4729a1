package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// whaleStore implements persistence.WhaleStore and persistence.SignalsStore
// on PostgreSQL.
type whaleStore struct {
	db      *sqlx.DB
	timeout time.Duration
	now     func() time.Time
}

// NewWhaleStore creates a PostgreSQL-backed whale data store.
func NewWhaleStore(db *sqlx.DB, timeout time.Duration) *whaleStore {
	return &whaleStore{db: db, timeout: timeout, now: time.Now}
}

func (s *whaleStore) LatestTransferTS(ctx context.Context, chain string) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ts sql.NullTime
	err := s.db.GetContext(ctx, &ts,
		"SELECT max(ts) FROM whale_transfers WHERE chain = $1", chain)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer watermark for %s: %w", chain, err)
	}
	if !ts.Valid {
		return nil, nil
	}
	out := ts.Time
	return &out, nil
}

func (s *whaleStore) InsertTransfer(ctx context.Context, t persistence.WhaleTransfer) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	meta, err := json.Marshal(map[string]interface{}{
		"provider":   t.Provenance.Provider,
		"method":     t.Provenance.Method,
		"request_id": t.Provenance.RequestID,
		"raw":        t.Raw,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal transfer meta: %w", err)
	}

	// Idempotent on (chain, tx_hash, from_addr, to_addr); ON CONFLICT keeps
	// replays and provider overlap from double-counting.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO whale_transfers
		  (ts, tx_hash, from_addr, to_addr, chain, token, amount, usd_value,
		   direction, venue_hint, is_cex, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::jsonb)
		ON CONFLICT (chain, tx_hash, from_addr, to_addr) DO NOTHING`,
		t.TS, t.TxHash, t.FromAddr, t.ToAddr, t.Chain, t.Token, t.Amount,
		t.USDValue, nullIfEmpty(t.Direction), nullIfEmpty(t.VenueHint), t.IsCEX, meta)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert transfer: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return inserted > 0, nil
}

func (s *whaleStore) UpsertBalance(ctx context.Context, b persistence.BalanceUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	meta, err := json.Marshal(map[string]interface{}{
		"provider":   b.Provenance.Provider,
		"method":     b.Provenance.Method,
		"request_id": b.Provenance.RequestID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal balance meta: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO whale_balances (ts, address, chain, token, amount, usd_value, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb)`,
		b.TS, b.Address, b.Chain, b.Token, b.Amount, b.USDValue, meta)
	if err != nil {
		return fmt.Errorf("failed to insert balance update: %w", err)
	}
	return nil
}

func (s *whaleStore) UpsertEntity(ctx context.Context, e persistence.WhaleEntity) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal entity meta: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO whale_entities (address, chain, label, entity_type, is_cex, meta)
		VALUES ($1,$2,$3,$4,$5,$6::jsonb)
		ON CONFLICT (chain, address) DO UPDATE
		SET label = EXCLUDED.label,
		    entity_type = EXCLUDED.entity_type,
		    is_cex = EXCLUDED.is_cex,
		    meta = EXCLUDED.meta,
		    updated_at = now()`,
		e.Address, e.Chain, nullIfEmpty(e.Label), nullIfEmpty(e.EntityType), e.IsCEX, meta)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

// FetchWalletSignals derives the eligibility snapshot from ingested whale
// data: first-seen age, total transfer count, chains with activity, and
// chains where the wallet currently holds a positive balance.
func (s *whaleStore) FetchWalletSignals(ctx context.Context, address string) (persistence.WalletSignals, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var agg struct {
		FirstSeen sql.NullTime `db:"first_seen"`
		TxCount   int          `db:"tx_count"`
	}
	err := s.db.GetContext(ctx, &agg, `
		SELECT min(ts) AS first_seen, count(*) AS tx_count
		FROM whale_transfers
		WHERE from_addr = $1 OR to_addr = $1`, address)
	if err != nil {
		return persistence.WalletSignals{}, fmt.Errorf("failed to aggregate wallet signals: %w", err)
	}
	if agg.TxCount == 0 {
		return persistence.WalletSignals{}, persistence.ErrNotFound
	}

	var chains []string
	err = s.db.SelectContext(ctx, &chains, `
		SELECT DISTINCT chain FROM whale_transfers
		WHERE from_addr = $1 OR to_addr = $1`, address)
	if err != nil {
		return persistence.WalletSignals{}, fmt.Errorf("failed to list active chains: %w", err)
	}

	var holdingChains []string
	err = s.db.SelectContext(ctx, &holdingChains, `
		SELECT chain FROM whale_balances
		WHERE address = $1
		GROUP BY chain
		HAVING sum(amount) > 0`, address)
	if err != nil {
		return persistence.WalletSignals{}, fmt.Errorf("failed to list holdings: %w", err)
	}
	holdings := make(map[string]bool, len(holdingChains))
	for _, c := range holdingChains {
		holdings[c] = true
	}

	var allowlisted bool
	err = s.db.GetContext(ctx, &allowlisted, `
		SELECT EXISTS (
			SELECT 1 FROM whale_entities
			WHERE address = $1 AND entity_type = 'allowlist'
		)`, address)
	if err != nil {
		return persistence.WalletSignals{}, fmt.Errorf("failed to check allowlist proof: %w", err)
	}

	ageDays := 0
	if agg.FirstSeen.Valid {
		ageDays = int(s.now().Sub(agg.FirstSeen.Time).Hours() / 24)
	}

	return persistence.WalletSignals{
		Address:         address,
		AgeDays:         ageDays,
		TxCount:         agg.TxCount,
		ActiveChains:    chains,
		HoldingsByChain: holdings,
		AllowlistProof:  allowlisted,
	}, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
