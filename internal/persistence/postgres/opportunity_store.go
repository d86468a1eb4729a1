package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/meghal86/smart-stake-hunter/internal/domain/opportunity"
	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// freshnessHalfLife controls how fast the freshness component decays after
// publication.
const freshnessHalfLife = 7 * 24 * time.Hour

// opportunityStore implements persistence.OpportunityStore on PostgreSQL.
type opportunityStore struct {
	db      *sqlx.DB
	timeout time.Duration
	now     func() time.Time
}

// NewOpportunityStore creates a PostgreSQL-backed opportunity store.
func NewOpportunityStore(db *sqlx.DB, timeout time.Duration) persistence.OpportunityStore {
	return &opportunityStore{db: db, timeout: timeout, now: time.Now}
}

// opportunityRow mirrors the opportunities table. The transform into the
// public shape happens in the domain package; nothing past this struct sees
// raw storage types.
type opportunityRow struct {
	ID              string          `db:"id"`
	Slug            string          `db:"slug"`
	Title           string          `db:"title"`
	Description     sql.NullString  `db:"description"`
	ProtocolName    string          `db:"protocol_name"`
	ProtocolLogoURL sql.NullString  `db:"protocol_logo_url"`
	Type            string          `db:"opportunity_type"`
	Chains          pq.StringArray  `db:"chains"`
	RewardMin       sql.NullFloat64 `db:"reward_min"`
	RewardMax       sql.NullFloat64 `db:"reward_max"`
	RewardCurrency  string          `db:"reward_currency"`
	RewardConfirmed bool            `db:"reward_confirmed"`
	APR             sql.NullFloat64 `db:"apr"`
	TrustScore      int             `db:"trust_score"`
	TrustScannedAt  sql.NullTime    `db:"trust_scanned_at"`
	TrustIssues     pq.StringArray  `db:"trust_issues"`
	Urgency         sql.NullString  `db:"urgency"`
	Difficulty      sql.NullString  `db:"difficulty"`
	Featured        bool            `db:"featured"`
	Sponsored       bool            `db:"sponsored"`
	ExternalURL     string          `db:"external_url"`
	Relevance       float64         `db:"relevance"`
	Status          string          `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
	PublishedAt     sql.NullTime    `db:"published_at"`
	ExpiresAt       sql.NullTime    `db:"expires_at"`
}

const candidateColumns = `
	id, slug, title, description, protocol_name, protocol_logo_url,
	opportunity_type, chains, reward_min, reward_max, reward_currency,
	reward_confirmed, apr, trust_score, trust_scanned_at, trust_issues,
	urgency, difficulty, featured, sponsored, external_url, relevance,
	status, created_at, updated_at, published_at, expires_at`

func (s *opportunityStore) FetchCandidates(ctx context.Context, filter persistence.CandidateFilter) ([]persistence.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	where := []string{"status = 'published'"}
	args := []interface{}{}

	if len(filter.Types) > 0 {
		args = append(args, pq.StringArray(filter.Types))
		where = append(where, fmt.Sprintf("opportunity_type = ANY($%d)", len(args)))
	}
	if len(filter.Chains) > 0 {
		args = append(args, pq.StringArray(filter.Chains))
		where = append(where, fmt.Sprintf("chains && $%d", len(args)))
	}
	if filter.TrustMin > 0 {
		args = append(args, filter.TrustMin)
		where = append(where, fmt.Sprintf("trust_score >= $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR protocol_name ILIKE $%d)", len(args), len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM opportunities WHERE %s ORDER BY %s",
		candidateColumns, strings.Join(where, " AND "), orderClause(filter.Sort))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []opportunityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	now := s.now()
	candidates := make([]persistence.Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = persistence.Candidate{
			Row:       toDomainRow(row),
			Relevance: clamp01(row.Relevance),
			Trust:     float64(row.TrustScore) / 100,
			Freshness: freshness(row.PublishedAt, now),
		}
	}
	return candidates, nil
}

func (s *opportunityStore) GetOpportunity(ctx context.Context, id string) (opportunity.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row opportunityRow
	query := fmt.Sprintf("SELECT %s FROM opportunities WHERE id = $1", candidateColumns)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return opportunity.Row{}, persistence.ErrNotFound
		}
		return opportunity.Row{}, fmt.Errorf("failed to get opportunity %s: %w", id, err)
	}
	return toDomainRow(row), nil
}

func orderClause(sort persistence.SortKey) string {
	switch sort {
	case persistence.SortNewest:
		return "published_at DESC NULLS LAST, id ASC"
	case persistence.SortEndsSoon:
		return "expires_at ASC NULLS LAST, id ASC"
	case persistence.SortTrust:
		return "trust_score DESC, id ASC"
	default:
		// recommended: the service ranks in memory; fetch newest-first so a
		// bounded superset skews toward current inventory.
		return "published_at DESC NULLS LAST, id ASC"
	}
}

// freshness decays from 1.0 at publication toward 0 with a fixed half-life.
func freshness(publishedAt sql.NullTime, now time.Time) float64 {
	if !publishedAt.Valid {
		return 0
	}
	age := now.Sub(publishedAt.Time)
	if age <= 0 {
		return 1
	}
	return clamp01(1.0 / (1.0 + age.Seconds()/freshnessHalfLife.Seconds()))
}

func toDomainRow(row opportunityRow) opportunity.Row {
	return opportunity.Row{
		ID:              row.ID,
		Slug:            row.Slug,
		Title:           row.Title,
		Description:     row.Description.String,
		ProtocolName:    row.ProtocolName,
		ProtocolLogoURL: row.ProtocolLogoURL.String,
		Type:            row.Type,
		Chains:          row.Chains,
		RewardMin:       nullFloat(row.RewardMin),
		RewardMax:       nullFloat(row.RewardMax),
		RewardCurrency:  row.RewardCurrency,
		RewardConfirmed: row.RewardConfirmed,
		APR:             nullFloat(row.APR),
		TrustScore:      row.TrustScore,
		TrustScannedAt:  nullTime(row.TrustScannedAt),
		TrustIssues:     row.TrustIssues,
		Urgency:         row.Urgency.String,
		Difficulty:      row.Difficulty.String,
		Featured:        row.Featured,
		Sponsored:       row.Sponsored,
		ExternalURL:     row.ExternalURL,
		Status:          row.Status,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		PublishedAt:     nullTime(row.PublishedAt),
		ExpiresAt:       nullTime(row.ExpiresAt),
	}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
