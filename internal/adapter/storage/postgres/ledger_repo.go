package postgres

import (
	"context"
	"fmt"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// spendSumQuery aggregates the entry types that consume escrow.
const spendSumQuery = `SELECT COALESCE(SUM(amount_cents), 0)::BIGINT FROM ledger_entries
	WHERE campaign_id = $1 AND entry_type IN ('VIEW_PAYOUT', 'CONVERSION_PAYOUT', 'PLATFORM_FEE')`

// LedgerRepo implements ports.LedgerRepository. ledger_entries is insert-only.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends an entry. The unique key (campaign, creator, event, type) maps to ports.ErrDuplicate.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, campaign_id, creator_id, entry_type, amount_cents, ref_event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.CampaignID, e.CreatorID, e.Type, e.AmountCents, e.RefEventID, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert ledger entry: %w", ports.ErrDuplicate)
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ExistsForEvent reports whether any entry references the event for this campaign and creator.
func (r *LedgerRepo) ExistsForEvent(ctx context.Context, tx pgx.Tx, campaignID, creatorID, eventID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ledger_entries
		WHERE campaign_id = $1 AND creator_id = $2 AND ref_event_id = $3)`

	var exists bool
	if err := tx.QueryRow(ctx, query, campaignID, creatorID, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}

// SumSpentInTx sums spend inside the unit of work.
func (r *LedgerRepo) SumSpentInTx(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (int64, error) {
	var total int64
	if err := tx.QueryRow(ctx, spendSumQuery, campaignID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum campaign spend: %w", err)
	}
	return total, nil
}

// SumSpent sums spend outside any unit of work.
func (r *LedgerRepo) SumSpent(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, spendSumQuery, campaignID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum campaign spend: %w", err)
	}
	return total, nil
}

// ListByCampaign returns the newest entries first.
func (r *LedgerRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT id, campaign_id, creator_id, entry_type, amount_cents, ref_event_id, created_at
		FROM ledger_entries WHERE campaign_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.CreatorID, &e.Type, &e.AmountCents, &e.RefEventID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}
