package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const campaignColumns = `id, owner_id, name, cpm_cents, total_budget_cents, spent_budget_cents, status, created_at, updated_at`

// CampaignRepo implements ports.CampaignRepository.
type CampaignRepo struct {
	pool Pool
}

// NewCampaignRepo creates a new CampaignRepo.
func NewCampaignRepo(pool Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

// Create inserts a campaign. Campaigns are normally written by the campaign lifecycle.
func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	query := `INSERT INTO campaigns (` + campaignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.OwnerID, c.Name, c.CPMCents, c.TotalBudgetCents,
		c.SpentBudgetCents, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert campaign %s: %w", c.ID, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// GetByID fetches a campaign by UUID.
func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return scanCampaign(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches and row-locks a campaign.
func (r *CampaignRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 FOR UPDATE`
	return scanCampaign(tx.QueryRow(ctx, query, id))
}

// IncrementSpent bumps the denormalised spend counter.
func (r *CampaignRepo) IncrementSpent(ctx context.Context, tx pgx.Tx, id uuid.UUID, deltaCents int64) error {
	query := `UPDATE campaigns SET spent_budget_cents = spent_budget_cents + $2, updated_at = $3 WHERE id = $1`
	return execOne(ctx, tx, "increment campaign spend", query, id, deltaCents, time.Now().UTC())
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.CPMCents, &c.TotalBudgetCents,
		&c.SpentBudgetCents, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	return &c, nil
}

const budgetLockColumns = `id, campaign_id, wallet_id, locked_cents, created_at, updated_at`

// BudgetLockRepo implements ports.BudgetLockRepository on campaign_budget_locks.
type BudgetLockRepo struct {
	pool Pool
}

// NewBudgetLockRepo creates a new BudgetLockRepo.
func NewBudgetLockRepo(pool Pool) *BudgetLockRepo {
	return &BudgetLockRepo{pool: pool}
}

// GetByCampaign fetches the escrow of a campaign without locking it.
func (r *BudgetLockRepo) GetByCampaign(ctx context.Context, campaignID uuid.UUID) (*domain.BudgetLock, error) {
	query := `SELECT ` + budgetLockColumns + ` FROM campaign_budget_locks WHERE campaign_id = $1`
	return scanBudgetLock(r.pool.QueryRow(ctx, query, campaignID))
}

// GetByCampaignForUpdate fetches and row-locks the escrow of a campaign.
func (r *BudgetLockRepo) GetByCampaignForUpdate(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (*domain.BudgetLock, error) {
	query := `SELECT ` + budgetLockColumns + ` FROM campaign_budget_locks WHERE campaign_id = $1 FOR UPDATE`
	return scanBudgetLock(tx.QueryRow(ctx, query, campaignID))
}

// Create inserts the escrow row. A second lock for the same campaign yields ports.ErrDuplicate.
func (r *BudgetLockRepo) Create(ctx context.Context, tx pgx.Tx, lock *domain.BudgetLock) error {
	query := `INSERT INTO campaign_budget_locks (` + budgetLockColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		lock.ID, lock.CampaignID, lock.WalletID, lock.LockedCents, lock.CreatedAt, lock.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert budget lock for campaign %s: %w", lock.CampaignID, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert budget lock: %w", err)
	}
	return nil
}

// UpdateLocked sets the escrowed amount.
func (r *BudgetLockRepo) UpdateLocked(ctx context.Context, tx pgx.Tx, id uuid.UUID, lockedCents int64) error {
	if lockedCents < 0 {
		return fmt.Errorf("update budget lock %s: negative amount", id)
	}
	query := `UPDATE campaign_budget_locks SET locked_cents = $2, updated_at = $3 WHERE id = $1`
	return execOne(ctx, tx, "update budget lock", query, id, lockedCents, time.Now().UTC())
}

// Delete removes a fully released lock.
func (r *BudgetLockRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return execOne(ctx, tx, "delete budget lock", `DELETE FROM campaign_budget_locks WHERE id = $1`, id)
}

func scanBudgetLock(row pgx.Row) (*domain.BudgetLock, error) {
	var l domain.BudgetLock
	err := row.Scan(&l.ID, &l.CampaignID, &l.WalletID, &l.LockedCents, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan budget lock: %w", err)
	}
	return &l, nil
}
