package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is owned by the campaign lifecycle, outside the ledger core.
type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "DRAFT"
	CampaignStatusActive CampaignStatus = "ACTIVE"
	CampaignStatusPaused CampaignStatus = "PAUSED"
	CampaignStatusEnded  CampaignStatus = "ENDED"
)

// Campaign is read by the ledger for ownership and pricing. SpentBudgetCents is a
// denormalised display counter; remaining budget is always derived from the ledger.
type Campaign struct {
	ID               uuid.UUID      `json:"id"`
	OwnerID          uuid.UUID      `json:"owner_id"`
	Name             string         `json:"name"`
	CPMCents         int64          `json:"cpm_cents"`
	TotalBudgetCents int64          `json:"total_budget_cents"`
	SpentBudgetCents int64          `json:"spent_budget_cents"`
	Status           CampaignStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsOwnedBy reports whether ownerID funds this campaign.
func (c *Campaign) IsOwnedBy(ownerID uuid.UUID) bool {
	return c.OwnerID == ownerID
}

// PayoutPerViewCents is the gross payout of a single validated view.
func (c *Campaign) PayoutPerViewCents() int64 {
	return PayoutPerView(c.CPMCents)
}

// BudgetLock is the escrow of one campaign, moved out of its owner's wallet.
type BudgetLock struct {
	ID          uuid.UUID `json:"id"`
	CampaignID  uuid.UUID `json:"campaign_id"`
	WalletID    uuid.UUID `json:"wallet_id"`
	LockedCents int64     `json:"locked_cents"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BudgetSummary is the read-only budget projection of a campaign.
type BudgetSummary struct {
	CampaignID         uuid.UUID `json:"campaign_id"`
	TotalBudgetCents   int64     `json:"total_budget_cents"`
	LockedCents        int64     `json:"locked_cents"`
	SpentCents         int64     `json:"spent_cents"`
	RemainingCents     int64     `json:"remaining_cents"`
	CPMCents           int64     `json:"cpm_cents"`
	PayoutPerViewCents int64     `json:"payout_per_view_cents"`
}

// NewBudgetSummary combines a campaign, its lock (nil when absent) and the ledger spend.
func NewBudgetSummary(c *Campaign, lock *BudgetLock, spentCents int64) *BudgetSummary {
	var locked int64
	if lock != nil {
		locked = lock.LockedCents
	}
	remaining := locked - spentCents
	if remaining < 0 {
		remaining = 0
	}
	return &BudgetSummary{
		CampaignID:         c.ID,
		TotalBudgetCents:   c.TotalBudgetCents,
		LockedCents:        locked,
		SpentCents:         spentCents,
		RemainingCents:     remaining,
		CPMCents:           c.CPMCents,
		PayoutPerViewCents: c.PayoutPerViewCents(),
	}
}
