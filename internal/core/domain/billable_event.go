package domain

import (
	"time"

	"github.com/google/uuid"
)

// BillableEventKind distinguishes view events from conversion events.
type BillableEventKind string

const (
	BillableView       BillableEventKind = "VIEW"
	BillableConversion BillableEventKind = "CONVERSION"
)

// LedgerEntryType returns the payout entry type for events of this kind.
func (k BillableEventKind) LedgerEntryType() LedgerEntryType {
	if k == BillableConversion {
		return LedgerConversionPayout
	}
	return LedgerViewPayout
}

// BillableEvent is produced by the validation pipeline. The ledger only flips IsPaid.
type BillableEvent struct {
	ID          uuid.UUID         `json:"id"`
	CampaignID  uuid.UUID         `json:"campaign_id"`
	CreatorID   uuid.UUID         `json:"creator_id"`
	Kind        BillableEventKind `json:"kind"`
	IsValidated bool              `json:"is_validated"`
	IsPaid      bool              `json:"is_paid"`
	OccurredAt  time.Time         `json:"occurred_at"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
}

// Matches reports whether the event belongs to the given campaign and creator.
func (e *BillableEvent) Matches(campaignID, creatorID uuid.UUID) bool {
	return e.CampaignID == campaignID && e.CreatorID == creatorID
}
