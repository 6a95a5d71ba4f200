package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntryType is the kind of monetary movement recorded in the ledger.
type LedgerEntryType string

const (
	LedgerViewPayout       LedgerEntryType = "VIEW_PAYOUT"
	LedgerConversionPayout LedgerEntryType = "CONVERSION_PAYOUT"
	LedgerPlatformFee      LedgerEntryType = "PLATFORM_FEE"
)

// CountsAsSpend reports whether entries of this type consume campaign escrow.
func (t LedgerEntryType) CountsAsSpend() bool {
	switch t {
	case LedgerViewPayout, LedgerConversionPayout, LedgerPlatformFee:
		return true
	}
	return false
}

// LedgerEntry is an immutable, append-only record of a single movement.
// At most one entry per (campaign, creator, event, type) exists.
type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	CampaignID  uuid.UUID       `json:"campaign_id"`
	CreatorID   uuid.UUID       `json:"creator_id"`
	Type        LedgerEntryType `json:"type"`
	AmountCents int64           `json:"amount_cents"`
	RefEventID  uuid.UUID       `json:"ref_event_id"`
	CreatedAt   time.Time       `json:"created_at"`
}
