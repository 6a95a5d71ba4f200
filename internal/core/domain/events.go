package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event type names, also used as topic suffixes.
const (
	EventWalletCredited      = "wallet.credited"
	EventBudgetLocked        = "budget.locked"
	EventBudgetReleased      = "budget.released"
	EventEarningsCredited    = "creator.earnings_credited"
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalCancelled = "withdrawal.cancelled"
	EventWithdrawalFailed    = "withdrawal.failed"
	EventPayoutCompleted     = "withdrawal.paid"
)

// Event is a post-commit domain event. Each payload is its own struct.
type Event interface {
	EventType() string
	// PartitionKey keeps events of one aggregate ordered.
	PartitionKey() string
}

type WalletCredited struct {
	WalletID       uuid.UUID             `json:"wallet_id"`
	OwnerID        uuid.UUID             `json:"owner_id"`
	TransactionID  uuid.UUID             `json:"transaction_id"`
	Type           WalletTransactionType `json:"type"`
	AmountCents    int64                 `json:"amount_cents"`
	AvailableCents int64                 `json:"available_cents"`
	Currency       string                `json:"currency"`
	OccurredAt     time.Time             `json:"occurred_at"`
}

func (e WalletCredited) EventType() string    { return EventWalletCredited }
func (e WalletCredited) PartitionKey() string { return e.OwnerID.String() }

type BudgetLocked struct {
	CampaignID     uuid.UUID `json:"campaign_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	AmountCents    int64     `json:"amount_cents"`
	LockedCents    int64     `json:"locked_cents"`
	AvailableCents int64     `json:"available_cents"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (e BudgetLocked) EventType() string    { return EventBudgetLocked }
func (e BudgetLocked) PartitionKey() string { return e.CampaignID.String() }

type BudgetReleased struct {
	CampaignID     uuid.UUID `json:"campaign_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	ReleasedCents  int64     `json:"released_cents"`
	LockedCents    int64     `json:"locked_cents"`
	AvailableCents int64     `json:"available_cents"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (e BudgetReleased) EventType() string    { return EventBudgetReleased }
func (e BudgetReleased) PartitionKey() string { return e.CampaignID.String() }

type EarningsCredited struct {
	CampaignID    uuid.UUID       `json:"campaign_id"`
	CreatorID     uuid.UUID       `json:"creator_id"`
	EventID       uuid.UUID       `json:"event_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
	EntryType     LedgerEntryType `json:"entry_type"`
	PayoutCents   int64           `json:"payout_cents"`
	FeeCents      int64           `json:"fee_cents"`
	NetCents      int64           `json:"net_cents"`
	Pending       bool            `json:"pending"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (e EarningsCredited) EventType() string    { return EventEarningsCredited }
func (e EarningsCredited) PartitionKey() string { return e.CreatorID.String() }

type WithdrawalRequested struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	CreatorID    uuid.UUID `json:"creator_id"`
	GrossCents   int64     `json:"gross_cents"`
	FeeCents     int64     `json:"fee_cents"`
	NetCents     int64     `json:"net_cents"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (e WithdrawalRequested) EventType() string    { return EventWithdrawalRequested }
func (e WithdrawalRequested) PartitionKey() string { return e.CreatorID.String() }

type WithdrawalCancelledEvent struct {
	WithdrawalID  uuid.UUID `json:"withdrawal_id"`
	CreatorID     uuid.UUID `json:"creator_id"`
	RefundedCents int64     `json:"refunded_cents"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e WithdrawalCancelledEvent) EventType() string    { return EventWithdrawalCancelled }
func (e WithdrawalCancelledEvent) PartitionKey() string { return e.CreatorID.String() }

type WithdrawalFailedEvent struct {
	WithdrawalID  uuid.UUID `json:"withdrawal_id"`
	CreatorID     uuid.UUID `json:"creator_id"`
	RefundedCents int64     `json:"refunded_cents"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e WithdrawalFailedEvent) EventType() string    { return EventWithdrawalFailed }
func (e WithdrawalFailedEvent) PartitionKey() string { return e.CreatorID.String() }

// PayoutCompleted is published once the processor confirms a withdrawal.
type PayoutCompleted struct {
	WithdrawalID uuid.UUID  `json:"withdrawal_id"`
	CreatorID    uuid.UUID  `json:"creator_id"`
	NetCents     int64      `json:"net_cents"`
	PSReference  string     `json:"ps_reference"`
	InvoiceID    *uuid.UUID `json:"invoice_id,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

func (e PayoutCompleted) EventType() string    { return EventPayoutCompleted }
func (e PayoutCompleted) PartitionKey() string { return e.CreatorID.String() }
