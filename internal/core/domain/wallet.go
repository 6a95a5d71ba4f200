package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is the single balance record of a funding party (advertiser).
// AvailableCents is spendable and never negative.
type Wallet struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Currency       string    `json:"currency"`
	AvailableCents int64     `json:"available_cents"`
	PendingCents   int64     `json:"pending_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CanDebit reports whether amountCents can leave the available balance.
func (w *Wallet) CanDebit(amountCents int64) bool {
	return amountCents >= 0 && w.AvailableCents >= amountCents
}

// WalletTransactionType is the kind of wallet movement recorded for audit.
type WalletTransactionType string

const (
	WalletTxnDeposit    WalletTransactionType = "DEPOSIT"
	WalletTxnWithdrawal WalletTransactionType = "WITHDRAWAL"
	WalletTxnHold       WalletTransactionType = "HOLD"
	WalletTxnRelease    WalletTransactionType = "RELEASE"
	WalletTxnAdjustment WalletTransactionType = "ADJUSTMENT"
)

// WalletTransaction is an append-only record of one wallet balance change.
// AmountCents is signed only for ADJUSTMENT.
type WalletTransaction struct {
	ID                uuid.UUID             `json:"id"`
	WalletID          uuid.UUID             `json:"wallet_id"`
	Type              WalletTransactionType `json:"type"`
	AmountCents       int64                 `json:"amount_cents"`
	BalanceAfterCents int64                 `json:"balance_after_cents"`
	CampaignID        *uuid.UUID            `json:"campaign_id,omitempty"`
	ActorID           *uuid.UUID            `json:"actor_id,omitempty"`
	Reason            string                `json:"reason,omitempty"`
	Reference         string                `json:"reference,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}
