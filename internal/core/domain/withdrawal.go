package domain

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the lifecycle state of a creator cash-out.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "PENDING"
	WithdrawalProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalPaid       WithdrawalStatus = "PAID"
	WithdrawalFailed     WithdrawalStatus = "FAILED"
	WithdrawalCancelled  WithdrawalStatus = "CANCELLED"
)

// WithdrawalRequest is a creator cash-out. AmountCents is the net amount debited
// from the creator's available balance when the request was made.
type WithdrawalRequest struct {
	ID               uuid.UUID        `json:"id"`
	CreatorID        uuid.UUID        `json:"creator_id"`
	AmountCents      int64            `json:"amount_cents"`
	PlatformFeeCents int64            `json:"platform_fee_cents"`
	Status           WithdrawalStatus `json:"status"`
	PSReference      *string          `json:"ps_reference,omitempty"`
	FailureReason    *string          `json:"failure_reason,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
}

// GrossCents is the amount the creator asked for.
func (w *WithdrawalRequest) GrossCents() int64 {
	return w.AmountCents + w.PlatformFeeCents
}

// IsTerminal returns true if the request is in a final state.
func (w *WithdrawalRequest) IsTerminal() bool {
	return w.Status == WithdrawalPaid ||
		w.Status == WithdrawalFailed ||
		w.Status == WithdrawalCancelled
}

func (w *WithdrawalRequest) CanApprove() bool  { return w.Status == WithdrawalPending }
func (w *WithdrawalRequest) CanCancel() bool   { return w.Status == WithdrawalPending }
func (w *WithdrawalRequest) CanComplete() bool { return w.Status == WithdrawalProcessing }

// CanFail allows failing any non-terminal request.
func (w *WithdrawalRequest) CanFail() bool {
	return w.Status == WithdrawalPending || w.Status == WithdrawalProcessing
}
