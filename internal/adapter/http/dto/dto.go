package dto

import (
	"time"

	"creator-ledger/internal/core/domain"
)

// Processor callback outcomes.
const (
	CallbackStatusPaid   = "PAID"
	CallbackStatusFailed = "FAILED"
)

// FailWithdrawalRequest is the body of an admin fail action.
type FailWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ProcessorCallbackRequest is the payment processor's settlement report.
type ProcessorCallbackRequest struct {
	Status    string `json:"status" binding:"required,oneof=PAID FAILED"`
	Reference string `json:"reference" binding:"required_if=Status PAID,omitempty,max=128,safe_id"`
	Reason    string `json:"reason" binding:"required_if=Status FAILED,max=500"`
}

// BudgetResponse is the admin view of a campaign budget.
type BudgetResponse struct {
	CampaignID         string `json:"campaign_id"`
	TotalBudgetCents   int64  `json:"total_budget_cents"`
	LockedCents        int64  `json:"locked_cents"`
	SpentCents         int64  `json:"spent_cents"`
	RemainingCents     int64  `json:"remaining_cents"`
	CPMCents           int64  `json:"cpm_cents"`
	PayoutPerViewCents int64  `json:"payout_per_view_cents"`
}

// LedgerEntryResponse is one immutable ledger row.
type LedgerEntryResponse struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creator_id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	RefEventID  string `json:"ref_event_id"`
	CreatedAt   string `json:"created_at"`
}

// WithdrawalResponse is the admin view of a withdrawal request.
type WithdrawalResponse struct {
	ID               string  `json:"id"`
	CreatorID        string  `json:"creator_id"`
	AmountCents      int64   `json:"amount_cents"`
	PlatformFeeCents int64   `json:"platform_fee_cents"`
	Status           string  `json:"status"`
	PSReference      *string `json:"ps_reference,omitempty"`
	FailureReason    *string `json:"failure_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
	ProcessedAt      *string `json:"processed_at,omitempty"`
}

// ListResponse wraps a bounded list.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func NewBudgetResponse(s *domain.BudgetSummary) BudgetResponse {
	return BudgetResponse{
		CampaignID:         s.CampaignID.String(),
		TotalBudgetCents:   s.TotalBudgetCents,
		LockedCents:        s.LockedCents,
		SpentCents:         s.SpentCents,
		RemainingCents:     s.RemainingCents,
		CPMCents:           s.CPMCents,
		PayoutPerViewCents: s.PayoutPerViewCents,
	}
}

func NewLedgerEntryResponse(e domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:          e.ID.String(),
		CreatorID:   e.CreatorID.String(),
		Type:        string(e.Type),
		AmountCents: e.AmountCents,
		RefEventID:  e.RefEventID.String(),
		CreatedAt:   formatTime(e.CreatedAt),
	}
}

func NewWithdrawalResponse(w *domain.WithdrawalRequest) WithdrawalResponse {
	resp := WithdrawalResponse{
		ID:               w.ID.String(),
		CreatorID:        w.CreatorID.String(),
		AmountCents:      w.AmountCents,
		PlatformFeeCents: w.PlatformFeeCents,
		Status:           string(w.Status),
		PSReference:      w.PSReference,
		FailureReason:    w.FailureReason,
		CreatedAt:        formatTime(w.CreatedAt),
	}
	if w.ProcessedAt != nil {
		p := formatTime(*w.ProcessedAt)
		resp.ProcessedAt = &p
	}
	return resp
}

// NewList converts items with fn. A nil input yields an empty list.
func NewList[S, T any](items []S, fn func(S) T) ListResponse[T] {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return ListResponse[T]{Items: out, Count: len(out)}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
