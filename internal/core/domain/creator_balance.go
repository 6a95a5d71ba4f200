package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel tunes how long a creator's earnings mature before release.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// CreatorBalance holds a creator's earnings. Available is withdrawable, pending is maturing.
type CreatorBalance struct {
	CreatorID          uuid.UUID `json:"creator_id"`
	AvailableCents     int64     `json:"available_cents"`
	PendingCents       int64     `json:"pending_cents"`
	LockedReserveCents int64     `json:"locked_reserve_cents"`
	TotalEarnedCents   int64     `json:"total_earned_cents"`
	RiskLevel          RiskLevel `json:"risk_level"`
	PayoutDelayDays    int       `json:"payout_delay_days"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewCreatorBalance returns an empty low-risk balance.
func NewCreatorBalance(creatorID uuid.UUID, payoutDelayDays int, now time.Time) *CreatorBalance {
	return &CreatorBalance{
		CreatorID:       creatorID,
		RiskLevel:       RiskLow,
		PayoutDelayDays: payoutDelayDays,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Credit books net earnings. Conversion earnings land in pending.
func (b *CreatorBalance) Credit(netCents int64, pending bool) {
	if pending {
		b.PendingCents += netCents
	} else {
		b.AvailableCents += netCents
	}
	b.TotalEarnedCents += netCents
}
