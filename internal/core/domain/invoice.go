package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoice documents a paid withdrawal.
type Invoice struct {
	ID           uuid.UUID `json:"id"`
	Number       string    `json:"number"`
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	CreatorID    uuid.UUID `json:"creator_id"`
	GrossCents   int64     `json:"gross_cents"`
	FeeCents     int64     `json:"fee_cents"`
	NetCents     int64     `json:"net_cents"`
	IssuedAt     time.Time `json:"issued_at"`
}

// InvoiceNumber derives a stable number from the issue date and withdrawal id.
func InvoiceNumber(withdrawalID uuid.UUID, issuedAt time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(withdrawalID.String(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", issuedAt.UTC().Format("20060102"), short)
}
