package service

import (
	"context"
	"errors"
	"time"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InvoiceService implements ports.InvoiceCreator. Creating an invoice twice for
// the same withdrawal returns the first one.
type InvoiceService struct {
	repo ports.InvoiceRepository
	log  zerolog.Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(repo ports.InvoiceRepository, log zerolog.Logger) *InvoiceService {
	return &InvoiceService{repo: repo, log: log.With().Str("component", "invoice").Logger()}
}

// CreateForWithdrawal issues the invoice of a paid withdrawal.
func (s *InvoiceService) CreateForWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) (*domain.Invoice, error) {
	existing, err := s.repo.GetByWithdrawal(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	issuedAt := time.Now().UTC()
	if w.ProcessedAt != nil {
		issuedAt = w.ProcessedAt.UTC()
	}
	inv := &domain.Invoice{
		ID:           uuid.New(),
		Number:       domain.InvoiceNumber(w.ID, issuedAt),
		WithdrawalID: w.ID,
		CreatorID:    w.CreatorID,
		GrossCents:   w.GrossCents(),
		FeeCents:     w.PlatformFeeCents,
		NetCents:     w.AmountCents,
		IssuedAt:     issuedAt,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return s.repo.GetByWithdrawal(ctx, w.ID)
		}
		return nil, err
	}

	s.log.Info().
		Str("invoice_number", inv.Number).
		Str("withdrawal_id", w.ID.String()).
		Int64("gross_cents", inv.GrossCents).
		Msg("invoice issued")
	return inv, nil
}
