package service

import (
	"context"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	withdrawals ports.WithdrawalRepository
	balances    ports.CreatorBalanceRepository
	transactor  ports.Transactor
	fees        ports.FeeRateProvider
	invoices    ports.InvoiceCreator
	publisher   ports.EventPublisher
	metrics     ports.LedgerMetrics
	cfg         config.LedgerConfig
	log         zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	withdrawals ports.WithdrawalRepository,
	balances ports.CreatorBalanceRepository,
	transactor ports.Transactor,
	fees ports.FeeRateProvider,
	invoices ports.InvoiceCreator,
	publisher ports.EventPublisher,
	metrics ports.LedgerMetrics,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		withdrawals: withdrawals,
		balances:    balances,
		transactor:  transactor,
		fees:        fees,
		invoices:    invoices,
		publisher:   publisher,
		metrics:     metrics,
		cfg:         cfg,
		log:         log.With().Str("component", "withdrawal").Logger(),
	}
}

// RequestWithdrawal debits the net amount from the creator's available balance
// and opens a PENDING request for it.
func (s *WithdrawalServiceImpl) RequestWithdrawal(ctx context.Context, creatorID uuid.UUID, grossCents int64) (*ports.WithdrawalResult, error) {
	if err := validateAmount(grossCents, s.cfg.MaxAmountCents); err != nil {
		return nil, err
	}
	if grossCents < s.cfg.MinWithdrawalCents {
		return nil, apperror.InvalidAmount("Amount is below the minimum withdrawal")
	}

	feeBps, err := s.fees.CurrentFeeBps(ctx)
	if err != nil {
		return nil, dbError("fetch platform fee rate", err)
	}
	fee := domain.PlatformFee(grossCents, feeBps)
	net := grossCents - fee
	if net <= 0 {
		return nil, apperror.InvalidAmount("Amount does not cover the platform fee")
	}

	log := s.log.With().Str("creator_id", creatorID.String()).Int64("gross_cents", grossCents).Logger()

	var (
		result     *ports.WithdrawalResult
		withdrawal *domain.WithdrawalRequest
	)
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		balance, err := s.balances.GetForUpdate(ctx, tx, creatorID)
		if err != nil {
			return dbError("lock creator balance", err)
		}
		if balance == nil || balance.AvailableCents < net {
			var available int64
			if balance != nil {
				available = balance.AvailableCents
			}
			log.Warn().
				Int64("net_cents", net).
				Int64("available_cents", available).
				Msg("withdrawal exceeds available earnings")
			return apperror.ErrInsufficientFunds()
		}

		balance.AvailableCents -= net
		if err := s.balances.Update(ctx, tx, balance); err != nil {
			return dbError("debit creator balance", err)
		}

		w := &domain.WithdrawalRequest{
			ID:               uuid.New(),
			CreatorID:        creatorID,
			AmountCents:      net,
			PlatformFeeCents: fee,
			Status:           domain.WithdrawalPending,
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.withdrawals.Create(ctx, tx, w); err != nil {
			return dbError("create withdrawal request", err)
		}

		withdrawal = w
		result = &ports.WithdrawalResult{
			WithdrawalID:   w.ID,
			NetAmountCents: net,
			FeeCents:       fee,
			AvailableCents: balance.AvailableCents,
		}
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.metrics.WithdrawalTransition(domain.WithdrawalPending)
	publish(ctx, s.publisher, log, domain.WithdrawalRequested{
		WithdrawalID: withdrawal.ID,
		CreatorID:    creatorID,
		GrossCents:   grossCents,
		FeeCents:     fee,
		NetCents:     net,
		OccurredAt:   withdrawal.CreatedAt,
	})

	log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Int64("net_cents", net).
		Int64("fee_cents", fee).
		Msg("withdrawal requested")

	return result, nil
}

// ApproveWithdrawal moves a PENDING request to PROCESSING.
func (s *WithdrawalServiceImpl) ApproveWithdrawal(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, err := s.transition(ctx, id, func(w *domain.WithdrawalRequest) (bool, error) {
		if !w.CanApprove() {
			return false, apperror.ErrInvalidWithdrawalStatus()
		}
		w.Status = domain.WithdrawalProcessing
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.WithdrawalTransition(domain.WithdrawalProcessing)
	s.log.Info().Str("withdrawal_id", id.String()).Msg("withdrawal approved")
	return w, nil
}

// CompleteWithdrawal records the processor's confirmation. Completing a PAID
// request again returns it unchanged.
func (s *WithdrawalServiceImpl) CompleteWithdrawal(ctx context.Context, id uuid.UUID, psReference string) (*domain.WithdrawalRequest, error) {
	var changed bool
	w, err := s.transition(ctx, id, func(w *domain.WithdrawalRequest) (bool, error) {
		if w.Status == domain.WithdrawalPaid {
			return false, nil
		}
		if !w.CanComplete() {
			return false, apperror.ErrInvalidWithdrawalStatus()
		}
		now := time.Now().UTC()
		ref := psReference
		w.Status = domain.WithdrawalPaid
		w.PSReference = &ref
		w.ProcessedAt = &now
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return w, nil
	}

	s.metrics.WithdrawalTransition(domain.WithdrawalPaid)
	log := s.log.With().Str("withdrawal_id", id.String()).Logger()

	event := domain.PayoutCompleted{
		WithdrawalID: w.ID,
		CreatorID:    w.CreatorID,
		NetCents:     w.AmountCents,
		PSReference:  psReference,
		OccurredAt:   *w.ProcessedAt,
	}
	invoice, err := s.invoices.CreateForWithdrawal(ctx, w)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create invoice for paid withdrawal")
	} else if invoice != nil {
		event.InvoiceID = &invoice.ID
	}
	publish(ctx, s.publisher, log, event)

	log.Info().Str("ps_reference", psReference).Int64("net_cents", w.AmountCents).Msg("withdrawal paid")
	return w, nil
}

// FailWithdrawal fails a non-terminal request and refunds its net amount.
func (s *WithdrawalServiceImpl) FailWithdrawal(ctx context.Context, id uuid.UUID, reason string) (*domain.WithdrawalRequest, error) {
	w, err := s.refund(ctx, id, func(w *domain.WithdrawalRequest) error {
		if !w.CanFail() {
			return apperror.ErrInvalidWithdrawalStatus()
		}
		now := time.Now().UTC()
		r := reason
		w.Status = domain.WithdrawalFailed
		w.FailureReason = &r
		w.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WithdrawalTransition(domain.WithdrawalFailed)
	log := s.log.With().Str("withdrawal_id", id.String()).Logger()
	publish(ctx, s.publisher, log, domain.WithdrawalFailedEvent{
		WithdrawalID:  w.ID,
		CreatorID:     w.CreatorID,
		RefundedCents: w.AmountCents,
		Reason:        reason,
		OccurredAt:    *w.ProcessedAt,
	})
	log.Info().Str("reason", reason).Int64("refunded_cents", w.AmountCents).Msg("withdrawal failed")
	return w, nil
}

// CancelWithdrawal cancels the creator's own PENDING request and refunds it.
func (s *WithdrawalServiceImpl) CancelWithdrawal(ctx context.Context, id uuid.UUID, creatorID uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, err := s.refund(ctx, id, func(w *domain.WithdrawalRequest) error {
		if w.CreatorID != creatorID {
			return apperror.ErrWithdrawalNotFound()
		}
		if !w.CanCancel() {
			return apperror.ErrInvalidWithdrawalStatus()
		}
		now := time.Now().UTC()
		w.Status = domain.WithdrawalCancelled
		w.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WithdrawalTransition(domain.WithdrawalCancelled)
	log := s.log.With().Str("withdrawal_id", id.String()).Logger()
	publish(ctx, s.publisher, log, domain.WithdrawalCancelledEvent{
		WithdrawalID:  w.ID,
		CreatorID:     w.CreatorID,
		RefundedCents: w.AmountCents,
		OccurredAt:    *w.ProcessedAt,
	})
	log.Info().Int64("refunded_cents", w.AmountCents).Msg("withdrawal cancelled")
	return w, nil
}

// GetWithdrawal returns a single request.
func (s *WithdrawalServiceImpl) GetWithdrawal(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, dbError("get withdrawal", err)
	}
	if w == nil {
		return nil, apperror.ErrWithdrawalNotFound()
	}
	return w, nil
}

// ListWithdrawals returns the creator's most recent requests, newest first.
func (s *WithdrawalServiceImpl) ListWithdrawals(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.WithdrawalRequest, error) {
	list, err := s.withdrawals.ListByCreator(ctx, creatorID, clampLimit(limit))
	if err != nil {
		return nil, dbError("list withdrawals", err)
	}
	return list, nil
}

// transition locks the request, lets apply mutate it and persists the result
// when apply reports a change.
func (s *WithdrawalServiceImpl) transition(ctx context.Context, id uuid.UUID, apply func(*domain.WithdrawalRequest) (bool, error)) (*domain.WithdrawalRequest, error) {
	var out *domain.WithdrawalRequest
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		w, err := s.withdrawals.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return dbError("lock withdrawal", err)
		}
		if w == nil {
			return apperror.ErrWithdrawalNotFound()
		}
		changed, err := apply(w)
		if err != nil {
			return err
		}
		if changed {
			if err := s.withdrawals.UpdateStatus(ctx, tx, w); err != nil {
				return dbError("update withdrawal status", err)
			}
		}
		out = w
		return nil
	})
	if err != nil {
		logFailure(s.log.With().Str("withdrawal_id", id.String()).Logger(), err, "withdrawal transition rejected")
		return nil, toAppError(err)
	}
	return out, nil
}

// refund runs a refunding transition: the status change and the credit of
// amountCents back to available happen in one unit.
func (s *WithdrawalServiceImpl) refund(ctx context.Context, id uuid.UUID, apply func(*domain.WithdrawalRequest) error) (*domain.WithdrawalRequest, error) {
	var out *domain.WithdrawalRequest
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		w, err := s.withdrawals.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return dbError("lock withdrawal", err)
		}
		if w == nil {
			return apperror.ErrWithdrawalNotFound()
		}
		if err := apply(w); err != nil {
			return err
		}

		balance, err := s.balances.GetForUpdate(ctx, tx, w.CreatorID)
		if err != nil {
			return dbError("lock creator balance", err)
		}
		if balance == nil {
			return apperror.ErrDatabaseError(errMissingBalance)
		}
		balance.AvailableCents += w.AmountCents
		if err := s.balances.Update(ctx, tx, balance); err != nil {
			return dbError("refund creator balance", err)
		}
		if err := s.withdrawals.UpdateStatus(ctx, tx, w); err != nil {
			return dbError("update withdrawal status", err)
		}
		out = w
		return nil
	})
	if err != nil {
		logFailure(s.log.With().Str("withdrawal_id", id.String()).Logger(), err, "withdrawal refund rejected")
		return nil, toAppError(err)
	}
	return out, nil
}
