package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	wallets    ports.WalletRepository
	txns       ports.WalletTransactionRepository
	transactor ports.Transactor
	events     ports.EventPublisher
	metrics    ports.LedgerMetrics
	cfg        config.LedgerConfig
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	wallets ports.WalletRepository,
	txns ports.WalletTransactionRepository,
	transactor ports.Transactor,
	events ports.EventPublisher,
	metrics ports.LedgerMetrics,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		wallets:    wallets,
		txns:       txns,
		transactor: transactor,
		events:     events,
		metrics:    metrics,
		cfg:        cfg,
		log:        log.With().Str("component", "wallet").Logger(),
	}
}

// GetOrCreateWallet returns the owner's wallet, creating an empty one on first use.
func (s *WalletServiceImpl) GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		w, err := s.wallets.GetOrCreateForUpdate(ctx, tx, ownerID, s.cfg.Currency)
		if err != nil {
			return dbError("get or create wallet", err)
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}
	return wallet, nil
}

// GetWallet returns the owner's wallet without creating it.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, dbError("get wallet", err)
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return w, nil
}

// Deposit credits the owner's wallet, creating it lazily.
func (s *WalletServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*ports.WalletResult, error) {
	if err := validateAmount(req.AmountCents, s.cfg.MaxAmountCents); err != nil {
		return nil, err
	}

	var (
		result *ports.WalletResult
		wallet *domain.Wallet
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		w, err := s.wallets.GetOrCreateForUpdate(ctx, tx, req.OwnerID, s.cfg.Currency)
		if err != nil {
			return dbError("lock wallet", err)
		}
		res, err := s.apply(ctx, tx, w, req.AmountCents, &domain.WalletTransaction{
			Type:      domain.WalletTxnDeposit,
			Reference: req.Reference,
		})
		if err != nil {
			return err
		}
		result, wallet = res, w
		return nil
	})
	if err != nil {
		s.metrics.WalletOperation("deposit", outcomeFailure)
		logFailure(s.log.With().Str("owner_id", req.OwnerID.String()).Int64("amount_cents", req.AmountCents).Logger(), err, "deposit failed")
		return nil, toAppError(err)
	}

	s.metrics.WalletOperation("deposit", outcomeSuccess)
	s.publishCredited(ctx, wallet, result, domain.WalletTxnDeposit, req.AmountCents)

	s.log.Info().
		Str("owner_id", req.OwnerID.String()).
		Int64("amount_cents", req.AmountCents).
		Int64("available_cents", result.AvailableCents).
		Msg("wallet deposit")

	return result, nil
}

// Withdraw debits the owner's wallet. The sufficiency check and the debit share one unit.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*ports.WalletResult, error) {
	if err := validateAmount(req.AmountCents, s.cfg.MaxAmountCents); err != nil {
		return nil, err
	}

	var result *ports.WalletResult
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		w, err := s.wallets.GetByOwnerForUpdate(ctx, tx, req.OwnerID)
		if err != nil {
			return dbError("lock wallet", err)
		}
		if w == nil {
			return apperror.ErrWalletNotFound()
		}
		if !w.CanDebit(req.AmountCents) {
			s.log.Warn().
				Str("owner_id", req.OwnerID.String()).
				Int64("requested_cents", req.AmountCents).
				Int64("available_cents", w.AvailableCents).
				Msg("wallet withdrawal exceeds available balance")
			return apperror.ErrInsufficientFunds()
		}
		result, err = s.apply(ctx, tx, w, -req.AmountCents, &domain.WalletTransaction{
			Type:      domain.WalletTxnWithdrawal,
			Reference: req.Reference,
		})
		return err
	})
	if err != nil {
		s.metrics.WalletOperation("withdraw", outcomeFailure)
		return nil, toAppError(err)
	}

	s.metrics.WalletOperation("withdraw", outcomeSuccess)
	s.log.Info().
		Str("owner_id", req.OwnerID.String()).
		Int64("amount_cents", req.AmountCents).
		Int64("available_cents", result.AvailableCents).
		Msg("wallet withdrawal")

	return result, nil
}

// Adjust applies a privileged signed correction.
func (s *WalletServiceImpl) Adjust(ctx context.Context, req ports.AdjustRequest) (*ports.WalletResult, error) {
	if req.DeltaCents == 0 || req.DeltaCents == math.MinInt64 {
		return nil, apperror.InvalidAmount("Adjustment must be non-zero")
	}
	magnitude := req.DeltaCents
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if err := validateAmount(magnitude, s.cfg.MaxAmountCents); err != nil {
		return nil, err
	}

	var (
		result *ports.WalletResult
		wallet *domain.Wallet
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var (
			w   *domain.Wallet
			err error
		)
		if req.DeltaCents > 0 {
			w, err = s.wallets.GetOrCreateForUpdate(ctx, tx, req.OwnerID, s.cfg.Currency)
		} else {
			w, err = s.wallets.GetByOwnerForUpdate(ctx, tx, req.OwnerID)
		}
		if err != nil {
			return dbError("lock wallet", err)
		}
		if w == nil {
			return apperror.ErrWalletNotFound()
		}
		if req.DeltaCents < 0 && !w.CanDebit(magnitude) {
			s.log.Warn().
				Str("owner_id", req.OwnerID.String()).
				Int64("requested_cents", magnitude).
				Int64("available_cents", w.AvailableCents).
				Msg("negative adjustment exceeds available balance")
			return apperror.ErrInsufficientFunds()
		}

		actorID := req.ActorID
		res, err := s.apply(ctx, tx, w, req.DeltaCents, &domain.WalletTransaction{
			Type:    domain.WalletTxnAdjustment,
			ActorID: &actorID,
			Reason:  req.Reason,
		})
		if err != nil {
			return err
		}
		result, wallet = res, w
		return nil
	})
	if err != nil {
		s.metrics.WalletOperation("adjust", outcomeFailure)
		return nil, toAppError(err)
	}

	s.metrics.WalletOperation("adjust", outcomeSuccess)
	if req.DeltaCents > 0 {
		s.publishCredited(ctx, wallet, result, domain.WalletTxnAdjustment, req.DeltaCents)
	}

	s.log.Info().
		Str("owner_id", req.OwnerID.String()).
		Str("actor_id", req.ActorID.String()).
		Int64("delta_cents", req.DeltaCents).
		Str("reason", req.Reason).
		Msg("wallet adjusted")

	return result, nil
}

// ListTransactions returns the owner's most recent wallet movements.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	w, err := s.GetWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	txns, err := s.txns.ListByWallet(ctx, w.ID, clampLimit(limit))
	if err != nil {
		return nil, dbError("list wallet transactions", err)
	}
	return txns, nil
}

// apply moves deltaCents through the locked wallet and appends the history record.
// txn carries type and metadata; apply fills the rest.
func (s *WalletServiceImpl) apply(ctx context.Context, tx pgx.Tx, w *domain.Wallet, deltaCents int64, txn *domain.WalletTransaction) (*ports.WalletResult, error) {
	if deltaCents > 0 && w.AvailableCents > math.MaxInt64-deltaCents {
		return nil, apperror.InvalidAmount("Balance would overflow")
	}
	w.AvailableCents += deltaCents
	if err := s.wallets.UpdateBalance(ctx, tx, w); err != nil {
		return nil, dbError("update wallet balance", err)
	}

	txn.ID = uuid.New()
	txn.WalletID = w.ID
	txn.AmountCents = deltaCents
	if txn.Type != domain.WalletTxnAdjustment && deltaCents < 0 {
		txn.AmountCents = -deltaCents
	}
	txn.BalanceAfterCents = w.AvailableCents
	txn.CreatedAt = time.Now().UTC()
	if err := s.txns.Create(ctx, tx, txn); err != nil {
		return nil, dbError(fmt.Sprintf("create %s transaction", txn.Type), err)
	}

	return &ports.WalletResult{
		WalletID:       w.ID,
		TransactionID:  txn.ID,
		AvailableCents: w.AvailableCents,
	}, nil
}

func (s *WalletServiceImpl) publishCredited(ctx context.Context, w *domain.Wallet, res *ports.WalletResult, typ domain.WalletTransactionType, amountCents int64) {
	publish(ctx, s.events, s.log, domain.WalletCredited{
		WalletID:       w.ID,
		OwnerID:        w.OwnerID,
		TransactionID:  res.TransactionID,
		Type:           typ,
		AmountCents:    amountCents,
		AvailableCents: res.AvailableCents,
		Currency:       w.Currency,
		OccurredAt:     time.Now().UTC(),
	})
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
