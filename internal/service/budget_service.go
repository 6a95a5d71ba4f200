package service

import (
	"context"
	"errors"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// BudgetServiceImpl implements ports.BudgetService.
type BudgetServiceImpl struct {
	campaigns  ports.CampaignRepository
	locks      ports.BudgetLockRepository
	wallets    ports.WalletRepository
	txns       ports.WalletTransactionRepository
	ledger     ports.LedgerRepository
	transactor ports.Transactor
	cache      ports.BudgetCache
	events     ports.EventPublisher
	metrics    ports.LedgerMetrics
	cfg        config.LedgerConfig
	log        zerolog.Logger
}

// NewBudgetService creates a new BudgetServiceImpl.
func NewBudgetService(
	campaigns ports.CampaignRepository,
	locks ports.BudgetLockRepository,
	wallets ports.WalletRepository,
	txns ports.WalletTransactionRepository,
	ledger ports.LedgerRepository,
	transactor ports.Transactor,
	cache ports.BudgetCache,
	events ports.EventPublisher,
	metrics ports.LedgerMetrics,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *BudgetServiceImpl {
	return &BudgetServiceImpl{
		campaigns:  campaigns,
		locks:      locks,
		wallets:    wallets,
		txns:       txns,
		ledger:     ledger,
		transactor: transactor,
		cache:      cache,
		events:     events,
		metrics:    metrics,
		cfg:        cfg,
		log:        log.With().Str("component", "budget").Logger(),
	}
}

// LockBudget moves funds from the owner's wallet into the campaign's escrow.
// An existing lock is incremented.
func (s *BudgetServiceImpl) LockBudget(ctx context.Context, req ports.LockBudgetRequest) (*ports.LockResult, error) {
	if err := validateAmount(req.AmountCents, s.cfg.MaxAmountCents); err != nil {
		return nil, err
	}

	var result *ports.LockResult
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		campaign, err := s.campaigns.GetByIDForUpdate(ctx, tx, req.CampaignID)
		if err != nil {
			return dbError("lock campaign", err)
		}
		if campaign == nil {
			return apperror.ErrCampaignNotFound()
		}
		if !campaign.IsOwnedBy(req.OwnerID) {
			return apperror.ErrCampaignNotOwned()
		}

		wallet, err := s.wallets.GetOrCreateForUpdate(ctx, tx, req.OwnerID, s.cfg.Currency)
		if err != nil {
			return dbError("lock wallet", err)
		}
		if !wallet.CanDebit(req.AmountCents) {
			s.log.Warn().
				Str("campaign_id", req.CampaignID.String()).
				Str("owner_id", req.OwnerID.String()).
				Int64("requested_cents", req.AmountCents).
				Int64("available_cents", wallet.AvailableCents).
				Msg("budget lock exceeds available balance")
			return apperror.ErrInsufficientFunds()
		}

		lock, err := s.locks.GetByCampaignForUpdate(ctx, tx, req.CampaignID)
		if err != nil {
			return dbError("lock budget lock", err)
		}
		now := time.Now().UTC()
		if lock == nil {
			lock = &domain.BudgetLock{
				ID:          uuid.New(),
				CampaignID:  req.CampaignID,
				WalletID:    wallet.ID,
				LockedCents: req.AmountCents,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.locks.Create(ctx, tx, lock); err != nil {
				if errors.Is(err, ports.ErrDuplicate) {
					return apperror.ErrBudgetLockExists()
				}
				return dbError("create budget lock", err)
			}
		} else {
			lock.LockedCents += req.AmountCents
			if err := s.locks.UpdateLocked(ctx, tx, lock.ID, lock.LockedCents); err != nil {
				return dbError("increment budget lock", err)
			}
		}

		wallet.AvailableCents -= req.AmountCents
		if err := s.wallets.UpdateBalance(ctx, tx, wallet); err != nil {
			return dbError("debit wallet", err)
		}
		campaignID := req.CampaignID
		if err := s.txns.Create(ctx, tx, &domain.WalletTransaction{
			ID:                uuid.New(),
			WalletID:          wallet.ID,
			Type:              domain.WalletTxnHold,
			AmountCents:       req.AmountCents,
			BalanceAfterCents: wallet.AvailableCents,
			CampaignID:        &campaignID,
			CreatedAt:         now,
		}); err != nil {
			return dbError("create hold transaction", err)
		}

		result = &ports.LockResult{
			LockID:         lock.ID,
			LockedCents:    lock.LockedCents,
			AvailableCents: wallet.AvailableCents,
		}
		return nil
	})
	if err != nil {
		s.metrics.WalletOperation("lock", outcomeFailure)
		return nil, toAppError(err)
	}

	s.metrics.WalletOperation("lock", outcomeSuccess)
	s.invalidate(ctx, req.CampaignID)
	publish(ctx, s.events, s.log, domain.BudgetLocked{
		CampaignID:     req.CampaignID,
		OwnerID:        req.OwnerID,
		AmountCents:    req.AmountCents,
		LockedCents:    result.LockedCents,
		AvailableCents: result.AvailableCents,
		OccurredAt:     time.Now().UTC(),
	})

	s.log.Info().
		Str("campaign_id", req.CampaignID.String()).
		Int64("amount_cents", req.AmountCents).
		Int64("locked_cents", result.LockedCents).
		Msg("budget locked")

	return result, nil
}

// ReleaseBudget returns unspent escrow to the wallet. A nil amount releases everything
// still unspent. The lock row is removed once it reaches zero.
func (s *BudgetServiceImpl) ReleaseBudget(ctx context.Context, req ports.ReleaseBudgetRequest) (*ports.ReleaseResult, error) {
	if req.AmountCents != nil {
		if err := validateAmount(*req.AmountCents, s.cfg.MaxAmountCents); err != nil {
			return nil, err
		}
	}

	var result *ports.ReleaseResult
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		campaign, err := s.campaigns.GetByIDForUpdate(ctx, tx, req.CampaignID)
		if err != nil {
			return dbError("lock campaign", err)
		}
		if campaign == nil {
			return apperror.ErrCampaignNotFound()
		}
		if !campaign.IsOwnedBy(req.OwnerID) {
			return apperror.ErrCampaignNotOwned()
		}

		lock, err := s.locks.GetByCampaignForUpdate(ctx, tx, req.CampaignID)
		if err != nil {
			return dbError("lock budget lock", err)
		}
		if lock == nil {
			return apperror.ErrBudgetLockNotFound()
		}

		spent, err := s.ledger.SumSpentInTx(ctx, tx, req.CampaignID)
		if err != nil {
			return dbError("sum campaign spend", err)
		}
		releasable := lock.LockedCents - spent
		if releasable < 0 {
			releasable = 0
		}

		amount := releasable
		if req.AmountCents != nil {
			amount = *req.AmountCents
		}
		if amount <= 0 || amount > releasable {
			return apperror.InvalidAmount("Release exceeds the unspent locked budget")
		}

		wallet, err := s.wallets.GetByIDForUpdate(ctx, tx, lock.WalletID)
		if err != nil {
			return dbError("lock wallet", err)
		}
		if wallet == nil {
			return apperror.ErrWalletNotFound()
		}

		lock.LockedCents -= amount
		if lock.LockedCents == 0 {
			err = s.locks.Delete(ctx, tx, lock.ID)
		} else {
			err = s.locks.UpdateLocked(ctx, tx, lock.ID, lock.LockedCents)
		}
		if err != nil {
			return dbError("decrement budget lock", err)
		}

		wallet.AvailableCents += amount
		if err := s.wallets.UpdateBalance(ctx, tx, wallet); err != nil {
			return dbError("credit wallet", err)
		}
		campaignID := req.CampaignID
		if err := s.txns.Create(ctx, tx, &domain.WalletTransaction{
			ID:                uuid.New(),
			WalletID:          wallet.ID,
			Type:              domain.WalletTxnRelease,
			AmountCents:       amount,
			BalanceAfterCents: wallet.AvailableCents,
			CampaignID:        &campaignID,
			Reason:            req.Reason,
			CreatedAt:         time.Now().UTC(),
		}); err != nil {
			return dbError("create release transaction", err)
		}

		result = &ports.ReleaseResult{
			ReleasedCents:  amount,
			LockedCents:    lock.LockedCents,
			AvailableCents: wallet.AvailableCents,
		}
		return nil
	})
	if err != nil {
		s.metrics.WalletOperation("release", outcomeFailure)
		return nil, toAppError(err)
	}

	s.metrics.WalletOperation("release", outcomeSuccess)
	s.invalidate(ctx, req.CampaignID)
	publish(ctx, s.events, s.log, domain.BudgetReleased{
		CampaignID:     req.CampaignID,
		OwnerID:        req.OwnerID,
		ReleasedCents:  result.ReleasedCents,
		LockedCents:    result.LockedCents,
		AvailableCents: result.AvailableCents,
		Reason:         req.Reason,
		OccurredAt:     time.Now().UTC(),
	})

	s.log.Info().
		Str("campaign_id", req.CampaignID.String()).
		Int64("released_cents", result.ReleasedCents).
		Int64("locked_cents", result.LockedCents).
		Str("reason", req.Reason).
		Msg("budget released")

	return result, nil
}

func (s *BudgetServiceImpl) invalidate(ctx context.Context, campaignID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, campaignID); err != nil {
		s.log.Warn().Err(err).Str("campaign_id", campaignID.String()).Msg("failed to invalidate budget cache")
	}
}
