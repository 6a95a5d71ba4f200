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

// PayoutServiceImpl implements ports.PayoutService. Each payout is one unit of work
// that re-derives remaining budget from the ledger before writing anything.
type PayoutServiceImpl struct {
	events     ports.BillableEventRepository
	campaigns  ports.CampaignRepository
	locks      ports.BudgetLockRepository
	ledger     ports.LedgerRepository
	balances   ports.CreatorBalanceRepository
	transactor ports.Transactor
	fees       ports.FeeRateProvider
	cache      ports.BudgetCache
	publisher  ports.EventPublisher
	metrics    ports.LedgerMetrics
	cfg        config.LedgerConfig
	log        zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	events ports.BillableEventRepository,
	campaigns ports.CampaignRepository,
	locks ports.BudgetLockRepository,
	ledger ports.LedgerRepository,
	balances ports.CreatorBalanceRepository,
	transactor ports.Transactor,
	fees ports.FeeRateProvider,
	cache ports.BudgetCache,
	publisher ports.EventPublisher,
	metrics ports.LedgerMetrics,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		events:     events,
		campaigns:  campaigns,
		locks:      locks,
		ledger:     ledger,
		balances:   balances,
		transactor: transactor,
		fees:       fees,
		cache:      cache,
		publisher:  publisher,
		metrics:    metrics,
		cfg:        cfg,
		log:        log.With().Str("component", "payout").Logger(),
	}
}

// payoutInput describes one payout attempt. amountCents is zero for view payouts,
// which derive the amount from the campaign CPM.
type payoutInput struct {
	kind        domain.BillableEventKind
	campaignID  uuid.UUID
	creatorID   uuid.UUID
	eventID     uuid.UUID
	amountCents int64
}

// RecordValidViewPayout pays a creator for one validated view and credits available funds.
func (s *PayoutServiceImpl) RecordValidViewPayout(ctx context.Context, campaignID, creatorID, eventID uuid.UUID) (*ports.PayoutResult, error) {
	return s.record(ctx, payoutInput{
		kind:       domain.BillableView,
		campaignID: campaignID,
		creatorID:  creatorID,
		eventID:    eventID,
	})
}

// RecordConversionPayout pays an explicit amount for a conversion and credits pending funds.
func (s *PayoutServiceImpl) RecordConversionPayout(ctx context.Context, req ports.ConversionPayoutRequest) (*ports.PayoutResult, error) {
	if err := validateAmount(req.AmountCents, s.cfg.MaxAmountCents); err != nil {
		return nil, err
	}
	return s.record(ctx, payoutInput{
		kind:        domain.BillableConversion,
		campaignID:  req.CampaignID,
		creatorID:   req.CreatorID,
		eventID:     req.EventID,
		amountCents: req.AmountCents,
	})
}

func (s *PayoutServiceImpl) record(ctx context.Context, in payoutInput) (*ports.PayoutResult, error) {
	log := s.log.With().
		Str("kind", string(in.kind)).
		Str("campaign_id", in.campaignID.String()).
		Str("creator_id", in.creatorID.String()).
		Str("event_id", in.eventID.String()).
		Logger()

	// The fee rate is read before the unit opens so no external call runs inside it.
	feeBps, err := s.fees.CurrentFeeBps(ctx)
	if err != nil {
		s.metrics.PayoutRecorded(in.kind, outcomeFailure, 0)
		log.Error().Err(err).Msg("failed to fetch platform fee rate")
		return nil, dbError("fetch platform fee rate", err)
	}

	var (
		result    *ports.PayoutResult
		entryType = in.kind.LedgerEntryType()
	)
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		event, err := s.events.GetByIDForUpdate(ctx, tx, in.eventID)
		if err != nil {
			return dbError("lock billable event", err)
		}
		if event == nil || !event.IsValidated || event.Kind != in.kind {
			return apperror.ErrEventNotValid()
		}
		if event.IsPaid || !event.Matches(in.campaignID, in.creatorID) {
			return apperror.ErrEventAlreadyPaid()
		}

		campaign, err := s.campaigns.GetByIDForUpdate(ctx, tx, in.campaignID)
		if err != nil {
			return dbError("lock campaign", err)
		}
		if campaign == nil {
			return apperror.ErrCampaignNotFound()
		}
		lock, err := s.locks.GetByCampaignForUpdate(ctx, tx, in.campaignID)
		if err != nil {
			return dbError("lock budget lock", err)
		}
		var lockedCents int64
		if lock != nil {
			lockedCents = lock.LockedCents
		}

		spent, err := s.ledger.SumSpentInTx(ctx, tx, in.campaignID)
		if err != nil {
			return dbError("sum campaign spend", err)
		}
		remaining := lockedCents - spent

		payout := in.amountCents
		if in.kind == domain.BillableView {
			payout = campaign.PayoutPerViewCents()
		}
		if payout <= 0 {
			return apperror.InvalidAmount("Campaign CPM yields no payout per view")
		}
		fee := domain.PlatformFee(payout, feeBps)
		net := payout - fee

		if remaining < payout {
			log.Warn().
				Int64("requested_cents", payout).
				Int64("remaining_cents", remaining).
				Int64("locked_cents", lockedCents).
				Msg("payout exceeds remaining campaign budget")
			return apperror.ErrInsufficientBudget()
		}

		paid, err := s.ledger.ExistsForEvent(ctx, tx, in.campaignID, in.creatorID, in.eventID)
		if err != nil {
			return dbError("check ledger for event", err)
		}
		if paid {
			return apperror.ErrEventAlreadyPaid()
		}

		now := time.Now().UTC()
		payoutEntry := &domain.LedgerEntry{
			ID:          uuid.New(),
			CampaignID:  in.campaignID,
			CreatorID:   in.creatorID,
			Type:        entryType,
			AmountCents: net,
			RefEventID:  in.eventID,
			CreatedAt:   now,
		}
		feeEntry := &domain.LedgerEntry{
			ID:          uuid.New(),
			CampaignID:  in.campaignID,
			CreatorID:   in.creatorID,
			Type:        domain.LedgerPlatformFee,
			AmountCents: fee,
			RefEventID:  in.eventID,
			CreatedAt:   now,
		}
		for _, entry := range []*domain.LedgerEntry{payoutEntry, feeEntry} {
			if err := s.ledger.Create(ctx, tx, entry); err != nil {
				if errors.Is(err, ports.ErrDuplicate) {
					return apperror.ErrEventAlreadyPaid()
				}
				return dbError("append ledger entry", err)
			}
		}

		if err := s.campaigns.IncrementSpent(ctx, tx, in.campaignID, payout); err != nil {
			return dbError("increment campaign spend", err)
		}

		if err := s.creditCreator(ctx, tx, in.creatorID, net, in.kind == domain.BillableConversion, now); err != nil {
			return err
		}

		if err := s.events.MarkPaid(ctx, tx, in.eventID, now); err != nil {
			return dbError("mark event paid", err)
		}

		result = &ports.PayoutResult{
			LedgerEntryID:        payoutEntry.ID,
			PayoutCents:          payout,
			FeeCents:             fee,
			NetCents:             net,
			RemainingBudgetCents: remaining - payout,
		}
		return nil
	})
	if err != nil {
		s.metrics.PayoutRecorded(in.kind, string(apperror.CodeOf(err)), 0)
		logFailure(log, err, "payout rejected")
		return nil, toAppError(err)
	}

	s.metrics.PayoutRecorded(in.kind, outcomeSuccess, result.PayoutCents)
	if err := s.cache.Invalidate(ctx, in.campaignID); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate budget cache")
	}
	publish(ctx, s.publisher, log, domain.EarningsCredited{
		CampaignID:    in.campaignID,
		CreatorID:     in.creatorID,
		EventID:       in.eventID,
		LedgerEntryID: result.LedgerEntryID,
		EntryType:     entryType,
		PayoutCents:   result.PayoutCents,
		FeeCents:      result.FeeCents,
		NetCents:      result.NetCents,
		Pending:       in.kind == domain.BillableConversion,
		OccurredAt:    time.Now().UTC(),
	})

	log.Debug().
		Int64("payout_cents", result.PayoutCents).
		Int64("fee_cents", result.FeeCents).
		Int64("remaining_cents", result.RemainingBudgetCents).
		Msg("payout recorded")

	return result, nil
}

// creditCreator upserts the creator balance inside the payout unit.
func (s *PayoutServiceImpl) creditCreator(ctx context.Context, tx pgx.Tx, creatorID uuid.UUID, netCents int64, pending bool, now time.Time) error {
	balance, err := s.balances.GetForUpdate(ctx, tx, creatorID)
	if err != nil {
		return dbError("lock creator balance", err)
	}
	if balance == nil {
		balance = domain.NewCreatorBalance(creatorID, s.cfg.DefaultPayoutDelayDays, now)
		balance.Credit(netCents, pending)
		if err := s.balances.Create(ctx, tx, balance); err != nil {
			return dbError("create creator balance", err)
		}
		return nil
	}
	balance.Credit(netCents, pending)
	if err := s.balances.Update(ctx, tx, balance); err != nil {
		return dbError("update creator balance", err)
	}
	return nil
}

// ReleasePendingEarnings moves matured earnings from pending to available.
// The maturation schedule lives outside the core.
func (s *PayoutServiceImpl) ReleasePendingEarnings(ctx context.Context, creatorID uuid.UUID, amountCents int64) (*domain.CreatorBalance, error) {
	if err := validateAmount(amountCents, s.cfg.MaxAmountCents); err != nil {
		return nil, err
	}

	var out *domain.CreatorBalance
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		balance, err := s.balances.GetForUpdate(ctx, tx, creatorID)
		if err != nil {
			return dbError("lock creator balance", err)
		}
		if balance == nil || balance.PendingCents < amountCents {
			var pending int64
			if balance != nil {
				pending = balance.PendingCents
			}
			s.log.Warn().
				Str("creator_id", creatorID.String()).
				Int64("requested_cents", amountCents).
				Int64("pending_cents", pending).
				Msg("pending release exceeds pending earnings")
			return apperror.ErrInsufficientFunds()
		}
		balance.PendingCents -= amountCents
		balance.AvailableCents += amountCents
		if err := s.balances.Update(ctx, tx, balance); err != nil {
			return dbError("update creator balance", err)
		}
		out = balance
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}
	return out, nil
}
