package service

import (
	"context"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// budgetQueryService implements ports.BudgetQueryService.
// Results are for display and never feed a payout decision.
type budgetQueryService struct {
	campaigns ports.CampaignRepository
	locks     ports.BudgetLockRepository
	ledger    ports.LedgerRepository
	cache     ports.BudgetCache
	log       zerolog.Logger
}

// NewBudgetQueryService creates a new budget query service.
func NewBudgetQueryService(
	campaigns ports.CampaignRepository,
	locks ports.BudgetLockRepository,
	ledger ports.LedgerRepository,
	cache ports.BudgetCache,
	log zerolog.Logger,
) ports.BudgetQueryService {
	return &budgetQueryService{
		campaigns: campaigns,
		locks:     locks,
		ledger:    ledger,
		cache:     cache,
		log:       log.With().Str("component", "budget_query").Logger(),
	}
}

// GetCampaignBudget returns the budget projection, reading through the cache.
func (s *budgetQueryService) GetCampaignBudget(ctx context.Context, campaignID uuid.UUID) (*domain.BudgetSummary, error) {
	cached, err := s.cache.Get(ctx, campaignID)
	if err != nil {
		s.log.Warn().Err(err).Str("campaign_id", campaignID.String()).Msg("budget cache read failed, falling back to store")
	} else if cached != nil {
		return cached, nil
	}

	// The version is read before the store so a payout committing in between leaves the write below a no-op.
	version, verErr := s.cache.Version(ctx, campaignID)

	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, dbError("get campaign", err)
	}
	if campaign == nil {
		return nil, apperror.ErrCampaignNotFound()
	}
	lock, err := s.locks.GetByCampaign(ctx, campaignID)
	if err != nil {
		return nil, dbError("get budget lock", err)
	}
	spent, err := s.ledger.SumSpent(ctx, campaignID)
	if err != nil {
		return nil, dbError("sum campaign spend", err)
	}

	summary := domain.NewBudgetSummary(campaign, lock, spent)
	if verErr != nil {
		return summary, nil
	}
	if err := s.cache.Set(ctx, summary, version); err != nil {
		s.log.Warn().Err(err).Str("campaign_id", campaignID.String()).Msg("budget cache write failed")
	}
	return summary, nil
}

// ListCampaignLedger returns the campaign's most recent ledger entries.
func (s *budgetQueryService) ListCampaignLedger(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, dbError("get campaign", err)
	}
	if campaign == nil {
		return nil, apperror.ErrCampaignNotFound()
	}
	entries, err := s.ledger.ListByCampaign(ctx, campaignID, clampLimit(limit))
	if err != nil {
		return nil, dbError("list ledger entries", err)
	}
	return entries, nil
}
