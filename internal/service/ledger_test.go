package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/adapter/storage/memory"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		Currency:               "USD",
		DefaultFeeBps:          1000,
		MinWithdrawalCents:     1000,
		DefaultPayoutDelayDays: 7,
		MaxAmountCents:         1_000_000_000_000,
	}
}

// recordingPublisher keeps every published event. failWith makes Publish fail.
type recordingPublisher struct {
	mu       sync.Mutex
	events   []domain.Event
	failWith error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) last() domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

// mapCache is an in-process BudgetCache.
type mapCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]domain.BudgetSummary
	versions    map[uuid.UUID]int64
	invalidated []uuid.UUID
	err         error
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[uuid.UUID]domain.BudgetSummary), versions: make(map[uuid.UUID]int64)}
}

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (*domain.BudgetSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *mapCache) Version(_ context.Context, id uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.versions[id], nil
}

func (c *mapCache) Set(_ context.Context, s *domain.BudgetSummary, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.versions[s.CampaignID] != version {
		return nil
	}
	c.entries[s.CampaignID] = *s
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.versions[id]++
	c.invalidated = append(c.invalidated, id)
	return c.err
}

// countingMetrics counts calls per label.
type countingMetrics struct {
	mu          sync.Mutex
	payouts     map[string]int
	payoutCents int64
	wallet      map[string]int
	transitions map[domain.WithdrawalStatus]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		payouts:     make(map[string]int),
		wallet:      make(map[string]int),
		transitions: make(map[domain.WithdrawalStatus]int),
	}
}

func (m *countingMetrics) PayoutRecorded(kind domain.BillableEventKind, outcome string, cents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payouts[string(kind)+"/"+outcome]++
	m.payoutCents += cents
}

func (m *countingMetrics) WalletOperation(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallet[op+"/"+outcome]++
}

func (m *countingMetrics) WithdrawalTransition(to domain.WithdrawalStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[to]++
}

func (m *countingMetrics) EventDropped() {}

// ledgerHarness wires every service onto one memory store.
type ledgerHarness struct {
	store      *memory.Store
	wallets    *memory.WalletRepo
	txns       *memory.WalletTransactionRepo
	campaigns  *memory.CampaignRepo
	locks      *memory.BudgetLockRepo
	ledger     *memory.LedgerRepo
	balances   *memory.CreatorBalanceRepo
	withdrawal *memory.WithdrawalRepo
	events     *memory.BillableEventRepo
	invoiceDB  *memory.InvoiceRepo
	fees       *memory.FeeRateRepo
	cache      *mapCache
	publisher  *recordingPublisher
	metrics    *countingMetrics

	walletSvc     *WalletServiceImpl
	budgetSvc     *BudgetServiceImpl
	payoutSvc     *PayoutServiceImpl
	withdrawalSvc *WithdrawalServiceImpl
	querySvc      *budgetQueryService
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()
	cfg := testLedgerConfig()
	store := memory.NewStore()
	h := &ledgerHarness{
		store:      store,
		wallets:    memory.NewWalletRepo(store),
		txns:       memory.NewWalletTransactionRepo(store),
		campaigns:  memory.NewCampaignRepo(store),
		locks:      memory.NewBudgetLockRepo(store),
		ledger:     memory.NewLedgerRepo(store),
		balances:   memory.NewCreatorBalanceRepo(store),
		withdrawal: memory.NewWithdrawalRepo(store),
		events:     memory.NewBillableEventRepo(store),
		invoiceDB:  memory.NewInvoiceRepo(store),
		fees:       memory.NewFeeRateRepo(store, cfg.DefaultFeeBps),
		cache:      newMapCache(),
		publisher:  &recordingPublisher{},
		metrics:    newCountingMetrics(),
	}
	tx := memory.NewTransactor(store)
	log := newTestLogger()

	h.walletSvc = NewWalletService(h.wallets, h.txns, tx, h.publisher, h.metrics, cfg, log)
	h.budgetSvc = NewBudgetService(h.campaigns, h.locks, h.wallets, h.txns, h.ledger, tx, h.cache, h.publisher, h.metrics, cfg, log)
	h.payoutSvc = NewPayoutService(h.events, h.campaigns, h.locks, h.ledger, h.balances, tx, h.fees, h.cache, h.publisher, h.metrics, cfg, log)
	h.withdrawalSvc = NewWithdrawalService(h.withdrawal, h.balances, tx, h.fees, NewInvoiceService(h.invoiceDB, log), h.publisher, h.metrics, cfg, log)
	h.querySvc = NewBudgetQueryService(h.campaigns, h.locks, h.ledger, h.cache, log).(*budgetQueryService)
	return h
}

// seedCampaign creates an active campaign owned by ownerID.
func (h *ledgerHarness) seedCampaign(t *testing.T, ownerID uuid.UUID, cpmCents int64) *domain.Campaign {
	t.Helper()
	c := &domain.Campaign{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      "spring launch",
		CPMCents:  cpmCents,
		Status:    domain.CampaignStatusActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, h.campaigns.Create(context.Background(), c))
	return c
}

// seedEvent creates a validated billable event.
func (h *ledgerHarness) seedEvent(t *testing.T, campaignID, creatorID uuid.UUID, kind domain.BillableEventKind) uuid.UUID {
	t.Helper()
	e := &domain.BillableEvent{
		ID:          uuid.New(),
		CampaignID:  campaignID,
		CreatorID:   creatorID,
		Kind:        kind,
		IsValidated: true,
		OccurredAt:  time.Now().UTC(),
	}
	require.NoError(t, h.events.Create(context.Background(), e))
	return e.ID
}

// fundAndLock deposits then locks amount for the campaign.
func (h *ledgerHarness) fundAndLock(t *testing.T, c *domain.Campaign, depositCents, lockCents int64) {
	t.Helper()
	ctx := context.Background()
	_, err := h.walletSvc.Deposit(ctx, ports.DepositRequest{OwnerID: c.OwnerID, AmountCents: depositCents})
	require.NoError(t, err)
	if lockCents > 0 {
		_, err = h.budgetSvc.LockBudget(ctx, ports.LockBudgetRequest{CampaignID: c.ID, OwnerID: c.OwnerID, AmountCents: lockCents})
		require.NoError(t, err)
	}
}

func (h *ledgerHarness) available(t *testing.T, ownerID uuid.UUID) int64 {
	t.Helper()
	w, err := h.wallets.GetByOwner(context.Background(), ownerID)
	require.NoError(t, err)
	if w == nil {
		return 0
	}
	return w.AvailableCents
}

func (h *ledgerHarness) creatorBalance(t *testing.T, creatorID uuid.UUID) *domain.CreatorBalance {
	t.Helper()
	b, err := h.balances.Get(context.Background(), creatorID)
	require.NoError(t, err)
	return b
}

func memoryTransactor(h *ledgerHarness) *memory.Transactor {
	return memory.NewTransactor(h.store)
}

func assertCode(t *testing.T, err error, code apperror.Code) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
