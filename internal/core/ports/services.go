package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"creator-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// --- Collaborator Ports ---

// FeeRateProvider returns the current platform fee rate in basis points.
type FeeRateProvider interface {
	CurrentFeeBps(ctx context.Context) (int64, error)
}

// InvoiceCreator issues the invoice of a paid withdrawal. Callers treat it as best-effort.
type InvoiceCreator interface {
	CreateForWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) (*domain.Invoice, error)
}

// EventPublisher hands post-commit events to asynchronous delivery.
// Publish never blocks; an error means the event was dropped.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// BudgetCache caches Budget Query projections for display only.
type BudgetCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, campaignID uuid.UUID) (*domain.BudgetSummary, error)
	// Version returns the campaign's invalidation counter, 0 if never invalidated.
	Version(ctx context.Context, campaignID uuid.UUID) (int64, error)
	// Set stores summary only while the counter still equals version.
	Set(ctx context.Context, summary *domain.BudgetSummary, version int64) error
	// Invalidate drops the entry and bumps the counter.
	Invalidate(ctx context.Context, campaignID uuid.UUID) error
}

// LedgerMetrics records business counters.
type LedgerMetrics interface {
	PayoutRecorded(kind domain.BillableEventKind, outcome string, payoutCents int64)
	WalletOperation(op string, outcome string)
	WithdrawalTransition(to domain.WithdrawalStatus)
	EventDropped()
}

// SignatureService signs and verifies payment-processor callbacks with a shared secret.
type SignatureService interface {
	Sign(payload string) string
	Verify(payload string, signature string) bool
	CanonicalString(method, path string, timestamp int64, nonce string, body []byte) string
}

// TokenService handles admin JWT operations.
type TokenService interface {
	Generate(subject string, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// AuditService records admin-surface mutations.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// WalletService moves money in and out of advertiser wallets.
type WalletService interface {
	GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	Deposit(ctx context.Context, req DepositRequest) (*WalletResult, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*WalletResult, error)
	Adjust(ctx context.Context, req AdjustRequest) (*WalletResult, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.WalletTransaction, error)
}

type DepositRequest struct {
	OwnerID     uuid.UUID
	AmountCents int64
	Reference   string
}

type WithdrawRequest struct {
	OwnerID     uuid.UUID
	AmountCents int64
	Reference   string
}

// AdjustRequest is a privileged correction. DeltaCents may be negative.
type AdjustRequest struct {
	OwnerID    uuid.UUID
	DeltaCents int64
	Reason     string
	ActorID    uuid.UUID
}

type WalletResult struct {
	WalletID       uuid.UUID
	TransactionID  uuid.UUID
	AvailableCents int64
}

// BudgetService escrows wallet funds for campaigns.
type BudgetService interface {
	LockBudget(ctx context.Context, req LockBudgetRequest) (*LockResult, error)
	ReleaseBudget(ctx context.Context, req ReleaseBudgetRequest) (*ReleaseResult, error)
}

type LockBudgetRequest struct {
	CampaignID  uuid.UUID
	OwnerID     uuid.UUID
	AmountCents int64
}

type LockResult struct {
	LockID         uuid.UUID
	LockedCents    int64
	AvailableCents int64
}

// ReleaseBudgetRequest releases AmountCents, or everything releasable when nil.
type ReleaseBudgetRequest struct {
	CampaignID  uuid.UUID
	OwnerID     uuid.UUID
	AmountCents *int64
	Reason      string
}

type ReleaseResult struct {
	ReleasedCents  int64
	LockedCents    int64
	AvailableCents int64
}

// PayoutService converts validated billable events into creator earnings.
type PayoutService interface {
	RecordValidViewPayout(ctx context.Context, campaignID, creatorID, eventID uuid.UUID) (*PayoutResult, error)
	RecordConversionPayout(ctx context.Context, req ConversionPayoutRequest) (*PayoutResult, error)
	ReleasePendingEarnings(ctx context.Context, creatorID uuid.UUID, amountCents int64) (*domain.CreatorBalance, error)
}

type ConversionPayoutRequest struct {
	CampaignID  uuid.UUID
	CreatorID   uuid.UUID
	EventID     uuid.UUID
	AmountCents int64
}

type PayoutResult struct {
	LedgerEntryID        uuid.UUID
	PayoutCents          int64
	FeeCents             int64
	NetCents             int64
	RemainingBudgetCents int64
}

// WithdrawalService drives the creator cash-out state machine.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, creatorID uuid.UUID, grossCents int64) (*WithdrawalResult, error)
	ApproveWithdrawal(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	CompleteWithdrawal(ctx context.Context, id uuid.UUID, psReference string) (*domain.WithdrawalRequest, error)
	FailWithdrawal(ctx context.Context, id uuid.UUID, reason string) (*domain.WithdrawalRequest, error)
	CancelWithdrawal(ctx context.Context, id uuid.UUID, creatorID uuid.UUID) (*domain.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.WithdrawalRequest, error)
}

type WithdrawalResult struct {
	WithdrawalID   uuid.UUID
	NetAmountCents int64
	FeeCents       int64
	AvailableCents int64
}

// BudgetQueryService is the read-only budget projection for dashboards.
type BudgetQueryService interface {
	GetCampaignBudget(ctx context.Context, campaignID uuid.UUID) (*domain.BudgetSummary, error)
	ListCampaignLedger(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}
