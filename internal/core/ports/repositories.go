package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"creator-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicate is returned by repositories when a unique constraint rejects an insert.
// Ledger inserts hitting it mean the event was already paid.
var ErrDuplicate = errors.New("duplicate record")

// Transactor runs fn as one atomic unit of work. fn's error aborts the unit and is
// returned unchanged; a nil error commits.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// WalletRepository defines persistence operations for advertiser wallets.
// Methods accepting pgx.Tx lock the row for the rest of the unit.
type WalletRepository interface {
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// GetOrCreateForUpdate creates an empty wallet on first use and locks it.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, currency string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
}

// WalletTransactionRepository appends wallet movement history.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.WalletTransaction) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error)
}

// CampaignRepository reads campaigns and maintains their display spend counter.
type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Campaign, error)
	IncrementSpent(ctx context.Context, tx pgx.Tx, id uuid.UUID, deltaCents int64) error
}

// BudgetLockRepository persists campaign escrow. At most one lock exists per campaign.
type BudgetLockRepository interface {
	GetByCampaign(ctx context.Context, campaignID uuid.UUID) (*domain.BudgetLock, error)
	GetByCampaignForUpdate(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (*domain.BudgetLock, error)
	Create(ctx context.Context, tx pgx.Tx, lock *domain.BudgetLock) error
	UpdateLocked(ctx context.Context, tx pgx.Tx, id uuid.UUID, lockedCents int64) error
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// LedgerRepository is the append-only ledger. It has no update or delete.
type LedgerRepository interface {
	// Create returns ErrDuplicate when the (campaign, creator, event, type) key exists.
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ExistsForEvent(ctx context.Context, tx pgx.Tx, campaignID, creatorID, eventID uuid.UUID) (bool, error)
	// SumSpentInTx aggregates payout and fee entries inside the unit of work.
	SumSpentInTx(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (int64, error)
	SumSpent(ctx context.Context, campaignID uuid.UUID) (int64, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}

// CreatorBalanceRepository persists creator earnings.
type CreatorBalanceRepository interface {
	Get(ctx context.Context, creatorID uuid.UUID) (*domain.CreatorBalance, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, creatorID uuid.UUID) (*domain.CreatorBalance, error)
	Create(ctx context.Context, tx pgx.Tx, b *domain.CreatorBalance) error
	Update(ctx context.Context, tx pgx.Tx, b *domain.CreatorBalance) error
}

// WithdrawalRepository persists creator cash-out requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.WithdrawalRequest, error)
}

// BillableEventRepository reads events from the validation pipeline and flips IsPaid.
type BillableEventRepository interface {
	Create(ctx context.Context, e *domain.BillableEvent) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BillableEvent, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error
}

// InvoiceRepository persists invoices. One invoice exists per withdrawal.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.Invoice, error)
}

// AuditRepository defines persistence for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
