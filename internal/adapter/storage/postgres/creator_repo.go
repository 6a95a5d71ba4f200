package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const creatorBalanceColumns = `creator_id, available_cents, pending_cents, locked_reserve_cents,
	total_earned_cents, risk_level, payout_delay_days, created_at, updated_at`

// CreatorBalanceRepo implements ports.CreatorBalanceRepository.
type CreatorBalanceRepo struct {
	pool Pool
}

// NewCreatorBalanceRepo creates a new CreatorBalanceRepo.
func NewCreatorBalanceRepo(pool Pool) *CreatorBalanceRepo {
	return &CreatorBalanceRepo{pool: pool}
}

// Get fetches a creator balance without locking it.
func (r *CreatorBalanceRepo) Get(ctx context.Context, creatorID uuid.UUID) (*domain.CreatorBalance, error) {
	query := `SELECT ` + creatorBalanceColumns + ` FROM creator_balances WHERE creator_id = $1`
	return scanCreatorBalance(r.pool.QueryRow(ctx, query, creatorID))
}

// GetForUpdate fetches and row-locks a creator balance.
func (r *CreatorBalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, creatorID uuid.UUID) (*domain.CreatorBalance, error) {
	query := `SELECT ` + creatorBalanceColumns + ` FROM creator_balances WHERE creator_id = $1 FOR UPDATE`
	return scanCreatorBalance(tx.QueryRow(ctx, query, creatorID))
}

// Create inserts the first balance row of a creator.
func (r *CreatorBalanceRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.CreatorBalance) error {
	query := `INSERT INTO creator_balances (` + creatorBalanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		b.CreatorID, b.AvailableCents, b.PendingCents, b.LockedReserveCents,
		b.TotalEarnedCents, b.RiskLevel, b.PayoutDelayDays, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert creator balance: %w", ports.ErrDuplicate)
		}
		return fmt.Errorf("insert creator balance: %w", err)
	}
	return nil
}

// Update writes every bucket of a locked balance.
func (r *CreatorBalanceRepo) Update(ctx context.Context, tx pgx.Tx, b *domain.CreatorBalance) error {
	b.UpdatedAt = time.Now().UTC()
	query := `UPDATE creator_balances SET available_cents = $2, pending_cents = $3, locked_reserve_cents = $4,
		total_earned_cents = $5, risk_level = $6, payout_delay_days = $7, updated_at = $8
		WHERE creator_id = $1`

	return execOne(ctx, tx, "update creator balance", query,
		b.CreatorID, b.AvailableCents, b.PendingCents, b.LockedReserveCents,
		b.TotalEarnedCents, b.RiskLevel, b.PayoutDelayDays, b.UpdatedAt,
	)
}

func scanCreatorBalance(row pgx.Row) (*domain.CreatorBalance, error) {
	var b domain.CreatorBalance
	err := row.Scan(
		&b.CreatorID, &b.AvailableCents, &b.PendingCents, &b.LockedReserveCents,
		&b.TotalEarnedCents, &b.RiskLevel, &b.PayoutDelayDays, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan creator balance: %w", err)
	}
	return &b, nil
}

const withdrawalColumns = `id, creator_id, amount_cents, platform_fee_cents, status,
	ps_reference, failure_reason, created_at, processed_at`

// WithdrawalRepo implements ports.WithdrawalRepository on withdrawal_requests.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a new request.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	if w.AmountCents <= 0 {
		return fmt.Errorf("insert withdrawal: amount must be positive")
	}
	query := `INSERT INTO withdrawal_requests (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.CreatorID, w.AmountCents, w.PlatformFeeCents, w.Status,
		w.PSReference, w.FailureReason, w.CreatedAt, w.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a request by UUID.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	return scanWithdrawal(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches and row-locks a request.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	return scanWithdrawal(tx.QueryRow(ctx, query, id))
}

// UpdateStatus persists a state transition with its processor fields.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `UPDATE withdrawal_requests SET status = $2, ps_reference = $3, failure_reason = $4, processed_at = $5
		WHERE id = $1`
	return execOne(ctx, tx, "update withdrawal status", query,
		w.ID, w.Status, w.PSReference, w.FailureReason, w.ProcessedAt,
	)
}

// ListByCreator returns the newest requests first.
func (r *WithdrawalRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE creator_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, creatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawals: %w", err)
	}
	return out, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	err := row.Scan(
		&w.ID, &w.CreatorID, &w.AmountCents, &w.PlatformFeeCents, &w.Status,
		&w.PSReference, &w.FailureReason, &w.CreatedAt, &w.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	return &w, nil
}
