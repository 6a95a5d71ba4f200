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

// BillableEventRepo implements ports.BillableEventRepository.
type BillableEventRepo struct {
	pool Pool
}

// NewBillableEventRepo creates a new BillableEventRepo.
func NewBillableEventRepo(pool Pool) *BillableEventRepo {
	return &BillableEventRepo{pool: pool}
}

// Create inserts an event. Events are normally written by the validation pipeline.
func (r *BillableEventRepo) Create(ctx context.Context, e *domain.BillableEvent) error {
	query := `INSERT INTO billable_events (id, campaign_id, creator_id, kind, is_validated, is_paid, occurred_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.CampaignID, e.CreatorID, e.Kind, e.IsValidated, e.IsPaid, e.OccurredAt, e.PaidAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert billable event %s: %w", e.ID, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert billable event: %w", err)
	}
	return nil
}

// GetByIDForUpdate fetches and row-locks an event.
func (r *BillableEventRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BillableEvent, error) {
	query := `SELECT id, campaign_id, creator_id, kind, is_validated, is_paid, occurred_at, paid_at
		FROM billable_events WHERE id = $1 FOR UPDATE`

	var e domain.BillableEvent
	err := tx.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.CampaignID, &e.CreatorID, &e.Kind, &e.IsValidated, &e.IsPaid, &e.OccurredAt, &e.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get billable event: %w", err)
	}
	return &e, nil
}

// MarkPaid flips the paid flag. It is the only column the ledger writes on events.
func (r *BillableEventRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error {
	query := `UPDATE billable_events SET is_paid = TRUE, paid_at = $2 WHERE id = $1`
	return execOne(ctx, tx, "mark billable event paid", query, id, paidAt)
}

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

// Create inserts an invoice. A second invoice for the same withdrawal yields ports.ErrDuplicate.
func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `INSERT INTO invoices (id, number, withdrawal_id, creator_id, gross_cents, fee_cents, net_cents, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		inv.ID, inv.Number, inv.WithdrawalID, inv.CreatorID,
		inv.GrossCents, inv.FeeCents, inv.NetCents, inv.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert invoice for withdrawal %s: %w", inv.WithdrawalID, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// GetByWithdrawal fetches the invoice of a withdrawal.
func (r *InvoiceRepo) GetByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT id, number, withdrawal_id, creator_id, gross_cents, fee_cents, net_cents, issued_at
		FROM invoices WHERE withdrawal_id = $1`

	var inv domain.Invoice
	err := r.pool.QueryRow(ctx, query, withdrawalID).Scan(
		&inv.ID, &inv.Number, &inv.WithdrawalID, &inv.CreatorID,
		&inv.GrossCents, &inv.FeeCents, &inv.NetCents, &inv.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, resource_type, resource_id, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		log.ID, log.ActorID, log.Action, log.ResourceType,
		log.ResourceID, log.Details, log.IPAddress, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// feeRateKey is the platform_settings row holding the fee rate in basis points.
const feeRateKey = "platform_fee_bps"

// FeeRateRepo implements ports.FeeRateProvider from platform_settings.
// A missing row falls back to the configured default.
type FeeRateRepo struct {
	pool       Pool
	defaultBps int64
}

// NewFeeRateRepo creates a new FeeRateRepo.
func NewFeeRateRepo(pool Pool, defaultBps int64) *FeeRateRepo {
	return &FeeRateRepo{pool: pool, defaultBps: defaultBps}
}

func (r *FeeRateRepo) CurrentFeeBps(ctx context.Context) (int64, error) {
	var bps int64
	err := r.pool.QueryRow(ctx, `SELECT int_value FROM platform_settings WHERE key = $1`, feeRateKey).Scan(&bps)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.defaultBps, nil
		}
		return 0, fmt.Errorf("get fee rate: %w", err)
	}
	if bps < 0 || bps > domain.BasisPoints {
		return 0, fmt.Errorf("fee rate %d bps out of range", bps)
	}
	return bps, nil
}
