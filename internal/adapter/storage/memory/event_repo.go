package memory

import (
	"context"
	"fmt"
	"time"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BillableEventRepo implements ports.BillableEventRepository.
type BillableEventRepo struct {
	store *Store
}

func NewBillableEventRepo(store *Store) *BillableEventRepo {
	return &BillableEventRepo{store: store}
}

func (r *BillableEventRepo) Create(ctx context.Context, e *domain.BillableEvent) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.events[e.ID]; ok {
			return fmt.Errorf("insert billable event %s: %w", e.ID, ports.ErrDuplicate)
		}
		st.events[e.ID] = *e
		return nil
	})
}

func (r *BillableEventRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BillableEvent, error) {
	e, ok := r.store.st.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *BillableEventRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error {
	e, ok := r.store.st.events[id]
	if !ok {
		return fmt.Errorf("billable event not found: %s", id)
	}
	e.IsPaid = true
	e.PaidAt = &paidAt
	r.store.st.events[id] = e
	return nil
}

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	store *Store
}

func NewInvoiceRepo(store *Store) *InvoiceRepo {
	return &InvoiceRepo{store: store}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.invoices[inv.WithdrawalID]; ok {
			return fmt.Errorf("insert invoice for withdrawal %s: %w", inv.WithdrawalID, ports.ErrDuplicate)
		}
		st.invoices[inv.WithdrawalID] = *inv
		return nil
	})
}

func (r *InvoiceRepo) GetByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.Invoice, error) {
	var out *domain.Invoice
	r.store.read(func(st *state) {
		if inv, ok := st.invoices[withdrawalID]; ok {
			out = &inv
		}
	})
	return out, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	return r.store.write(func(st *state) error {
		st.audits = append(st.audits, *log)
		return nil
	})
}

// List returns every audit entry in insertion order.
func (r *AuditRepo) List() []domain.AuditLog {
	var out []domain.AuditLog
	r.store.read(func(st *state) {
		out = append(out, st.audits...)
	})
	return out
}

// FeeRateRepo implements ports.FeeRateProvider with a settable rate.
type FeeRateRepo struct {
	store *Store
	bps   int64
}

func NewFeeRateRepo(store *Store, defaultBps int64) *FeeRateRepo {
	return &FeeRateRepo{store: store, bps: defaultBps}
}

func (r *FeeRateRepo) CurrentFeeBps(ctx context.Context) (int64, error) {
	var bps int64
	r.store.read(func(*state) { bps = r.bps })
	return bps, nil
}

// Set changes the platform fee rate.
func (r *FeeRateRepo) Set(bps int64) {
	_ = r.store.write(func(*state) error {
		r.bps = bps
		return nil
	})
}
