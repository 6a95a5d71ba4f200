package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreatorBalanceRepo implements ports.CreatorBalanceRepository.
type CreatorBalanceRepo struct {
	store *Store
}

func NewCreatorBalanceRepo(store *Store) *CreatorBalanceRepo {
	return &CreatorBalanceRepo{store: store}
}

func (r *CreatorBalanceRepo) Get(ctx context.Context, creatorID uuid.UUID) (*domain.CreatorBalance, error) {
	var out *domain.CreatorBalance
	r.store.read(func(st *state) {
		if b, ok := st.balances[creatorID]; ok {
			out = &b
		}
	})
	return out, nil
}

func (r *CreatorBalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, creatorID uuid.UUID) (*domain.CreatorBalance, error) {
	b, ok := r.store.st.balances[creatorID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *CreatorBalanceRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.CreatorBalance) error {
	if _, ok := r.store.st.balances[b.CreatorID]; ok {
		return fmt.Errorf("insert creator balance: %w", ports.ErrDuplicate)
	}
	if err := checkCreatorBalance(b); err != nil {
		return err
	}
	r.store.st.balances[b.CreatorID] = *b
	return nil
}

func (r *CreatorBalanceRepo) Update(ctx context.Context, tx pgx.Tx, b *domain.CreatorBalance) error {
	if _, ok := r.store.st.balances[b.CreatorID]; !ok {
		return fmt.Errorf("creator balance not found: %s", b.CreatorID)
	}
	if err := checkCreatorBalance(b); err != nil {
		return err
	}
	b.UpdatedAt = time.Now().UTC()
	r.store.st.balances[b.CreatorID] = *b
	return nil
}

func checkCreatorBalance(b *domain.CreatorBalance) error {
	if b.AvailableCents < 0 || b.PendingCents < 0 {
		return fmt.Errorf("creator balance %s: balance would become negative", b.CreatorID)
	}
	return nil
}

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	store *Store
}

func NewWithdrawalRepo(store *Store) *WithdrawalRepo {
	return &WithdrawalRepo{store: store}
}

func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	if w.AmountCents <= 0 {
		return fmt.Errorf("insert withdrawal: amount must be positive")
	}
	r.store.st.withdrawals[w.ID] = *w
	return nil
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	var out *domain.WithdrawalRequest
	r.store.read(func(st *state) {
		if w, ok := st.withdrawals[id]; ok {
			out = &w
		}
	})
	return out, nil
}

func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, ok := r.store.st.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	cur, ok := r.store.st.withdrawals[w.ID]
	if !ok {
		return fmt.Errorf("withdrawal not found: %s", w.ID)
	}
	cur.Status = w.Status
	cur.PSReference = w.PSReference
	cur.FailureReason = w.FailureReason
	cur.ProcessedAt = w.ProcessedAt
	r.store.st.withdrawals[w.ID] = cur
	return nil
}

// ListByCreator returns the newest requests first.
func (r *WithdrawalRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]domain.WithdrawalRequest, error) {
	var out []domain.WithdrawalRequest
	r.store.read(func(st *state) {
		for _, w := range st.withdrawals {
			if w.CreatorID == creatorID {
				out = append(out, w)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
