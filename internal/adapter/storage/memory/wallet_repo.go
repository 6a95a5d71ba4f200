package memory

import (
	"context"
	"fmt"
	"time"

	"creator-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

func NewWalletRepo(store *Store) *WalletRepo {
	return &WalletRepo{store: store}
}

func (r *WalletRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	var out *domain.Wallet
	r.store.read(func(st *state) {
		out = walletByOwner(st, ownerID)
	})
	return out, nil
}

func (r *WalletRepo) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error) {
	return walletByOwner(r.store.st, ownerID), nil
}

func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	w, ok := r.store.st.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, currency string) (*domain.Wallet, error) {
	st := r.store.st
	if w := walletByOwner(st, ownerID); w != nil {
		return w, nil
	}
	now := time.Now().UTC()
	w := domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	st.wallets[w.ID] = w
	st.walletByOwner[ownerID] = w.ID
	return &w, nil
}

func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	st := r.store.st
	cur, ok := st.wallets[w.ID]
	if !ok {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	if w.AvailableCents < 0 || w.PendingCents < 0 {
		return fmt.Errorf("wallet %s: balance would become negative", w.ID)
	}
	cur.AvailableCents = w.AvailableCents
	cur.PendingCents = w.PendingCents
	cur.UpdatedAt = time.Now().UTC()
	st.wallets[w.ID] = cur
	return nil
}

func walletByOwner(st *state, ownerID uuid.UUID) *domain.Wallet {
	id, ok := st.walletByOwner[ownerID]
	if !ok {
		return nil
	}
	w := st.wallets[id]
	return &w
}

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	store *Store
}

func NewWalletTransactionRepo(store *Store) *WalletTransactionRepo {
	return &WalletTransactionRepo{store: store}
}

func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.WalletTransaction) error {
	r.store.st.walletTxns = append(r.store.st.walletTxns, *txn)
	return nil
}

// ListByWallet returns the newest transactions first.
func (r *WalletTransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	var out []domain.WalletTransaction
	r.store.read(func(st *state) {
		for i := len(st.walletTxns) - 1; i >= 0 && len(out) < limit; i-- {
			if st.walletTxns[i].WalletID == walletID {
				out = append(out, st.walletTxns[i])
			}
		}
	})
	return out, nil
}
