package memory

import (
	"context"
	"fmt"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	store *Store
}

func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	if e.AmountCents < 0 {
		return fmt.Errorf("insert ledger entry: negative amount")
	}
	st := r.store.st
	key := ledgerKey{e.CampaignID, e.CreatorID, e.RefEventID, e.Type}
	if _, ok := st.ledgerKeys[key]; ok {
		return fmt.Errorf("insert ledger entry: %w", ports.ErrDuplicate)
	}
	st.ledgerKeys[key] = struct{}{}
	st.ledger = append(st.ledger, *e)
	return nil
}

func (r *LedgerRepo) ExistsForEvent(ctx context.Context, tx pgx.Tx, campaignID, creatorID, eventID uuid.UUID) (bool, error) {
	for _, e := range r.store.st.ledger {
		if e.CampaignID == campaignID && e.CreatorID == creatorID && e.RefEventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (r *LedgerRepo) SumSpentInTx(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (int64, error) {
	return sumSpent(r.store.st, campaignID), nil
}

func (r *LedgerRepo) SumSpent(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var total int64
	r.store.read(func(st *state) {
		total = sumSpent(st, campaignID)
	})
	return total, nil
}

// ListByCampaign returns the newest entries first.
func (r *LedgerRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	r.store.read(func(st *state) {
		for i := len(st.ledger) - 1; i >= 0 && len(out) < limit; i-- {
			if st.ledger[i].CampaignID == campaignID {
				out = append(out, st.ledger[i])
			}
		}
	})
	return out, nil
}

func sumSpent(st *state, campaignID uuid.UUID) int64 {
	var total int64
	for _, e := range st.ledger {
		if e.CampaignID == campaignID && e.Type.CountsAsSpend() {
			total += e.AmountCents
		}
	}
	return total
}
