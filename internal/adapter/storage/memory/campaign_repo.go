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

// CampaignRepo implements ports.CampaignRepository.
type CampaignRepo struct {
	store *Store
}

func NewCampaignRepo(store *Store) *CampaignRepo {
	return &CampaignRepo{store: store}
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	return r.store.write(func(st *state) error {
		if _, ok := st.campaigns[c.ID]; ok {
			return fmt.Errorf("insert campaign %s: %w", c.ID, ports.ErrDuplicate)
		}
		st.campaigns[c.ID] = *c
		return nil
	})
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	var out *domain.Campaign
	r.store.read(func(st *state) {
		if c, ok := st.campaigns[id]; ok {
			out = &c
		}
	})
	return out, nil
}

func (r *CampaignRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Campaign, error) {
	c, ok := r.store.st.campaigns[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CampaignRepo) IncrementSpent(ctx context.Context, tx pgx.Tx, id uuid.UUID, deltaCents int64) error {
	c, ok := r.store.st.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign not found: %s", id)
	}
	c.SpentBudgetCents += deltaCents
	c.UpdatedAt = time.Now().UTC()
	r.store.st.campaigns[id] = c
	return nil
}

// BudgetLockRepo implements ports.BudgetLockRepository.
type BudgetLockRepo struct {
	store *Store
}

func NewBudgetLockRepo(store *Store) *BudgetLockRepo {
	return &BudgetLockRepo{store: store}
}

func (r *BudgetLockRepo) GetByCampaign(ctx context.Context, campaignID uuid.UUID) (*domain.BudgetLock, error) {
	var out *domain.BudgetLock
	r.store.read(func(st *state) {
		if l, ok := st.locks[campaignID]; ok {
			out = &l
		}
	})
	return out, nil
}

func (r *BudgetLockRepo) GetByCampaignForUpdate(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) (*domain.BudgetLock, error) {
	l, ok := r.store.st.locks[campaignID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *BudgetLockRepo) Create(ctx context.Context, tx pgx.Tx, lock *domain.BudgetLock) error {
	if _, ok := r.store.st.locks[lock.CampaignID]; ok {
		return fmt.Errorf("insert budget lock for campaign %s: %w", lock.CampaignID, ports.ErrDuplicate)
	}
	if lock.LockedCents < 0 {
		return fmt.Errorf("insert budget lock: negative amount")
	}
	r.store.st.locks[lock.CampaignID] = *lock
	return nil
}

func (r *BudgetLockRepo) UpdateLocked(ctx context.Context, tx pgx.Tx, id uuid.UUID, lockedCents int64) error {
	if lockedCents < 0 {
		return fmt.Errorf("update budget lock %s: negative amount", id)
	}
	for campaignID, l := range r.store.st.locks {
		if l.ID == id {
			l.LockedCents = lockedCents
			l.UpdatedAt = time.Now().UTC()
			r.store.st.locks[campaignID] = l
			return nil
		}
	}
	return fmt.Errorf("budget lock not found: %s", id)
}

func (r *BudgetLockRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	for campaignID, l := range r.store.st.locks {
		if l.ID == id {
			delete(r.store.st.locks, campaignID)
			return nil
		}
	}
	return fmt.Errorf("budget lock not found: %s", id)
}
