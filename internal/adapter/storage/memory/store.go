// Package memory is an in-process implementation of the ledger repositories.
// A unit of work holds the store-wide lock for its whole duration and restores
// a snapshot when it fails, giving serializable all-or-nothing semantics.
package memory

import (
	"context"
	"maps"
	"sync"

	"creator-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type ledgerKey struct {
	campaignID uuid.UUID
	creatorID  uuid.UUID
	eventID    uuid.UUID
	entryType  domain.LedgerEntryType
}

type state struct {
	wallets       map[uuid.UUID]domain.Wallet
	walletByOwner map[uuid.UUID]uuid.UUID
	walletTxns    []domain.WalletTransaction
	campaigns     map[uuid.UUID]domain.Campaign
	locks         map[uuid.UUID]domain.BudgetLock // by campaign
	ledger        []domain.LedgerEntry
	ledgerKeys    map[ledgerKey]struct{}
	balances      map[uuid.UUID]domain.CreatorBalance
	withdrawals   map[uuid.UUID]domain.WithdrawalRequest
	events        map[uuid.UUID]domain.BillableEvent
	invoices      map[uuid.UUID]domain.Invoice // by withdrawal
	audits        []domain.AuditLog
}

func newState() *state {
	return &state{
		wallets:       make(map[uuid.UUID]domain.Wallet),
		walletByOwner: make(map[uuid.UUID]uuid.UUID),
		campaigns:     make(map[uuid.UUID]domain.Campaign),
		locks:         make(map[uuid.UUID]domain.BudgetLock),
		ledgerKeys:    make(map[ledgerKey]struct{}),
		balances:      make(map[uuid.UUID]domain.CreatorBalance),
		withdrawals:   make(map[uuid.UUID]domain.WithdrawalRequest),
		events:        make(map[uuid.UUID]domain.BillableEvent),
		invoices:      make(map[uuid.UUID]domain.Invoice),
	}
}

// clone copies everything a unit of work can mutate. Entities are stored by
// value so a shallow map copy is a full snapshot.
func (s *state) clone() *state {
	return &state{
		wallets:       maps.Clone(s.wallets),
		walletByOwner: maps.Clone(s.walletByOwner),
		walletTxns:    append([]domain.WalletTransaction(nil), s.walletTxns...),
		campaigns:     maps.Clone(s.campaigns),
		locks:         maps.Clone(s.locks),
		ledger:        append([]domain.LedgerEntry(nil), s.ledger...),
		ledgerKeys:    maps.Clone(s.ledgerKeys),
		balances:      maps.Clone(s.balances),
		withdrawals:   maps.Clone(s.withdrawals),
		events:        maps.Clone(s.events),
		invoices:      maps.Clone(s.invoices),
		audits:        s.audits,
	}
}

// Store owns all in-memory ledger state.
type Store struct {
	mu sync.RWMutex
	st *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// read runs fn under the shared lock. Never call it from inside WithinTx.
func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// write runs fn under the exclusive lock, outside any unit of work.
func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Transactor implements ports.Transactor over a Store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a Transactor for the store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// WithinTx runs fn with the store locked. Any error restores the state seen on entry.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	snapshot := t.store.st.clone()
	if err := fn(ctx, unitTx{}); err != nil {
		t.store.st = snapshot
		return err
	}
	return nil
}

// unitTx marks code running inside a memory unit of work. Repositories never
// issue SQL through it.
type unitTx struct{}

func (t unitTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t unitTx) Commit(ctx context.Context) error          { return nil }
func (t unitTx) Rollback(ctx context.Context) error        { return nil }
func (t unitTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t unitTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t unitTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t unitTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t unitTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t unitTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t unitTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t unitTx) Conn() *pgx.Conn                                               { return nil }

// HealthCheck implements ports.HealthChecker for the memory store.
type HealthCheck struct{}

func (HealthCheck) Ping(ctx context.Context) error { return nil }
func (HealthCheck) Name() string                   { return "memory" }
