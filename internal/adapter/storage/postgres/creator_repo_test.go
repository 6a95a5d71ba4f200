package postgres

import (
	"context"
	"testing"
	"time"

	"creator-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creatorBalanceCols() []string {
	return []string{"creator_id", "available_cents", "pending_cents", "locked_reserve_cents",
		"total_earned_cents", "risk_level", "payout_delay_days", "created_at", "updated_at"}
}

func withdrawalCols() []string {
	return []string{"id", "creator_id", "amount_cents", "platform_fee_cents", "status",
		"ps_reference", "failure_reason", "created_at", "processed_at"}
}

func withdrawalRow(rows *pgxmock.Rows, w *domain.WithdrawalRequest) *pgxmock.Rows {
	return rows.AddRow(
		w.ID, w.CreatorID, w.AmountCents, w.PlatformFeeCents, w.Status,
		w.PSReference, w.FailureReason, w.CreatedAt, w.ProcessedAt,
	)
}

func newTestWithdrawal(creatorID uuid.UUID, status domain.WithdrawalStatus) *domain.WithdrawalRequest {
	return &domain.WithdrawalRequest{
		ID:               uuid.New(),
		CreatorID:        creatorID,
		AmountCents:      4_500,
		PlatformFeeCents: 500,
		Status:           status,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestCreatorBalanceRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	repo := NewCreatorBalanceRepo(mock)
	creatorID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM creator_balances WHERE creator_id .+ FOR UPDATE").
		WithArgs(creatorID).
		WillReturnRows(pgxmock.NewRows(creatorBalanceCols()).
			AddRow(creatorID, int64(900), int64(300), int64(0), int64(1_200), domain.RiskLow, 7, now, now))

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	got, err := repo.GetForUpdate(ctx, tx, creatorID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.AvailableCents)
	assert.Equal(t, int64(300), got.PendingCents)
	assert.Equal(t, domain.RiskLow, got.RiskLevel)
	assert.Equal(t, 7, got.PayoutDelayDays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatorBalanceRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCreatorBalanceRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM creator_balances WHERE creator_id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(creatorBalanceCols()))

	got, err := repo.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatorBalanceRepo_CreateAndUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	repo := NewCreatorBalanceRepo(mock)
	b := domain.NewCreatorBalance(uuid.New(), 7, time.Now().UTC())
	b.Credit(45, false)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO creator_balances").
		WithArgs(b.CreatorID, int64(45), int64(0), int64(0), int64(45), domain.RiskLow, 7, b.CreatedAt, b.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE creator_balances SET available_cents").
		WithArgs(b.CreatorID, int64(90), int64(0), int64(0), int64(90), domain.RiskLow, 7, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, tx, b))
	b.Credit(45, false)
	require.NoError(t, repo.Update(ctx, tx, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New(), domain.WithdrawalPending)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO withdrawal_requests").
		WithArgs(w.ID, w.CreatorID, w.AmountCents, w.PlatformFeeCents, w.Status,
			w.PSReference, w.FailureReason, w.CreatedAt, w.ProcessedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, tx, w))

	w.AmountCents = 0
	assert.Error(t, repo.Create(ctx, tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New(), domain.WithdrawalPaid)
	ref := "ps_123"
	processed := time.Now().UTC()
	w.PSReference = &ref
	w.ProcessedAt = &processed

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawal_requests SET status").
		WithArgs(w.ID, domain.WithdrawalPaid, w.PSReference, w.FailureReason, w.ProcessedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := newTestWithdrawal(uuid.New(), domain.WithdrawalProcessing)

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id").
		WithArgs(w.ID).
		WillReturnRows(withdrawalRow(pgxmock.NewRows(withdrawalCols()), w))

	got, err := repo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalProcessing, got.Status)
	assert.Equal(t, int64(5_000), got.GrossCents())
	assert.Nil(t, got.PSReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListByCreator(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	creatorID := uuid.New()
	newer := newTestWithdrawal(creatorID, domain.WithdrawalPending)
	older := newTestWithdrawal(creatorID, domain.WithdrawalCancelled)

	rows := pgxmock.NewRows(withdrawalCols())
	withdrawalRow(rows, newer)
	withdrawalRow(rows, older)

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE creator_id .+ ORDER BY created_at DESC").
		WithArgs(creatorID, 20).
		WillReturnRows(rows)

	got, err := repo.ListByCreator(context.Background(), creatorID, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, domain.WithdrawalCancelled, got[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
