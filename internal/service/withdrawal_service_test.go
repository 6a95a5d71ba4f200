package service

import (
	"context"
	"errors"
	"testing"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports/mocks"
	"creator-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// earn credits a creator with available earnings through real view payouts.
func (h *ledgerHarness) earn(t *testing.T, creatorID uuid.UUID, views int, cpmCents int64) {
	t.Helper()
	ctx := context.Background()
	c := h.seedCampaign(t, uuid.New(), cpmCents)
	perView := domain.PayoutPerView(cpmCents)
	h.fundAndLock(t, c, perView*int64(views), perView*int64(views))
	for i := 0; i < views; i++ {
		_, err := h.payoutSvc.RecordValidViewPayout(ctx, c.ID, creatorID, h.seedEvent(t, c.ID, creatorID, domain.BillableView))
		require.NoError(t, err)
	}
}

func TestWithdrawalService_Request(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	creator := uuid.New()
	h.earn(t, creator, 10, 1_000_000) // 1000 cents per view, 900 net

	res, err := h.withdrawalSvc.RequestWithdrawal(ctx, creator, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.FeeCents)
	assert.Equal(t, int64(4500), res.NetAmountCents)
	assert.Equal(t, int64(4500), res.AvailableCents)

	w, err := h.withdrawalSvc.GetWithdrawal(ctx, res.WithdrawalID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPending, w.Status)
	assert.Equal(t, int64(4500), w.AmountCents)
	assert.Equal(t, int64(5000), w.GrossCents())

	assert.Equal(t, domain.EventWithdrawalRequested, h.publisher.last().EventType())
	assert.Equal(t, 1, h.metrics.transitions[domain.WithdrawalPending])
}

func TestWithdrawalService_Request_Failures(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	creator := uuid.New()

	_, err := h.withdrawalSvc.RequestWithdrawal(ctx, creator, 0)
	assertCode(t, err, apperror.CodeInvalidAmount)

	_, err = h.withdrawalSvc.RequestWithdrawal(ctx, creator, 999)
	assertCode(t, err, apperror.CodeInvalidAmount)

	_, err = h.withdrawalSvc.RequestWithdrawal(ctx, creator, 1000)
	assertCode(t, err, apperror.CodeInsufficientFunds)

	// 900 available; 1001 gross nets 901.
	h.earn(t, creator, 1, 1_000_000)
	_, err = h.withdrawalSvc.RequestWithdrawal(ctx, creator, 1001)
	assertCode(t, err, apperror.CodeInsufficientFunds)
	assert.Equal(t, int64(900), h.creatorBalance(t, creator).AvailableCents)

	_, err = h.withdrawalSvc.RequestWithdrawal(ctx, creator, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), h.creatorBalance(t, creator).AvailableCents)

	// A pending request holds the funds; a second one cannot reuse them.
	_, err = h.withdrawalSvc.RequestWithdrawal(ctx, creator, 1000)
	assertCode(t, err, apperror.CodeInsufficientFunds)
}

func TestWithdrawalService_ApproveAndComplete(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	creator := uuid.New()
	h.earn(t, creator, 2, 1_000_000)

	res, err := h.withdrawalSvc.RequestWithdrawal(ctx, creator, 2000)
	require.NoError(t, err)

	_, err = h.withdrawalSvc.CompleteWithdrawal(ctx, res.WithdrawalID, "ps_1")
	assertCode(t, err, apperror.CodeInvalidWithdrawalStatus)

	w, err := h.withdrawalSvc.ApproveWithdrawal(ctx, res.WithdrawalID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalProcessing, w.Status)

	_, err = h.withdrawalSvc.ApproveWithdrawal(ctx, res.WithdrawalID)
	assertCode(t, err, apperror.CodeInvalidWithdrawalStatus)

	w, err = h.withdrawalSvc.CompleteWithdrawal(ctx, res.WithdrawalID, "ps_1")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPaid, w.Status)
	require.NotNil(t, w.PSReference)
	assert.Equal(t, "ps_1", *w.PSReference)
	require.NotNil(t, w.ProcessedAt)

	inv, err := h.invoiceDB.GetByWithdrawal(ctx, res.WithdrawalID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, int64(2000), inv.GrossCents)
	assert.Equal(t, int64(200), inv.FeeCents)
	assert.Equal(t, int64(1800), inv.NetCents)

	paid, ok := h.publisher.last().(domain.PayoutCompleted)
	require.True(t, ok)
	require.NotNil(t, paid.InvoiceID)
	assert.Equal(t, inv.ID, *paid.InvoiceID)

	// Completing again is a no-op: no second event, same reference.
	eventsBefore := len(h.publisher.types())
	again, err := h.withdrawalSvc.CompleteWithdrawal(ctx, res.WithdrawalID, "ps_other")
	require.NoError(t, err)
	assert.Equal(t, "ps_1", *again.PSReference)
	assert.Len(t, h.publisher.types(), eventsBefore)
	assert.Equal(t, 1, h.metrics.transitions[domain.WithdrawalPaid])

	_, err = h.withdrawalSvc.CancelWithdrawal(ctx, res.WithdrawalID, creator)
	assertCode(t, err, apperror.CodeInvalidWithdrawalStatus)
	assert.Equal(t, int64(0), h.creatorBalance(t, creator).AvailableCents)
}

func TestWithdrawalService_CancelRefundsOnce(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	creator := uuid.New()
	h.earn(t, creator, 3, 1_000_000) // 2700 available

	res, err := h.withdrawalSvc.RequestWithdrawal(ctx, creator, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(900), h.creatorBalance(t, creator).AvailableCents)

	_, err = h.withdrawalSvc.CancelWithdrawal(ctx, res.WithdrawalID, uuid.New())
	assertCode(t, err, apperror.CodeWithdrawalNotFound)

	w, err := h.withdrawalSvc.CancelWithdrawal(ctx, res.WithdrawalID, creator)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalCancelled, w.Status)
	assert.Equal(t, int64(2700), h.creatorBalance(t, creator).AvailableCents)

	_, err = h.withdrawalSvc.CancelWithdrawal(ctx, res.WithdrawalID, creator)
	assertCode(t, err, apperror.CodeInvalidWithdrawalStatus)
	_, err = h.withdrawalSvc.FailWithdrawal(ctx, res.WithdrawalID, "late failure")
	assertCode(t, err, apperror.CodeInvalidWithdrawalStatus)
	assert.Equal(t, int64(2700), h.creatorBalance(t, creator).AvailableCents)

	ev, ok := h.publisher.last().(domain.WithdrawalCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, int64(1800), ev.RefundedCents)
}

func TestWithdrawalService_FailFromProcessingRefunds(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	creator := uuid.New()
	h.earn(t, creator, 2, 1_000_000) // 1800 available

	res, err := h.withdrawalSvc.RequestWithdrawal(ctx, creator, 1500) // net 1350
	require.NoError(t, err)
	_, err = h.withdrawalSvc.ApproveWithdrawal(ctx, res.WithdrawalID)
	require.NoError(t, err)

	_, err = h.withdrawalSvc.CancelWithdrawal(ctx, res.WithdrawalID, creator)
	assertCode(t, err, apperror.CodeInvalidWithdrawalStatus)

	w, err := h.withdrawalSvc.FailWithdrawal(ctx, res.WithdrawalID, "account closed")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalFailed, w.Status)
	require.NotNil(t, w.FailureReason)
	assert.Equal(t, "account closed", *w.FailureReason)
	assert.Equal(t, int64(1800), h.creatorBalance(t, creator).AvailableCents)

	_, err = h.withdrawalSvc.FailWithdrawal(ctx, res.WithdrawalID, "again")
	assertCode(t, err, apperror.CodeInvalidWithdrawalStatus)
	assert.Equal(t, int64(1800), h.creatorBalance(t, creator).AvailableCents)

	_, err = h.withdrawalSvc.CompleteWithdrawal(ctx, res.WithdrawalID, "ps_late")
	assertCode(t, err, apperror.CodeInvalidWithdrawalStatus)
}

func TestWithdrawalService_NotFound(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := h.withdrawalSvc.GetWithdrawal(ctx, id)
	assertCode(t, err, apperror.CodeWithdrawalNotFound)
	_, err = h.withdrawalSvc.ApproveWithdrawal(ctx, id)
	assertCode(t, err, apperror.CodeWithdrawalNotFound)
	_, err = h.withdrawalSvc.CompleteWithdrawal(ctx, id, "ps")
	assertCode(t, err, apperror.CodeWithdrawalNotFound)
	_, err = h.withdrawalSvc.FailWithdrawal(ctx, id, "x")
	assertCode(t, err, apperror.CodeWithdrawalNotFound)
	_, err = h.withdrawalSvc.CancelWithdrawal(ctx, id, uuid.New())
	assertCode(t, err, apperror.CodeWithdrawalNotFound)
}

func TestWithdrawalService_ListNewestFirst(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	creator := uuid.New()
	h.earn(t, creator, 5, 1_000_000)

	first, err := h.withdrawalSvc.RequestWithdrawal(ctx, creator, 1000)
	require.NoError(t, err)
	second, err := h.withdrawalSvc.RequestWithdrawal(ctx, creator, 1000)
	require.NoError(t, err)

	list, err := h.withdrawalSvc.ListWithdrawals(ctx, creator, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []uuid.UUID{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{first.WithdrawalID, second.WithdrawalID}, ids)
	assert.False(t, list[0].CreatedAt.Before(list[1].CreatedAt))
}

func TestWithdrawalService_InvoiceFailureDoesNotFailCompletion(t *testing.T) {
	ctrl := gomock.NewController(t)
	invoices := mocks.NewMockInvoiceCreator(ctrl)

	h := newLedgerHarness(t)
	ctx := context.Background()
	creator := uuid.New()
	h.earn(t, creator, 2, 1_000_000)

	svc := NewWithdrawalService(h.withdrawal, h.balances, memoryTransactor(h), h.fees, invoices,
		h.publisher, h.metrics, testLedgerConfig(), newTestLogger())

	res, err := svc.RequestWithdrawal(ctx, creator, 1000)
	require.NoError(t, err)
	_, err = svc.ApproveWithdrawal(ctx, res.WithdrawalID)
	require.NoError(t, err)

	invoices.EXPECT().CreateForWithdrawal(gomock.Any(), gomock.Any()).Return(nil, errors.New("pdf service down"))

	w, err := svc.CompleteWithdrawal(ctx, res.WithdrawalID, "ps_9")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPaid, w.Status)

	paid, ok := h.publisher.last().(domain.PayoutCompleted)
	require.True(t, ok)
	assert.Nil(t, paid.InvoiceID)
}
