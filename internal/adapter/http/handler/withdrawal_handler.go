package handler

import (
	"creator-ledger/internal/adapter/http/dto"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/pkg/apperror"
	"creator-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WithdrawalHandler exposes the operator and processor sides of the
// withdrawal state machine.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
	log           zerolog.Logger
}

func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService, log zerolog.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc, log: log}
}

// ListByCreator handles GET /api/v1/admin/creators/:id/withdrawals?limit=N.
func (h *WithdrawalHandler) ListByCreator(c *gin.Context) {
	creatorID, err := pathID(c, "creator")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := listLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, err := h.withdrawalSvc.ListWithdrawals(c.Request.Context(), creatorID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewList(items, func(w domain.WithdrawalRequest) dto.WithdrawalResponse {
		return dto.NewWithdrawalResponse(&w)
	}))
}

// Approve handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	id, err := pathID(c, "withdrawal")
	if err != nil {
		response.Error(c, err)
		return
	}

	w, err := h.withdrawalSvc.ApproveWithdrawal(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWithdrawalResponse(w))
}

// Fail handles POST /api/v1/admin/withdrawals/:id/fail.
func (h *WithdrawalHandler) Fail(c *gin.Context) {
	id, err := pathID(c, "withdrawal")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.FailWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.withdrawalSvc.FailWithdrawal(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWithdrawalResponse(w))
}

// ProcessorCallback handles POST /api/v1/processor/withdrawals/:id.
// PAID settles the request, FAILED refunds the creator.
func (h *WithdrawalHandler) ProcessorCallback(c *gin.Context) {
	id, err := pathID(c, "withdrawal")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ProcessorCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var w *domain.WithdrawalRequest
	switch req.Status {
	case dto.CallbackStatusPaid:
		w, err = h.withdrawalSvc.CompleteWithdrawal(c.Request.Context(), id, req.Reference)
	case dto.CallbackStatusFailed:
		w, err = h.withdrawalSvc.FailWithdrawal(c.Request.Context(), id, req.Reason)
	}
	if err != nil {
		h.log.Warn().Err(err).
			Str("withdrawal_id", id.String()).
			Str("callback_status", req.Status).
			Msg("processor callback rejected")
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWithdrawalResponse(w))
}
