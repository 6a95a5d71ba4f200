package handler

import (
	"creator-ledger/internal/adapter/http/dto"
	"creator-ledger/internal/core/ports"
	"creator-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// BudgetHandler serves read-only campaign budget views.
type BudgetHandler struct {
	querySvc ports.BudgetQueryService
}

func NewBudgetHandler(querySvc ports.BudgetQueryService) *BudgetHandler {
	return &BudgetHandler{querySvc: querySvc}
}

// GetBudget handles GET /api/v1/admin/campaigns/:id/budget.
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	campaignID, err := pathID(c, "campaign")
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.querySvc.GetCampaignBudget(c.Request.Context(), campaignID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewBudgetResponse(summary))
}

// ListLedger handles GET /api/v1/admin/campaigns/:id/ledger?limit=N.
func (h *BudgetHandler) ListLedger(c *gin.Context) {
	campaignID, err := pathID(c, "campaign")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := listLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, err := h.querySvc.ListCampaignLedger(c.Request.Context(), campaignID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewList(entries, dto.NewLedgerEntryResponse))
}
