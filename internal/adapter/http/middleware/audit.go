package middleware

import (
	"encoding/json"
	"time"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful mutations on the admin and processor routes.
// Route templates (c.FullPath) select the action.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.Request.Method, c.FullPath())
		if action == "" {
			return
		}

		var actorID *string
		if actor := c.GetString(CtxActorID); actor != "" {
			actorID = &actor
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(method, route string) (domain.AuditAction, string) {
	if method != "POST" {
		return "", ""
	}
	switch route {
	case "/api/v1/admin/withdrawals/:id/approve":
		return domain.AuditActionApproveWithdrawal, "withdrawal"
	case "/api/v1/admin/withdrawals/:id/fail":
		return domain.AuditActionFailWithdrawal, "withdrawal"
	case "/api/v1/processor/withdrawals/:id":
		return domain.AuditActionProcessorCallback, "withdrawal"
	}
	return "", ""
}
