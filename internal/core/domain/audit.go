package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionApproveWithdrawal AuditAction = "APPROVE_WITHDRAWAL"
	AuditActionFailWithdrawal    AuditAction = "FAIL_WITHDRAWAL"
	AuditActionProcessorCallback AuditAction = "PROCESSOR_CALLBACK"
)

// AuditLog records a mutation made through the admin or processor surface.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *string     `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
