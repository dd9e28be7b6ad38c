package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DecisionAudit is one submitted decision batch.
type DecisionAudit struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   string                      `gorm:"type:varchar(100);not null;index:idx_decision_audits_session_submitted,priority:1" json:"session_id"`
	ActionCount int                         `gorm:"not null" json:"action_count"`
	Approved    int                         `gorm:"not null;default:0" json:"approved"`
	Edited      int                         `gorm:"not null;default:0" json:"edited"`
	Rejected    int                         `gorm:"not null;default:0" json:"rejected"`
	Tools       datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"tools"`
	Actions     datatypes.JSON              `gorm:"type:jsonb" json:"actions"`
	Decisions   datatypes.JSON              `gorm:"type:jsonb;not null" json:"decisions"`
	RequestedAt time.Time                   `json:"requested_at"`
	SubmittedAt time.Time                   `gorm:"not null;index:idx_decision_audits_session_submitted,priority:2" json:"submitted_at"`
	CreatedAt   time.Time                   `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}
