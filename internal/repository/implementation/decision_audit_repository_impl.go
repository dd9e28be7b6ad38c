package implementation

import (
	"context"

	"legal-review-client/internal/model"
	"legal-review-client/internal/repository"

	"gorm.io/gorm"
)

type DecisionAuditRepositoryImpl struct {
	db *gorm.DB
}

func NewDecisionAuditRepository(db *gorm.DB) repository.DecisionAuditRepository {
	return &DecisionAuditRepositoryImpl{db: db}
}

func (r *DecisionAuditRepositoryImpl) Create(ctx context.Context, audit *model.DecisionAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

// ListBySession returns the newest submissions first.
func (r *DecisionAuditRepositoryImpl) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.DecisionAudit, error) {
	var audits []model.DecisionAudit
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("submitted_at DESC").
		Limit(limit).
		Find(&audits).Error
	return audits, err
}
