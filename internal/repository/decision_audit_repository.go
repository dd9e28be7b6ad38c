package repository

import (
	"context"

	"legal-review-client/internal/model"
)

type DecisionAuditRepository interface {
	Create(ctx context.Context, audit *model.DecisionAudit) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]model.DecisionAudit, error)
}
