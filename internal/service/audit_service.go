package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"legal-review-client/internal/approval"
	"legal-review-client/internal/model"
	"legal-review-client/internal/pkg/logger"
	"legal-review-client/internal/repository"
	"legal-review-client/pkg/events"

	"github.com/google/uuid"
)

// EventPublisher is satisfied by *nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IAuditService interface {
	RecordSubmission(ctx context.Context, sessionID string, sub approval.Submission) error
	RecordSessionClosed(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string, limit int) ([]model.DecisionAudit, error)
}

// auditService persists decision batches and announces them on the event
// bus. Either sink may be nil.
type auditService struct {
	repo      repository.DecisionAuditRepository
	publisher EventPublisher
	logger    logger.ILogger
}

func NewAuditService(repo repository.DecisionAuditRepository, publisher EventPublisher, log logger.ILogger) IAuditService {
	return &auditService{repo: repo, publisher: publisher, logger: log}
}

func (s *auditService) RecordSubmission(ctx context.Context, sessionID string, sub approval.Submission) error {
	audit, err := newDecisionAudit(sessionID, sub)
	if err != nil {
		return err
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, audit); err != nil {
			return fmt.Errorf("store decision audit: %w", err)
		}
	}

	if s.publisher != nil {
		decisions := make([]string, len(sub.Decisions))
		for i, d := range sub.Decisions {
			decisions[i] = decisionLabel(d)
		}
		ev := events.DecisionsSubmitted(sessionID, audit.Tools, decisions, sub.SubmittedAt)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("AuditService", "Failed to publish decision event", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		}
	}

	s.logger.Info("AuditService", "Decision batch recorded", map[string]interface{}{
		"session_id": sessionID,
		"approved":   audit.Approved,
		"edited":     audit.Edited,
		"rejected":   audit.Rejected,
	})
	return nil
}

func (s *auditService) RecordSessionClosed(ctx context.Context, sessionID string) error {
	if s.publisher == nil || sessionID == "" {
		return nil
	}
	return s.publisher.Publish(ctx, events.SessionClosed(sessionID, time.Now()))
}

// History lists the session's stored batches, newest first. Without a
// database it is always empty.
func (s *auditService) History(ctx context.Context, sessionID string, limit int) ([]model.DecisionAudit, error) {
	if s.repo == nil || sessionID == "" {
		return []model.DecisionAudit{}, nil
	}
	audits, err := s.repo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list decision audits: %w", err)
	}
	return audits, nil
}

func newDecisionAudit(sessionID string, sub approval.Submission) (*model.DecisionAudit, error) {
	actions, err := json.Marshal(sub.Request.Actions)
	if err != nil {
		return nil, fmt.Errorf("encode actions: %w", err)
	}
	decisions, err := json.Marshal(sub.Decisions)
	if err != nil {
		return nil, fmt.Errorf("encode decisions: %w", err)
	}

	audit := &model.DecisionAudit{
		ID:          uuid.New(),
		SessionID:   sessionID,
		ActionCount: len(sub.Request.Actions),
		Tools:       make([]string, len(sub.Request.Actions)),
		Actions:     actions,
		Decisions:   decisions,
		RequestedAt: sub.Request.ReceivedAt,
		SubmittedAt: sub.SubmittedAt,
	}
	for i, a := range sub.Request.Actions {
		audit.Tools[i] = a.ToolName
	}
	for _, d := range sub.Decisions {
		switch decisionLabel(d) {
		case "edit":
			audit.Edited++
		case string(approval.DecisionReject):
			audit.Rejected++
		default:
			audit.Approved++
		}
	}
	return audit, nil
}

func decisionLabel(d approval.Decision) string {
	if d.IsEdit() {
		return "edit"
	}
	return string(d.Type)
}
