package service

import (
	"context"

	"legal-review-client/internal/api"
	"legal-review-client/internal/approval"
	"legal-review-client/internal/dto"
	"legal-review-client/internal/model"
	"legal-review-client/internal/session"
)

type IReviewService interface {
	Snapshot() session.Snapshot
	StartAnalysis(ctx context.Context, req *dto.StartAnalysisRequest) error
	Decide(ctx context.Context, req *dto.DecisionRequest) error
	Edit(ctx context.Context, req *dto.EditRequest) error
	ApproveAll(ctx context.Context) error
	RejectAll(ctx context.Context) error
	Submit(ctx context.Context) error
	RefreshCatalog(ctx context.Context) error
	SelectDocument(ctx context.Context, docID int) error
	SelectFile(ctx context.Context, req *dto.SelectFileRequest) error
	ClearSelection(ctx context.Context)
	DocumentPDF(ctx context.Context, docID int) (*api.Binary, error)
	PageImage(ctx context.Context, params *dto.PageImageParams) (*api.Binary, error)
	AuditHistory(ctx context.Context, query *dto.AuditHistoryQuery) ([]model.DecisionAudit, error)
}

const defaultHistoryLimit = 20

type reviewService struct {
	session *session.Client
	audit   IAuditService
}

func NewReviewService(s *session.Client, audit IAuditService) IReviewService {
	return &reviewService{session: s, audit: audit}
}

func (s *reviewService) Snapshot() session.Snapshot {
	return s.session.Snapshot()
}

func (s *reviewService) StartAnalysis(ctx context.Context, req *dto.StartAnalysisRequest) error {
	return s.session.StartAnalysis(req.Message)
}

func (s *reviewService) Decide(ctx context.Context, req *dto.DecisionRequest) error {
	d := approval.Approve()
	if approval.DecisionType(req.Decision) == approval.DecisionReject {
		d = approval.Reject()
	}
	return s.session.RecordDecision(req.Index, d)
}

func (s *reviewService) Edit(ctx context.Context, req *dto.EditRequest) error {
	return s.session.EditDecision(req.Index, req.Arguments)
}

func (s *reviewService) ApproveAll(ctx context.Context) error {
	return s.session.ApproveAll()
}

func (s *reviewService) RejectAll(ctx context.Context) error {
	return s.session.RejectAll()
}

func (s *reviewService) Submit(ctx context.Context) error {
	return s.session.Submit()
}

func (s *reviewService) RefreshCatalog(ctx context.Context) error {
	return s.session.RefreshCatalog(ctx)
}

func (s *reviewService) SelectDocument(ctx context.Context, docID int) error {
	return s.session.SelectDocument(ctx, docID)
}

func (s *reviewService) SelectFile(ctx context.Context, req *dto.SelectFileRequest) error {
	return s.session.SelectFile(req.Path)
}

func (s *reviewService) ClearSelection(ctx context.Context) {
	s.session.ClearSelection()
}

func (s *reviewService) DocumentPDF(ctx context.Context, docID int) (*api.Binary, error) {
	return s.session.DocumentPDF(ctx, docID)
}

func (s *reviewService) PageImage(ctx context.Context, params *dto.PageImageParams) (*api.Binary, error) {
	return s.session.PageImage(ctx, params.DocID, params.Page)
}

func (s *reviewService) AuditHistory(ctx context.Context, query *dto.AuditHistoryQuery) ([]model.DecisionAudit, error) {
	limit := query.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	return s.audit.History(ctx, s.session.SessionID(), limit)
}
