package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"legal-review-client/internal/approval"
	"legal-review-client/internal/model"
	"legal-review-client/internal/pkg/logger"
	"legal-review-client/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAuditRepo struct {
	rows []*model.DecisionAudit
	err  error
}

func (r *memoryAuditRepo) Create(ctx context.Context, audit *model.DecisionAudit) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, audit)
	return nil
}

func (r *memoryAuditRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.DecisionAudit, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []model.DecisionAudit
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].SessionID == sessionID {
			out = append(out, *r.rows[i])
		}
	}
	return out, nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func sampleSubmission() approval.Submission {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return approval.Submission{
		Request: approval.Request{
			Actions: []approval.Action{
				{ToolName: approval.ToolGetDocuments, Arguments: json.RawMessage(`{}`)},
				{ToolName: approval.ToolWriteFile, Arguments: json.RawMessage(`{"file_path":"/a.md","content":"x"}`)},
				{ToolName: approval.ToolEditFile, Arguments: json.RawMessage(`{}`)},
			},
			ReceivedAt: at.Add(-time.Minute),
		},
		Decisions: []approval.Decision{
			approval.Approve(),
			{Type: approval.DecisionApprove, EditedArguments: map[string]interface{}{"file_path": "/b.md"}},
			approval.Reject(),
		},
		SubmittedAt: at,
	}
}

func TestRecordSubmission(t *testing.T) {
	repo := &memoryAuditRepo{}
	pub := &recordingPublisher{}
	svc := NewAuditService(repo, pub, logger.NewNopLogger())

	require.NoError(t, svc.RecordSubmission(context.Background(), "s-1", sampleSubmission()))

	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	assert.Equal(t, "s-1", row.SessionID)
	assert.Equal(t, 3, row.ActionCount)
	assert.Equal(t, 1, row.Approved)
	assert.Equal(t, 1, row.Edited)
	assert.Equal(t, 1, row.Rejected)
	assert.Equal(t, []string{"get_documents", "write_file", "edit_file"}, []string(row.Tools))
	assert.Contains(t, string(row.Decisions), `"edited_arguments":{"file_path":"/b.md"}`)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeDecisionsSubmitted, pub.events[0].EventType())
	assert.Equal(t, []string{"approve", "edit", "reject"}, pub.events[0].Payload()["decisions"])
}

func TestRecordSubmissionPublishFailureIsNotFatal(t *testing.T) {
	svc := NewAuditService(&memoryAuditRepo{}, &recordingPublisher{err: errors.New("nats down")}, logger.NewNopLogger())
	assert.NoError(t, svc.RecordSubmission(context.Background(), "s-1", sampleSubmission()))
}

func TestRecordSubmissionStoreFailure(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewAuditService(&memoryAuditRepo{err: errors.New("db down")}, pub, logger.NewNopLogger())
	assert.Error(t, svc.RecordSubmission(context.Background(), "s-1", sampleSubmission()))
	assert.Empty(t, pub.events)
}

func TestAuditWithoutSinks(t *testing.T) {
	svc := NewAuditService(nil, nil, logger.NewNopLogger())
	assert.NoError(t, svc.RecordSubmission(context.Background(), "s-1", sampleSubmission()))
	assert.NoError(t, svc.RecordSessionClosed(context.Background(), "s-1"))
}

func TestHistoryListsNewestFirst(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo, nil, logger.NewNopLogger())

	first, second := sampleSubmission(), sampleSubmission()
	second.SubmittedAt = first.SubmittedAt.Add(time.Minute)
	require.NoError(t, svc.RecordSubmission(context.Background(), "s-1", first))
	require.NoError(t, svc.RecordSubmission(context.Background(), "s-2", first))
	require.NoError(t, svc.RecordSubmission(context.Background(), "s-1", second))

	rows, err := svc.History(context.Background(), "s-1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.SubmittedAt, rows[0].SubmittedAt)

	rows, err = svc.History(context.Background(), "s-1", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	repo.err = errors.New("db down")
	_, err = svc.History(context.Background(), "s-1", 10)
	assert.Error(t, err)
}

func TestHistoryWithoutDatabaseIsEmpty(t *testing.T) {
	svc := NewAuditService(nil, nil, logger.NewNopLogger())
	rows, err := svc.History(context.Background(), "s-1", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, rows)
}
