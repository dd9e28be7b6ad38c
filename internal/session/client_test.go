package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"legal-review-client/internal/api"
	"legal-review-client/internal/approval"
	"legal-review-client/internal/channel"
	"legal-review-client/internal/layout"
	"legal-review-client/internal/pkg/logger"
	"legal-review-client/internal/view"
	"legal-review-client/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeTransport struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes []string
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (p *pipeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-p.in:
		return 1, data, nil
	case <-p.closed:
		return 0, nil, errors.New("closed")
	}
}

func (p *pipeTransport) WriteMessage(messageType int, data []byte) error {
	if messageType != 1 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, string(data))
	return nil
}

func (p *pipeTransport) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

type pipeDialer struct {
	t   *pipeTransport
	url string
}

func (d *pipeDialer) Dial(_ context.Context, url string) (channel.Transport, error) {
	d.url = url
	return d.t, nil
}

type fakeBackend struct {
	mu         sync.Mutex
	deleted    []string
	catalogErr error
	docCalls   int
}

func (b *fakeBackend) CreateSession(context.Context) (string, error) { return "sess-1", nil }

func (b *fakeBackend) DeleteSession(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBackend) ListDocuments(context.Context) ([]api.Document, error) {
	if b.catalogErr != nil {
		return nil, b.catalogErr
	}
	return []api.Document{{DocID: 1, Filename: "lease.pdf", TotalPages: 3, LegallySignificantPages: 1}}, nil
}

func (b *fakeBackend) GetDocument(_ context.Context, id int) (*api.DocumentDetail, error) {
	b.mu.Lock()
	b.docCalls++
	b.mu.Unlock()
	return &api.DocumentDetail{
		Document: api.Document{DocID: id, Filename: "lease.pdf", TotalPages: 3},
		Pages:    []api.Page{{PageNum: 1}, {PageNum: 2, LegallySignificant: true}, {PageNum: 3}},
	}, nil
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docCalls
}

func (b *fakeBackend) DocumentPDF(context.Context, int) (*api.Binary, error) {
	return &api.Binary{ContentType: "application/pdf", Data: []byte("%PDF")}, nil
}

func (b *fakeBackend) PageImage(context.Context, int, int) (*api.Binary, error) {
	return &api.Binary{ContentType: "image/png", Data: []byte{0x89}}, nil
}

type countingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *countingNotifier) Notify(event string) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *countingNotifier) seen(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

func (n *countingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

type recordingAudit struct {
	mu   sync.Mutex
	subs []approval.Submission
	ids  []string
}

func (a *recordingAudit) RecordSubmission(_ context.Context, sessionID string, sub approval.Submission) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, sessionID)
	a.subs = append(a.subs, sub)
	return nil
}

type harness struct {
	client    *Client
	backend   *fakeBackend
	transport *pipeTransport
	dialer    *pipeDialer
	notifier  *countingNotifier
	audit     *recordingAudit
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		backend:   &fakeBackend{},
		transport: newPipeTransport(),
		notifier:  &countingNotifier{},
		audit:     &recordingAudit{},
	}
	h.dialer = &pipeDialer{t: h.transport}

	log := logger.NewNopLogger()
	mgr := channel.NewManager("ws://backend", log, channel.WithDialer(h.dialer), channel.WithPingInterval(0))
	opts = append([]Option{WithNotifier(h.notifier), WithAuditSink(h.audit)}, opts...)
	h.client = New(h.backend, mgr, log, opts...)
	return h
}

func (h *harness) bootstrap(t *testing.T) {
	t.Helper()
	require.NoError(t, h.client.Bootstrap(context.Background()))
	require.Eventually(t, func() bool { return h.client.Snapshot().Connection == channel.StateOpen }, time.Second, time.Millisecond)
}

func (h *harness) push(frame string) {
	h.transport.in <- []byte(frame)
}

func (h *harness) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var s Snapshot
	require.Eventually(t, func() bool {
		s = h.client.Snapshot()
		return cond(s)
	}, time.Second, time.Millisecond)
	return s
}

func TestBootstrap(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	assert.Equal(t, "sess-1", h.client.SessionID())
	assert.Equal(t, "ws://backend/ws/sess-1", h.dialer.url)

	s := h.client.Snapshot()
	assert.True(t, s.CanInteract)
	assert.Len(t, s.Documents.Catalog, 1)
	assert.Equal(t, layout.ModeDefault, s.Layout.Mode)
	assert.True(t, h.notifier.seen("bootstrap"))

	require.NoError(t, h.client.Close(context.Background()))
	assert.Equal(t, []string{"sess-1"}, h.backend.deleted)
	assert.Equal(t, channel.StateClosed, h.client.Snapshot().Connection)
}

func TestBootstrapSurvivesCatalogFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.catalogErr = errors.New("catalog unavailable")
	h.bootstrap(t)

	s := h.client.Snapshot()
	assert.Equal(t, "catalog unavailable", s.CatalogError)
	assert.Empty(t, s.Documents.Catalog)

	h.backend.catalogErr = nil
	require.NoError(t, h.client.RefreshCatalog(context.Background()))
	s = h.client.Snapshot()
	assert.Empty(t, s.CatalogError)
	assert.Len(t, s.Documents.Catalog, 1)
}

func TestRefreshCatalogRefetchesSelectedDocument(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	defer h.client.Close(context.Background())

	require.NoError(t, h.client.SelectDocument(context.Background(), 1))
	require.NoError(t, h.client.SelectDocument(context.Background(), 1))
	assert.Equal(t, 1, h.backend.calls())

	require.NoError(t, h.client.RefreshCatalog(context.Background()))
	assert.Equal(t, 2, h.backend.calls())
	s := h.client.Snapshot()
	require.NotNil(t, s.Documents.Detail)
	assert.Equal(t, 1, s.Documents.Detail.DocID)
	assert.True(t, h.notifier.seen("catalog"))
}

func TestStartAnalysisRequiresSession(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.client.StartAnalysis("review"), ErrNotBootstrapped)
}

func TestApprovalRoundTripUpdatesFilesAndTimeline(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	defer h.client.Close(context.Background())

	h.push(`{"type":"approval_required",
		"actions":[{"tool_name":"write_file",
			"arguments":{"file_path":"/report/r.md","content":"# Report"},
			"context":{"file_path":"/report/r.md"},
			"review_config":{"allowed_decisions":["approve","reject"]}}],
		"agent_messages":[{"content":"writing report"}]}`)

	s := h.waitFor(t, func(s Snapshot) bool { return s.Workflow.Status == workflow.StatusAwaitingApproval })
	require.NotNil(t, s.Approval)
	assert.Equal(t, "/report/r.md", s.Files.Highlight.Path)
	assert.Equal(t, view.SourceAction, s.Files.Highlight.Source)
	assert.Equal(t, workflow.StatusAwaitingApproval, s.Workflow.Status)
	assert.Equal(t, 1, s.Approval.Remaining)

	require.NoError(t, h.client.RecordDecision(0, approval.Approve()))
	writes := h.transport.written()
	require.Len(t, writes, 1)
	assert.JSONEq(t, `{"type":"approval_decision","decisions":[{"decision":"approve"}]}`, writes[0])

	s = h.client.Snapshot()
	assert.Nil(t, s.Approval)
	assert.True(t, s.AwaitingAck)

	h.push(`{"type":"approval_processed","message":"done"}`)
	s = h.waitFor(t, func(s Snapshot) bool {
		n := len(s.Workflow.Timeline)
		return n > 0 && s.Workflow.Timeline[n-1].Content == "done"
	})
	assert.False(t, s.AwaitingAck)

	last := s.Workflow.Timeline[len(s.Workflow.Timeline)-1]
	assert.Equal(t, workflow.KindSystem, last.Kind)
	assert.Equal(t, "done", last.Content)
	assert.Nil(t, s.Approval)
	assert.Equal(t, view.SourceNone, s.Files.Highlight.Source)

	// The approved write is mirrored into the workspace.
	require.Len(t, s.Files.Files, 1)
	assert.Equal(t, "/report/r.md", s.Files.Files[0].Path)

	h.audit.mu.Lock()
	require.Len(t, h.audit.subs, 1)
	assert.Equal(t, "sess-1", h.audit.ids[0])
	h.audit.mu.Unlock()

	require.NoError(t, h.client.SelectFile("report/r.md"))
	s = h.client.Snapshot()
	assert.Equal(t, layout.ModeFileDetail, s.Layout.Mode)
	require.NotNil(t, s.Files.Selected)
	assert.Equal(t, "# Report", s.Files.Selected.Content)
}

func agentContents(entries []workflow.Entry) []string {
	var out []string
	for _, e := range entries {
		if e.Kind == workflow.KindAgent {
			out = append(out, e.Content)
		}
	}
	return out
}

func TestQueuedRequestSurfacesOnlyWhenPromoted(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	defer h.client.Close(context.Background())

	h.push(`{"type":"approval_required",
		"actions":[{"tool_name":"write_todos","arguments":{"todos":[{"content":"plan A","status":"pending"}]}}],
		"agent_messages":[{"content":"first"}]}`)
	h.push(`{"type":"approval_required",
		"actions":[{"tool_name":"write_todos","arguments":{"todos":[{"content":"plan B","status":"pending"}]}}],
		"agent_messages":[{"content":"second"}]}`)
	require.Eventually(t, func() bool { return h.notifier.count("approval_required") == 2 }, time.Second, time.Millisecond)

	s := h.client.Snapshot()
	require.NotNil(t, s.Approval)
	assert.Equal(t, 1, s.Approval.Queued)
	assert.Equal(t, "first", s.Approval.AgentMessages[0].Content)
	assert.Equal(t, []workflow.Todo{{Content: "plan A", Status: workflow.TodoPending}}, s.Workflow.Todos)
	assert.Equal(t, []string{"first"}, agentContents(s.Workflow.Timeline))

	require.NoError(t, h.client.RecordDecision(0, approval.Approve()))
	h.push(`{"type":"approval_processed","message":"ok"}`)

	s = h.waitFor(t, func(s Snapshot) bool { return len(agentContents(s.Workflow.Timeline)) == 2 })
	assert.Equal(t, []string{"first", "second"}, agentContents(s.Workflow.Timeline))
	assert.Equal(t, []workflow.Todo{{Content: "plan B", Status: workflow.TodoPending}}, s.Workflow.Todos)
	assert.Equal(t, workflow.StatusAwaitingApproval, s.Workflow.Status)
	require.NotNil(t, s.Approval)
	assert.Equal(t, "second", s.Approval.AgentMessages[0].Content)
	assert.Equal(t, 0, s.Approval.Queued)
}

func TestEditedWriteIsMirroredWithEditedArguments(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	defer h.client.Close(context.Background())

	h.push(`{"type":"approval_required","actions":[{"tool_name":"write_file",
		"arguments":{"file_path":"/a.md","content":"first"},
		"review_config":{"allowed_decisions":["approve","edit","reject"]}}],"agent_messages":[]}`)
	h.waitFor(t, func(s Snapshot) bool { return s.Workflow.Status == workflow.StatusAwaitingApproval })

	require.Error(t, h.client.EditDecision(0, `{"file_path":`))
	assert.Empty(t, h.transport.written())

	require.NoError(t, h.client.EditDecision(0, `{"file_path":"/a.md","content":"second"}`))
	h.push(`{"type":"approval_processed","message":"ok"}`)

	s := h.waitFor(t, func(s Snapshot) bool { return len(s.Files.Files) == 1 })
	assert.Equal(t, len("second"), s.Files.Files[0].Size)
}

func TestSelectionIsExclusiveAcrossPanels(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	defer h.client.Close(context.Background())

	h.push(`{"type":"analysis_complete","message":"finished","result":{"files":{"/report/final.md":"x"}}}`)
	h.waitFor(t, func(s Snapshot) bool { return s.Workflow.Status == workflow.StatusComplete })

	require.NoError(t, h.client.SelectDocument(context.Background(), 1))
	s := h.client.Snapshot()
	assert.Equal(t, layout.ModeDocumentDetail, s.Layout.Mode)
	require.NotNil(t, s.Documents.Detail)
	assert.Equal(t, []int{2}, s.Documents.Highlight.Pages)

	require.NoError(t, h.client.SelectFile("/report/final.md"))
	s = h.client.Snapshot()
	assert.Equal(t, layout.ModeFileDetail, s.Layout.Mode)
	assert.Equal(t, view.ModeBrowsing, s.Documents.Mode)
	assert.Equal(t, view.ModeDetail, s.Files.Mode)

	assert.ErrorIs(t, h.client.SelectFile("/missing.md"), view.ErrFileNotFound)
	assert.Equal(t, layout.ModeFileDetail, h.client.Snapshot().Layout.Mode)

	require.NoError(t, h.client.SelectDocument(context.Background(), 1))
	assert.Equal(t, 1, h.backend.docCalls, "detail is served from cache the second time")

	h.client.ClearSelection()
	assert.Equal(t, layout.ModeDefault, h.client.Snapshot().Layout.Mode)
}

func TestBackendErrorsAreNonFatal(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	defer h.client.Close(context.Background())

	require.NoError(t, h.client.StartAnalysis("Assess termination risk"))
	h.push(`{"type":"analysis_started","message":"Analysis started"}`)
	h.push(`{"type":"error","message":"tool failed"}`)
	h.push(`{"type":"agent_message","content":"continuing"}`)

	s := h.waitFor(t, func(s Snapshot) bool { return len(s.Workflow.Timeline) >= 4 })
	kinds := make([]workflow.EntryKind, 0, len(s.Workflow.Timeline))
	for _, e := range s.Workflow.Timeline {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, workflow.KindError)
	assert.Equal(t, workflow.KindAgent, kinds[len(kinds)-1])
	assert.Equal(t, channel.StateOpen, s.Connection)
	assert.True(t, h.notifier.seen(channel.EventError))
}
