package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"legal-review-client/internal/api"
	"legal-review-client/internal/approval"
	"legal-review-client/internal/channel"
	"legal-review-client/internal/layout"
	"legal-review-client/internal/pkg/logger"
	"legal-review-client/internal/repository/memory"
	"legal-review-client/internal/view"
	"legal-review-client/internal/workflow"

	"golang.org/x/sync/errgroup"
)

var ErrNotBootstrapped = errors.New("session has not been bootstrapped")

// Backend is the REST surface the session consumes.
type Backend interface {
	CreateSession(ctx context.Context) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListDocuments(ctx context.Context) ([]api.Document, error)
	GetDocument(ctx context.Context, docID int) (*api.DocumentDetail, error)
	DocumentPDF(ctx context.Context, docID int) (*api.Binary, error)
	PageImage(ctx context.Context, docID, page int) (*api.Binary, error)
}

// Channel is the persistent connection; *channel.Manager implements it.
type Channel interface {
	Open(ctx context.Context, sessionID string)
	Close()
	Send(v interface{}) error
	Subscribe(eventType string, h channel.Handler) *channel.Subscription
	State() channel.State
}

// Notifier is told the name of the event after every state change.
type Notifier interface {
	Notify(event string)
}

// AuditSink receives every decision batch the reviewer submits.
type AuditSink interface {
	RecordSubmission(ctx context.Context, sessionID string, sub approval.Submission) error
}

type Option func(*Client)

func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifiers = append(c.notifiers, n) }
}

func WithAuditSink(a AuditSink) Option {
	return func(c *Client) { c.audit = a }
}

func WithStrictBatch(strict bool) Option {
	return func(c *Client) { c.strictBatch = strict }
}

func WithDocumentStore(s view.DocumentStore) Option {
	return func(c *Client) { c.store = s }
}

// Client is one review session: it owns the backend session, the channel
// subscriptions and every panel's state.
type Client struct {
	backend     Backend
	channel     Channel
	logger      logger.ILogger
	notifiers   []Notifier
	audit       AuditSink
	strictBatch bool
	store       view.DocumentStore

	coordinator *approval.Coordinator
	workflow    *workflow.View
	documents   *view.Documents
	files       *view.Files
	selection   *layout.Selection

	mu         sync.RWMutex
	sessionID  string
	catalogErr string
	subs       []*channel.Subscription
}

func New(backend Backend, ch Channel, log logger.ILogger, opts ...Option) *Client {
	c := &Client{
		backend:   backend,
		channel:   ch,
		logger:    log,
		selection: &layout.Selection{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = memory.NewDocumentCache(30 * time.Minute)
	}

	c.coordinator = approval.NewCoordinator(ch, log,
		approval.WithStrictBatch(c.strictBatch),
		approval.WithOnSubmit(c.onSubmit),
	)
	c.workflow = workflow.NewView(ch, log)
	c.documents = view.NewDocuments(backend, c.store, log)
	c.files = view.NewFiles(view.NewWorkspace())
	return c
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Bootstrap creates the backend session and fetches the catalog
// concurrently, then opens the channel. A catalog failure is not fatal; it
// shows up in the document panel and can be retried with RefreshCatalog.
func (c *Client) Bootstrap(ctx context.Context) error {
	var (
		sessionID string
		docs      []api.Document
		catErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := c.backend.CreateSession(gctx)
		if err != nil {
			return err
		}
		sessionID = id
		return nil
	})
	g.Go(func() error {
		docs, catErr = c.backend.ListDocuments(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bootstrap session: %w", err)
	}

	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()

	c.applyCatalog(docs, catErr)
	c.subscribe()
	c.channel.Open(ctx, sessionID)

	c.logger.Info("Session", "Session bootstrapped", map[string]interface{}{
		"session_id": sessionID,
		"documents":  len(docs),
	})
	c.notify("bootstrap")
	return nil
}

// RefreshCatalog reloads the catalog. On success the detail cache is
// dropped and the selected document, if any, is fetched again.
func (c *Client) RefreshCatalog(ctx context.Context) error {
	docs, err := c.backend.ListDocuments(ctx)
	c.applyCatalog(docs, err)
	if err == nil {
		c.documents.Invalidate()
		if id := c.selection.Current().DocumentID; id > 0 {
			if _, lerr := c.documents.Load(ctx, id); lerr != nil {
				c.logger.Warn("Session", "Failed to reload selected document", map[string]interface{}{"doc_id": id, "error": lerr.Error()})
			}
		}
	}
	c.notify("catalog")
	return err
}

func (c *Client) applyCatalog(docs []api.Document, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.catalogErr = err.Error()
		c.logger.Error("Session", "Failed to load document catalog", map[string]interface{}{"error": err.Error()})
		return
	}
	c.catalogErr = ""
	c.documents.SetCatalog(docs)
}

// Close drops the subscriptions, closes the channel and deletes the
// backend session.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	id := c.sessionID
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	c.channel.Close()

	if id == "" {
		return nil
	}
	if err := c.backend.DeleteSession(ctx, id); err != nil {
		c.logger.Warn("Session", "Failed to delete backend session", map[string]interface{}{"session_id": id, "error": err.Error()})
		return err
	}
	return nil
}

func (c *Client) StartAnalysis(message string) error {
	if c.SessionID() == "" {
		return ErrNotBootstrapped
	}
	if err := c.workflow.StartAnalysis(message); err != nil {
		return err
	}
	c.notify("start_analysis")
	return nil
}

func (c *Client) RecordDecision(index int, d approval.Decision) error {
	defer c.notify("decision")
	return c.coordinator.RecordDecision(index, d)
}

func (c *Client) EditDecision(index int, text string) error {
	defer c.notify("decision")
	return c.coordinator.EditDecision(index, text)
}

func (c *Client) ApproveAll() error {
	defer c.notify("decision")
	return c.coordinator.ApproveAll()
}

func (c *Client) RejectAll() error {
	defer c.notify("decision")
	return c.coordinator.RejectAll()
}

// Submit resends a completed batch whose earlier send failed.
func (c *Client) Submit() error {
	defer c.notify("decision")
	return c.coordinator.Submit()
}

// SelectDocument switches the layout to the document and loads its detail.
// The selection sticks even if the load fails.
func (c *Client) SelectDocument(ctx context.Context, docID int) error {
	c.selection.SelectDocument(docID)
	c.notify("select_document")

	_, err := c.documents.Load(ctx, docID)
	c.notify("document_loaded")
	return err
}

func (c *Client) SelectFile(path string) error {
	f, err := c.files.Lookup(path)
	if err != nil {
		return err
	}
	c.selection.SelectFile(f.Path)
	c.notify("select_file")
	return nil
}

func (c *Client) ClearSelection() {
	c.selection.Clear()
	c.notify("clear_selection")
}

func (c *Client) DocumentPDF(ctx context.Context, docID int) (*api.Binary, error) {
	return c.backend.DocumentPDF(ctx, docID)
}

func (c *Client) PageImage(ctx context.Context, docID, page int) (*api.Binary, error) {
	return c.backend.PageImage(ctx, docID, page)
}

func (c *Client) onSubmit(sub approval.Submission) {
	if c.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.audit.RecordSubmission(ctx, c.SessionID(), sub); err != nil {
		c.logger.Warn("Session", "Failed to record decision audit", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Client) notify(event string) {
	for _, n := range c.notifiers {
		n.Notify(event)
	}
}

// decodeMessage pulls the one text field most events carry.
func decodeMessage(msg channel.Message) string {
	var body struct {
		Message string `json:"message"`
	}
	_ = msg.Decode(&body)
	return body.Message
}

func editedArguments(action approval.Action, d approval.Decision) json.RawMessage {
	if d.EditedArguments == nil {
		return action.Arguments
	}
	raw, err := json.Marshal(d.EditedArguments)
	if err != nil {
		return action.Arguments
	}
	return raw
}
