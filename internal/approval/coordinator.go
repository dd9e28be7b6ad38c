package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"legal-review-client/internal/pkg/logger"
)

var (
	ErrNoPendingRequest   = errors.New("no approval request is pending")
	ErrIndexOutOfRange    = errors.New("action index out of range")
	ErrDecisionNotAllowed = errors.New("decision not allowed for action")
	ErrIncomplete         = errors.New("not every action has a decision")
)

// ValidationError reports edited arguments that did not parse. Nothing is
// recorded when it is returned.
type ValidationError struct {
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("action %d: edited arguments are not valid JSON: %v", e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Sender delivers outbound frames; *channel.Manager satisfies it.
type Sender interface {
	Send(v interface{}) error
}

// Coordinator holds the single outstanding approval request and its
// per-action decisions. Requests that arrive while one is outstanding are
// queued and surfaced after the backend acknowledges the current batch.
type Coordinator struct {
	sender      Sender
	logger      logger.ILogger
	strictBatch bool
	onSubmit    func(Submission)
	now         func() time.Time

	mu       sync.Mutex
	pending  *Request
	slots    []*Decision
	queue    []Request
	awaiting *Submission
}

type Option func(*Coordinator)

// WithStrictBatch makes ApproveAll and RejectAll honour each action's
// allow-list instead of overriding it.
func WithStrictBatch(strict bool) Option {
	return func(c *Coordinator) { c.strictBatch = strict }
}

// WithOnSubmit registers a hook called after a batch has been sent.
func WithOnSubmit(fn func(Submission)) Option {
	return func(c *Coordinator) { c.onSubmit = fn }
}

func NewCoordinator(sender Sender, log logger.ILogger, opts ...Option) *Coordinator {
	c := &Coordinator{
		sender: sender,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleRequired accepts a new request. It returns false when the request
// was queued behind the current one.
func (c *Coordinator) HandleRequired(req Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = c.now()
	}

	if c.pending != nil || c.awaiting != nil {
		c.queue = append(c.queue, req)
		c.logger.Warn("Approval", "Approval request queued behind outstanding request", map[string]interface{}{
			"actions": len(req.Actions),
			"queued":  len(c.queue),
		})
		return false
	}

	c.activateLocked(req)
	return true
}

func (c *Coordinator) activateLocked(req Request) {
	c.pending = &req
	c.slots = make([]*Decision, len(req.Actions))
	c.logger.Info("Approval", "Approval request pending", map[string]interface{}{"actions": len(req.Actions)})
}

// HandleProcessed clears local state once the backend acknowledges a batch
// and promotes the next queued request. It returns the acknowledged batch,
// if this client submitted one.
func (c *Coordinator) HandleProcessed() *Submission {
	c.mu.Lock()
	defer c.mu.Unlock()

	ack := c.awaiting
	c.awaiting = nil

	if c.pending != nil {
		c.logger.Warn("Approval", "Backend processed a request this client never submitted", map[string]interface{}{
			"actions": len(c.pending.Actions),
		})
	}
	c.pending = nil
	c.slots = nil

	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.activateLocked(next)
	}
	return ack
}

// Pending returns a copy of the outstanding request, if any.
func (c *Coordinator) Pending() (*Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil, false
	}

	slots := make([]*Decision, len(c.slots))
	for i, d := range c.slots {
		if d != nil {
			dd := *d
			slots[i] = &dd
		}
	}
	req := *c.pending
	req.Actions = append([]Action(nil), c.pending.Actions...)
	req.AgentMessages = append([]AgentMessage(nil), c.pending.AgentMessages...)

	return &Pending{Request: req, Decisions: slots, Queued: len(c.queue)}, true
}

// AwaitingAck reports whether a submitted batch has not been acknowledged yet.
func (c *Coordinator) AwaitingAck() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting != nil
}

// RecordDecision fills slot index. When it fills the last empty slot the
// whole batch is sent in action order.
func (c *Coordinator) RecordDecision(index int, d Decision) error {
	return c.withLock(func() (*Submission, error) {
		if c.pending == nil {
			return nil, ErrNoPendingRequest
		}
		if index < 0 || index >= len(c.pending.Actions) {
			return nil, fmt.Errorf("%w: %d (request has %d actions)", ErrIndexOutOfRange, index, len(c.pending.Actions))
		}

		d, err := normalize(c.pending.Actions[index], d)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", index, err)
		}
		c.slots[index] = &d

		if !c.completeLocked() {
			return nil, nil
		}
		return c.submitLocked(c.collectLocked())
	})
}

// EditDecision parses text as the edited arguments for action index and
// records an approve-with-edits decision.
func (c *Coordinator) EditDecision(index int, text string) error {
	var parsed interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return &ValidationError{Index: index, Err: err}
	}
	if parsed == nil {
		return &ValidationError{Index: index, Err: errors.New("edited arguments must not be null")}
	}
	return c.RecordDecision(index, Decision{Type: DecisionApprove, EditedArguments: parsed})
}

// Submit resends a complete batch whose earlier send failed.
func (c *Coordinator) Submit() error {
	return c.withLock(func() (*Submission, error) {
		if c.pending == nil {
			return nil, ErrNoPendingRequest
		}
		if !c.completeLocked() {
			return nil, ErrIncomplete
		}
		return c.submitLocked(c.collectLocked())
	})
}

func (c *Coordinator) ApproveAll() error {
	return c.decideAll(DecisionApprove)
}

func (c *Coordinator) RejectAll() error {
	return c.decideAll(DecisionReject)
}

// decideAll sends a uniform batch without touching the slots. Unless strict
// mode is on, per-action allow-lists are overridden; each override is logged.
func (c *Coordinator) decideAll(kind DecisionType) error {
	return c.withLock(func() (*Submission, error) {
		if c.pending == nil {
			return nil, ErrNoPendingRequest
		}

		decisions := make([]Decision, len(c.pending.Actions))
		for i, action := range c.pending.Actions {
			if !action.Allows(kind) {
				if c.strictBatch {
					return nil, fmt.Errorf("action %d (%s): %w: %s", i, action.ToolName, ErrDecisionNotAllowed, kind)
				}
				c.logger.Warn("Approval", "Batch decision overrides action allow-list", map[string]interface{}{
					"index":    i,
					"tool":     action.ToolName,
					"decision": kind,
					"allowed":  action.ReviewConfig.AllowedDecisions,
				})
			}
			decisions[i] = Decision{Type: kind}
		}
		return c.submitLocked(decisions)
	})
}

// withLock runs fn under the lock and fires the submit hook afterwards, so
// hooks may call back into the coordinator.
func (c *Coordinator) withLock(fn func() (*Submission, error)) error {
	c.mu.Lock()
	sub, err := fn()
	c.mu.Unlock()

	if sub != nil && c.onSubmit != nil {
		c.onSubmit(*sub)
	}
	return err
}

func (c *Coordinator) completeLocked() bool {
	for _, d := range c.slots {
		if d == nil {
			return false
		}
	}
	return true
}

func (c *Coordinator) collectLocked() []Decision {
	out := make([]Decision, len(c.slots))
	for i, d := range c.slots {
		out[i] = *d
	}
	return out
}

func (c *Coordinator) submitLocked(decisions []Decision) (*Submission, error) {
	frame := DecisionFrame{Type: "approval_decision", Decisions: decisions}
	if err := c.sender.Send(frame); err != nil {
		c.logger.Error("Approval", "Failed to send decisions", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("send decisions: %w", err)
	}

	sub := Submission{
		Request:     *c.pending,
		Decisions:   decisions,
		SubmittedAt: c.now(),
	}
	c.awaiting = &sub
	c.pending = nil
	c.slots = nil

	c.logger.Info("Approval", "Decisions sent", map[string]interface{}{"count": len(decisions)})
	return &sub, nil
}

func normalize(action Action, d Decision) (Decision, error) {
	switch d.Type {
	case DecisionEdit:
		if d.EditedArguments == nil {
			return d, fmt.Errorf("%w: edit without arguments", ErrDecisionNotAllowed)
		}
		d.Type = DecisionApprove
	case DecisionApprove, DecisionReject:
	default:
		return d, fmt.Errorf("%w: unknown decision %q", ErrDecisionNotAllowed, d.Type)
	}

	if d.Type == DecisionReject && d.EditedArguments != nil {
		return d, fmt.Errorf("%w: reject cannot carry edits", ErrDecisionNotAllowed)
	}

	required := d.Type
	if d.IsEdit() {
		required = DecisionEdit
	}
	if !action.Allows(required) {
		return d, fmt.Errorf("%w: %s", ErrDecisionNotAllowed, required)
	}
	return d, nil
}
