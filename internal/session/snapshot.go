package session

import (
	"time"

	"legal-review-client/internal/approval"
	"legal-review-client/internal/channel"
	"legal-review-client/internal/layout"
	"legal-review-client/internal/view"
	"legal-review-client/internal/workflow"
)

// ApprovalState is the pending request as the workflow panel shows it.
type ApprovalState struct {
	Actions       []approval.Action       `json:"actions"`
	AgentMessages []approval.AgentMessage `json:"agent_messages"`
	Decisions     []*approval.Decision    `json:"decisions"`
	Remaining     int                     `json:"remaining"`
	Queued        int                     `json:"queued"`
	ReceivedAt    time.Time               `json:"received_at"`
}

// Snapshot is the complete render state of the three panels.
type Snapshot struct {
	SessionID    string              `json:"session_id"`
	Connection   channel.State       `json:"connection"`
	CanInteract  bool                `json:"can_interact"`
	Layout       layout.Layout       `json:"layout"`
	Selection    layout.Current      `json:"selection"`
	Workflow     workflow.State      `json:"workflow"`
	Approval     *ApprovalState      `json:"approval"`
	AwaitingAck  bool                `json:"awaiting_ack"`
	Documents    view.DocumentsState `json:"documents"`
	CatalogError string              `json:"catalog_error,omitempty"`
	Files        view.FilesState     `json:"files"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	sessionID, catalogErr := c.sessionID, c.catalogErr
	c.mu.RUnlock()

	sel := c.selection.Current()
	conn := c.channel.State()

	var actions []approval.Action
	var pending *ApprovalState
	if p, ok := c.coordinator.Pending(); ok {
		actions = p.Request.Actions
		pending = &ApprovalState{
			Actions:       p.Request.Actions,
			AgentMessages: p.Request.AgentMessages,
			Decisions:     p.Decisions,
			Remaining:     p.Remaining(),
			Queued:        p.Queued,
			ReceivedAt:    p.Request.ReceivedAt,
		}
	}

	return Snapshot{
		SessionID:    sessionID,
		Connection:   conn,
		CanInteract:  conn == channel.StateOpen,
		Layout:       sel.Layout(),
		Selection:    sel,
		Workflow:     c.workflow.Snapshot(),
		Approval:     pending,
		AwaitingAck:  c.coordinator.AwaitingAck(),
		Documents:    c.documents.State(sel.DocumentID, actions),
		CatalogError: catalogErr,
		Files:        c.files.State(sel.FilePath, actions),
		GeneratedAt:  time.Now(),
	}
}
