package session

import (
	"encoding/json"

	"legal-review-client/internal/approval"
	"legal-review-client/internal/channel"
)

func (c *Client) subscribe() {
	routes := []struct {
		event   string
		handler channel.Handler
	}{
		{channel.EventConnected, c.onConnected},
		{channel.EventAnalysisStarted, c.onAnalysisStarted},
		{channel.EventAgentMessage, c.onAgentMessage},
		{channel.EventApprovalRequired, c.onApprovalRequired},
		{channel.EventApprovalProcessed, c.onApprovalProcessed},
		{channel.EventAnalysisComplete, c.onAnalysisComplete},
		{channel.EventError, c.onError},
		{channel.EventConnectionState, c.onConnectionState},
		{channel.EventConnectionFailed, c.onConnectionFailed},
	}

	subs := make([]*channel.Subscription, 0, len(routes))
	for _, r := range routes {
		event, handler := r.event, r.handler
		subs = append(subs, c.channel.Subscribe(event, func(msg channel.Message) {
			handler(msg)
			c.notify(event)
		}))
	}

	c.mu.Lock()
	old := c.subs
	c.subs = subs
	c.mu.Unlock()

	for _, s := range old {
		s.Unsubscribe()
	}
}

func (c *Client) onConnected(msg channel.Message) {
	var body struct {
		SessionID      string `json:"session_id"`
		SessionIDCamel string `json:"sessionId"`
	}
	_ = msg.Decode(&body)

	id := body.SessionID
	if id == "" {
		id = body.SessionIDCamel
	}
	if id == "" {
		id = c.SessionID()
	}
	c.workflow.OnConnected(id)
}

func (c *Client) onAnalysisStarted(msg channel.Message) {
	c.workflow.OnAnalysisStarted(decodeMessage(msg))
}

func (c *Client) onAgentMessage(msg channel.Message) {
	var body struct {
		Content string `json:"content"`
	}
	_ = msg.Decode(&body)
	c.workflow.OnAgentMessage(body.Content)
}

func (c *Client) onApprovalRequired(msg channel.Message) {
	var req approval.Request
	if err := msg.Decode(&req); err != nil {
		c.logger.Warn("Session", "Dropping malformed approval request", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(req.Actions) == 0 {
		c.logger.Warn("Session", "Ignoring approval request without actions", nil)
		return
	}

	// A queued request reaches the workflow panel when it is promoted.
	if c.coordinator.HandleRequired(req) {
		c.workflow.OnApprovalRequired(req)
	}
}

func (c *Client) onApprovalProcessed(msg channel.Message) {
	ack := c.coordinator.HandleProcessed()
	if ack != nil {
		c.applyApproved(*ack)
	}

	next, morePending := c.coordinator.Pending()
	c.workflow.OnApprovalProcessed(decodeMessage(msg), morePending)
	if morePending {
		c.workflow.OnApprovalRequired(next.Request)
	}
}

// applyApproved mirrors approved file writes into the local workspace.
func (c *Client) applyApproved(sub approval.Submission) {
	for i, action := range sub.Request.Actions {
		if i >= len(sub.Decisions) || sub.Decisions[i].Type != approval.DecisionApprove {
			continue
		}
		if action.ToolName != approval.ToolWriteFile && action.ToolName != approval.ToolEditFile {
			continue
		}

		f, err := c.files.Workspace().Apply(action.ToolName, editedArguments(action, sub.Decisions[i]))
		if err != nil {
			c.logger.Warn("Session", "Could not mirror file change", map[string]interface{}{
				"tool":  action.ToolName,
				"error": err.Error(),
			})
			continue
		}
		c.logger.Debug("Session", "Workspace file updated", map[string]interface{}{"path": f.Path, "size": f.Size})
	}
}

func (c *Client) onAnalysisComplete(msg channel.Message) {
	var body struct {
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	_ = msg.Decode(&body)

	if n, err := c.files.Workspace().MergeResult(body.Result); err != nil {
		c.logger.Warn("Session", "Analysis result files unreadable", map[string]interface{}{"error": err.Error()})
	} else if n > 0 {
		c.logger.Info("Session", "Workspace synced from analysis result", map[string]interface{}{"files": n})
	}
	c.workflow.OnAnalysisComplete(body.Message, body.Result)
}

func (c *Client) onError(msg channel.Message) {
	m := decodeMessage(msg)
	c.logger.Warn("Session", "Backend reported an error", map[string]interface{}{"message": m})
	c.workflow.OnError(m)
}

func (c *Client) onConnectionState(msg channel.Message) {
	var body channel.StatePayload
	_ = msg.Decode(&body)
	c.logger.Debug("Session", "Connection state changed", map[string]interface{}{"state": body.State})
}

func (c *Client) onConnectionFailed(msg channel.Message) {
	c.workflow.OnConnectionFailed(decodeMessage(msg))
}
