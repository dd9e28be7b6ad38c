package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"legal-review-client/internal/approval"
	"legal-review-client/internal/pkg/logger"
)

var (
	ErrEmptyMessage       = errors.New("analysis message must not be empty")
	ErrAnalysisInProgress = errors.New("an analysis is already running")
)

type Status string

const (
	StatusIdle             Status = "idle"
	StatusRunning          Status = "running"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusComplete         Status = "complete"
	StatusError            Status = "error"
)

type Sender interface {
	Send(v interface{}) error
}

type startFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// State is the render state of the workflow panel.
type State struct {
	SessionID string          `json:"session_id,omitempty"`
	Status    Status          `json:"status"`
	Timeline  []Entry         `json:"timeline"`
	Todos     []Todo          `json:"todos"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// View owns the conversation timeline, the todo list and the analysis status.
type View struct {
	sender   Sender
	logger   logger.ILogger
	timeline *Timeline

	mu        sync.RWMutex
	status    Status
	todos     []Todo
	sessionID string
	result    json.RawMessage
}

func NewView(sender Sender, log logger.ILogger) *View {
	return &View{
		sender:   sender,
		logger:   log,
		timeline: NewTimeline(),
		status:   StatusIdle,
	}
}

func (v *View) Timeline() *Timeline {
	return v.timeline
}

func (v *View) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// StartAnalysis sends a start_analysis frame and records the request in the
// timeline. Nothing is recorded if the frame could not be sent.
func (v *View) StartAnalysis(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status == StatusRunning || v.status == StatusAwaitingApproval {
		return ErrAnalysisInProgress
	}
	if err := v.sender.Send(startFrame{Type: "start_analysis", Message: message}); err != nil {
		return fmt.Errorf("start analysis: %w", err)
	}

	v.timeline.Append(KindUser, message)
	v.status = StatusRunning
	v.result = nil
	v.logger.Info("Workflow", "Analysis requested", map[string]interface{}{"length": len(message)})
	return nil
}

func (v *View) OnConnected(sessionID string) {
	v.mu.Lock()
	v.sessionID = sessionID
	v.mu.Unlock()

	v.timeline.Append(KindSystem, fmt.Sprintf("Connected to session %s", sessionID))
}

func (v *View) OnAnalysisStarted(message string) {
	v.setStatus(StatusRunning)
	if message == "" {
		message = "Analysis started"
	}
	v.timeline.Append(KindSystem, message)
}

func (v *View) OnAgentMessage(content string) {
	if content == "" {
		return
	}
	v.timeline.Append(KindAgent, content)
}

// OnApprovalRequired records the agent's commentary for the batch and picks
// up any todo list the agent proposed in it.
func (v *View) OnApprovalRequired(req approval.Request) {
	for _, m := range req.AgentMessages {
		v.OnAgentMessage(m.Content)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.status = StatusAwaitingApproval
	for _, a := range req.Actions {
		if a.ToolName != approval.ToolWriteTodos {
			continue
		}
		todos, err := ParseTodos(a.Arguments)
		if err != nil {
			v.logger.Warn("Workflow", "Ignoring malformed todo list", map[string]interface{}{"error": err.Error()})
			continue
		}
		v.todos = todos
	}
}

// OnApprovalProcessed resumes the run. morePending is set when a queued
// request took the acknowledged one's place.
func (v *View) OnApprovalProcessed(message string, morePending bool) {
	v.mu.Lock()
	if v.status == StatusAwaitingApproval && !morePending {
		v.status = StatusRunning
	}
	v.mu.Unlock()

	if message == "" {
		message = "Decisions processed"
	}
	v.timeline.Append(KindSystem, message)
}

func (v *View) OnAnalysisComplete(message string, result json.RawMessage) {
	v.mu.Lock()
	v.status = StatusComplete
	if len(result) > 0 && string(result) != "null" {
		v.result = append(json.RawMessage(nil), result...)
	}
	v.mu.Unlock()

	if message == "" {
		message = "Analysis complete"
	}
	v.timeline.Append(KindSystem, message)
}

// OnError records a backend-reported error. The session stays usable; an
// in-flight analysis is marked as errored so a new one can be started.
func (v *View) OnError(message string) {
	v.mu.Lock()
	if v.status == StatusRunning || v.status == StatusAwaitingApproval {
		v.status = StatusError
	}
	v.mu.Unlock()

	if message == "" {
		message = "Unknown error"
	}
	v.timeline.Append(KindError, message)
}

func (v *View) OnConnectionFailed(message string) {
	if message == "" {
		message = "Connection lost"
	}
	v.timeline.Append(KindError, message)
}

func (v *View) Snapshot() State {
	v.mu.RLock()
	defer v.mu.RUnlock()

	todos := append([]Todo{}, v.todos...)
	return State{
		SessionID: v.sessionID,
		Status:    v.status,
		Timeline:  v.timeline.Entries(),
		Todos:     todos,
		Result:    v.result,
	}
}

func (v *View) setStatus(s Status) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
}
