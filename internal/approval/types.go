package approval

import (
	"encoding/json"
	"time"
)

type DecisionType string

const (
	DecisionApprove DecisionType = "approve"
	DecisionEdit    DecisionType = "edit"
	DecisionReject  DecisionType = "reject"
)

// Tool identifiers the views know how to highlight.
const (
	ToolGetDocuments = "get_documents"
	ToolGetPageText  = "get_page_text"
	ToolWriteFile    = "write_file"
	ToolEditFile     = "edit_file"
	ToolTask         = "task"
	ToolWriteTodos   = "write_todos"
)

type ReviewConfig struct {
	ActionName       string         `json:"action_name,omitempty"`
	AllowedDecisions []DecisionType `json:"allowed_decisions,omitempty"`
}

// ActionContext is the enrichment the backend attaches to an action. Which
// fields are set depends on the tool.
type ActionContext struct {
	Tool      string            `json:"tool,omitempty"`
	Documents []ContextDocument `json:"documents,omitempty"`
	DocID     int               `json:"doc_id,omitempty"`
	Pages     []int             `json:"pages,omitempty"`
	PageNums  []int             `json:"page_nums,omitempty"`
	FilePath  string            `json:"file_path,omitempty"`
	File      *ContextFile      `json:"file,omitempty"`
}

type ContextDocument struct {
	DocID            int    `json:"doc_id"`
	Filename         string `json:"filename,omitempty"`
	SignificantPages []int  `json:"significant_pages,omitempty"`
}

type ContextFile struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists,omitempty"`
}

// PageNumbers returns the pages named by a get_page_text context.
func (c *ActionContext) PageNumbers() []int {
	if c == nil {
		return nil
	}
	if len(c.Pages) > 0 {
		return c.Pages
	}
	return c.PageNums
}

// Path returns the file a write_file or edit_file context points at.
func (c *ActionContext) Path() string {
	if c == nil {
		return ""
	}
	if c.FilePath != "" {
		return c.FilePath
	}
	if c.File != nil {
		return c.File.Path
	}
	return ""
}

type Action struct {
	ActionID     string          `json:"action_id,omitempty"`
	ToolName     string          `json:"tool_name"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	Context      *ActionContext  `json:"context,omitempty"`
	ReviewConfig ReviewConfig    `json:"review_config"`
}

// Allows reports whether d is permitted. An empty allow-list permits everything.
func (a Action) Allows(d DecisionType) bool {
	if len(a.ReviewConfig.AllowedDecisions) == 0 {
		return true
	}
	for _, allowed := range a.ReviewConfig.AllowedDecisions {
		if allowed == d {
			return true
		}
	}
	return false
}

type AgentMessage struct {
	Content string `json:"content"`
}

// Request is one approval_required batch.
type Request struct {
	Actions       []Action       `json:"actions"`
	AgentMessages []AgentMessage `json:"agent_messages"`
	ReceivedAt    time.Time      `json:"received_at"`
}

// Decision is the human resolution of one action. Edits are sent as an
// approve carrying the edited arguments.
type Decision struct {
	Type            DecisionType `json:"decision"`
	EditedArguments interface{}  `json:"edited_arguments,omitempty"`
}

func Approve() Decision { return Decision{Type: DecisionApprove} }

func Reject() Decision { return Decision{Type: DecisionReject} }

func (d Decision) IsEdit() bool {
	return d.EditedArguments != nil
}

// DecisionFrame is the outbound approval_decision message.
type DecisionFrame struct {
	Type      string     `json:"type"`
	Decisions []Decision `json:"decisions"`
}

// Submission is a complete decision batch that has been sent.
type Submission struct {
	Request     Request    `json:"request"`
	Decisions   []Decision `json:"decisions"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// Pending is a read-only copy of the outstanding request and its slots.
// A nil slot means the action is still undecided.
type Pending struct {
	Request   Request     `json:"request"`
	Decisions []*Decision `json:"decisions"`
	Queued    int         `json:"queued"`
}

func (p *Pending) Remaining() int {
	n := 0
	for _, d := range p.Decisions {
		if d == nil {
			n++
		}
	}
	return n
}
