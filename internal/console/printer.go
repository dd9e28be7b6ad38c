package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"legal-review-client/internal/session"
	"legal-review-client/internal/workflow"

	"github.com/fatih/color"
)

// Printer echoes the session to a terminal: new timeline entries as they
// arrive and a summary line whenever a new approval request is waiting.
type Printer struct {
	out io.Writer

	system *color.Color
	agent  *color.Color
	user   *color.Color
	fail   *color.Color
	prompt *color.Color

	mu           sync.Mutex
	printed      int
	lastApproval time.Time
}

func NewPrinter(out io.Writer, plain bool) *Printer {
	p := &Printer{
		out:    out,
		system: color.New(color.FgCyan),
		agent:  color.New(color.FgWhite),
		user:   color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed),
		prompt: color.New(color.FgYellow, color.Bold),
	}
	if plain {
		for _, c := range []*color.Color{p.system, p.agent, p.user, p.fail, p.prompt} {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) Print(s session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range s.Workflow.Timeline[min(p.printed, len(s.Workflow.Timeline)):] {
		p.entry(e)
	}
	p.printed = len(s.Workflow.Timeline)

	if s.Approval != nil && !s.Approval.ReceivedAt.Equal(p.lastApproval) {
		p.lastApproval = s.Approval.ReceivedAt
		tools := make([]string, len(s.Approval.Actions))
		for i, a := range s.Approval.Actions {
			tools[i] = a.ToolName
		}
		p.prompt.Fprintf(p.out, "? approval required for %d action(s): %s\n", len(tools), strings.Join(tools, ", "))
	}
}

func (p *Printer) entry(e workflow.Entry) {
	stamp := e.CreatedAt.Format("15:04:05")
	switch e.Kind {
	case workflow.KindUser:
		p.user.Fprintf(p.out, "[%s] you: %s\n", stamp, e.Content)
	case workflow.KindAgent:
		p.agent.Fprintf(p.out, "[%s] agent: %s\n", stamp, e.Content)
	case workflow.KindError:
		p.fail.Fprintf(p.out, "[%s] error: %s\n", stamp, e.Content)
	default:
		p.system.Fprintf(p.out, "[%s] %s\n", stamp, e.Content)
	}
}

// Banner prints the startup line.
func (p *Printer) Banner(sessionID, addr string) {
	p.system.Fprintf(p.out, "Review session %s\n", sessionID)
	fmt.Fprintf(p.out, "Bridge listening on %s\n", addr)
}
