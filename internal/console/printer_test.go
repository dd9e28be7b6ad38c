package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"legal-review-client/internal/approval"
	"legal-review-client/internal/session"
	"legal-review-client/internal/workflow"

	"github.com/stretchr/testify/assert"
)

func snapshot(entries []workflow.Entry, pending *session.ApprovalState) session.Snapshot {
	return session.Snapshot{
		Workflow: workflow.State{Timeline: entries},
		Approval: pending,
	}
}

func TestPrinterEchoesOnlyNewEntries(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []workflow.Entry{
		{Kind: workflow.KindSystem, Content: "Connected to session s-1", CreatedAt: at},
		{Kind: workflow.KindUser, Content: "Review the lease", CreatedAt: at},
	}
	p.Print(snapshot(entries, nil))
	p.Print(snapshot(entries, nil))

	entries = append(entries, workflow.Entry{Kind: workflow.KindError, Content: "tool timed out", CreatedAt: at})
	p.Print(snapshot(entries, nil))

	assert.Equal(t, strings.Join([]string{
		"[12:00:00] Connected to session s-1",
		"[12:00:00] you: Review the lease",
		"[12:00:00] error: tool timed out",
		"",
	}, "\n"), buf.String())
}

func TestPrinterAnnouncesEachApprovalOnce(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	pending := &session.ApprovalState{
		Actions: []approval.Action{
			{ToolName: approval.ToolGetDocuments},
			{ToolName: approval.ToolWriteFile},
		},
		ReceivedAt: time.Now(),
	}
	p.Print(snapshot(nil, pending))
	p.Print(snapshot(nil, pending))

	assert.Equal(t, "? approval required for 2 action(s): get_documents, write_file\n", buf.String())
}
