package view

import (
	"slices"

	"legal-review-client/internal/approval"
)

var (
	// DocumentTools are the tools the document panel reacts to.
	DocumentTools = []string{approval.ToolGetDocuments, approval.ToolGetPageText}
	// FileTools are the tools the file panel reacts to.
	FileTools = []string{approval.ToolWriteFile, approval.ToolEditFile}
)

type HighlightSource string

const (
	SourceNone         HighlightSource = "none"
	SourceAction       HighlightSource = "action"
	SourceSignificance HighlightSource = "significance"
)

// RelevantAction returns the first action whose tool is in tools, with its
// index. ok is false when no action matches.
func RelevantAction(actions []approval.Action, tools []string) (index int, action approval.Action, ok bool) {
	for i, a := range actions {
		for _, t := range tools {
			if a.ToolName == t {
				return i, a, true
			}
		}
	}
	return -1, approval.Action{}, false
}

// DocumentHighlight is the set of pages the document panel marks.
type DocumentHighlight struct {
	Source      HighlightSource `json:"source"`
	ActionIndex int             `json:"action_index"`
	Tool        string          `json:"tool,omitempty"`
	DocID       int             `json:"doc_id,omitempty"`
	Pages       []int           `json:"pages"`
	// OtherDocuments lists the further documents a get_documents action
	// touches. Only the first document's pages are highlighted.
	OtherDocuments []int `json:"other_documents,omitempty"`
}

// DeriveDocumentHighlight computes the document panel highlight for the
// relevant action. significant is the fallback used when no action applies.
func DeriveDocumentHighlight(actions []approval.Action, significant []int) DocumentHighlight {
	idx, a, ok := RelevantAction(actions, DocumentTools)
	if !ok {
		return fallbackHighlight(significant)
	}

	h := DocumentHighlight{
		Source:      SourceAction,
		ActionIndex: idx,
		Tool:        a.ToolName,
		Pages:       []int{},
	}
	if a.Context == nil {
		return h
	}

	switch a.ToolName {
	case approval.ToolGetDocuments:
		if len(a.Context.Documents) == 0 {
			return h
		}
		first := a.Context.Documents[0]
		h.DocID = first.DocID
		h.Pages = sortedUnique(first.SignificantPages)
		for _, d := range a.Context.Documents[1:] {
			h.OtherDocuments = append(h.OtherDocuments, d.DocID)
		}
	case approval.ToolGetPageText:
		h.DocID = a.Context.DocID
		h.Pages = sortedUnique(a.Context.PageNumbers())
	}
	return h
}

func fallbackHighlight(significant []int) DocumentHighlight {
	if len(significant) == 0 {
		return DocumentHighlight{Source: SourceNone, ActionIndex: -1, Pages: []int{}}
	}
	return DocumentHighlight{Source: SourceSignificance, ActionIndex: -1, Pages: sortedUnique(significant)}
}

// AppliesTo reports whether the highlight targets docID. A highlight that
// names no document applies to whichever document is shown.
func (h DocumentHighlight) AppliesTo(docID int) bool {
	return h.DocID == 0 || h.DocID == docID
}

// FileHighlight is the single path the file panel marks.
type FileHighlight struct {
	Source      HighlightSource `json:"source"`
	ActionIndex int             `json:"action_index"`
	Tool        string          `json:"tool,omitempty"`
	Path        string          `json:"path,omitempty"`
}

func DeriveFileHighlight(actions []approval.Action) FileHighlight {
	idx, a, ok := RelevantAction(actions, FileTools)
	if !ok {
		return FileHighlight{Source: SourceNone, ActionIndex: -1}
	}

	path := a.Context.Path()
	if path == "" {
		// Fall back to the tool's own arguments.
		if args, err := parseFileArgs(a.Arguments); err == nil {
			path = args.FilePath
		}
	}
	return FileHighlight{
		Source:      SourceAction,
		ActionIndex: idx,
		Tool:        a.ToolName,
		Path:        normalizePath(path),
	}
}

func sortedUnique(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, n := range in {
		if n < 1 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
