package layout

import "sync"

type Mode string

const (
	ModeDefault        Mode = "default"
	ModeDocumentDetail Mode = "document-detail"
	ModeFileDetail     Mode = "file-detail"
)

// Widths are panel widths in percent, left to right.
type Widths struct {
	Left   int `json:"left"`
	Center int `json:"center"`
	Right  int `json:"right"`
}

type Layout struct {
	Mode   Mode   `json:"mode"`
	Widths Widths `json:"widths"`
}

var presets = map[Mode]Widths{
	ModeDefault:        {Left: 20, Center: 60, Right: 20},
	ModeDocumentDetail: {Left: 40, Center: 40, Right: 20},
	ModeFileDetail:     {Left: 20, Center: 40, Right: 40},
}

// Compute maps the selection flags to one of the three fixed layouts. A
// document selection wins if both flags are somehow set.
func Compute(documentSelected, fileSelected bool) Layout {
	mode := ModeDefault
	switch {
	case documentSelected:
		mode = ModeDocumentDetail
	case fileSelected:
		mode = ModeFileDetail
	}
	return Layout{Mode: mode, Widths: presets[mode]}
}

// Current is the selection at one instant. At most one field is set.
type Current struct {
	DocumentID int    `json:"document_id,omitempty"`
	FilePath   string `json:"file_path,omitempty"`
}

func (c Current) Layout() Layout {
	return Compute(c.DocumentID != 0, c.FilePath != "")
}

// Selection is the only place document and file selections are changed.
// Selecting one clears the other under the same lock.
type Selection struct {
	mu  sync.RWMutex
	cur Current
}

func (s *Selection) SelectDocument(docID int) Current {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Current{DocumentID: docID}
	return s.cur
}

func (s *Selection) SelectFile(path string) Current {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Current{FilePath: path}
	return s.cur
}

func (s *Selection) Clear() Current {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Current{}
	return s.cur
}

func (s *Selection) Current() Current {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}
