package view

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"legal-review-client/internal/approval"
)

var (
	ErrFileNotFound  = errors.New("file not found in workspace")
	ErrEditNoMatch   = errors.New("old_string not found in file")
	ErrEditAmbiguous = errors.New("old_string matches more than once; set replace_all")
	ErrUnsupportedOp = errors.New("tool does not modify the workspace")
	errMissingPath   = errors.New("file_path is required")
)

// File is one agent-produced artifact.
type File struct {
	Path       string    `json:"path"`
	Size       int       `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Content    string    `json:"content,omitempty"`
}

type fileArgs struct {
	FilePath   string `json:"file_path"`
	Content    string `json:"content"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

func parseFileArgs(raw json.RawMessage) (fileArgs, error) {
	var args fileArgs
	if len(raw) == 0 {
		return args, errMissingPath
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, err
	}
	return args, nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean("/" + p)
}

// Workspace is the client's copy of the agent's virtual filesystem.
type Workspace struct {
	mu    sync.RWMutex
	files map[string]*File
	now   func() time.Time
}

func NewWorkspace() *Workspace {
	return &Workspace{files: make(map[string]*File), now: time.Now}
}

// Put creates or replaces the file at p.
func (w *Workspace) Put(p, content string) File {
	p = normalizePath(p)

	w.mu.Lock()
	defer w.mu.Unlock()
	f := &File{Path: p, Size: len(content), ModifiedAt: w.now(), Content: content}
	w.files[p] = f
	return *f
}

func (w *Workspace) Get(p string) (File, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	f, ok := w.files[normalizePath(p)]
	if !ok {
		return File{}, false
	}
	return *f, true
}

// List returns every file ordered by path, without content.
func (w *Workspace) List() []File {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]File, 0, len(w.files))
	for _, f := range w.files {
		meta := *f
		meta.Content = ""
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (w *Workspace) Paths() []string {
	files := w.List()
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

// Apply replays an approved write_file or edit_file call. The arguments are
// the ones the backend will execute, edited ones included.
func (w *Workspace) Apply(tool string, raw json.RawMessage) (File, error) {
	args, err := parseFileArgs(raw)
	if err != nil {
		return File{}, fmt.Errorf("%s arguments: %w", tool, err)
	}
	if args.FilePath == "" {
		return File{}, fmt.Errorf("%s: %w", tool, errMissingPath)
	}

	switch tool {
	case approval.ToolWriteFile:
		return w.Put(args.FilePath, args.Content), nil
	case approval.ToolEditFile:
		return w.edit(args)
	default:
		return File{}, fmt.Errorf("%s: %w", tool, ErrUnsupportedOp)
	}
}

func (w *Workspace) edit(args fileArgs) (File, error) {
	p := normalizePath(args.FilePath)

	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.files[p]
	if !ok {
		return File{}, fmt.Errorf("%s: %w", p, ErrFileNotFound)
	}

	n := strings.Count(f.Content, args.OldString)
	switch {
	case args.OldString == "" || n == 0:
		return File{}, fmt.Errorf("%s: %w", p, ErrEditNoMatch)
	case n > 1 && !args.ReplaceAll:
		return File{}, fmt.Errorf("%s: %w", p, ErrEditAmbiguous)
	}

	content := strings.Replace(f.Content, args.OldString, args.NewString, 1)
	if args.ReplaceAll {
		content = strings.ReplaceAll(f.Content, args.OldString, args.NewString)
	}
	updated := &File{Path: p, Size: len(content), ModifiedAt: w.now(), Content: content}
	w.files[p] = updated
	return *updated, nil
}

// resultFile accepts both a plain string and the {content: [lines]} record
// the agent filesystem uses.
type resultFile struct {
	content string
}

func (r *resultFile) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.content = s
		return nil
	}

	var rec struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if err := json.Unmarshal(rec.Content, &s); err == nil {
		r.content = s
		return nil
	}
	var lines []string
	if err := json.Unmarshal(rec.Content, &lines); err != nil {
		return fmt.Errorf("unsupported file content: %w", err)
	}
	r.content = strings.Join(lines, "\n")
	return nil
}

// MergeResult loads the files map of an analysis_complete result. It
// returns the number of files stored.
func (w *Workspace) MergeResult(result json.RawMessage) (int, error) {
	if len(result) == 0 {
		return 0, nil
	}

	var body struct {
		Files map[string]resultFile `json:"files"`
	}
	if err := json.Unmarshal(result, &body); err != nil {
		return 0, fmt.Errorf("analysis result files: %w", err)
	}
	for p, f := range body.Files {
		w.Put(p, f.content)
	}
	return len(body.Files), nil
}
