package view

import (
	"fmt"

	"legal-review-client/internal/approval"
)

// FilesState is what the file panel renders.
type FilesState struct {
	Mode         Mode          `json:"mode"`
	Files        []File        `json:"files"`
	Tree         *Node         `json:"tree"`
	TreeText     string        `json:"tree_text"`
	SelectedPath string        `json:"selected_path,omitempty"`
	Selected     *File         `json:"selected,omitempty"`
	LoadError    string        `json:"load_error,omitempty"`
	Highlight    FileHighlight `json:"highlight"`
}

// Files renders the workspace panel.
type Files struct {
	workspace *Workspace
}

func NewFiles(ws *Workspace) *Files {
	return &Files{workspace: ws}
}

func (f *Files) Workspace() *Workspace {
	return f.workspace
}

// Lookup resolves a selectable path.
func (f *Files) Lookup(path string) (File, error) {
	file, ok := f.workspace.Get(path)
	if !ok {
		return File{}, fmt.Errorf("%s: %w", normalizePath(path), ErrFileNotFound)
	}
	return file, nil
}

func (f *Files) State(selectedPath string, actions []approval.Action) FilesState {
	paths := f.workspace.Paths()
	tree := BuildTree(paths)

	s := FilesState{
		Mode:      ModeBrowsing,
		Files:     f.workspace.List(),
		Tree:      tree,
		TreeText:  tree.Render(0),
		Highlight: DeriveFileHighlight(actions),
	}
	if selectedPath == "" {
		return s
	}

	s.Mode = ModeDetail
	s.SelectedPath = normalizePath(selectedPath)
	if file, err := f.Lookup(selectedPath); err != nil {
		// Selected ahead of the write landing; shown as pending.
		s.LoadError = err.Error()
	} else {
		s.Selected = &file
	}
	return s
}
