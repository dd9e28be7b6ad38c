package view

import (
	"context"
	"sync"

	"legal-review-client/internal/api"
	"legal-review-client/internal/approval"
	"legal-review-client/internal/pkg/logger"
)

type Mode string

const (
	ModeBrowsing Mode = "browsing"
	ModeDetail   Mode = "detail"
)

// DocumentFetcher loads a document with its pages.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, docID int) (*api.DocumentDetail, error)
}

// DocumentStore caches fetched details.
type DocumentStore interface {
	Save(doc *api.DocumentDetail)
	Get(docID int) (*api.DocumentDetail, bool)
	Delete(docID int)
	Flush()
}

// DocumentsState is what the document panel renders.
type DocumentsState struct {
	Mode       Mode                `json:"mode"`
	Catalog    []api.Document      `json:"catalog"`
	SelectedID int                 `json:"selected_id,omitempty"`
	Detail     *api.DocumentDetail `json:"detail,omitempty"`
	Loading    bool                `json:"loading"`
	LoadError  string              `json:"load_error,omitempty"`
	Highlight  DocumentHighlight   `json:"highlight"`
}

// Documents holds the catalog and the detail cache behind the document panel.
type Documents struct {
	fetcher DocumentFetcher
	store   DocumentStore
	logger  logger.ILogger

	mu       sync.RWMutex
	catalog  []api.Document
	loading  map[int]bool
	loadErrs map[int]string
}

func NewDocuments(fetcher DocumentFetcher, store DocumentStore, log logger.ILogger) *Documents {
	return &Documents{
		fetcher:  fetcher,
		store:    store,
		logger:   log,
		loading:  make(map[int]bool),
		loadErrs: make(map[int]string),
	}
}

// SetCatalog replaces the catalog. Cached details of documents that are no
// longer listed are dropped.
func (d *Documents) SetCatalog(docs []api.Document) {
	listed := make(map[int]bool, len(docs))
	for _, doc := range docs {
		listed[doc.DocID] = true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, old := range d.catalog {
		if !listed[old.DocID] {
			d.store.Delete(old.DocID)
			delete(d.loadErrs, old.DocID)
		}
	}
	d.catalog = append([]api.Document(nil), docs...)
}

// Invalidate forgets every cached detail and load error so the next Load
// goes to the backend.
func (d *Documents) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.Flush()
	d.loadErrs = make(map[int]string)
}

func (d *Documents) Catalog() []api.Document {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]api.Document{}, d.catalog...)
}

// Load returns the detail for docID, fetching it on a cache miss. A failure
// is kept as the document's visible load error until the next attempt.
func (d *Documents) Load(ctx context.Context, docID int) (*api.DocumentDetail, error) {
	if doc, ok := d.store.Get(docID); ok {
		return doc, nil
	}

	d.mu.Lock()
	d.loading[docID] = true
	delete(d.loadErrs, docID)
	d.mu.Unlock()

	doc, err := d.fetcher.GetDocument(ctx, docID)

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.loading, docID)
	if err != nil {
		d.loadErrs[docID] = err.Error()
		d.logger.Error("Documents", "Failed to load document", map[string]interface{}{"doc_id": docID, "error": err.Error()})
		return nil, err
	}
	d.store.Save(doc)
	return doc, nil
}

// State renders the panel for the current selection (0 for none) and the
// pending actions, if any.
func (d *Documents) State(selectedID int, actions []approval.Action) DocumentsState {
	d.mu.RLock()
	s := DocumentsState{
		Mode:       ModeBrowsing,
		Catalog:    append([]api.Document{}, d.catalog...),
		SelectedID: selectedID,
		Loading:    d.loading[selectedID],
		LoadError:  d.loadErrs[selectedID],
	}
	d.mu.RUnlock()

	if selectedID == 0 {
		s.SelectedID = 0
		s.Loading = false
		s.LoadError = ""
		s.Highlight = DeriveDocumentHighlight(actions, nil)
		return s
	}

	s.Mode = ModeDetail
	var significant []int
	if doc, ok := d.store.Get(selectedID); ok {
		s.Detail = doc
		significant = doc.SignificantPages()
	}

	h := DeriveDocumentHighlight(actions, significant)
	if h.Source == SourceAction && !h.AppliesTo(selectedID) {
		// The action targets another document; keep this one's own markers
		// and point at the targeted one.
		other := h.DocID
		h = fallbackHighlight(significant)
		h.OtherDocuments = []int{other}
	}
	s.Highlight = h
	return s
}
