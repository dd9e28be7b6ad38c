package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flag decodes the backend's significance marker, which arrives either as a
// JSON bool or as a 0/1 integer.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", "1":
		*f = true
		return nil
	case "false", "0", "null":
		*f = false
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("significance flag: unexpected value %s", data)
	}
	*f = n != 0
	return nil
}

// Document is one catalog entry.
type Document struct {
	DocID                   int    `json:"doc_id"`
	Filename                string `json:"filename"`
	Summary                 string `json:"summdesc"`
	TotalPages              int    `json:"total_pages"`
	LegallySignificantPages int    `json:"legally_significant_pages"`
}

type Page struct {
	PageNum            int    `json:"page_num"`
	Summary            string `json:"summdesc"`
	LegallySignificant Flag   `json:"legally_significant"`
	Text               string `json:"page_text,omitempty"`
}

// DocumentDetail is a document with its pages.
type DocumentDetail struct {
	Document
	Pages []Page `json:"pages"`
}

// SignificantPages lists the pages flagged as legally significant, in page order.
func (d *DocumentDetail) SignificantPages() []int {
	var out []int
	for _, p := range d.Pages {
		if p.LegallySignificant {
			out = append(out, p.PageNum)
		}
	}
	return out
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type documentsResponse struct {
	Documents []Document `json:"documents"`
}

// detailResponse accepts both the flat shape and the wrapped one
// {document:{...}, pages, significant_pages}.
type detailResponse struct {
	Document
	Wrapped          *Document `json:"document"`
	Pages            []Page    `json:"pages"`
	SignificantPages []int     `json:"significant_pages"`
}

func (r detailResponse) detail() *DocumentDetail {
	doc := r.Document
	if r.Wrapped != nil {
		doc = *r.Wrapped
	}

	pages := r.Pages
	if len(r.SignificantPages) > 0 {
		marked := make(map[int]bool, len(r.SignificantPages))
		for _, n := range r.SignificantPages {
			marked[n] = true
		}
		pages = make([]Page, len(r.Pages))
		for i, p := range r.Pages {
			if marked[p.PageNum] {
				p.LegallySignificant = true
			}
			pages[i] = p
		}
	}

	if doc.TotalPages == 0 {
		doc.TotalPages = len(pages)
	}
	detail := &DocumentDetail{Document: doc, Pages: pages}
	if doc.LegallySignificantPages == 0 {
		detail.LegallySignificantPages = len(detail.SignificantPages())
	}
	return detail
}
