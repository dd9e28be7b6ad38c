package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"legal-review-client/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, logger.NewNopLogger(),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func TestCreateAndDeleteSession(t *testing.T) {
	var deleted string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "abc-123"})
	})
	mux.HandleFunc("DELETE /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = r.PathValue("id")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	})
	c := newTestClient(t, mux)

	id, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	require.NoError(t, c.DeleteSession(context.Background(), id))
	assert.Equal(t, "abc-123", deleted)
}

func TestCreateSessionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.CreateSession(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListDocuments(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/documents", r.URL.Path)
		_, _ = w.Write([]byte(`{"documents":[{"doc_id":1,"filename":"lease.pdf","summdesc":"Office lease","total_pages":10,"legally_significant_pages":3}]}`))
	}))

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, Document{DocID: 1, Filename: "lease.pdf", Summary: "Office lease", TotalPages: 10, LegallySignificantPages: 3}, docs[0])
}

func TestGetDocumentShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "flat",
			body: `{"doc_id":7,"filename":"nda.pdf","summdesc":"NDA","pages":[
				{"page_num":1,"summdesc":"cover","legally_significant":false},
				{"page_num":2,"summdesc":"terms","legally_significant":true},
				{"page_num":3,"summdesc":"signatures","legally_significant":1}]}`,
		},
		{
			name: "wrapped",
			body: `{"document":{"doc_id":7,"filename":"nda.pdf","summdesc":"NDA","total_pages":3},
				"pages":[
				{"page_num":1,"summdesc":"cover","legally_significant":0},
				{"page_num":2,"summdesc":"terms","legally_significant":0},
				{"page_num":3,"summdesc":"signatures","legally_significant":0}],
				"significant_pages":[2,3]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/documents/7", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))

			doc, err := c.GetDocument(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, 7, doc.DocID)
			assert.Equal(t, "nda.pdf", doc.Filename)
			assert.Equal(t, 3, doc.TotalPages)
			assert.Equal(t, 2, doc.LegallySignificantPages)
			assert.Equal(t, []int{2, 3}, doc.SignificantPages())
		})
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))

	pdf, err := c.DocumentPDF(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.Equal(t, []byte("%PDF-1.7"), pdf.Data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) },
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusBadRequest, se.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))

			_, err := c.PageImage(context.Background(), 1, 4)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestFetchGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logger.NewNopLogger(),
		WithRetries(2),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)

	_, err := c.ListDocuments(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequestHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetDocument(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFlag(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`null`, false},
		{`2`, true},
	}
	for _, tt := range tests {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(tt.in), &f), tt.in)
		assert.Equal(t, tt.want, bool(f), tt.in)
	}

	var f Flag
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &f))
}
