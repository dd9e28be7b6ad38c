package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"legal-review-client/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("legal-review-client/api")

var ErrNotFound = errors.New("resource not found")

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Binary is a fetched document asset.
type Binary struct {
	ContentType string
	Data        []byte
}

// Client consumes the analysis backend's REST surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.ILogger
	maxTries   uint
	newBackOff func() backoff.BackOff
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries bounds the number of attempts per request; 1 disables retry.
func WithRetries(tries uint) Option {
	return func(c *Client) {
		if tries > 0 {
			c.maxTries = tries
		}
	}
}

func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

func NewClient(baseURL string, timeout time.Duration, log logger.ILogger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		maxTries:   3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession registers a new analysis session and returns its id.
// It is not retried: a lost response would leak a backend session.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/api/sessions")
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("create session: failed to decode response: %w", err)
	}
	if resp.SessionID == "" {
		return "", errors.New("create session: backend returned an empty session id")
	}
	return resp.SessionID, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if _, _, err := c.do(ctx, http.MethodDelete, "/api/sessions/"+sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	body, _, err := c.fetch(ctx, "/api/documents")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var resp documentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("list documents: failed to decode response: %w", err)
	}
	return resp.Documents, nil
}

func (c *Client) GetDocument(ctx context.Context, docID int) (*DocumentDetail, error) {
	body, _, err := c.fetch(ctx, "/api/documents/"+strconv.Itoa(docID))
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", docID, err)
	}

	var resp detailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("get document %d: failed to decode response: %w", docID, err)
	}
	detail := resp.detail()
	if detail.DocID == 0 {
		detail.DocID = docID
	}
	return detail, nil
}

func (c *Client) DocumentPDF(ctx context.Context, docID int) (*Binary, error) {
	body, ct, err := c.fetch(ctx, fmt.Sprintf("/api/documents/%d/pdf", docID))
	if err != nil {
		return nil, fmt.Errorf("document %d pdf: %w", docID, err)
	}
	return &Binary{ContentType: ct, Data: body}, nil
}

func (c *Client) PageImage(ctx context.Context, docID, page int) (*Binary, error) {
	body, ct, err := c.fetch(ctx, fmt.Sprintf("/api/documents/%d/page/%d/image", docID, page))
	if err != nil {
		return nil, fmt.Errorf("document %d page %d image: %w", docID, page, err)
	}
	return &Binary{ContentType: ct, Data: body}, nil
}

type result struct {
	body        []byte
	contentType string
}

// fetch GETs path, retrying transport failures and 5xx responses.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, string, error) {
	attempt := 0
	res, err := backoff.Retry(ctx, func() (result, error) {
		attempt++
		body, ct, err := c.do(ctx, http.MethodGet, path)
		if err == nil {
			return result{body: body, contentType: ct}, nil
		}

		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return result{}, backoff.Permanent(err)
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return result{}, backoff.Permanent(err)
		}
		c.logger.Warn("API", "Request failed, retrying", map[string]interface{}{
			"path":    path,
			"attempt": attempt,
			"error":   err.Error(),
		})
		return result{}, err
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return nil, "", err
	}
	return res.body, res.contentType, nil
}

func (c *Client) do(ctx context.Context, method, path string) (body []byte, contentType string, err error) {
	ctx, span := tracer.Start(ctx, method+" "+path)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("API", "Backend request", map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
