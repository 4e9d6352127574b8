package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

const DefaultBaseURL = "http://localhost:8080"

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the MindTrail API with a bearer token. Requests made under a
// context carrying ctxutil trace data send that id as X-Trace-Id.
type Client struct {
	log     *logger.Logger
	baseURL string
	token   string
	http    *http.Client
	stream  *http.Client
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	// the stream stays open indefinitely, so it shares the transport but not the timeout
	stream := &http.Client{Transport: hc.Transport}

	return &Client{
		log:     log.With("service", "MindTrailClient"),
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		http:    hc,
		stream:  stream,
	}, nil
}

// CaptureInput is the write body shared by reflect and the lightweight path.
type CaptureInput struct {
	TextRaw string   `json:"text_raw"`
	Context string   `json:"context,omitempty"`
	Tags    []string `json:"tags"`
}

type ReflectResult struct {
	ID      string   `json:"id"`
	Insight string   `json:"insight"`
	Topics  []string `json:"topics"`
	TraceID string   `json:"traceId"`
}

// Document is a capture as it arrives on the wire. Tags and CreatedAt are kept
// raw because older writers stored them in other shapes.
type Document struct {
	ID        string          `json:"id"`
	TextRaw   string          `json:"text_raw"`
	Insight   string          `json:"insight"`
	Topics    []string        `json:"topics"`
	Tags      json.RawMessage `json:"tags"`
	Context   string          `json:"context"`
	CreatedAt json.RawMessage `json:"created_at"`
}

// APIError is a non-2xx response decoded from the service error envelope.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details"`
	Category   string `json:"error_category"`
	TraceID    string `json:"traceId"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Category != "" {
		return fmt.Sprintf("mindtrail api %d (%s): %s", e.StatusCode, e.Category, msg)
	}
	return fmt.Sprintf("mindtrail api %d: %s", e.StatusCode, msg)
}

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func (c *Client) Reflect(ctx context.Context, in CaptureInput) (ReflectResult, error) {
	var out ReflectResult
	if err := c.do(ctx, http.MethodPost, "/api/reflect", in, &out); err != nil {
		return ReflectResult{}, err
	}
	if out.Topics == nil {
		out.Topics = []string{}
	}
	return out, nil
}

// CreateCapture stores a capture without generating an insight.
func (c *Client) CreateCapture(ctx context.Context, in CaptureInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/captures", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) ListCaptures(ctx context.Context, limit int) ([]Document, error) {
	path := "/api/captures"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Items []Document `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Templates(ctx context.Context) ([]domain.Template, error) {
	var out struct {
		Templates []domain.Template `json:"templates"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/templates", nil, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if traceID := ctxutil.TraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp.StatusCode, raw)
		c.log.Warn("api_request_failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"traceId", apiErr.TraceID,
			"error_category", apiErr.Category,
		)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(raw, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	apiErr.StatusCode = status
	return apiErr
}
