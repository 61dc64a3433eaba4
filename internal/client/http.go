package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/dyngraph/internal/model"
	"github.com/alfredjeanlab/dyngraph/internal/presence"
)

// HTTPClient implements GraphClient using the dyngraph HTTP/JSON API and its
// server-sent event stream.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ GraphClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// BaseURL returns the service URL the client targets.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Analysis ---

func (c *HTTPClient) Scan(ctx context.Context, req *ScanRequest) (*model.GraphPayload, error) {
	return c.doPayload(ctx, "scan", http.MethodPost, "/scan", req)
}

// --- Mutations ---

func (c *HTTPClient) Delete(ctx context.Context, req *DeleteRequest) (*model.GraphPayload, error) {
	return c.doPayload(ctx, "delete", http.MethodPost, "/delete", req)
}

func (c *HTTPClient) Add(ctx context.Context, req *AddRequest) (*model.GraphPayload, error) {
	return c.doPayload(ctx, "add", http.MethodPost, "/add", req)
}

func (c *HTTPClient) Generate(ctx context.Context, req *GenerateRequest) (*model.GraphPayload, error) {
	return c.doPayload(ctx, "generate", http.MethodPost, "/generate", req)
}

// --- Reads ---

func (c *HTTPClient) Graph(ctx context.Context) (*model.GraphPayload, error) {
	return c.doPayload(ctx, "graph", http.MethodGet, "/v1/graph", nil)
}

func (c *HTTPClient) Events(ctx context.Context, limit int) ([]*model.Event, error) {
	path := "/v1/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, "events", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Streams lists the construction streams the service is tracking. With
// activeOnly set, finished streams are left out.
func (c *HTTPClient) Streams(ctx context.Context, activeOnly bool) ([]presence.Entry, error) {
	path := "/v1/streams"
	if activeOnly {
		path += "?active=true"
	}
	var resp struct {
		Streams []presence.Entry `json:"streams"`
	}
	if err := c.doJSON(ctx, "streams", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Streams, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, "health", http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents a non-2xx HTTP response that carried no graph payload.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doPayload performs a request whose response is a GraphPayload. The payload's
// result field takes precedence over the HTTP status, so a not-found sentinel
// is reported as model.ErrNotFound whatever status code carried it.
func (c *HTTPClient) doPayload(ctx context.Context, op, method, path string, body any) (*model.GraphPayload, error) {
	status, respBody, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return nil, err
	}

	var p model.GraphPayload
	decodeErr := json.Unmarshal(respBody, &p)
	if decodeErr == nil {
		if err := p.Err(); err != nil {
			return nil, err
		}
	}
	if status >= 400 {
		return nil, &model.TransportError{Op: op, Err: apiError(status, respBody)}
	}
	if decodeErr != nil {
		return nil, &model.ProtocolError{Reason: fmt.Sprintf("%s: decoding response: %v", op, decodeErr)}
	}
	return &p, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON
// response. If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, body any, result any) error {
	status, respBody, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		return &model.TransportError{Op: op, Err: apiError(status, respBody)}
	}
	if result != nil && status != http.StatusNoContent {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &model.ProtocolError{Reason: fmt.Sprintf("%s: decoding response: %v", op, err)}
		}
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body any) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &model.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &model.TransportError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}
	return resp.StatusCode, respBody, nil
}

func apiError(status int, body []byte) *APIError {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error != "" {
			return &APIError{StatusCode: status, Message: errResp.Error}
		}
		if errResp.Message != "" {
			return &APIError{StatusCode: status, Message: errResp.Message}
		}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
