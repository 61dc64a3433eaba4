package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// Frame is one server-sent event: the accumulated id, event name, and data
// lines up to the blank line that dispatches it.
type Frame struct {
	ID    string
	Event string
	Data  []byte
}

// Stream is an open server-sent event stream.
type Stream interface {
	// Next blocks until the next frame arrives. It returns io.EOF when the
	// server closes the stream, and a *model.TransportError on any other
	// read failure.
	Next() (Frame, error)
	// Close tears the connection down. It is safe to call more than once and
	// from another goroutine; a blocked Next returns promptly.
	Close() error
}

// OpenStream connects to the construction stream for action and target.
// A non-200 response is a transport error.
func (c *HTTPClient) OpenStream(ctx context.Context, action StreamAction, target int) (Stream, error) {
	return c.openSSE(ctx, "stream", action.Path(target), "")
}

// OpenEventStream subscribes to the service's lifecycle events. topics are
// NATS-style patterns; none means every topic. A non-empty lastEventID
// replays the events the service still holds after it.
func (c *HTTPClient) OpenEventStream(ctx context.Context, topics []string, lastEventID string) (Stream, error) {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}
	return c.openSSE(ctx, "events_stream", path, lastEventID)
}

func (c *HTTPClient) openSSE(ctx context.Context, op, path, lastEventID string) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, &model.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &model.TransportError{Op: op, Err: apiError(resp.StatusCode, body)}
	}
	return NewStream(resp.Body, cancel), nil
}

// NewStream reads frames from r. cancel, when non-nil, is invoked on Close
// before r is closed.
func NewStream(r io.ReadCloser, cancel context.CancelFunc) Stream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &sseStream{body: r, cancel: cancel, scanner: scanner}
}

type sseStream struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	scanner *bufio.Scanner

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	lastID    string
}

func (s *sseStream) Next() (Frame, error) {
	var (
		f       Frame
		data    []string
		hasData bool
	)
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if !hasData {
				// A blank line without data dispatches nothing and drops
				// the pending event name.
				f.Event = ""
				continue
			}
			f.ID = s.lastID
			f.Data = []byte(strings.Join(data, "\n"))
			return f, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			s.lastID = value
		case "event":
			f.Event = value
		case "data":
			data = append(data, value)
			hasData = true
		}
	}
	if err := s.scanner.Err(); err != nil && !s.isClosed() {
		return Frame{}, &model.TransportError{Op: "stream", Err: err}
	}
	return Frame{}, io.EOF
}

func (s *sseStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.cancel != nil {
			s.cancel()
		}
		err = s.body.Close()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	})
	return err
}
