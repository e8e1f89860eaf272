// Package testhelpers provides common utilities for testing the chat rooms
// server over real HTTP and WebSocket connections.
//
// It covers starting test servers, making REST calls with JSON bodies, and
// reading the newline-batched event frames the hub writes.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestOrigin is the origin the helpers send, allowed by the default config.
const TestOrigin = "http://localhost:8080"

// DefaultTimeout bounds every blocking helper.
const DefaultTimeout = 2 * time.Second

// Frame is one event envelope as seen by a client.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the frame's data into v.
func (f Frame) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Data, v), "decoding %s payload", f.Event)
}

// CreateTestServer creates a test HTTP server with the given handler and
// closes it when the test ends.
func CreateTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(baseURL string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	require.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	require.Equal(t, expected, resp.Header.Get("Content-Type"))
}

// MakeRequest executes an HTTP request with an optional JSON body. The
// response body is closed when the test ends.
func MakeRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	reader := io.Reader(http.NoBody)
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err, "creating request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "making request")
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// DecodeJSON reads the response body into v.
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// Conn is a WebSocket client that understands batched frames.
type Conn struct {
	*websocket.Conn
	pending []Frame
}

// ConnectWebSocket dials url with the test origin.
func ConnectWebSocket(t *testing.T, url string) *Conn {
	t.Helper()
	conn, err := DialWebSocket(url, TestOrigin)
	require.NoError(t, err, "connecting to %s", url)
	t.Cleanup(func() { _ = conn.Close() })
	return &Conn{Conn: conn}
}

// DialWebSocket dials url with the given origin, which may be empty.
func DialWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Send writes one event envelope.
func (c *Conn) Send(t *testing.T, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, c.WriteJSON(Frame{Event: event, Data: payload}))
}

// Next returns the next frame, reading from the socket when nothing is
// buffered.
func (c *Conn) Next(t *testing.T) Frame {
	t.Helper()
	frame, err := c.next(DefaultTimeout)
	require.NoError(t, err, "waiting for next frame")
	return frame
}

// Expect returns the next frame and checks its event name.
func (c *Conn) Expect(t *testing.T, event string) Frame {
	t.Helper()
	frame := c.Next(t)
	require.Equal(t, event, frame.Event, "unexpected event, data: %s", string(frame.Data))
	return frame
}

// WaitFor skips frames until one named event arrives.
func (c *Conn) WaitFor(t *testing.T, event string) Frame {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for {
		remaining := time.Until(deadline)
		require.True(t, remaining > 0, "timed out waiting for %s", event)
		frame, err := c.next(remaining)
		require.NoError(t, err, "waiting for %s", event)
		if frame.Event == event {
			return frame
		}
	}
}

// ExpectNothing checks that no frame arrives within wait. A timed out read
// leaves the connection unusable, so call it last.
func (c *Conn) ExpectNothing(t *testing.T, wait time.Duration) {
	t.Helper()
	frame, err := c.next(wait)
	if err == nil {
		require.Failf(t, "unexpected frame", "got %s: %s", frame.Event, string(frame.Data))
	}
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected error: %v", err)
}

// ExpectClosed checks that the server closes the connection.
func (c *Conn) ExpectClosed(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		if _, err := c.next(time.Until(deadline)); err != nil {
			var netErr net.Error
			require.False(t, errors.As(err, &netErr) && netErr.Timeout(), "connection still open")
			return
		}
	}
	require.Fail(t, "connection still open")
}

// Close sends a normal close frame and closes the connection.
func (c *Conn) Close() error {
	_ = c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.Conn.Close()
}

func (c *Conn) next(timeout time.Duration) (Frame, error) {
	if len(c.pending) == 0 {
		if err := c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Frame{}, err
		}
		_, raw, err := c.ReadMessage()
		if err != nil {
			return Frame{}, err
		}
		for _, line := range bytes.Split(raw, []byte{'\n'}) {
			var frame Frame
			if err := json.Unmarshal(line, &frame); err != nil {
				return Frame{}, err
			}
			c.pending = append(c.pending, frame)
		}
	}

	frame := c.pending[0]
	c.pending = c.pending[1:]
	return frame, nil
}
