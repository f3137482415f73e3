package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/playground/internal/api/ws"
)

// Stream is an open workspace event stream.
type Stream struct {
	conn *websocket.Conn
	mu   sync.Mutex // guards writes
}

// Stream opens the WebSocket stream of a workspace. The first frame the
// server sends is a "system" greeting.
func (c *Client) Stream(ctx context.Context, id string) (*Stream, error) {
	url := c.cfg.BaseURL + workspacePath(id, "/stream")
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	header := http.Header{}
	header.Set("User-Agent", c.cfg.UserAgent)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next frame.
func (s *Stream) Next() (Frame, error) {
	var f Frame
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := sonic.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// Send writes one client message.
func (s *Stream) Send(msg ws.ClientMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and releases the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.mu.Unlock()
	return s.conn.Close()
}
