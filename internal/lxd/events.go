package lxd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

// Event is a message from the /1.0/events stream.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Location  string          `json:"location,omitempty"`
	Project   string          `json:"project,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
}

// Operation decodes the metadata of an "operation" event.
func (e *Event) Operation() (*Operation, error) {
	if e.Type != "operation" {
		return nil, fmt.Errorf("event type %q is not an operation", e.Type)
	}
	var op Operation
	if err := json.Unmarshal(e.Metadata, &op); err != nil {
		return nil, fmt.Errorf("decoding operation event: %w", err)
	}
	return &op, nil
}

// EventStream is an open subscription to the daemon's event websocket.
type EventStream struct {
	conn *websocket.Conn
}

// Events subscribes to daemon events of the given types across all projects.
func (c *Client) Events(ctx context.Context, types ...string) (*EventStream, error) {
	q := url.Values{}
	q.Set("all-projects", "true")
	if len(types) > 0 {
		q.Set("type", strings.Join(types, ","))
	}

	wsURL := c.baseURL + "/1.0/events?" + q.Encode()
	wsURL = "ws" + strings.TrimPrefix(wsURL, "http")

	// websocket.Dial refuses clients with a Timeout; the context bounds the handshake.
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: &http.Client{Transport: c.transport},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to event stream: %w", err)
	}
	conn.SetReadLimit(1 << 20)
	return &EventStream{conn: conn}, nil
}

// Next blocks until the next event arrives.
func (s *EventStream) Next(ctx context.Context) (*Event, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &ev, nil
}

// Close closes the subscription.
func (s *EventStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
