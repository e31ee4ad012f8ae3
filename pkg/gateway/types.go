// Package gateway pushes session-state change events to UI clients over
// WebSocket. It is read-only with respect to the synchronizer.
package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventMessage is the wire format for broadcast events.
type EventMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Seq       int64       `json:"seq"`
}

// Client is one connected consumer.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	writeMu sync.Mutex
}

// WriteJSON serializes writes so broadcasts and pings never interleave.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}
