package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haeun/whatif/pkg/session"
)

func newWSTestServer(t *testing.T, secret string) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer("127.0.0.1", 0, secret, zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for srv.clients.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, srv.clients.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGatewayBroadcast(t *testing.T) {
	srv, ts := newWSTestServer(t, "")
	conn := dial(t, ts, nil)
	waitForClients(t, srv, 1)

	state := session.State{
		Sessions:         []session.Session{{ID: "s-1", Title: "x", Turns: []session.Turn{}}},
		CurrentSessionID: "s-1",
	}
	srv.Broadcaster().StatePublisher()(state)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg EventMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "session.state", msg.Event)
	assert.Equal(t, int64(1), msg.Seq)
	assert.NotZero(t, msg.Timestamp)

	payload, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "s-1", payload["currentSessionId"])
}

func TestGatewaySequenceNumbers(t *testing.T) {
	srv, ts := newWSTestServer(t, "")
	conn := dial(t, ts, nil)
	waitForClients(t, srv, 1)

	srv.Broadcaster().Broadcast("session.state", nil)
	srv.Broadcaster().Broadcast("session.state", nil)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var first, second EventMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, first.Seq+1, second.Seq)
}

func TestGatewaySecret(t *testing.T) {
	_, ts := newWSTestServer(t, "hunter2")

	t.Run("missing secret is rejected", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(ts.URL, "http")
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("correct secret connects", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-Gateway-Secret", "hunter2")
		conn := dial(t, ts, header)
		assert.NotNil(t, conn)
	})
}

func TestGatewayDisconnectCleanup(t *testing.T) {
	srv, ts := newWSTestServer(t, "")
	conn := dial(t, ts, nil)
	waitForClients(t, srv, 1)

	conn.Close()
	waitForClients(t, srv, 0)
}

func TestClientRegistry(t *testing.T) {
	r := NewClientRegistry()
	assert.Zero(t, r.Count())

	a := &Client{ID: "a"}
	b := &Client{ID: "b"}
	r.Add(a)
	r.Add(b)
	assert.Equal(t, 2, r.Count())
	assert.Len(t, r.All(), 2)

	r.Remove("a")
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, "b", r.All()[0].ID)

	// removing an unknown id is a no-op
	r.Remove("ghost")
	assert.Equal(t, 1, r.Count())
}
