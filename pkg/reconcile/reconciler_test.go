package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haeun/whatif/pkg/identity"
	"github.com/haeun/whatif/pkg/session"
)

// memoryRemote is a minimal in-memory session.RemoteStore for sweeps.
type memoryRemote struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	turns    map[string][]session.Turn
	failLoad bool
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{
		sessions: make(map[string]session.Session),
		turns:    make(map[string][]session.Turn),
	}
}

func (m *memoryRemote) LoadSessions(ctx context.Context, userID string) ([]session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, errors.New("database offline")
	}
	out := make([]session.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sess.Turns = append([]session.Turn{}, m.turns[sess.ID]...)
		out = append(out, sess)
	}
	return out, nil
}

func (m *memoryRemote) InsertSession(ctx context.Context, userID string, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return errors.New("duplicate session")
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryRemote) InsertTurn(ctx context.Context, sessionID string, t session.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[sessionID] = append(m.turns[sessionID], t)
	return nil
}

func (m *memoryRemote) TouchSession(ctx context.Context, userID, sessionID string) error { return nil }
func (m *memoryRemote) SetSessionActive(ctx context.Context, userID, sessionID string, active bool) error {
	return nil
}
func (m *memoryRemote) DeactivateAll(ctx context.Context, userID string) error { return nil }
func (m *memoryRemote) DeactivateOthers(ctx context.Context, userID, keepSessionID string) error {
	return nil
}
func (m *memoryRemote) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return nil
}

func staticState(sessions ...session.Session) func() session.State {
	return func() session.State {
		return session.State{Sessions: sessions}
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	user := identity.Static{User: &identity.User{ID: "u-1"}}
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("anonymous client has nothing to reconcile", func(t *testing.T) {
		remote := newMemoryRemote()
		r := New(staticState(), remote, identity.Static{}, zerolog.Nop())

		pushed, err := r.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, pushed)
	})

	t.Run("pushes missing sessions with their turns", func(t *testing.T) {
		remote := newMemoryRemote()
		local := session.Session{
			ID: "s-1", Title: "Local only", CreatedAt: ts, UpdatedAt: ts,
			Turns: []session.Turn{
				{ID: "t-1", Role: session.RoleAssistant, Content: "hi", Timestamp: ts},
				{ID: "t-2", Role: session.RoleUser, Content: "hello", Timestamp: ts},
			},
		}
		r := New(staticState(local), remote, user, zerolog.Nop())

		pushed, err := r.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, pushed) // one session, two turns

		remoteState, err := remote.LoadSessions(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, remoteState, 1)
		assert.Len(t, remoteState[0].Turns, 2)
	})

	t.Run("pushes only the missing turns of a known session", func(t *testing.T) {
		remote := newMemoryRemote()
		require.NoError(t, remote.InsertSession(ctx, "u-1", session.Session{ID: "s-1"}))
		require.NoError(t, remote.InsertTurn(ctx, "s-1", session.Turn{ID: "t-1"}))

		local := session.Session{
			ID: "s-1",
			Turns: []session.Turn{
				{ID: "t-1", Role: session.RoleUser},
				{ID: "t-2", Role: session.RoleAssistant},
			},
		}
		r := New(staticState(local), remote, user, zerolog.Nop())

		pushed, err := r.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pushed)

		remoteState, err := remote.LoadSessions(ctx, "u-1")
		require.NoError(t, err)
		assert.Len(t, remoteState[0].Turns, 2)
	})

	t.Run("sweep is idempotent", func(t *testing.T) {
		remote := newMemoryRemote()
		local := session.Session{
			ID:    "s-1",
			Turns: []session.Turn{{ID: "t-1", Role: session.RoleUser}},
		}
		r := New(staticState(local), remote, user, zerolog.Nop())

		first, err := r.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, first)

		second, err := r.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, second)
	})

	t.Run("remote load failure aborts the sweep", func(t *testing.T) {
		remote := newMemoryRemote()
		remote.failLoad = true
		r := New(staticState(session.Session{ID: "s-1"}), remote, user, zerolog.Nop())

		_, err := r.Sweep(ctx)
		assert.Error(t, err)
	})
}

func TestStartStop(t *testing.T) {
	remote := newMemoryRemote()
	r := New(staticState(), remote, identity.Static{}, zerolog.Nop())

	require.NoError(t, r.Start("@every 1h"))
	assert.Error(t, r.Start("@every 1h"), "double start should fail")
	r.Stop()

	// restart after stop is allowed
	require.NoError(t, r.Start("@every 1h"))
	r.Stop()

	assert.Error(t, New(staticState(), remote, identity.Static{}, zerolog.Nop()).Start("not a schedule"))
}
