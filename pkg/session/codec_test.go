package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSessions(t *testing.T) {
	t.Run("nil collection encodes as empty array", func(t *testing.T) {
		payload, err := EncodeSessions(nil)
		require.NoError(t, err)
		assert.Equal(t, "[]", payload)
	})

	t.Run("round trip preserves the collection", func(t *testing.T) {
		ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		in := []Session{
			{
				ID:        "s-1",
				StoryID:   "st-1",
				Title:     "The Lighthouse",
				CreatedAt: ts,
				UpdatedAt: ts.Add(time.Minute),
				IsActive:  true,
				Turns: []Turn{
					{ID: "t-1", Role: RoleAssistant, Content: "What if?", Timestamp: ts},
					{ID: "t-2", Role: RoleUser, Content: "Then what?", Timestamp: ts.Add(time.Minute)},
				},
			},
			{
				ID:        "s-2",
				Title:     "New conversation",
				CreatedAt: ts,
				UpdatedAt: ts,
				Turns:     []Turn{},
			},
		}

		payload, err := EncodeSessions(in)
		require.NoError(t, err)

		out, err := DecodeSessions(payload)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestDecodeSessions(t *testing.T) {
	t.Run("rejects non-JSON", func(t *testing.T) {
		_, err := DecodeSessions("{not json")
		assert.Error(t, err)
	})

	t.Run("rejects a non-array payload", func(t *testing.T) {
		_, err := DecodeSessions(`{"id":"s-1"}`)
		assert.Error(t, err)
	})

	t.Run("rejects sessions missing required fields", func(t *testing.T) {
		_, err := DecodeSessions(`[{"id":"s-1","title":"no timestamps"}]`)
		assert.Error(t, err)
	})

	t.Run("rejects unknown turn roles", func(t *testing.T) {
		payload := `[{
			"id":"s-1","title":"x",
			"createdAt":"2026-08-01T12:00:00Z","updatedAt":"2026-08-01T12:00:00Z",
			"turns":[{"id":"t-1","role":"narrator","content":"hi","timestamp":"2026-08-01T12:00:00Z"}]
		}]`
		_, err := DecodeSessions(payload)
		assert.Error(t, err)
	})

	t.Run("accepts an empty array", func(t *testing.T) {
		out, err := DecodeSessions("[]")
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}
