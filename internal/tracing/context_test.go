package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithTraceID(t *testing.T) {
	ctx := context.Background()
	traceID := "test-trace-id"

	ctx = WithTraceID(ctx, traceID)

	retrieved := GetTraceID(ctx)
	if retrieved != traceID {
		t.Errorf("Expected trace ID %s, got %s", traceID, retrieved)
	}
}

func TestWithSessionID(t *testing.T) {
	ctx := context.Background()
	sessionID := "test-session"

	ctx = WithSessionID(ctx, sessionID)

	retrieved := GetSessionID(ctx)
	if retrieved != sessionID {
		t.Errorf("Expected session ID %s, got %s", sessionID, retrieved)
	}
}

func TestWithUserID(t *testing.T) {
	ctx := context.Background()
	userID := "test-user"

	ctx = WithUserID(ctx, userID)

	retrieved := GetUserID(ctx)
	if retrieved != userID {
		t.Errorf("Expected user ID %s, got %s", userID, retrieved)
	}
}

func TestGetFromEmptyContext(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" {
		t.Error("Expected empty trace ID from empty context")
	}
	if GetSessionID(ctx) != "" {
		t.Error("Expected empty session ID from empty context")
	}
	if GetUserID(ctx) != "" {
		t.Error("Expected empty user ID from empty context")
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithUserID(ctx, "user-1")

	enriched := LoggerFromContext(ctx, base)
	enriched.Info().Msg("enriched")

	out := buf.String()
	for _, want := range []string{"trace-1", "session-1", "user-1", "enriched"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %s, got %s", want, out)
		}
	}

	buf.Reset()
	bare := LoggerFromContext(context.Background(), base)
	bare.Info().Msg("bare")
	if strings.Contains(buf.String(), "trace_id") {
		t.Error("Expected no trace_id field for an empty context")
	}
}
