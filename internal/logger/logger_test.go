package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("writes to the configured file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "whatif.log")

		lg, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)
		defer lg.Close()

		zl := lg.Zerolog()
		zl.Info().Str("key", "value").Msg("hello log")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello log")
		assert.Contains(t, string(data), `"key":"value"`)
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "whatif.log")

		lg, err := New(Config{Level: "chatty", File: logFile})
		require.NoError(t, err)
		defer lg.Close()

		zl := lg.Zerolog()
		zl.Debug().Msg("too quiet")
		zl.Info().Msg("loud enough")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "too quiet")
		assert.Contains(t, string(data), "loud enough")
	})

	t.Run("redaction scrubs secrets from output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "whatif.log")

		lg, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)
		defer lg.Close()

		zl := lg.Zerolog()
		zl.Info().Str("auth", "Bearer abc.def.ghi").Msg("request")
		zl.Info().Msg("key is sk-abcdefghijklmnopqrstuvwxyz")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "abc.def.ghi")
		assert.NotContains(t, string(data), "sk-abcdefghijklmnopqrstuvwxyz")
		assert.Contains(t, string(data), "[REDACTED]")
	})
}

func TestRedactor(t *testing.T) {
	r := NewRedactor()

	cases := map[string]string{
		"key sk-abcdefghijklmnopqrstuvwxyz end": "key [REDACTED] end",
		"Bearer my.signed.token":                "[REDACTED]",
		"password=hunter2":                      "[REDACTED]",
		"nothing sensitive here":                "nothing sensitive here",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.Redact(in))
	}

	t.Run("custom pattern", func(t *testing.T) {
		r := NewRedactor()
		require.NoError(t, r.AddPattern(`whatif-[0-9]+`))
		assert.Equal(t, "[REDACTED]", r.Redact("whatif-12345"))
		assert.Error(t, r.AddPattern("("))
	})
}
