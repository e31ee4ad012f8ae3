package localstore

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[string]int)
	done := make(chan string, 8)

	w, err := NewWatcher(store, zerolog.Nop(), func(key string) {
		mu.Lock()
		seen[key]++
		mu.Unlock()
		done <- key
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, store.Set("watched", "v1"))

	select {
	case key := <-done:
		assert.Equal(t, "watched", key)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	w, err := NewWatcher(store, zerolog.Nop(), func(key string) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Stop()

	// a burst of writes collapses into few notifications
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Set("bursty", "v"))
	}

	time.Sleep(time.Second)
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, count, 1)
	assert.Less(t, count, 10)
}
