package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("missing profile means anonymous", func(t *testing.T) {
		r := NewFileResolver(t.TempDir())
		user, err := r.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("save then resolve", func(t *testing.T) {
		r := NewFileResolver(t.TempDir())
		require.NoError(t, r.Save(User{ID: "u-1", Email: "h@example.com"}))

		user, err := r.CurrentUser(ctx)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "u-1", user.ID)
		assert.Equal(t, "h@example.com", user.Email)
	})

	t.Run("save rejects an empty id", func(t *testing.T) {
		r := NewFileResolver(t.TempDir())
		assert.Error(t, r.Save(User{Email: "no-id@example.com"}))
	})

	t.Run("malformed profile means anonymous", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "profile.json"), []byte("{broken"), 0600))

		r := NewFileResolver(dir)
		user, err := r.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("clear returns to anonymous", func(t *testing.T) {
		r := NewFileResolver(t.TempDir())
		require.NoError(t, r.Save(User{ID: "u-1"}))
		require.NoError(t, r.Clear())

		user, err := r.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)

		// clearing again is a no-op
		assert.NoError(t, r.Clear())
	})

	t.Run("external profile change is visible without restart", func(t *testing.T) {
		dir := t.TempDir()
		r := NewFileResolver(dir)
		require.NoError(t, r.Save(User{ID: "u-1"}))

		other := NewFileResolver(dir)
		require.NoError(t, other.Save(User{ID: "u-2"}))

		user, err := r.CurrentUser(ctx)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "u-2", user.ID)
	})

	t.Run("profile file is private", func(t *testing.T) {
		dir := t.TempDir()
		r := NewFileResolver(dir)
		require.NoError(t, r.Save(User{ID: "u-1"}))

		info, err := os.Stat(filepath.Join(dir, "profile.json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})
}

func TestStatic(t *testing.T) {
	ctx := context.Background()

	user, err := Static{User: &User{ID: "u-1"}}.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	anon, err := Static{}.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, anon)
}
