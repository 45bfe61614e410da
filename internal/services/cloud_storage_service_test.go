package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Round trip", func(t *testing.T) {
		require.NoError(t, store.UploadFile(ctx, "owner/chat/a.csv", strings.NewReader("a,b\n1,2\n")))

		raw, err := store.DownloadFile(ctx, "owner/chat/a.csv")
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2\n", string(raw))

		_, err = os.Stat(filepath.Join(root, "owner", "chat", "a.csv.tmp"))
		assert.True(t, os.IsNotExist(err))

		require.NoError(t, store.DeleteFile(ctx, "owner/chat/a.csv"))
		_, err = store.DownloadFile(ctx, "owner/chat/a.csv")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("Deleting a missing object is a no-op", func(t *testing.T) {
		assert.NoError(t, store.DeleteFile(ctx, "owner/chat/never.pdf"))
	})

	t.Run("Object names stay under the root", func(t *testing.T) {
		require.NoError(t, store.UploadFile(ctx, "../../escape.txt", strings.NewReader("x")))
		_, err := os.Stat(filepath.Join(root, "escape.txt"))
		assert.NoError(t, err)

		assert.Error(t, store.UploadFile(ctx, "/", strings.NewReader("x")))
	})

	t.Run("Cancelled upload writes nothing", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, store.UploadFile(cancelled, "owner/chat/late.csv", strings.NewReader("x")))
		_, err := store.DownloadFile(ctx, "owner/chat/late.csv")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
}
