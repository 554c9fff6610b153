package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreUpload(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "tasks/abc/notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "/tasks/abc/notes.txt"))

	data, err := os.ReadFile(filepath.Join(root, "tasks", "abc", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	f, err := store.Open("tasks/abc/notes.txt")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestDiskStoreRejectsEscapes(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/", "../secret", "tasks/../../etc/passwd"} {
		_, err := store.Upload(context.Background(), key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidPath, key)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestDiskStoreFailedUploadLeavesNothing(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "tasks/abc/broken.bin", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "tasks", "abc"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStoreCancelledContext(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, "tasks/abc/late.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiskStoreAllowsDotsInNames(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "tasks/abc/report..v2.pdf", strings.NewReader("v2"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "tasks", "abc", "report..v2.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestDiskStoreOpenURL(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "tasks/abc/notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)

	r, err := store.OpenURL(url)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestDiskStoreOpenURLStaysInRoot(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	for _, raw := range []string{"file://" + filepath.ToSlash(outside), "https://example.com/a.txt", "file://" + filepath.ToSlash(store.Root())} {
		_, err := store.OpenURL(raw)
		assert.ErrorIs(t, err, ErrInvalidPath, raw)
	}
}
