package filex

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedDirectory(t *testing.T) {
	tmp := t.TempDir()

	got, err := EnsureDir(tmp, filepath.Join("uploads", "projects"))
	require.NoError(t, err)

	want := filepath.Join(tmp, "uploads", "projects")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()

	first, err := EnsureDir(tmp, "uploads")
	require.NoError(t, err)

	second, err := EnsureDir(tmp, "uploads")
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "uploads"), []byte("x"), 0o660))

	_, err := EnsureDir(tmp, "uploads")
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestWriteNew_WritesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.pdf")

	n, err := WriteNew(path, bytes.NewReader([]byte("%PDF-1.4")))
	require.NoError(t, err)
	require.Equal(t, int64(8), n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(b))
}

func TestWriteNew_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o660))

	_, err := WriteNew(path, bytes.NewReader([]byte("new")))
	require.Error(t, err)

	b, _ := os.ReadFile(path)
	require.Equal(t, "old", string(b))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestWriteNew_RemovesPartialFileOnReadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.pdf")

	_, err := WriteNew(path, io.MultiReader(bytes.NewReader([]byte("part")), failingReader{}))
	require.Error(t, err)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o660))

	require.NoError(t, RemoveIfExists(path))
	require.NoError(t, RemoveIfExists(path), "second delete must be a no-op")

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
