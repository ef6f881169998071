package tool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFile(t *testing.T) {
	path := writeTemp(t, "hello\nworld\n")

	got := NewReadFile().Execute(context.Background(), map[string]any{"path": path})
	assert.Equal(t, "hello\nworld\n", got)
}

func TestReadFileNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.txt")

	got := NewReadFile().Execute(context.Background(), map[string]any{"path": missing})
	assert.Equal(t, "[error: file not found: "+missing+"]", got)
}

func TestReadFileDirectory(t *testing.T) {
	dir := t.TempDir()

	got := NewReadFile().Execute(context.Background(), map[string]any{"path": dir})
	assert.Equal(t, "[error: not a file: "+dir+"]", got)
}

func TestWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.txt")

	got := NewWriteFile().Execute(context.Background(), map[string]any{
		"path":    path,
		"content": "payload",
	})
	assert.Equal(t, "[wrote 7 bytes to "+path+"]", got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestEditFileReplacesUniqueOccurrence(t *testing.T) {
	path := writeTemp(t, "alpha beta gamma")

	got := NewEditFile().Execute(context.Background(), map[string]any{
		"path":       path,
		"old_string": "beta",
		"new_string": "delta",
	})
	assert.Equal(t, "[replaced 1 occurrence(s) in "+path+"]", got)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "alpha delta gamma", string(data))
}

func TestEditFileAmbiguousMatchLeavesFileUntouched(t *testing.T) {
	original := "x = 1\nx = 1\n"
	path := writeTemp(t, original)

	got := NewEditFile().Execute(context.Background(), map[string]any{
		"path":       path,
		"old_string": "x = 1",
		"new_string": "x = 2",
	})
	assert.Contains(t, got, "appears 2 times")

	data, _ := os.ReadFile(path)
	assert.Equal(t, original, string(data))
}

func TestEditFileReplaceAll(t *testing.T) {
	path := writeTemp(t, "x = 1\nx = 1\n")

	got := NewEditFile().Execute(context.Background(), map[string]any{
		"path":        path,
		"old_string":  "x = 1",
		"new_string":  "x = 2",
		"replace_all": true,
	})
	assert.Equal(t, "[replaced 2 occurrence(s) in "+path+"]", got)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "x = 2\nx = 2\n", string(data))
}

func TestEditFileOldStringMissing(t *testing.T) {
	path := writeTemp(t, "nothing to see")

	got := NewEditFile().Execute(context.Background(), map[string]any{
		"path":       path,
		"old_string": "absent",
		"new_string": "present",
	})
	assert.Equal(t, "[error: old_string not found in "+path+"]", got)
}

func TestEditFilePreservesPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("echo old"), 0o755))

	NewEditFile().Execute(context.Background(), map[string]any{
		"path":       path,
		"old_string": "old",
		"new_string": "new",
	})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestTruncateBoundsLongOutput(t *testing.T) {
	long := make([]byte, 20)
	for i := range long {
		long[i] = 'x'
	}

	got := truncate(string(long), 10)
	assert.Equal(t, "xxxxxxxxxx\n[truncated...]", got)
	assert.Equal(t, string(long), truncate(string(long), 20))
}
