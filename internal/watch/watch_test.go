package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func startWatcher(t *testing.T, files []string) (*Watcher, <-chan []string) {
	t.Helper()
	w, err := New(zaptest.NewLogger(t).Sugar(), 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Set(files))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []string, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(changed []string) { changes <- changed })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return w, changes
}

func waitChange(t *testing.T, changes <-chan []string) []string {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return nil
	}
}

func TestWatcher_ReportsWatchedFiles(t *testing.T) {
	dir := tempDir(t)
	a := filepath.Join(dir, "A.h")
	b := filepath.Join(dir, "B.h")
	other := filepath.Join(dir, "Other.h")
	for _, f := range []string{a, b, other} {
		require.NoError(t, os.WriteFile(f, []byte("// v1\n"), 0o644))
	}

	_, changes := startWatcher(t, []string{a, b})

	require.NoError(t, os.WriteFile(other, []byte("// v2\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("// v2\n"), 0o644))
	require.NoError(t, os.WriteFile(a, []byte("// v2\n"), 0o644))

	seen := map[string]bool{}
	for !seen[a] || !seen[b] {
		for _, f := range waitChange(t, changes) {
			seen[f] = true
		}
	}
	assert.False(t, seen[other], "unwatched file reported")
}

func TestWatcher_SetReplacesFiles(t *testing.T) {
	dir := tempDir(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	a := filepath.Join(dir, "A.h")
	c := filepath.Join(sub, "C.h")
	require.NoError(t, os.WriteFile(a, []byte("// v1\n"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("// v1\n"), 0o644))

	w, changes := startWatcher(t, []string{a})
	require.NoError(t, w.Set([]string{c}))
	assert.Equal(t, []string{c}, w.Files())

	require.NoError(t, os.WriteFile(a, []byte("// v2\n"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("// v2\n"), 0o644))
	assert.Equal(t, []string{c}, waitChange(t, changes))
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := New(nil, 0)
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, w.Set([]string{filepath.Join(tempDir(t), "nope", "A.h")}))
}
