package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())

	for _, table := range []string{"files", "file_inputs", "file_dependencies", "metadata"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestRecordGeneration_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.RecordGeneration(Generation{
		Path:         "/src/Button.h",
		Hash:         "h1",
		ConfigHash:   "c1",
		Output:       "/out/button.jakt",
		Inputs:       []string{"/src/Widget.h", "/src/Button.h"},
		Dependencies: []string{"/src/Widget.h"},
	}))

	f, err := s.FileByPath("/src/Button.h")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "h1", f.Hash)
	assert.Equal(t, "c1", f.ConfigHash)
	assert.Equal(t, "/out/button.jakt", f.Output)
	assert.False(t, f.GeneratedAt.IsZero())

	inputs, err := s.Inputs(f.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/Button.h", "/src/Widget.h"}, inputs)

	deps, err := s.Dependencies(f.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/Widget.h"}, deps)

	dependents, err := s.Dependents("/src/Widget.h")
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/Button.h"}, dependents)
}

func TestRecordGeneration_ReplacesEntry(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.RecordGeneration(Generation{
		Path: "/src/A.h", Hash: "h1", ConfigHash: "c", Output: "/out/a.jakt",
		Dependencies: []string{"/src/B.h", "/src/C.h"},
	}))
	first, err := s.FileByPath("/src/A.h")
	require.NoError(t, err)

	require.NoError(t, s.RecordGeneration(Generation{
		Path: "/src/A.h", Hash: "h2", ConfigHash: "c", Output: "/out/a.jakt",
		Dependencies: []string{"/src/C.h"},
	}))
	second, err := s.FileByPath("/src/A.h")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "h2", second.Hash)

	deps, err := s.Dependencies(second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/C.h"}, deps)

	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFileByPath_Missing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f, err := s.FileByPath("/nope")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("version")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("version", "1"))
	require.NoError(t, s.SetMetadata("version", "2"))
	v, err = s.GetMetadata("version")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestHashFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.h")
	b := filepath.Join(dir, "b.h")
	require.NoError(t, os.WriteFile(a, []byte("class A {};"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("class B {};"), 0o644))

	h1, err := HashFiles([]string{a, b})
	require.NoError(t, err)
	h2, err := HashFiles([]string{b, a})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "order independent")

	require.NoError(t, os.WriteFile(b, []byte("class B { int x; };"), 0o644))
	h3, err := HashFiles([]string{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, err = HashFiles([]string{filepath.Join(dir, "missing.h")})
	assert.Error(t, err)
}
