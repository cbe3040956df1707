package cxx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCommandArgs(t *testing.T) {
	c := CompileCommand{Command: `clang++ -I"/src/with space" -DNAME='a b' -c foo.cpp`}
	args, err := c.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{"clang++", "-I/src/with space", "-DNAME=a b", "-c", "foo.cpp"}, args)

	c = CompileCommand{Command: "ignored", Arguments: []string{"clang++", "-c"}}
	args, err = c.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{"clang++", "-c"}, args)

	_, err = CompileCommand{Command: `clang++ "unterminated`}.Args()
	assert.Error(t, err)
}

func TestLoadCompileCommandsAndIncludeDirs(t *testing.T) {
	dir := t.TempDir()
	db := `[
  {"directory": "/build", "file": "a.cpp", "command": "clang++ -I../AK -isystem /usr/include/sys -c a.cpp"},
  {"directory": "/build", "file": "b.cpp", "arguments": ["clang++", "-I", "../AK", "-iquote", "gen", "-c", "b.cpp"]}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compile_commands.json"), []byte(db), 0o644))

	byDir, err := LoadCompileCommands(dir)
	require.NoError(t, err)
	byFile, err := LoadCompileCommands(filepath.Join(dir, "compile_commands.json"))
	require.NoError(t, err)
	assert.Equal(t, byDir, byFile)
	require.Len(t, byDir, 2)
	assert.Equal(t, "a.cpp", byDir[0].File)

	dirs, err := IncludeDirs(byDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"/AK", "/usr/include/sys", "/build/gen"}, dirs)
}

func TestLoadCompileCommandsErrors(t *testing.T) {
	_, err := LoadCompileCommands(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadCompileCommands(path)
	assert.Error(t, err)
}
