package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	bindgen "github.com/jward/jakt-bindgen"
)

const buttonHeader = `#pragma once
namespace GUI {
class Button {
public:
    void click();
    bool is_checked() const;
};
}
`

func setupHeaders(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "jakt-bindgen "+bindgen.Version+"\n", out)
}

func TestGenerate_Flags(t *testing.T) {
	dir := setupHeaders(t, map[string]string{"Button.h": buttonHeader})
	out := filepath.Join(dir, "out")

	code, stdout, stderr := runCLI(t, "generate",
		"-n", "GUI", "-b", dir, "-o", out, "--log-json",
		filepath.Join(dir, "Button.h"))
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stdout, "diagnostics never go to stdout")

	data, err := os.ReadFile(filepath.Join(out, "button.jakt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "import extern \"Button.h\" {\n")
	assert.Contains(t, string(data), "    public fn click(this) -> void\n")
	assert.Contains(t, string(data), "    public fn is_checked(this) -> bool\n")
	assert.Contains(t, stderr, `"msg":"generated"`)
}

func TestGenerate_ConfigFile(t *testing.T) {
	dir := setupHeaders(t, map[string]string{"Button.h": buttonHeader})
	cfgPath := filepath.Join(dir, "jakt-bindgen.toml")
	toml := "namespaces = [\"GUI\"]\n" +
		"base_dirs = [\"" + dir + "\"]\n" +
		"output_dir = \"" + filepath.Join(dir, "gen") + "\"\n" +
		"extension = \".jk\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(toml), 0o644))

	code, _, stderr := runCLI(t, "generate", "--config", cfgPath, "--log-json", filepath.Join(dir, "Button.h"))
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(dir, "gen", "button.jk"))
}

func TestGenerate_MissingNamespace(t *testing.T) {
	dir := setupHeaders(t, map[string]string{"Button.h": buttonHeader})
	code, _, stderr := runCLI(t, "generate", "-b", dir, filepath.Join(dir, "Button.h"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "namespace")
}

func TestGenerate_RequiresFiles(t *testing.T) {
	code, _, stderr := runCLI(t, "generate", "-n", "GUI")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
}

func TestGenerate_FatalAndPermissive(t *testing.T) {
	dir := setupHeaders(t, map[string]string{"V.h": `namespace GUI {
class Base {
public:
    void f();
};
class Derived : public virtual Base {
public:
    void g();
};
}
`})
	args := []string{"generate", "-n", "GUI", "-b", dir, "-o", filepath.Join(dir, "out"), "--log-json", filepath.Join(dir, "V.h")}

	code, _, stderr := runCLI(t, args...)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "generation aborted")
	assert.Contains(t, stderr, "permissive")

	code, _, stderr = runCLI(t, append([]string{args[0], "--permissive"}, args[1:]...)...)
	assert.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "virtual base")
}

func TestGenerate_PerFileFailureStatus(t *testing.T) {
	dir := setupHeaders(t, map[string]string{"Button.h": buttonHeader})
	code, _, stderr := runCLI(t, "generate", "-n", "GUI", "-b", dir, "-o", filepath.Join(dir, "out"), "--log-json",
		filepath.Join(dir, "Missing.h"), filepath.Join(dir, "Button.h"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "generation failed")
	assert.FileExists(t, filepath.Join(dir, "out", "button.jakt"))
}

func TestStatus(t *testing.T) {
	dir := setupHeaders(t, map[string]string{"Button.h": buttonHeader})
	db := filepath.Join(dir, "manifest.db")
	code, _, stderr := runCLI(t, "generate", "-n", "GUI", "-b", dir, "-o", filepath.Join(dir, "out"),
		"--db", db, "--log-json", filepath.Join(dir, "Button.h"))
	require.Equal(t, 0, code, stderr)

	code, out, _ := runCLI(t, "status", "--db", db)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "FILE")
	assert.Contains(t, out, filepath.Join(dir, "Button.h"))

	code, out, _ = runCLI(t, "status", "--db", db, "--format", "json")
	require.Equal(t, 0, code)
	var entries []statusEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(dir, "Button.h"), entries[0].Path)
	assert.Equal(t, filepath.Join(dir, "out", "button.jakt"), entries[0].Output)
	assert.Empty(t, entries[0].Dependencies)

	code, out, _ = runCLI(t, "status", "--db", db, "--format", "yaml")
	require.Equal(t, 0, code)
	var fromYAML []statusEntry
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, entries[0].Path, fromYAML[0].Path)
	assert.Equal(t, entries[0].Hash, fromYAML[0].Hash)
}

func TestStatus_Dependents(t *testing.T) {
	dir := setupHeaders(t, map[string]string{
		"Dep.h": "#pragma once\nnamespace NS {\nclass Dep {\npublic:\n    int v() const;\n};\n}\n",
		"A.h":   "#include \"Dep.h\"\nnamespace NS {\nclass A {\npublic:\n    void take(Dep* d);\n};\n}\n",
	})
	db := filepath.Join(dir, "manifest.db")
	code, _, stderr := runCLI(t, "generate", "-n", "NS", "-b", dir, "-o", filepath.Join(dir, "out"),
		"--db", db, "--log-json", filepath.Join(dir, "A.h"))
	require.Equal(t, 0, code, stderr)

	code, out, _ := runCLI(t, "status", "--db", db, "--format", "json")
	require.Equal(t, 0, code)
	var entries []statusEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, filepath.Join(dir, "A.h"), entries[0].Path)
	assert.Equal(t, []string{filepath.Join(dir, "Dep.h")}, entries[0].Dependencies)
	assert.Empty(t, entries[0].Dependents)
	assert.Equal(t, []string{filepath.Join(dir, "A.h")}, entries[1].Dependents)

	code, out, _ = runCLI(t, "status", "--db", db)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "DEPENDENTS")
}

func TestStatus_Errors(t *testing.T) {
	code, _, stderr := runCLI(t, "status", "--db", filepath.Join(t.TempDir(), "none.db"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "none.db")

	code, _, stderr = runCLI(t, "status", "--db", "x.db", "--format", "xml")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid format")
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.NoError(t, validateFormat("yaml"))
	assert.Error(t, validateFormat("xml"))
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jakt-bindgen.toml")

	code, out, stderr := runCLI(t, "init", "--path", path)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "Wrote "+path+"\n", out)
	assert.FileExists(t, path)

	code, _, stderr = runCLI(t, "init", "--path", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--force")

	code, _, _ = runCLI(t, "init", "--path", path, "--force")
	assert.Equal(t, 0, code)
}

func TestGenerate_WatchRegenerates(t *testing.T) {
	dir := setupHeaders(t, map[string]string{"Button.h": buttonHeader})
	out := filepath.Join(dir, "out", "button.jakt")

	var stdout, stderr syncBuffer
	done := make(chan int, 1)
	go func() {
		done <- run([]string{"generate", "--watch", "-n", "GUI", "-b", dir, "-o", filepath.Join(dir, "out"),
			"--log-json", filepath.Join(dir, "Button.h")}, &stdout, &stderr)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "watching for changes")
	}, 5*time.Second, 10*time.Millisecond)

	changed := strings.Replace(buttonHeader, "void click();", "void press();", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Button.h"), []byte(changed), 0o644))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && strings.Contains(string(data), "fn press(this)")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on interrupt")
	}
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a running
// command and the reads of a test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
