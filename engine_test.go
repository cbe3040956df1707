package bindgen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jward/jakt-bindgen/internal/config"
	"github.com/jward/jakt-bindgen/internal/diag"
)

func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func testConfig(t *testing.T, dir string, set map[string]any) *config.Config {
	t.Helper()
	v, err := config.NewViper("", dir)
	require.NoError(t, err)
	v.Set("namespaces", []string{"GUI", "NS"})
	v.Set("base_dirs", []string{dir})
	v.Set("output_dir", filepath.Join(dir, "out"))
	for k, val := range set {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, opts ...Option) (*Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	e, err := New(cfg, append([]Option{WithLogger(zap.New(core).Sugar())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, logs
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "out", name))
	require.NoError(t, err)
	return string(data)
}

const widgetSource = `#pragma once
namespace GUI {
class Widget {
public:
    int width() const;
    static int count();
private:
    void hidden();
};
}
`

func TestRun_WritesBindings(t *testing.T) {
	dir := writeSources(t, map[string]string{"Widget.h": widgetSource})
	e, _ := newTestEngine(t, testConfig(t, dir, nil))

	status, err := e.Run(context.Background(), []string{filepath.Join(dir, "Widget.h")})
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	want := "import extern \"Widget.h\" {\n" +
		"namespace GUI {\n" +
		"extern struct Widget  {\n" +
		"    public fn width(this) -> c_int\n" +
		"    fn count() -> c_int\n" +
		"}\n" +
		"} // namespace\n" +
		"} // import\n"
	assert.Equal(t, want, readOutput(t, dir, "widget.jakt"))
}

func TestRun_SharedDependencyScheduledOnce(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"Dep.h": "#pragma once\nnamespace NS {\nclass Dep {\npublic:\n    int v() const;\n};\n}\n",
		"A.h":   "#include \"Dep.h\"\nnamespace NS {\nclass A {\npublic:\n    void use(Dep const& d);\n};\n}\n",
		"B.h":   "#include \"Dep.h\"\nnamespace NS {\nclass B {\npublic:\n    void take(Dep* d);\n};\n}\n",
	})
	e, logs := newTestEngine(t, testConfig(t, dir, nil))

	status, err := e.Run(context.Background(), []string{filepath.Join(dir, "A.h"), filepath.Join(dir, "B.h")})
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	assert.Equal(t, 1, logs.FilterMessage("scheduled dependency").Len())
	assert.Equal(t, 3, logs.FilterMessage("generated").Len())

	a := readOutput(t, dir, "a.jakt")
	assert.Contains(t, a, "import NS { Dep }\n")
	assert.Contains(t, a, "public fn use(this, d: &NS::Dep) -> void\n")
	b := readOutput(t, dir, "b.jakt")
	assert.Contains(t, b, "import NS { Dep }\n")
	assert.Contains(t, b, "public fn take(this, d: raw NS::Dep) -> void\n")
	assert.Contains(t, readOutput(t, dir, "dep.jakt"), "extern struct Dep  {\n")
	assert.Equal(t, []string{filepath.Join(dir, "A.h"), filepath.Join(dir, "B.h"), filepath.Join(dir, "Dep.h")}, e.Files())
}

func TestRun_PointerParameterSchedulesDependency(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"Dep.h": "#pragma once\nnamespace NS {\nclass Dep {\npublic:\n    int v() const;\n};\n}\n",
		"B.h":   "#include \"Dep.h\"\nnamespace NS {\nclass B {\npublic:\n    void take(Dep* d);\n};\n}\n",
	})
	e, _ := newTestEngine(t, testConfig(t, dir, nil))

	status, err := e.Run(context.Background(), []string{filepath.Join(dir, "B.h")})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, []string{filepath.Join(dir, "B.h"), filepath.Join(dir, "Dep.h")}, e.Files())

	b := readOutput(t, dir, "b.jakt")
	assert.Contains(t, b, "import NS { Dep }\n")
	assert.Contains(t, b, "public fn take(this, d: raw NS::Dep) -> void\n")
	assert.FileExists(t, filepath.Join(dir, "out", "dep.jakt"))
}

func TestRun_Idempotent(t *testing.T) {
	dir := writeSources(t, map[string]string{"Widget.h": widgetSource})
	cfg := testConfig(t, dir, nil)
	path := filepath.Join(dir, "Widget.h")

	e1, _ := newTestEngine(t, cfg)
	_, err := e1.Run(context.Background(), []string{path})
	require.NoError(t, err)
	first := readOutput(t, dir, "widget.jakt")

	e2, _ := newTestEngine(t, cfg)
	_, err = e2.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, first, readOutput(t, dir, "widget.jakt"))
}

func TestRun_FatalErrorAborts(t *testing.T) {
	dir := writeSources(t, map[string]string{"V.h": `namespace GUI {
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
	path := filepath.Join(dir, "V.h")

	e, _ := newTestEngine(t, testConfig(t, dir, nil))
	status, err := e.Run(context.Background(), []string{path})
	require.Error(t, err)
	assert.True(t, diag.IsFatal(err))
	assert.Equal(t, 1, status)
	_, statErr := os.Stat(filepath.Join(dir, "out", "v.jakt"))
	assert.True(t, os.IsNotExist(statErr), "nothing written for the failing file")

	permissive, logs := newTestEngine(t, testConfig(t, dir, map[string]any{"bases.policy": "permissive"}))
	status, err = permissive.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, 1, logs.FilterField(zap.String("kind", string(diag.KindVirtualBase))).Len())
	assert.Contains(t, readOutput(t, dir, "v.jakt"), "extern struct Derived  {\n")
}

func TestRun_PerFileFailuresSetStatus(t *testing.T) {
	dir := writeSources(t, map[string]string{"Widget.h": widgetSource})

	e, logs := newTestEngine(t, testConfig(t, dir, nil))
	status, err := e.Run(context.Background(), []string{filepath.Join(dir, "Missing.h"), filepath.Join(dir, "Widget.h")})
	require.NoError(t, err)
	assert.Equal(t, 1, status)
	assert.Equal(t, 1, logs.FilterMessage("generation failed").Len())
	assert.FileExists(t, filepath.Join(dir, "out", "widget.jakt"), "later files still run")
}

func TestRun_OutputOpenFailure(t *testing.T) {
	dir := writeSources(t, map[string]string{"Widget.h": widgetSource, "blocker": "not a directory"})

	e, _ := newTestEngine(t, testConfig(t, dir, nil), WithOutputDir(filepath.Join(dir, "blocker")))
	status, err := e.Run(context.Background(), []string{filepath.Join(dir, "Widget.h")})
	require.NoError(t, err)
	assert.Equal(t, 1, status)
}

func TestRun_ContextCanceled(t *testing.T) {
	dir := writeSources(t, map[string]string{"Widget.h": widgetSource})
	e, _ := newTestEngine(t, testConfig(t, dir, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, []string{filepath.Join(dir, "Widget.h")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_IncrementalSkipsUnchanged(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"Dep.h": "#pragma once\nnamespace NS {\nclass Dep {\npublic:\n    int v() const;\n};\n}\n",
		"A.h":   "#include \"Dep.h\"\nnamespace NS {\nclass A {\npublic:\n    void use(Dep const& d);\n};\n}\n",
	})
	cfg := testConfig(t, dir, map[string]any{"db": filepath.Join(dir, "manifest.db")})
	input := []string{filepath.Join(dir, "A.h")}

	first, logs := newTestEngine(t, cfg)
	_, err := first.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("generated").Len())
	require.NoError(t, first.Close())

	second, logs := newTestEngine(t, cfg)
	status, err := second.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, 0, logs.FilterMessage("generated").Len())
	assert.Equal(t, 2, logs.FilterMessage("up to date").Len(), "dependency still visited")
	require.NoError(t, second.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dep.h"),
		[]byte("#pragma once\nnamespace NS {\nclass Dep {\npublic:\n    int w() const;\n};\n}\n"), 0o644))
	third, logs := newTestEngine(t, cfg)
	_, err = third.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("generated").Len(), "A includes Dep, so both are stale")
	assert.Contains(t, readOutput(t, dir, "dep.jakt"), "public fn w(this) -> c_int\n")
}

func TestPaths(t *testing.T) {
	dir := writeSources(t, nil)
	e, _ := newTestEngine(t, testConfig(t, dir, nil))

	assert.Equal(t, filepath.Join(dir, "out", "button.jakt"), e.OutputPath(filepath.Join(dir, "LibGUI", "Button.h")))
	assert.Equal(t, "LibGUI/Button.h", e.HeaderPath(filepath.Join(dir, "LibGUI", "Button.h")))
	assert.Equal(t, "/elsewhere/Thing.h", e.HeaderPath("/elsewhere/Thing.h"))
}
