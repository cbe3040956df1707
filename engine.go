package bindgen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/jward/jakt-bindgen/internal/collect"
	"github.com/jward/jakt-bindgen/internal/config"
	"github.com/jward/jakt-bindgen/internal/cxx"
	"github.com/jward/jakt-bindgen/internal/decl"
	"github.com/jward/jakt-bindgen/internal/diag"
	"github.com/jward/jakt-bindgen/internal/emit"
	"github.com/jward/jakt-bindgen/internal/imports"
	"github.com/jward/jakt-bindgen/internal/store"
	"github.com/jward/jakt-bindgen/internal/translate"
)

// Version is recorded in the manifest. A manifest written by another
// version is ignored and every file is regenerated.
const Version = "0.3.0"

const versionKey = "generator_version"

// Frontend turns a source file into a declaration unit.
type Frontend interface {
	ParseFile(ctx context.Context, path string) (*decl.Unit, error)
}

// Engine orchestrates the generation pipeline: parse, collect, emit and
// write each input, then every dependency file the inputs discovered, until
// no new files are scheduled.
type Engine struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	frontend  Frontend
	parser    *cxx.Parser // owned frontend, nil when WithFrontend was used
	store     *store.Store
	ownStore  bool
	outputDir string
	baseDirs  []string

	tr         *translate.Translator
	emitter    *emit.Emitter
	configHash string
	// files are the files processed by the last Run, in processing order.
	files []string
	// stale forces regeneration of every file regardless of the manifest.
	stale bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostics logger. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithFrontend replaces the tree-sitter C++ frontend.
func WithFrontend(f Frontend) Option {
	return func(e *Engine) {
		e.frontend = f
	}
}

// WithStore enables incremental mode on an already migrated store. The
// Engine does not close it.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithOutputDir overrides the configured output directory.
func WithOutputDir(dir string) Option {
	return func(e *Engine) {
		e.outputDir = dir
	}
}

// New creates an Engine for cfg. When cfg.DB is set and no store was given,
// the manifest database is opened and migrated.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, outputDir: cfg.OutputDir}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop().Sugar()
	}
	if e.outputDir == "" {
		e.outputDir = "."
	}

	trOpts, err := cfg.TranslateOptions()
	if err != nil {
		return nil, errors.Wrap(err, "bindgen: translator options")
	}
	e.tr = translate.New(trOpts)
	e.emitter = emit.New(e.tr, cfg.EmitOptions(), e.log)
	e.configHash = cfg.Fingerprint()

	for _, d := range cfg.BaseDirs {
		canon, err := imports.Canonicalize(d)
		if err != nil {
			return nil, errors.Wrapf(err, "bindgen: base dir %s", d)
		}
		e.baseDirs = append(e.baseDirs, canon)
	}

	if e.frontend == nil {
		fo, err := cfg.FrontendOptions(e.log)
		if err != nil {
			return nil, errors.Wrap(err, "bindgen: frontend options")
		}
		e.parser = cxx.NewParser(fo)
		e.frontend = e.parser
	}

	if e.store == nil && cfg.DB != "" {
		s, err := store.NewStore(cfg.DB)
		if err != nil {
			e.closeParser()
			return nil, errors.Wrap(err, "bindgen: create store")
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			e.closeParser()
			return nil, errors.Wrap(err, "bindgen: migrate")
		}
		e.store, e.ownStore = s, true
	}
	if e.store != nil {
		v, err := e.store.GetMetadata(versionKey)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.stale = v != Version
	}
	return e, nil
}

// Close releases the frontend and any store the Engine opened.
func (e *Engine) Close() error {
	e.closeParser()
	if e.ownStore && e.store != nil {
		err := e.store.Close()
		e.store = nil
		return err
	}
	return nil
}

func (e *Engine) closeParser() {
	if e.parser != nil {
		e.parser.Close()
		e.parser = nil
	}
}

// Run generates bindings for inputs and, transitively, for every file their
// bindings depend on. Files are processed in batches: the inputs first, then
// the files scheduled while processing the previous batch.
//
// The status is 1 when some file of the last failing batch could not be
// generated, else 0. A fatal error aborts the run and is returned.
func (e *Engine) Run(ctx context.Context, inputs []string) (int, error) {
	resolver := imports.NewResolver()
	ix := collect.New(e.cfg.CollectOptions(e.tr.IsWrapper), resolver, e.log)

	var batch []string
	for _, in := range inputs {
		canon, err := imports.Canonicalize(in)
		if err != nil {
			return 1, errors.Wrapf(err, "input %s", in)
		}
		if resolver.MarkSeen(canon) {
			batch = append(batch, canon)
		}
	}

	e.files = e.files[:0]
	written := make(map[string]string)
	status := 0
	for n := 0; len(batch) > 0; n++ {
		batchStatus := 0
		for _, path := range batch {
			if err := ctx.Err(); err != nil {
				return status, err
			}
			e.files = append(e.files, path)
			err := e.generate(ctx, ix, resolver, path, written)
			if err == nil {
				continue
			}
			if diag.IsFatal(err) {
				return 1, err
			}
			e.log.Errorw("generation failed", "file", path, "error", err)
			batchStatus = 1
		}
		e.log.Debugw("batch finished", "batch", n, "files", len(batch), "status", batchStatus)
		if batchStatus != 0 {
			status = batchStatus
		}
		batch = resolver.Drain()
	}

	if e.store != nil {
		if err := e.store.SetMetadata(versionKey, Version); err != nil {
			return status, err
		}
		e.stale = false
	}
	return status, nil
}

// Files returns the files visited by the last Run, inputs first, including
// up-to-date and failed ones.
func (e *Engine) Files() []string {
	return slices.Clone(e.files)
}

func (e *Engine) generate(ctx context.Context, ix *collect.Index, resolver *imports.Resolver, path string, written map[string]string) error {
	out := e.OutputPath(path)
	if prev, ok := written[out]; ok && prev != path {
		e.log.Warnw("output path shared by two inputs, later one wins", "output", out, "file", path, "previous", prev)
	}

	if skip, err := e.upToDate(path, out, resolver); err != nil {
		e.log.Warnw("manifest lookup failed, regenerating", "file", path, "error", err)
	} else if skip {
		e.log.Debugw("up to date", "file", path)
		written[out] = path
		return nil
	}

	unit, err := e.frontend.ParseFile(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	ix.Reset(unit)
	if err := decl.Walk(unit, ix); err != nil {
		return errors.Wrapf(err, "collect %s", path)
	}

	var buf bytes.Buffer
	if err := e.emitter.File(&buf, unit, ix, e.HeaderPath(path)); err != nil {
		return errors.Wrapf(err, "emit %s", path)
	}
	if err := writeOutput(out, buf.Bytes()); err != nil {
		return err
	}
	written[out] = path
	e.log.Infow("generated", "file", path, "output", out, "classes", len(ix.Tags()), "imports", len(ix.Imports()))

	if e.store == nil {
		return nil
	}
	hash, err := store.HashFiles(unit.Files)
	if err != nil {
		e.log.Warnw("cannot hash inputs, not recording", "file", path, "error", err)
		return nil
	}
	err = e.store.RecordGeneration(store.Generation{
		Path:         path,
		Hash:         hash,
		ConfigHash:   e.configHash,
		Output:       out,
		Inputs:       unit.Files,
		Dependencies: ix.Dependencies(),
	})
	if err != nil {
		e.log.Warnw("cannot record generation", "file", path, "error", err)
	}
	return nil
}

// upToDate reports whether path can be skipped. A skipped file re-schedules
// its recorded dependencies so the run reaches the same fixed point.
func (e *Engine) upToDate(path, out string, resolver *imports.Resolver) (bool, error) {
	if e.store == nil || e.stale {
		return false, nil
	}
	f, err := e.store.FileByPath(path)
	if err != nil || f == nil {
		return false, err
	}
	if f.ConfigHash != e.configHash || f.Output != out {
		return false, nil
	}
	if _, err := os.Stat(out); err != nil {
		return false, nil
	}
	inputs, err := e.store.Inputs(f.ID)
	if err != nil {
		return false, err
	}
	hash, err := store.HashFiles(inputs)
	if err != nil || hash != f.Hash {
		return false, nil
	}
	deps, err := e.store.Dependencies(f.ID)
	if err != nil {
		return false, err
	}
	for _, d := range deps {
		if _, err := resolver.Schedule(d); err != nil {
			return false, err
		}
	}
	return true, nil
}

// OutputPath returns where the bindings for path are written: the lower-cased
// base name with the configured extension, under the output directory.
func (e *Engine) OutputPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(e.outputDir, strings.ToLower(base)+e.cfg.Extension)
}

// HeaderPath returns the include path named by the extern import block:
// path relative to the first base directory containing it, else path.
func (e *Engine) HeaderPath(path string) string {
	for _, base := range e.baseDirs {
		rel, err := filepath.Rel(base, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel)
	}
	return path
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Mark(errors.Wrapf(err, "create output directory for %s", path), diag.ErrOutputOpen)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Mark(errors.Wrapf(err, "write %s", path), diag.ErrOutputOpen)
	}
	return nil
}
