// Package cxx is a tree-sitter based C++ declaration frontend.
//
// It parses a source file together with the headers it includes and builds
// a decl.Unit with resolved names. It does not preprocess: every branch of
// a conditional block is read, macros are not expanded, and a configurable
// list of macros is blanked out before parsing so their invocations do not
// derail the grammar.
package cxx

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"go.uber.org/zap"

	"github.com/jward/jakt-bindgen/internal/decl"
	"github.com/jward/jakt-bindgen/internal/diag"
	"github.com/jward/jakt-bindgen/internal/imports"
)

// DefaultStripMacros are SerenityOS macros that appear inside class bodies
// or declarations and do not parse as C++.
var DefaultStripMacros = []string{
	"C_OBJECT",
	"C_OBJECT_ABSTRACT",
	"AK_MAKE_NONCOPYABLE",
	"AK_MAKE_NONMOVABLE",
	"AK_MAKE_DEFAULT_MOVABLE",
	"AK_MAKE_DEFAULT_COPYABLE",
	"ALWAYS_INLINE",
	"NEVER_INLINE",
	"FLATTEN",
}

// DefaultAliases maps unqualified AK names to their qualified form when the
// AK headers themselves are not reachable.
var DefaultAliases = map[string]string{
	"String":         "AK::String",
	"StringView":     "AK::StringView",
	"ErrorOr":        "AK::ErrorOr",
	"NonnullRefPtr":  "AK::NonnullRefPtr",
	"Optional":       "AK::Optional",
	"Vector":         "AK::Vector",
	"HashMap":        "AK::HashMap",
	"WeakPtr":        "AK::WeakPtr",
	"Function":       "AK::Function",
	"RefCounted":     "AK::RefCounted",
	"RefCountedBase": "AK::RefCountedBase",
	"Weakable":       "AK::Weakable",
}

// DefaultImpliedBases gives unreachable marker templates the base they have
// in AK.
var DefaultImpliedBases = map[string][]string{
	"AK::RefCounted": {"AK::RefCountedBase"},
}

// Options configure a Parser.
type Options struct {
	IncludeDirs     []string
	MaxIncludeDepth int
	// Aliases map an unqualified spelling to a qualified name. They are
	// consulted after normal lookup fails.
	Aliases map[string]string
	// ImpliedBases add bases to tags that stayed undefined.
	ImpliedBases map[string][]string
	StripMacros  []string
	Logger       *zap.SugaredLogger
}

type include struct {
	path   string
	system bool
}

type source struct {
	path     string
	src      []byte
	tree     *sitter.Tree
	includes []include
}

// Parser builds units. Parsed files are cached for the Parser's lifetime,
// so headers shared by many inputs are read once. A Parser is not safe for
// concurrent use.
type Parser struct {
	opts   Options
	log    *zap.SugaredLogger
	parser *sitter.Parser
	strip  *regexp.Regexp
	cache  map[string]*source
}

// NewParser returns a Parser for opts.
func NewParser(opts Options) *Parser {
	if opts.MaxIncludeDepth <= 0 {
		opts.MaxIncludeDepth = 16
	}
	if opts.Aliases == nil {
		opts.Aliases = DefaultAliases
	}
	if opts.ImpliedBases == nil {
		opts.ImpliedBases = DefaultImpliedBases
	}
	if opts.StripMacros == nil {
		opts.StripMacros = DefaultStripMacros
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return &Parser{
		opts:   opts,
		log:    log,
		parser: p,
		strip:  stripPattern(opts.StripMacros),
		cache:  make(map[string]*source),
	}
}

// Close releases every cached tree and the underlying parser.
func (p *Parser) Close() {
	for _, s := range p.cache {
		s.tree.Close()
	}
	p.cache = map[string]*source{}
	p.parser.Close()
}

// ParseFile builds the unit for path and the headers it includes.
func (p *Parser) ParseFile(ctx context.Context, path string) (*decl.Unit, error) {
	canon, err := imports.Canonicalize(path)
	if err != nil {
		return nil, errors.Mark(err, diag.ErrParse)
	}
	var order []*source
	if err := p.load(ctx, canon, 0, map[string]bool{}, &order); err != nil {
		return nil, err
	}
	return p.build(canon, order), nil
}

// ParseSource is ParseFile with the main file's contents supplied by the
// caller. Included headers are still read from disk.
func (p *Parser) ParseSource(ctx context.Context, path string, src []byte) (*decl.Unit, error) {
	canon, err := imports.Canonicalize(path)
	if err != nil {
		return nil, errors.Mark(err, diag.ErrParse)
	}
	if old, ok := p.cache[canon]; ok {
		old.tree.Close()
		delete(p.cache, canon)
	}
	if _, err := p.parse(ctx, canon, src); err != nil {
		return nil, err
	}
	return p.ParseFile(ctx, canon)
}

func (p *Parser) load(ctx context.Context, path string, depth int, visited map[string]bool, order *[]*source) error {
	if visited[path] {
		return nil
	}
	visited[path] = true
	if err := ctx.Err(); err != nil {
		return err
	}

	s, err := p.source(ctx, path)
	if err != nil {
		if depth == 0 {
			return err
		}
		p.log.Debugw("skipping unreadable include", "file", path, "error", err)
		return nil
	}
	if depth < p.opts.MaxIncludeDepth {
		for _, inc := range s.includes {
			resolved, ok := p.resolveInclude(inc, filepath.Dir(path))
			if !ok {
				p.log.Debugw("include not found", "kind", string(diag.KindMissingInclude), "file", path, "include", inc.path)
				continue
			}
			if err := p.load(ctx, resolved, depth+1, visited, order); err != nil {
				return err
			}
		}
	}
	*order = append(*order, s)
	return nil
}

func (p *Parser) source(ctx context.Context, path string) (*source, error) {
	if s, ok := p.cache[path]; ok {
		return s, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %s", path), diag.ErrParse)
	}
	return p.parse(ctx, path, src)
}

func (p *Parser) parse(ctx context.Context, path string, src []byte) (*source, error) {
	src = blankMacros(p.strip, src)
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parse %s", path), diag.ErrParse)
	}
	s := &source{path: path, src: src, tree: tree}
	root := tree.RootNode()
	if root.HasError() {
		diag.Report(p.log, diag.Diagnostic{Kind: diag.KindParseError, File: path, Message: "source has syntax errors, declarations may be missing"})
	}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "preproc_include" {
			return true
		}
		pn := field(n, "path")
		if pn == nil {
			return false
		}
		text := strings.TrimSpace(nodeText(pn, src))
		switch pn.Type() {
		case "system_lib_string":
			s.includes = append(s.includes, include{path: strings.Trim(text, "<>"), system: true})
		case "string_literal":
			s.includes = append(s.includes, include{path: strings.Trim(text, `"`)})
		}
		return false
	})
	p.cache[path] = s
	return s, nil
}

// resolveInclude searches the including directory for quoted includes, then
// every include directory in order.
func (p *Parser) resolveInclude(inc include, dir string) (string, bool) {
	var candidates []string
	if !inc.system {
		candidates = append(candidates, filepath.Join(dir, inc.path))
	}
	for _, d := range p.opts.IncludeDirs {
		candidates = append(candidates, filepath.Join(d, inc.path))
	}
	for _, c := range candidates {
		fi, err := os.Stat(c)
		if err != nil || fi.IsDir() {
			continue
		}
		canon, err := imports.Canonicalize(c)
		if err != nil {
			continue
		}
		return canon, true
	}
	return "", false
}

func stripPattern(names []string) *regexp.Regexp {
	if len(names) == 0 {
		return nil
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b(?:[ \t]*\([^()\n]*\))?[ \t]*;?`)
}

// blankMacros overwrites every match of re with spaces so byte offsets and
// line numbers are unchanged.
func blankMacros(re *regexp.Regexp, src []byte) []byte {
	if re == nil {
		return src
	}
	locs := re.FindAllIndex(src, -1)
	if len(locs) == 0 {
		return src
	}
	out := append([]byte(nil), src...)
	for _, loc := range locs {
		for i := loc[0]; i < loc[1]; i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
	}
	return out
}
