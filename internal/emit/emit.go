// Package emit renders collected declarations as Jakt extern bindings.
package emit

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/jakt-bindgen/internal/collect"
	"github.com/jward/jakt-bindgen/internal/decl"
	"github.com/jward/jakt-bindgen/internal/diag"
	"github.com/jward/jakt-bindgen/internal/translate"
)

// ReferencePolicy selects how methods returning references are handled.
type ReferencePolicy int

const (
	// ReferencesSkip replaces the method with a placeholder comment.
	ReferencesSkip ReferencePolicy = iota
	// ReferencesUnprefixed emits the referenced type without a marker.
	ReferencesUnprefixed
)

const indentUnit = "    "

// Options configure an Emitter.
type Options struct {
	// RefCountedBase selects "class" over "struct" for types deriving from it.
	RefCountedBase string
	// LifecycleBase enables factory methods for types deriving from it.
	LifecycleBase string
	// Suppressed bases are left out of declaration lines.
	Suppressed []string
	// FactoryName is the native name the factory attribute rewrites to.
	FactoryName string
	References  ReferencePolicy
	// MutableReceiver spells the receiver of non-const methods "mut this".
	MutableReceiver bool
}

// Source is the collected state of one file.
type Source interface {
	Tags() []decl.TagID
	MethodsFor(id decl.TagID) []decl.MethodID
	Imports() []collect.Import
}

// Emitter renders one file at a time.
type Emitter struct {
	opts Options
	tr   *translate.Translator
	log  *zap.SugaredLogger
}

// New returns an Emitter translating types with tr.
func New(tr *translate.Translator, opts Options, log *zap.SugaredLogger) *Emitter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.FactoryName == "" {
		opts.FactoryName = "try_create"
	}
	return &Emitter{opts: opts, tr: tr, log: log}
}

type file struct {
	u    *decl.Unit
	src  Source
	path string
	buf  bytes.Buffer
}

func (f *file) line(depth int, format string, args ...any) {
	f.buf.WriteString(strings.Repeat(indentUnit, depth))
	fmt.Fprintf(&f.buf, format, args...)
	f.buf.WriteByte('\n')
}

// File renders the bindings for src into w. header is the include path the
// extern import block names. Nothing is written if rendering fails.
func (e *Emitter) File(w io.Writer, u *decl.Unit, src Source, header string) error {
	f := &file{u: u, src: src, path: u.MainFile}

	seen := make(map[string]bool)
	for _, imp := range src.Imports() {
		key := imp.Namespace + "::" + imp.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		if imp.Namespace == "" {
			f.line(0, "import %s", imp.Name)
			continue
		}
		f.line(0, "import %s { %s }", imp.Namespace, imp.Name)
	}

	f.line(0, "import extern %q {", header)
	for _, id := range src.Tags() {
		t := u.Tag(id)
		if t == nil {
			continue
		}
		ns := u.NamespaceOf(id)
		if ns != "" {
			f.line(0, "namespace %s {", ns)
		}
		if err := e.tag(f, t, 0); err != nil {
			return err
		}
		if ns != "" {
			f.line(0, "} // namespace")
		}
	}
	f.line(0, "} // import")

	_, err := w.Write(f.buf.Bytes())
	return err
}

func (e *Emitter) tag(f *file, t *decl.TagDecl, depth int) error {
	switch {
	case t.Kind == decl.KindEnum:
		return e.enum(f, t, depth)
	case t.Kind == decl.KindUnion, !t.Complete, t.Template, t.Specialization:
		return nil
	}
	return e.class(f, t, depth)
}

func (e *Emitter) class(f *file, t *decl.TagDecl, depth int) error {
	u := f.u
	kw := "struct"
	if e.opts.RefCountedBase != "" && u.DerivesFrom(t.ID, e.opts.RefCountedBase) {
		kw = "class"
	}
	head := "extern " + kw + " " + t.Name + " "
	if bases := e.baseNames(u, t); len(bases) > 0 {
		head += ": " + strings.Join(bases, ", ")
	}
	f.line(depth, "%s {", head)

	for _, nid := range t.Nested {
		if n := u.Tag(nid); n != nil {
			if err := e.tag(f, n, depth+1); err != nil {
				return err
			}
		}
	}
	for _, mid := range f.src.MethodsFor(t.ID) {
		if m := u.Method(mid); m != nil {
			if err := e.method(f, t, m, depth+1); err != nil {
				return err
			}
		}
	}
	if e.opts.LifecycleBase != "" && u.DerivesFrom(t.ID, e.opts.LifecycleBase) {
		for _, m := range Factories(u, t) {
			if err := e.factory(f, t, m, depth+1); err != nil {
				return err
			}
		}
	}
	f.line(depth, "}")
	return nil
}

// baseNames returns the bases to list on the declaration line: public,
// non-virtual, defined, and not suppressed. Invalid bases were already
// reported during collection.
func (e *Emitter) baseNames(u *decl.Unit, t *decl.TagDecl) []string {
	var out []string
	for _, b := range t.Bases {
		if b.Type == nil || b.Type.Kind != decl.Record || b.Virtual || b.Access != decl.Public {
			continue
		}
		bt := u.Tag(b.Type.Decl)
		if bt == nil || !bt.Complete || slices.Contains(e.opts.Suppressed, u.QualifiedName(bt.ID)) {
			continue
		}
		out = append(out, bt.Name)
	}
	return out
}

// Factories returns the constructors of t that get a synthesized factory:
// every declared constructor except default, copy, move, deleted and
// template constructors.
func Factories(u *decl.Unit, t *decl.TagDecl) []*decl.MethodDecl {
	var out []*decl.MethodDecl
	for _, mid := range t.Methods {
		m := u.Method(mid)
		if m == nil || m.Kind != decl.Constructor || m.Deleted || m.Template {
			continue
		}
		if m.IsDefaultConstructor() || m.IsCopyOrMoveConstructor() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (e *Emitter) enum(f *file, t *decl.TagDecl, depth int) error {
	head := "extern enum " + t.Name
	if t.Underlying != nil {
		s, ds, err := e.tr.Translate(t.Underlying, 0)
		if err != nil {
			return err
		}
		diag.ReportAll(e.log, f.path, f.u.QualifiedName(t.ID), ds)
		head += ": " + s
	}
	f.line(depth, "%s {", head)
	for _, en := range t.Enumerators {
		if en.Value != "" {
			f.line(depth+1, "%s = %s", en.Name, en.Value)
		} else {
			f.line(depth+1, "%s", en.Name)
		}
	}
	f.line(depth, "}")
	return nil
}

func (e *Emitter) method(f *file, t *decl.TagDecl, m *decl.MethodDecl, depth int) error {
	name := f.u.QualifiedName(t.ID) + "::" + m.Name
	if m.Template {
		diag.Report(e.log, diag.Diagnostic{Kind: diag.KindTemplateMethod, File: f.path, Decl: name, Message: "template method not translated"})
		f.line(depth, "// TODO: Template method %s", m.Name)
		return nil
	}

	var ret string
	if m.Kind == decl.Constructor {
		ret = t.Name
	} else {
		rt := m.Return.Unqualified()
		if rt != nil && rt.Kind == decl.Reference && e.opts.References == ReferencesSkip {
			diag.Report(e.log, diag.Diagnostic{Kind: diag.KindReferenceReturn, File: f.path, Decl: name, Message: "method returns a reference, skipping"})
			f.line(depth, "// FIXME: Method %s returns a reference", m.Name)
			return nil
		}
		s, ds, err := e.tr.Translate(m.Return, translate.IsReturnType|translate.InThrowingContext)
		if err != nil {
			return err
		}
		diag.ReportAll(e.log, f.path, name, ds)
		ret = s
	}

	params, err := e.params(f, name, m.Params)
	if err != nil {
		return err
	}
	var b strings.Builder
	if !m.Static {
		b.WriteString(m.Access.String())
		b.WriteByte(' ')
		if m.Virtual {
			b.WriteString("virtual ")
		}
	}
	b.WriteString("fn ")
	b.WriteString(m.Name)
	b.WriteByte('(')
	if !m.Static {
		if e.opts.MutableReceiver && !m.Const {
			b.WriteString("mut this")
		} else {
			b.WriteString("this")
		}
		if len(params) > 0 {
			b.WriteString(", ")
		}
	}
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(") ")
	if m.Kind != decl.Constructor && e.tr.IsFallible(m.Return) {
		b.WriteString("throws ")
	}
	b.WriteString("-> ")
	b.WriteString(ret)
	f.line(depth, "%s", b.String())
	return nil
}

func (e *Emitter) factory(f *file, t *decl.TagDecl, ctor *decl.MethodDecl, depth int) error {
	params, err := e.params(f, f.u.QualifiedName(t.ID)+"::"+ctor.Name, ctor.Params)
	if err != nil {
		return err
	}
	f.line(depth, "[[name=%q]] fn create(%s) throws -> %s", e.opts.FactoryName, strings.Join(params, ", "), t.Name)
	return nil
}

func (e *Emitter) params(f *file, name string, ps []decl.Param) ([]string, error) {
	out := make([]string, 0, len(ps))
	for i, p := range ps {
		s, ds, err := e.tr.Translate(p.Type, 0)
		if err != nil {
			return nil, err
		}
		diag.ReportAll(e.log, f.path, name, ds)
		out = append(out, translate.ParamName(p, i)+": "+s)
	}
	return out, nil
}
