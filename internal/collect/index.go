// Package collect decides which declarations of a unit are bound and
// discovers the files they depend on.
//
// An Index is reset at the start of every input file and fed declarations
// through the decl.Visitor methods. It records admitted tags, their admitted
// methods in discovery order, and the imports the file needs. Dependency
// files are handed to an imports.Resolver, which outlives the Index state.
package collect

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/jward/jakt-bindgen/internal/decl"
	"github.com/jward/jakt-bindgen/internal/diag"
	"github.com/jward/jakt-bindgen/internal/imports"
)

// BasePolicy selects how invalid bases are handled.
type BasePolicy int

const (
	// BasesStrict aborts the run on a virtual, non-public or unusable base.
	BasesStrict BasePolicy = iota
	// BasesPermissive reports a diagnostic and skips the base.
	BasesPermissive
)

// Options configure an Index.
type Options struct {
	// Namespaces are the target namespaces. An entry matches either the
	// innermost enclosing namespace name or the full "::"-joined path.
	Namespaces []string
	Bases      BasePolicy
	// Suppressed lists qualified base names that are never imported and
	// never validated.
	Suppressed []string
	// IsWrapper reports qualified names that never produce imports or
	// scheduling, such as the translator's template wrappers.
	IsWrapper func(qualified string) bool
	// MaxTemplateDepth bounds recursion into template arguments.
	MaxTemplateDepth int
}

// Import is a dependency of the current file on a tag defined elsewhere.
type Import struct {
	Tag       decl.TagID
	Namespace string
	Name      string
	File      string
}

// Index is the per-file declaration collector.
type Index struct {
	opts     Options
	resolver *imports.Resolver
	log      *zap.SugaredLogger

	unit *decl.Unit
	file string

	tags     []decl.TagID
	admitted map[decl.TagID]bool
	methods  map[decl.TagID][]decl.MethodID
	seenMeth map[decl.MethodID]bool
	imports  []Import
	imported map[decl.TagID]bool
	tracked  map[decl.TagID]bool
	deps     []string
	depSet   map[string]bool
}

var _ decl.Visitor = (*Index)(nil)

// New returns an Index that schedules dependencies on resolver.
func New(opts Options, resolver *imports.Resolver, log *zap.SugaredLogger) *Index {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.MaxTemplateDepth <= 0 {
		opts.MaxTemplateDepth = 8
	}
	ix := &Index{opts: opts, resolver: resolver, log: log}
	ix.Reset(nil)
	return ix
}

// Reset discards all collected state and starts collecting for u. The
// resolver's seen set is untouched.
func (ix *Index) Reset(u *decl.Unit) {
	ix.unit = u
	ix.file = ""
	if u != nil {
		ix.file = u.MainFile
	}
	ix.tags = nil
	ix.admitted = make(map[decl.TagID]bool)
	ix.methods = make(map[decl.TagID][]decl.MethodID)
	ix.seenMeth = make(map[decl.MethodID]bool)
	ix.imports = nil
	ix.imported = make(map[decl.TagID]bool)
	ix.tracked = make(map[decl.TagID]bool)
	ix.deps = nil
	ix.depSet = make(map[string]bool)
}

// Tags returns the admitted tags in admission order.
func (ix *Index) Tags() []decl.TagID { return ix.tags }

// MethodsFor returns the admitted methods of tag id in discovery order.
func (ix *Index) MethodsFor(id decl.TagID) []decl.MethodID { return ix.methods[id] }

// Imports returns the import records of the current file.
func (ix *Index) Imports() []Import { return ix.imports }

// Dependencies returns the canonical declaring files of every out-of-file
// type the current file referenced, whether or not it was newly scheduled.
func (ix *Index) Dependencies() []string { return ix.deps }

// Admitted reports whether tag id was admitted.
func (ix *Index) Admitted(id decl.TagID) bool { return ix.admitted[id] }

// VisitClass admits t if it is a complete class or struct defined in the
// current file directly inside a target namespace, then validates its bases.
func (ix *Index) VisitClass(u *decl.Unit, t *decl.TagDecl) error {
	if ix.admitted[t.ID] {
		return nil
	}
	if t.Kind != decl.KindClass && t.Kind != decl.KindStruct {
		return nil
	}
	if t.Template || t.Specialization || !ix.inTargetNamespace(t) || !ix.definedHere(t) {
		return nil
	}
	if err := ix.checkBases(u, t); err != nil {
		return err
	}
	ix.admit(t.ID)
	return nil
}

// VisitEnum admits t if it is defined in the current file directly inside
// a target namespace.
func (ix *Index) VisitEnum(u *decl.Unit, t *decl.TagDecl) error {
	if ix.admitted[t.ID] || t.Kind != decl.KindEnum {
		return nil
	}
	if !ix.inTargetNamespace(t) || !ix.definedHere(t) {
		return nil
	}
	ix.admit(t.ID)
	return nil
}

// VisitMethod admits m if its owner is an admitted class, or is nested in
// one, and m is representable.
func (ix *Index) VisitMethod(u *decl.Unit, m *decl.MethodDecl) error {
	if ix.seenMeth[m.ID] || !ix.ownerAdmitted(u, m.Owner) {
		return nil
	}
	if m.Access == decl.Private {
		return nil
	}
	for _, p := range m.Params {
		if p.Type.ContainsUnexpandedPack() {
			ix.log.Debugw("skipping method with parameter pack",
				"kind", string(diag.KindParameterPack), "file", ix.file, "method", m.Name)
			return nil
		}
	}
	if !m.Static {
		switch m.Kind {
		case decl.Destructor, decl.Conversion, decl.Operator:
			return nil
		case decl.Constructor:
			if m.Deleted || m.IsCopyOrMoveConstructor() {
				return nil
			}
		}
	}
	ix.seenMeth[m.ID] = true
	ix.methods[m.Owner] = append(ix.methods[m.Owner], m.ID)

	for _, p := range m.Params {
		ix.track(u, p.Type, 0)
	}
	return nil
}

func (ix *Index) admit(id decl.TagID) {
	ix.admitted[id] = true
	ix.tags = append(ix.tags, id)
}

func (ix *Index) ownerAdmitted(u *decl.Unit, owner decl.TagID) bool {
	for t := u.Tag(owner); t != nil; t = u.Tag(t.Parent) {
		if ix.admitted[t.ID] {
			return t.ID == owner || nestedRecordChain(u, owner, t.ID)
		}
	}
	return false
}

// nestedRecordChain reports whether every tag between id and outer is a
// complete non-template record.
func nestedRecordChain(u *decl.Unit, id, outer decl.TagID) bool {
	for t := u.Tag(id); t != nil && t.ID != outer; t = u.Tag(t.Parent) {
		if !t.Kind.IsRecord() || !t.Complete || t.Template {
			return false
		}
	}
	return true
}

func (ix *Index) inTargetNamespace(t *decl.TagDecl) bool {
	if t.Parent != 0 || len(t.Namespace) == 0 {
		return false
	}
	inner := t.Namespace[len(t.Namespace)-1]
	full := strings.Join(t.Namespace, "::")
	return slices.Contains(ix.opts.Namespaces, inner) || slices.Contains(ix.opts.Namespaces, full)
}

func (ix *Index) definedHere(t *decl.TagDecl) bool {
	return t.Complete && t.File != "" && samePath(t.File, ix.file)
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func (ix *Index) suppressed(qualified string) bool {
	return slices.Contains(ix.opts.Suppressed, qualified)
}

func (ix *Index) isWrapper(qualified string) bool {
	return ix.opts.IsWrapper != nil && ix.opts.IsWrapper(qualified)
}

// checkBases validates the bases of t and registers imports for the usable
// ones defined in other files.
func (ix *Index) checkBases(u *decl.Unit, t *decl.TagDecl) error {
	name := u.QualifiedName(t.ID)
	for _, b := range t.Bases {
		if b.Type == nil || b.Type.Kind != decl.Record {
			continue
		}
		baseName := b.Type.Name
		if b.Type.Decl != 0 {
			baseName = u.QualifiedName(b.Type.Decl)
		}
		if ix.suppressed(baseName) {
			continue
		}
		var (
			kind error
			dk   diag.Kind
			msg  string
		)
		bt := u.Tag(b.Type.Decl)
		switch {
		case b.Virtual:
			kind, dk, msg = diag.ErrVirtualBase, diag.KindVirtualBase, "virtual base "+baseName+" is not supported"
		case b.Access != decl.Public:
			kind, dk, msg = diag.ErrNonPublicBase, diag.KindNonPublicBase, b.Access.String()+" base "+baseName+" is not supported"
		case bt == nil || !bt.Complete:
			kind, dk, msg = diag.ErrUnusableBase, diag.KindUnusableBase, "base "+baseName+" has no definition"
		}
		if kind != nil {
			if ix.opts.Bases == BasesStrict {
				return errors.WithHint(diag.Fatalf(kind, "%s: %s", name, msg),
					"set bases.policy = \"permissive\" to skip such bases with a warning")
			}
			diag.Report(ix.log, diag.Diagnostic{Kind: dk, File: ix.file, Decl: name, Message: msg + ", skipping base"})
			continue
		}
		if !samePath(bt.File, ix.file) {
			ix.addImport(u, bt)
			ix.schedule(bt.File)
		}
	}
	return nil
}

// track follows a parameter type, through pointers and references, to the
// class it names and schedules that class's file. Template arguments of
// specializations are followed up to MaxTemplateDepth levels. Class templates
// are never admitted, so they are not imported themselves.
func (ix *Index) track(u *decl.Unit, ty *decl.Type, depth int) {
	ty = ty.Unqualified()
	for ty != nil && (ty.Kind == decl.Pointer || ty.Kind == decl.Reference) {
		ty = ty.Pointee.Unqualified()
	}
	if ty == nil || ty.Kind != decl.Record {
		return
	}
	if ty.IsSpecialization() {
		if depth >= ix.opts.MaxTemplateDepth {
			diag.Report(ix.log, diag.Diagnostic{
				Kind: diag.KindTemplateDepth, File: ix.file, Decl: ty.Name,
				Message: "template argument recursion limit reached",
			})
			return
		}
		for _, a := range ty.Args {
			if !a.IsType() {
				continue
			}
			ix.track(u, a.Type, depth+1)
		}
	}
	if ix.isWrapper(ty.Name) || ix.tracked[ty.Decl] {
		return
	}
	t := u.Tag(ty.Decl)
	if t == nil || t.File == "" || t.Template || t.Specialization || samePath(t.File, ix.file) {
		return
	}
	ix.tracked[t.ID] = true
	ix.addImport(u, t)
	ix.schedule(t.File)
}

func (ix *Index) addImport(u *decl.Unit, t *decl.TagDecl) {
	if ix.imported[t.ID] || ix.suppressed(u.QualifiedName(t.ID)) {
		return
	}
	ix.imported[t.ID] = true
	ix.imports = append(ix.imports, Import{
		Tag:       t.ID,
		Namespace: u.NamespaceOf(t.ID),
		Name:      t.Name,
		File:      t.File,
	})
}

func (ix *Index) schedule(file string) {
	if !ix.depSet[file] {
		ix.depSet[file] = true
		ix.deps = append(ix.deps, file)
	}
	if ix.resolver == nil {
		return
	}
	ok, err := ix.resolver.Schedule(file)
	if err != nil {
		ix.log.Warnw("cannot schedule dependency", "file", file, "error", err)
		return
	}
	if ok {
		ix.log.Debugw("scheduled dependency", "file", file, "from", ix.file)
	}
}
