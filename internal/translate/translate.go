// Package translate maps source types to Jakt type spellings.
//
// Translation is pure: it reads only the type and the flags it is given,
// returns recoverable problems as diagnostics and never logs. Rules are
// tried in a fixed order and the first match wins.
package translate

import (
	"strings"

	"github.com/jward/jakt-bindgen/internal/decl"
	"github.com/jward/jakt-bindgen/internal/diag"
)

// Flags carry the position a type is translated in.
type Flags uint8

const (
	// IsReturnType marks a method return type. Reference markers are
	// dropped in this position.
	IsReturnType Flags = 1 << iota
	// InThrowingContext allows a fallible result wrapper to be unwrapped.
	InThrowingContext
)

// Has reports whether every flag in x is set.
func (f Flags) Has(x Flags) bool { return f&x == x }

// Without returns f with x cleared.
func (f Flags) Without(x Flags) Flags { return f &^ x }

// PointerPolicy selects how raw pointers are spelled.
type PointerPolicy int

const (
	// PointersUniform spells every pointer "raw T".
	PointersUniform PointerPolicy = iota
	// PointersConstAware spells pointers to mutable data "raw mut T".
	PointersConstAware
)

// Wrappers holds the qualified names of the recognized template wrappers.
type Wrappers struct {
	Fallible string
	Owning   string
	Optional string
	Sequence string
	Map      string
	Weak     string
	Callable string
}

// Options configure a Translator.
type Options struct {
	Wrappers Wrappers
	// Strings maps qualified string class names to Jakt builtin names.
	Strings  map[string]string
	Pointers PointerPolicy
}

// DefaultOptions returns the AK wrapper set.
func DefaultOptions() Options {
	return Options{
		Wrappers: Wrappers{
			Fallible: "AK::ErrorOr",
			Owning:   "AK::NonnullRefPtr",
			Optional: "AK::Optional",
			Sequence: "AK::Vector",
			Map:      "AK::HashMap",
			Weak:     "AK::WeakPtr",
			Callable: "AK::Function",
		},
		Strings: map[string]string{
			"AK::String":     "String",
			"AK::StringView": "StringView",
		},
	}
}

// Translator applies the rule chain.
type Translator struct {
	opts Options
}

// New returns a Translator for opts.
func New(opts Options) *Translator {
	return &Translator{opts: opts}
}

// IsWrapper reports whether qualified names one of the configured wrappers
// or string classes. Such names never produce imports.
func (t *Translator) IsWrapper(qualified string) bool {
	w := t.opts.Wrappers
	switch qualified {
	case "":
		return false
	case w.Fallible, w.Owning, w.Optional, w.Sequence, w.Map, w.Weak, w.Callable:
		return true
	}
	_, ok := t.opts.Strings[qualified]
	return ok
}

// IsFallible reports whether ty is a single-argument fallible result
// wrapper. A method returning one is marked as throwing.
func (t *Translator) IsFallible(ty *decl.Type) bool {
	_, ok := t.unwrap(ty, t.opts.Wrappers.Fallible, 1)
	return ok
}

// unwrap returns the type arguments of ty when ty is a specialization of
// wrapper with exactly n type arguments.
func (t *Translator) unwrap(ty *decl.Type, wrapper string, n int) ([]*decl.Type, bool) {
	ty = ty.Unqualified()
	if wrapper == "" || !ty.IsSpecialization() || ty.Name != wrapper || len(ty.Args) != n {
		return nil, false
	}
	out := make([]*decl.Type, n)
	for i, a := range ty.Args {
		if !a.IsType() {
			return nil, false
		}
		out[i] = a.Type
	}
	return out, true
}

type result struct {
	diags []diag.Diagnostic
}

// Translate returns the Jakt spelling of ty. An error is always fatal.
func (t *Translator) Translate(ty *decl.Type, flags Flags) (string, []diag.Diagnostic, error) {
	var r result
	s, err := t.translate(&r, ty, flags)
	if err != nil {
		return "", nil, err
	}
	return s, r.diags, nil
}

func (t *Translator) translate(r *result, ty *decl.Type, f Flags) (string, error) {
	if ty == nil {
		return "", diag.Fatalf(diag.ErrUnsupportedType, "missing type")
	}
	ty = ty.Unqualified()
	w := t.opts.Wrappers
	inner := f.Without(InThrowingContext)

	if f.Has(IsReturnType | InThrowingContext) {
		if args, ok := t.unwrap(ty, w.Fallible, 1); ok {
			return t.translate(r, args[0], f)
		}
	}
	if args, ok := t.unwrap(ty, w.Owning, 1); ok {
		return t.translate(r, args[0], inner)
	}
	if args, ok := t.unwrap(ty, w.Optional, 1); ok {
		s, err := t.translate(r, args[0], inner)
		if err != nil {
			return "", err
		}
		return s + "?", nil
	}
	if args, ok := t.unwrap(ty, w.Sequence, 1); ok {
		s, err := t.translate(r, args[0], inner)
		if err != nil {
			return "", err
		}
		return "[" + s + "]", nil
	}
	if args, ok := t.unwrap(ty, w.Map, 2); ok {
		k, err := t.translate(r, args[0], inner)
		if err != nil {
			return "", err
		}
		v, err := t.translate(r, args[1], inner)
		if err != nil {
			return "", err
		}
		return "[" + k + ":" + v + "]", nil
	}
	if args, ok := t.unwrap(ty, w.Weak, 1); ok {
		s, err := t.translate(r, args[0], inner)
		if err != nil {
			return "", err
		}
		return "weak " + s + "?", nil
	}
	if ty.IsSpecialization() && w.Callable != "" && ty.Name == w.Callable {
		return t.callable(r, ty)
	}

	switch ty.Kind {
	case decl.Reference:
		s, err := t.translate(r, ty.Pointee, inner)
		if err != nil {
			return "", err
		}
		if f.Has(IsReturnType) {
			return s, nil
		}
		if ty.Pointee != nil && ty.Pointee.Const {
			return "&" + s, nil
		}
		return "&mut " + s, nil
	case decl.Pointer:
		s, err := t.translate(r, ty.Pointee, inner.Without(IsReturnType))
		if err != nil {
			return "", err
		}
		if t.opts.Pointers == PointersConstAware && ty.Pointee != nil && !ty.Pointee.Const {
			return "raw mut " + s, nil
		}
		return "raw " + s, nil
	case decl.Builtin:
		return builtin(ty.Builtin)
	case decl.Record:
		return t.record(r, ty)
	case decl.Enum:
		return ty.Name, nil
	}
	return "", diag.Fatalf(diag.ErrUnsupportedType, "cannot translate type %s", ty)
}

func (t *Translator) callable(r *result, ty *decl.Type) (string, error) {
	if len(ty.Args) != 1 || !ty.Args[0].IsType() || ty.Args[0].Type.Kind != decl.Function {
		return "", diag.Fatalf(diag.ErrNotFunctionType, "%s argument is not a function signature: %s", ty.Name, ty)
	}
	fn := ty.Args[0].Type
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range fn.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		s, err := t.translate(r, p.Type, 0)
		if err != nil {
			return "", err
		}
		b.WriteString(ParamName(p, i))
		b.WriteString(": ")
		b.WriteString(s)
	}
	b.WriteByte(')')
	if t.IsFallible(fn.Result) {
		b.WriteString(" throws")
	}
	ret, err := t.translate(r, fn.Result, IsReturnType|InThrowingContext)
	if err != nil {
		return "", err
	}
	b.WriteString(" -> ")
	b.WriteString(ret)
	return b.String(), nil
}

func (t *Translator) record(r *result, ty *decl.Type) (string, error) {
	if !ty.IsSpecialization() {
		if s, ok := t.opts.Strings[ty.Name]; ok {
			return s, nil
		}
		return ty.Name, nil
	}
	args := make([]string, 0, len(ty.Args))
	for i, a := range ty.Args {
		if !a.IsType() {
			r.diags = append(r.diags, diag.Diagnostic{
				Kind:    diag.KindNonTypeTemplateArg,
				Message: "non-type template argument " + a.Expr + " dropped from " + ty.Name + " at position " + itoa(i),
			})
			break
		}
		s, err := t.translate(r, a.Type, 0)
		if err != nil {
			return "", err
		}
		args = append(args, s)
	}
	if len(args) == 0 {
		return ty.Name, nil
	}
	return ty.Name + "<" + strings.Join(args, ", ") + ">", nil
}

// ParamName returns the declared name of p, or "_param_<i>" when unnamed.
func ParamName(p decl.Param, i int) string {
	if p.Name != "" {
		return p.Name
	}
	return "_param_" + itoa(i)
}
