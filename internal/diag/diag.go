// Package diag defines the error kinds and diagnostic records shared by the
// collection, translation and emission stages.
//
// Fatal errors abort the whole run. They are created with Fatalf and
// classified with IsFatal. Everything else is either a per-file failure
// (ErrOutputOpen, ErrParse) or a recoverable Diagnostic that is logged and
// never returned as an error.
package diag

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Fatal error kinds.
var (
	ErrUnsupportedBuiltin = errors.New("unsupported builtin type")
	ErrUnsupportedType    = errors.New("unsupported type")
	ErrVirtualBase        = errors.New("virtual base class")
	ErrNonPublicBase      = errors.New("non-public base class")
	ErrUnusableBase       = errors.New("unusable base class")
	ErrNotFunctionType    = errors.New("callable wrapper argument is not a function signature")
)

// Per-file error kinds. A file failing with one of these is skipped and the
// run continues.
var (
	ErrOutputOpen = errors.New("cannot open output file")
	ErrParse      = errors.New("cannot parse source file")
)

var fatalKinds = []error{
	ErrUnsupportedBuiltin,
	ErrUnsupportedType,
	ErrVirtualBase,
	ErrNonPublicBase,
	ErrUnusableBase,
	ErrNotFunctionType,
}

// Fatalf returns a new error wrapping kind, so both errors.Is and IsFatal
// see it.
func Fatalf(kind error, format string, args ...any) error {
	return errors.Wrapf(kind, format, args...)
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return err != nil && errors.IsAny(err, fatalKinds...)
}

// Kind names a class of recoverable diagnostic.
type Kind string

const (
	KindVirtualBase        Kind = "virtual-base"
	KindNonPublicBase      Kind = "non-public-base"
	KindUnusableBase       Kind = "unusable-base"
	KindParameterPack      Kind = "parameter-pack"
	KindReferenceReturn    Kind = "reference-return"
	KindTemplateMethod     Kind = "template-method"
	KindNonTypeTemplateArg Kind = "non-type-template-argument"
	KindTemplateDepth      Kind = "template-depth"
	KindParseError         Kind = "parse-error"
	KindMissingInclude     Kind = "missing-include"
)

// Diagnostic is a recoverable problem. The narrowest enclosing construct
// (a base, a method, an argument list) is skipped and processing continues.
type Diagnostic struct {
	Kind    Kind
	File    string
	Decl    string
	Message string
}

// Report writes d to the diagnostics logger at warn level.
func Report(log *zap.SugaredLogger, d Diagnostic) {
	log.Warnw(d.Message, "kind", string(d.Kind), "file", d.File, "decl", d.Decl)
}

// ReportAll reports every diagnostic in ds, filling in file and decl when
// the translator left them blank.
func ReportAll(log *zap.SugaredLogger, file, declName string, ds []Diagnostic) {
	for _, d := range ds {
		if d.File == "" {
			d.File = file
		}
		if d.Decl == "" {
			d.Decl = declName
		}
		Report(log, d)
	}
}
