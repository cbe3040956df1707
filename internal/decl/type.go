package decl

import "strings"

// TypeKind is the top-level category of a Type.
type TypeKind int

const (
	Builtin TypeKind = iota + 1
	Record
	Enum
	Pointer
	Reference
	Function
	PackExpansion
	TemplateParam
	Unknown
)

// BuiltinKind enumerates the fundamental types.
type BuiltinKind int

const (
	Void BuiltinKind = iota + 1
	Bool
	Char
	SChar
	UChar
	WChar
	Char8
	Char16
	Char32
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Size
	SSize
	Float
	Double
	LongDouble
	Int128
	UInt128
	NullPtr
)

var builtinNames = map[BuiltinKind]string{
	Void: "void", Bool: "bool", Char: "char", SChar: "signed char", UChar: "unsigned char",
	WChar: "wchar_t", Char8: "char8_t", Char16: "char16_t", Char32: "char32_t",
	Short: "short", UShort: "unsigned short", Int: "int", UInt: "unsigned int",
	Long: "long", ULong: "unsigned long", LongLong: "long long", ULongLong: "unsigned long long",
	Int8: "int8_t", Int16: "int16_t", Int32: "int32_t", Int64: "int64_t",
	UInt8: "uint8_t", UInt16: "uint16_t", UInt32: "uint32_t", UInt64: "uint64_t",
	Size: "size_t", SSize: "ssize_t", Float: "float", Double: "double", LongDouble: "long double",
	Int128: "__int128", UInt128: "unsigned __int128", NullPtr: "std::nullptr_t",
}

func (b BuiltinKind) String() string {
	if s, ok := builtinNames[b]; ok {
		return s
	}
	return "builtin?"
}

// TemplateArg is one argument of a template specialization. Exactly one of
// Type and Expr is set.
type TemplateArg struct {
	Type *Type
	Expr string
}

// IsType reports whether the argument is a type argument.
func (a TemplateArg) IsType() bool { return a.Type != nil }

// Type is a possibly qualified source type.
type Type struct {
	Kind     TypeKind
	Const    bool
	Volatile bool

	// Builtin kinds only.
	Builtin BuiltinKind

	// Record and Enum: the declaration and its qualified name. Name is also
	// set for TemplateParam and Unknown, holding the spelling.
	Decl TagID
	Name string
	// Args holds template arguments of a Record specialization.
	Args []TemplateArg

	// Pointee is the target of a Pointer or Reference and the pattern of a
	// PackExpansion.
	Pointee *Type
	// RValue marks a Reference as "&&".
	RValue bool

	// Function only.
	Params []Param
	Result *Type
	// Pack marks a TemplateParam declared as a parameter pack.
	Pack bool
}

// BuiltinType returns an unqualified fundamental type.
func BuiltinType(k BuiltinKind) *Type { return &Type{Kind: Builtin, Builtin: k} }

// RecordType returns an unqualified reference to a record declaration.
func RecordType(id TagID, qualified string, args ...TemplateArg) *Type {
	return &Type{Kind: Record, Decl: id, Name: qualified, Args: args}
}

// PointerTo returns a pointer to t.
func PointerTo(t *Type) *Type { return &Type{Kind: Pointer, Pointee: t} }

// ReferenceTo returns an lvalue reference to t.
func ReferenceTo(t *Type) *Type { return &Type{Kind: Reference, Pointee: t} }

// ConstOf returns a const-qualified copy of t.
func ConstOf(t *Type) *Type {
	c := *t
	c.Const = true
	return &c
}

// Unqualified returns t with top-level const and volatile removed. t itself
// is never modified.
func (t *Type) Unqualified() *Type {
	if t == nil || (!t.Const && !t.Volatile) {
		return t
	}
	c := *t
	c.Const, c.Volatile = false, false
	return &c
}

// IsSpecialization reports whether t names a template specialization.
func (t *Type) IsSpecialization() bool {
	return t != nil && t.Kind == Record && len(t.Args) > 0
}

// ContainsUnexpandedPack reports whether t mentions a parameter pack that is
// not expanded within t itself.
func (t *Type) ContainsUnexpandedPack() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case PackExpansion:
		return true
	case TemplateParam:
		return t.Pack
	case Pointer, Reference:
		return t.Pointee.ContainsUnexpandedPack()
	case Function:
		if t.Result.ContainsUnexpandedPack() {
			return true
		}
		for _, p := range t.Params {
			if p.Type.ContainsUnexpandedPack() {
				return true
			}
		}
	case Record:
		for _, a := range t.Args {
			if a.Type.ContainsUnexpandedPack() {
				return true
			}
		}
	}
	return false
}

// String renders t in C++ spelling. It is meant for logs and diagnostics.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	switch t.Kind {
	case Builtin:
		b.WriteString(t.Builtin.String())
	case Record, Enum, TemplateParam, Unknown:
		b.WriteString(t.Name)
		if len(t.Args) > 0 {
			b.WriteByte('<')
			for i, a := range t.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				if a.Type != nil {
					b.WriteString(a.Type.String())
				} else {
					b.WriteString(a.Expr)
				}
			}
			b.WriteByte('>')
		}
	case Pointer:
		b.WriteString(t.Pointee.String())
		b.WriteByte('*')
	case Reference:
		b.WriteString(t.Pointee.String())
		if t.RValue {
			b.WriteString("&&")
		} else {
			b.WriteByte('&')
		}
	case PackExpansion:
		b.WriteString(t.Pointee.String())
		b.WriteString("...")
	case Function:
		b.WriteString(t.Result.String())
		b.WriteByte('(')
		for i, p := range t.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Type.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}
