package cxx

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/jakt-bindgen/internal/decl"
)

// builtinNames covers primitive spellings plus the fixed-width typedefs of
// <stdint.h> and AK, which are resolved without their defining headers.
var builtinNames = map[string]decl.BuiltinKind{
	"void": decl.Void, "bool": decl.Bool,
	"char": decl.Char, "wchar_t": decl.WChar,
	"char8_t": decl.Char8, "char16_t": decl.Char16, "char32_t": decl.Char32,
	"short": decl.Short, "int": decl.Int, "long": decl.Long,
	"float": decl.Float, "double": decl.Double, "__int128": decl.Int128,
	"int8_t": decl.Int8, "int16_t": decl.Int16, "int32_t": decl.Int32, "int64_t": decl.Int64,
	"uint8_t": decl.UInt8, "uint16_t": decl.UInt16, "uint32_t": decl.UInt32, "uint64_t": decl.UInt64,
	"i8": decl.Int8, "i16": decl.Int16, "i32": decl.Int32, "i64": decl.Int64,
	"u8": decl.UInt8, "u16": decl.UInt16, "u32": decl.UInt32, "u64": decl.UInt64,
	"f32": decl.Float, "f64": decl.Double,
	"size_t": decl.Size, "ssize_t": decl.SSize, "ptrdiff_t": decl.SSize,
	"uintptr_t": decl.Size, "intptr_t": decl.SSize, "FlatPtr": decl.Size,
	"nullptr_t": decl.NullPtr, "std::nullptr_t": decl.NullPtr,
}

// sizedBuiltin maps a sized_type_specifier such as "unsigned long long".
func sizedBuiltin(text string) (decl.BuiltinKind, bool) {
	var unsigned, signed bool
	longs, shorts := 0, 0
	base := ""
	for _, w := range strings.Fields(text) {
		switch w {
		case "unsigned":
			unsigned = true
		case "signed":
			signed = true
		case "long":
			longs++
		case "short":
			shorts++
		default:
			base = w
		}
	}
	pick := func(s, u decl.BuiltinKind) decl.BuiltinKind {
		if unsigned {
			return u
		}
		return s
	}
	switch base {
	case "char":
		switch {
		case unsigned:
			return decl.UChar, true
		case signed:
			return decl.SChar, true
		}
		return decl.Char, true
	case "double":
		if longs > 0 {
			return decl.LongDouble, true
		}
		return decl.Double, true
	case "__int128":
		return pick(decl.Int128, decl.UInt128), true
	case "", "int":
		switch {
		case shorts > 0:
			return pick(decl.Short, decl.UShort), true
		case longs >= 2:
			return pick(decl.LongLong, decl.ULongLong), true
		case longs == 1:
			return pick(decl.Long, decl.ULong), true
		}
		return pick(decl.Int, decl.UInt), true
	}
	return 0, false
}

func unknown(name string) *decl.Type { return &decl.Type{Kind: decl.Unknown, Name: name} }

// specType returns the type named by n's "type" field with the qualifiers
// written alongside it.
func (b *builder) specType(f *source, n *sitter.Node, sc *scope) *decl.Type {
	t := b.typeNode(f, field(n, "type"), sc)
	if hasChildText(n, f.src, "type_qualifier", "const") {
		t = decl.ConstOf(t)
	}
	if hasChildText(n, f.src, "type_qualifier", "volatile") {
		c := *t
		c.Volatile = true
		t = &c
	}
	return t
}

func (b *builder) typeNode(f *source, n *sitter.Node, sc *scope) *decl.Type {
	if n == nil {
		return unknown("")
	}
	text := strings.TrimSpace(nodeText(n, f.src))
	switch n.Type() {
	case "primitive_type":
		if k, ok := builtinNames[text]; ok {
			return decl.BuiltinType(k)
		}
		return unknown(text)
	case "sized_type_specifier":
		if k, ok := sizedBuiltin(text); ok {
			return decl.BuiltinType(k)
		}
		return unknown(text)
	case "type_identifier", "qualified_identifier", "scoped_type_identifier", "template_type", "identifier", "namespace_identifier":
		name, args := b.spelled(f, n)
		return b.resolve(f, name, args, sc)
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		if name := field(n, "name"); name != nil {
			return b.typeNode(f, name, sc)
		}
	}
	return unknown(text)
}

// spelled returns the written qualified name of a type name node and the
// template argument list of its last component.
func (b *builder) spelled(f *source, n *sitter.Node) (string, *sitter.Node) {
	switch n.Type() {
	case "template_type":
		return nodeText(field(n, "name"), f.src), field(n, "arguments")
	case "qualified_identifier", "scoped_type_identifier":
		name, args := b.spelled(f, field(n, "name"))
		scopeNode := field(n, "scope")
		if scopeNode == nil {
			return name, args
		}
		outer, _ := b.spelled(f, scopeNode)
		return outer + "::" + name, args
	}
	return strings.TrimSpace(nodeText(n, f.src)), nil
}

// resolve looks a written name up the way C++ would from scope sc: template
// parameters, builtins, enclosing scopes outward, using-declarations, then
// the configured aliases. Names that stay unresolved become undefined tags.
func (b *builder) resolve(f *source, spelled string, argsNode *sitter.Node, sc *scope) *decl.Type {
	spelled = strings.TrimPrefix(spelled, "::")
	if !strings.Contains(spelled, "::") {
		if pack, ok := sc.params[spelled]; ok {
			return &decl.Type{Kind: decl.TemplateParam, Name: spelled, Pack: pack}
		}
	}
	if k, ok := builtinNames[spelled]; ok && argsNode == nil {
		return decl.BuiltinType(k)
	}
	args := b.templateArgs(f, argsNode, sc)
	if id, alias := b.lookup(spelled, sc); id != 0 {
		return b.makeType(id, args)
	} else if alias != nil {
		return alias
	}
	if q, ok := b.p.opts.Aliases[spelled]; ok {
		if id, ok := b.byName[q]; ok {
			return b.makeType(id, args)
		}
		return b.makeType(b.stub(q), args)
	}
	if spelled == "" {
		return unknown("")
	}
	return b.makeType(b.stub(spelled), args)
}

// lookup finds a tag or alias by written name without creating anything.
func (b *builder) lookup(spelled string, sc *scope) (decl.TagID, *decl.Type) {
	if spelled == "" {
		return 0, nil
	}
	for _, cand := range b.candidates(spelled, sc) {
		if id, ok := b.byName[cand]; ok {
			return id, nil
		}
		if a, ok := b.aliases[cand]; ok && b.phase == definePhase {
			if t := b.aliasType(a); t != nil {
				return 0, t
			}
		}
	}
	return 0, nil
}

func (b *builder) candidates(spelled string, sc *scope) []string {
	var prefixes []string
	for t := b.u.Tag(sc.tag); t != nil; t = b.u.Tag(t.Parent) {
		prefixes = append(prefixes, b.u.QualifiedName(t.ID))
	}
	for i := len(sc.ns); i > 0; i-- {
		prefixes = append(prefixes, strings.Join(sc.ns[:i], "::"))
	}
	out := make([]string, 0, len(prefixes)+len(b.usingNS)+2)
	for _, p := range prefixes {
		out = append(out, p+"::"+spelled)
	}
	out = append(out, spelled)
	for _, ns := range b.usingNS {
		out = append(out, ns+"::"+spelled)
	}
	parts := splitScope(spelled)
	if q, ok := b.usings[parts[0]]; ok {
		out = append(out, strings.Join(append([]string{q}, parts[1:]...), "::"))
	}
	return out
}

func (b *builder) makeType(id decl.TagID, args []decl.TemplateArg) *decl.Type {
	t := b.u.Tag(id)
	qual := b.u.QualifiedName(id)
	if t != nil && t.Kind == decl.KindEnum {
		return &decl.Type{Kind: decl.Enum, Decl: id, Name: qual}
	}
	return decl.RecordType(id, qual, args...)
}

func (b *builder) templateArgs(f *source, n *sitter.Node, sc *scope) []decl.TemplateArg {
	if n == nil {
		return nil
	}
	var out []decl.TemplateArg
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "type_descriptor":
			out = append(out, decl.TemplateArg{Type: b.descriptor(f, c, sc)})
		case "parameter_pack_expansion":
			pattern := field(c, "pattern")
			if pattern == nil && c.NamedChildCount() > 0 {
				pattern = c.NamedChild(0)
			}
			var inner *decl.Type
			if pattern != nil && pattern.Type() == "type_descriptor" {
				inner = b.descriptor(f, pattern, sc)
			} else {
				inner = b.typeNode(f, pattern, sc)
			}
			out = append(out, decl.TemplateArg{Type: &decl.Type{Kind: decl.PackExpansion, Pointee: inner}})
		case "identifier", "qualified_identifier", "type_identifier":
			// The grammar reads some type names as expressions.
			name := strings.TrimSpace(nodeText(c, f.src))
			if b.namesType(name, sc) {
				out = append(out, decl.TemplateArg{Type: b.typeNode(f, c, sc)})
			} else {
				out = append(out, decl.TemplateArg{Expr: name})
			}
		case "comment":
		default:
			out = append(out, decl.TemplateArg{Expr: strings.TrimSpace(nodeText(c, f.src))})
		}
	}
	return out
}

func (b *builder) namesType(name string, sc *scope) bool {
	if _, ok := sc.params[name]; ok {
		return true
	}
	if _, ok := builtinNames[name]; ok {
		return true
	}
	if _, ok := b.p.opts.Aliases[name]; ok {
		return true
	}
	id, alias := b.lookup(name, sc)
	return id != 0 || alias != nil
}

func (b *builder) descriptor(f *source, td *sitter.Node, sc *scope) *decl.Type {
	_, t, _ := b.applyDeclarator(f, field(td, "declarator"), b.specType(f, td, sc), sc)
	return t
}

// applyDeclarator wraps t in the pointer, reference, array and function
// layers of declarator d, outermost first, and returns the declared name
// and whether d declares a parameter pack.
func (b *builder) applyDeclarator(f *source, d *sitter.Node, t *decl.Type, sc *scope) (string, *decl.Type, bool) {
	pack := false
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "type_identifier":
			return nodeText(d, f.src), t, pack
		case "pointer_declarator", "abstract_pointer_declarator":
			t = decl.PointerTo(t)
			t.Const = hasChildText(d, f.src, "type_qualifier", "const")
		case "reference_declarator", "abstract_reference_declarator":
			t = &decl.Type{Kind: decl.Reference, Pointee: t, RValue: hasChild(d, "&&")}
		case "array_declarator", "abstract_array_declarator":
			t = decl.PointerTo(t)
		case "function_declarator", "abstract_function_declarator":
			t = &decl.Type{Kind: decl.Function, Result: t, Params: b.params(f, field(d, "parameters"), sc)}
		case "variadic_declarator":
			pack = true
		case "parenthesized_declarator", "abstract_parenthesized_declarator":
		default:
			return "", t, pack
		}
		d = innerDeclarator(d)
	}
	return "", t, pack
}

func (b *builder) params(f *source, pl *sitter.Node, sc *scope) []decl.Param {
	if pl == nil {
		return nil
	}
	var out []decl.Param
	for _, c := range namedChildren(pl) {
		switch c.Type() {
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
			name, t, pack := b.applyDeclarator(f, field(c, "declarator"), b.specType(f, c, sc), sc)
			if pack || c.Type() == "variadic_parameter_declaration" {
				t = &decl.Type{Kind: decl.PackExpansion, Pointee: t}
			}
			out = append(out, decl.Param{Name: name, Type: t, HasDefault: c.Type() == "optional_parameter_declaration"})
		case "variadic_parameter":
			out = append(out, decl.Param{Type: &decl.Type{Kind: decl.PackExpansion, Pointee: unknown("...")}})
		}
	}
	if hasChild(pl, "...") {
		out = append(out, decl.Param{Type: &decl.Type{Kind: decl.PackExpansion, Pointee: unknown("...")}})
	}
	if len(out) == 1 && out[0].Name == "" && out[0].Type.Kind == decl.Builtin && out[0].Type.Builtin == decl.Void {
		return nil
	}
	return out
}
