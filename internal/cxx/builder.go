package cxx

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/jakt-bindgen/internal/decl"
)

type phase int

const (
	// declarePhase creates every tag definition and records aliases, so
	// names used before their definition still resolve.
	declarePhase phase = iota
	// definePhase fills in bases, members and enumerators.
	definePhase
)

type scope struct {
	ns     []string
	tag    decl.TagID
	params map[string]bool // template parameter name → is a pack
}

func (sc *scope) inNamespace(names ...string) *scope {
	ns := append(append([]string{}, sc.ns...), names...)
	return &scope{ns: ns}
}

func (sc *scope) inTag(id decl.TagID, ns []string) *scope {
	return &scope{ns: ns, tag: id, params: sc.params}
}

func (sc *scope) withParams(extra map[string]bool) *scope {
	params := make(map[string]bool, len(sc.params)+len(extra))
	for k, v := range sc.params {
		params[k] = v
	}
	for k, v := range extra {
		params[k] = v
	}
	return &scope{ns: sc.ns, tag: sc.tag, params: params}
}

type alias struct {
	src    *source
	node   *sitter.Node
	target *sitter.Node
	sc     *scope
	done   bool
	typ    *decl.Type
}

type builder struct {
	p     *Parser
	u     *decl.Unit
	phase phase

	byName    map[string]decl.TagID
	nodes     map[nodeKey]decl.TagID
	aliases   map[string]*alias
	resolving map[*alias]bool
	usings    map[string]string
	usingNS   []string
}

func (p *Parser) build(main string, order []*source) *decl.Unit {
	u := decl.NewUnit(main)
	for _, s := range order {
		u.Files = append(u.Files, s.path)
	}
	b := &builder{
		p:         p,
		u:         u,
		byName:    make(map[string]decl.TagID),
		nodes:     make(map[nodeKey]decl.TagID),
		aliases:   make(map[string]*alias),
		resolving: make(map[*alias]bool),
		usings:    make(map[string]string),
	}
	for _, ph := range []phase{declarePhase, definePhase} {
		b.phase = ph
		for _, s := range order {
			b.items(s, s.tree.RootNode(), &scope{})
		}
	}
	b.finish()
	return u
}

// finish gives undefined tags their implied bases.
func (b *builder) finish() {
	for _, t := range b.u.Tags() {
		if t.Complete || len(t.Bases) > 0 {
			continue
		}
		for _, q := range b.p.opts.ImpliedBases[b.u.QualifiedName(t.ID)] {
			id, ok := b.byName[q]
			if !ok {
				id = b.stub(q)
			}
			t.Bases = append(t.Bases, decl.Base{Type: b.makeType(id, nil), Access: decl.Public})
		}
	}
}

// --- Namespace scope ---

func (b *builder) items(f *source, n *sitter.Node, sc *scope) {
	for _, c := range namedChildren(n) {
		b.item(f, c, sc)
	}
}

func (b *builder) item(f *source, c *sitter.Node, sc *scope) {
	switch c.Type() {
	case "namespace_definition":
		name := field(c, "name")
		if name == nil {
			return
		}
		b.items(f, field(c, "body"), sc.inNamespace(splitScope(nodeText(name, f.src))...))
	case "linkage_specification":
		body := field(c, "body")
		if body != nil && body.Type() == "declaration_list" {
			b.items(f, body, sc)
		} else if body != nil {
			b.item(f, body, sc)
		}
	case "declaration_list":
		b.items(f, c, sc)
	case "template_declaration":
		b.template(f, c, sc, nil, decl.Public)
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		b.tagSpec(f, c, sc, false)
	case "declaration", "field_declaration":
		if ty := field(c, "type"); isTagSpecifier(ty) {
			b.tagSpec(f, ty, sc, false)
		}
	case "type_definition":
		if ty := field(c, "type"); isTagSpecifier(ty) {
			b.tagSpec(f, ty, sc, false)
		}
		if b.phase == declarePhase {
			b.typedef(f, c, sc)
		}
	case "alias_declaration":
		if b.phase == declarePhase {
			b.aliasDecl(f, c, sc)
		}
	case "using_declaration":
		if b.phase == declarePhase {
			b.using(f, c)
		}
	default:
		if isPreprocBlock(c) {
			b.items(f, c, sc)
		}
	}
}

// template handles a template_declaration at namespace scope (owner nil) or
// inside a class body.
func (b *builder) template(f *source, n *sitter.Node, sc *scope, owner *decl.TagDecl, access decl.Access) {
	inner := sc.withParams(b.templateParams(f, field(n, "parameters")))
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "class_specifier", "struct_specifier", "union_specifier":
			b.tagSpec(f, c, inner, true)
		case "declaration", "field_declaration", "function_definition":
			if ty := field(c, "type"); isTagSpecifier(ty) && ty.Type() != "enum_specifier" {
				b.tagSpec(f, ty, inner, true)
				continue
			}
			if owner != nil && b.phase == definePhase {
				b.member(f, c, owner, inner, access, true)
			}
		case "template_declaration":
			b.template(f, c, inner, owner, access)
		}
	}
}

func (b *builder) templateParams(f *source, n *sitter.Node) map[string]bool {
	out := make(map[string]bool)
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "type_parameter_declaration", "optional_type_parameter_declaration", "template_template_parameter_declaration":
			if id := firstOfType(c, "type_identifier"); id != nil {
				out[nodeText(id, f.src)] = false
			}
		case "variadic_type_parameter_declaration":
			if id := firstOfType(c, "type_identifier"); id != nil {
				out[nodeText(id, f.src)] = true
			}
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
			if id := firstOfType(field(c, "declarator"), "identifier"); id != nil {
				out[nodeText(id, f.src)] = c.Type() == "variadic_parameter_declaration"
			}
		}
	}
	return out
}

func firstOfType(n *sitter.Node, typ string) *sitter.Node {
	var found *sitter.Node
	walk(n, func(c *sitter.Node) bool {
		if found != nil {
			return false
		}
		if c.Type() == typ {
			found = c
			return false
		}
		return true
	})
	return found
}

// --- Tags ---

func tagKind(nodeType string) decl.TagKind {
	switch nodeType {
	case "struct_specifier":
		return decl.KindStruct
	case "union_specifier":
		return decl.KindUnion
	case "enum_specifier":
		return decl.KindEnum
	}
	return decl.KindClass
}

func (b *builder) tagSpec(f *source, n *sitter.Node, sc *scope, template bool) {
	if b.phase == declarePhase {
		b.declareTag(f, n, sc, template)
	}
	id, ok := b.nodes[nodeKeyOf(f.path, n)]
	if !ok {
		return
	}
	t := b.u.Tag(id)
	if t.Kind == decl.KindEnum {
		if b.phase == definePhase {
			b.enumBody(f, n, t, sc)
		}
		return
	}
	inner := sc.inTag(id, t.Namespace)
	if b.phase == definePhase {
		t.Bases = b.bases(f, n, t, inner)
	}
	access := decl.Private
	if t.Kind != decl.KindClass {
		access = decl.Public
	}
	b.members(f, field(n, "body"), t, inner, &access)
}

func (b *builder) declareTag(f *source, n *sitter.Node, sc *scope, template bool) {
	nameNode := field(n, "name")
	if nameNode == nil {
		return
	}
	body := field(n, "body")
	kind := tagKind(n.Type())
	ns, parent, name, specialization := b.declName(f, nameNode, sc)

	if specialization {
		if body != nil {
			b.u.AddTag(&decl.TagDecl{
				Name: name, Kind: kind, Namespace: ns, Parent: parent,
				Complete: true, File: f.path, Specialization: true,
			})
		}
		return
	}

	qual := b.qualify(ns, parent, name)
	id, ok := b.byName[qual]
	if body == nil {
		if !ok {
			b.byName[qual] = b.u.AddTag(&decl.TagDecl{Name: name, Kind: kind, Namespace: ns, Parent: parent, Template: template})
		}
		return
	}
	if ok {
		t := b.u.Tag(id)
		if t.Complete {
			return
		}
		t.Kind, t.Complete, t.File = kind, true, f.path
		t.Template = t.Template || template
	} else {
		id = b.u.AddTag(&decl.TagDecl{
			Name: name, Kind: kind, Namespace: ns, Parent: parent,
			Complete: true, File: f.path, Template: template,
		})
		b.byName[qual] = id
	}
	b.nodes[nodeKeyOf(f.path, n)] = id
}

// declName splits a tag's name node into its enclosing namespace, enclosing
// tag and simple name. Out-of-line definitions such as "Widget::Impl" are
// placed inside the tag their scope names.
func (b *builder) declName(f *source, n *sitter.Node, sc *scope) (ns []string, parent decl.TagID, name string, specialization bool) {
	switch n.Type() {
	case "template_type":
		return sc.ns, sc.tag, nodeText(field(n, "name"), f.src), true
	case "qualified_identifier", "scoped_type_identifier":
		parts := splitScope(nodeText(n, f.src))
		last := parts[len(parts)-1]
		if i := strings.IndexByte(last, '<'); i >= 0 {
			last, specialization = last[:i], true
		}
		outer := strings.Join(parts[:len(parts)-1], "::")
		if id, _ := b.lookup(outer, sc); id != 0 {
			t := b.u.Tag(id)
			return t.Namespace, id, last, specialization
		}
		return append(append([]string{}, sc.ns...), parts[:len(parts)-1]...), 0, last, specialization
	}
	return sc.ns, sc.tag, nodeText(n, f.src), false
}

func (b *builder) qualify(ns []string, parent decl.TagID, name string) string {
	if parent != 0 {
		return b.u.QualifiedName(parent) + "::" + name
	}
	return strings.Join(append(append([]string{}, ns...), name), "::")
}

func (b *builder) scopePrefix(sc *scope) string {
	if sc.tag != 0 {
		return b.u.QualifiedName(sc.tag)
	}
	return strings.Join(sc.ns, "::")
}

func (b *builder) stub(qualified string) decl.TagID {
	parts := splitScope(qualified)
	id := b.u.AddTag(&decl.TagDecl{
		Name:      parts[len(parts)-1],
		Kind:      decl.KindClass,
		Namespace: parts[:len(parts)-1],
	})
	b.byName[qualified] = id
	return id
}

func (b *builder) bases(f *source, n *sitter.Node, t *decl.TagDecl, sc *scope) []decl.Base {
	var clause *sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "base_class_clause" {
			clause = c
			break
		}
	}
	if clause == nil {
		return nil
	}
	def := decl.Private
	if t.Kind != decl.KindClass {
		def = decl.Public
	}
	var out []decl.Base
	access, virtual := def, false
	for _, c := range allChildren(clause) {
		switch c.Type() {
		case "access_specifier", "public", "protected", "private":
			access = parseAccess(nodeText(c, f.src), def)
		case "virtual":
			virtual = true
		case "type_identifier", "qualified_identifier", "scoped_type_identifier", "template_type":
			out = append(out, decl.Base{Type: b.typeNode(f, c, sc), Access: access, Virtual: virtual})
			access, virtual = def, false
		}
	}
	return out
}

func parseAccess(text string, def decl.Access) decl.Access {
	switch {
	case strings.Contains(text, "public"):
		return decl.Public
	case strings.Contains(text, "protected"):
		return decl.Protected
	case strings.Contains(text, "private"):
		return decl.Private
	}
	return def
}

func (b *builder) enumBody(f *source, n *sitter.Node, t *decl.TagDecl, sc *scope) {
	if base := field(n, "base"); base != nil {
		t.Underlying = b.typeNode(f, base, sc)
	}
	t.Scoped = hasChild(n, "class", "struct")
	for _, e := range namedChildren(field(n, "body")) {
		if e.Type() != "enumerator" {
			continue
		}
		t.Enumerators = append(t.Enumerators, decl.Enumerator{
			Name:  nodeText(field(e, "name"), f.src),
			Value: strings.TrimSpace(nodeText(field(e, "value"), f.src)),
		})
	}
}

// --- Class members ---

func (b *builder) members(f *source, n *sitter.Node, t *decl.TagDecl, sc *scope, access *decl.Access) {
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "access_specifier":
			*access = parseAccess(nodeText(c, f.src), *access)
		case "field_declaration", "declaration", "function_definition":
			if ty := field(c, "type"); isTagSpecifier(ty) {
				b.tagSpec(f, ty, sc, false)
				continue
			}
			if b.phase == definePhase {
				b.member(f, c, t, sc, *access, false)
			}
		case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
			b.tagSpec(f, c, sc, false)
		case "template_declaration":
			b.template(f, c, sc, t, *access)
		case "alias_declaration":
			if b.phase == declarePhase {
				b.aliasDecl(f, c, sc)
			}
		case "type_definition":
			if b.phase == declarePhase {
				b.typedef(f, c, sc)
			}
		default:
			if isPreprocBlock(c) {
				b.members(f, c, t, sc, access)
			}
		}
	}
}

var deletedPattern = regexp.MustCompile(`=\s*delete\s*;?\s*$`)

// functionDeclarator finds the function declarator of a member declaration,
// collecting the pointer and reference declarators wrapped around it.
func functionDeclarator(d *sitter.Node) (*sitter.Node, []*sitter.Node) {
	var wrappers []*sitter.Node
	for d != nil {
		switch d.Type() {
		case "function_declarator", "operator_cast":
			return d, wrappers
		case "pointer_declarator", "reference_declarator":
			wrappers = append(wrappers, d)
			d = innerDeclarator(d)
		default:
			return nil, nil
		}
	}
	return nil, nil
}

func (b *builder) member(f *source, c *sitter.Node, t *decl.TagDecl, sc *scope, access decl.Access, template bool) {
	fn, wrappers := functionDeclarator(field(c, "declarator"))
	if fn == nil {
		return
	}
	m := &decl.MethodDecl{Owner: t.ID, Access: access, Kind: decl.Ordinary, Template: template}

	if fn.Type() == "operator_cast" {
		m.Kind = decl.Conversion
		ty := field(fn, "type")
		m.Name = "operator " + nodeText(ty, f.src)
		m.Return = b.typeNode(f, ty, sc)
		sig := field(fn, "declarator")
		m.Const = hasChildText(sig, f.src, "type_qualifier", "const") || hasChildText(fn, f.src, "type_qualifier", "const")
		m.Params = b.params(f, field(sig, "parameters"), sc)
	} else {
		nameNode := field(fn, "declarator")
		if nameNode == nil {
			return
		}
		switch nameNode.Type() {
		case "field_identifier", "identifier":
			m.Name = nodeText(nameNode, f.src)
			if field(c, "type") == nil && m.Name == t.Name {
				m.Kind = decl.Constructor
			}
		case "destructor_name":
			m.Name, m.Kind = nodeText(nameNode, f.src), decl.Destructor
		case "operator_name":
			m.Name, m.Kind = nodeText(nameNode, f.src), decl.Operator
		case "template_method", "template_function":
			m.Name = nodeText(field(nameNode, "name"), f.src)
		default:
			return
		}
		m.Params = b.params(f, field(fn, "parameters"), sc)
		m.Const = hasChildText(fn, f.src, "type_qualifier", "const")
		switch {
		case m.Kind == decl.Constructor || m.Kind == decl.Destructor:
			m.Return = decl.BuiltinType(decl.Void)
		default:
			m.Return = b.returnType(f, c, fn, wrappers, sc)
		}
	}

	m.Static = hasChildText(c, f.src, "storage_class_specifier", "static")
	m.Virtual = hasChild(c, "virtual", "virtual_function_specifier") || hasChild(fn, "virtual_specifier")
	m.Deleted = hasChild(c, "delete_method_clause") || deletedPattern.MatchString(strings.TrimSpace(nodeText(c, f.src)))
	m.Defaulted = hasChild(c, "default_method_clause")
	b.u.AddMethod(m)
}

func (b *builder) returnType(f *source, c, fn *sitter.Node, wrappers []*sitter.Node, sc *scope) *decl.Type {
	for _, ch := range namedChildren(fn) {
		if ch.Type() == "trailing_return_type" {
			if td := firstOfType(ch, "type_descriptor"); td != nil {
				return b.descriptor(f, td, sc)
			}
		}
	}
	t := b.specType(f, c, sc)
	for _, w := range wrappers {
		switch w.Type() {
		case "pointer_declarator":
			t = decl.PointerTo(t)
			t.Const = hasChildText(w, f.src, "type_qualifier", "const")
		case "reference_declarator":
			t = &decl.Type{Kind: decl.Reference, Pointee: t, RValue: hasChild(w, "&&")}
		}
	}
	return t
}

// --- Aliases ---

func (b *builder) aliasDecl(f *source, c *sitter.Node, sc *scope) {
	name := nodeText(field(c, "name"), f.src)
	ty := field(c, "type")
	if name == "" || ty == nil {
		return
	}
	b.aliases[b.qualify(sc.ns, sc.tag, name)] = &alias{src: f, node: ty, sc: sc}
}

func (b *builder) typedef(f *source, c *sitter.Node, sc *scope) {
	d := field(c, "declarator")
	id := d
	if d != nil && d.Type() != "type_identifier" {
		id = firstOfType(d, "type_identifier")
	}
	if id == nil {
		return
	}
	b.aliases[b.qualify(sc.ns, sc.tag, nodeText(id, f.src))] = &alias{src: f, node: c, target: d, sc: sc}
}

func (b *builder) using(f *source, c *sitter.Node) {
	if hasChild(c, "namespace") {
		for _, n := range namedChildren(c) {
			b.usingNS = append(b.usingNS, strings.TrimPrefix(nodeText(n, f.src), "::"))
		}
		return
	}
	for _, n := range namedChildren(c) {
		if n.Type() != "qualified_identifier" {
			continue
		}
		spelled := strings.TrimPrefix(nodeText(n, f.src), "::")
		parts := splitScope(spelled)
		b.usings[parts[len(parts)-1]] = spelled
	}
}

func (b *builder) aliasType(a *alias) *decl.Type {
	if a.done {
		return a.typ
	}
	if b.resolving[a] {
		return nil
	}
	b.resolving[a] = true
	defer delete(b.resolving, a)

	if a.node.Type() == "type_definition" {
		_, t, _ := b.applyDeclarator(a.src, a.target, b.specType(a.src, a.node, a.sc), a.sc)
		a.typ = t
	} else {
		a.typ = b.descriptor(a.src, a.node, a.sc)
	}
	a.done = true
	return a.typ
}

// splitScope splits a qualified name on "::" outside template brackets.
func splitScope(s string) []string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "::")
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ':':
			if depth == 0 && i+1 < len(s) && s[i+1] == ':' {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 2
				i++
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}
