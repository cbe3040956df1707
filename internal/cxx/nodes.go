package cxx

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// nodeText returns the source text for a node.
func nodeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

// field returns the child for a field name, tolerating a nil parent.
func field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(name)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func allChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// hasChild reports whether n has a direct child, named or anonymous, of one
// of the given types.
func hasChild(n *sitter.Node, types ...string) bool {
	for _, c := range allChildren(n) {
		for _, t := range types {
			if c.Type() == t {
				return true
			}
		}
	}
	return false
}

// hasChildText reports whether n has a direct child of type typ whose text
// is want.
func hasChildText(n *sitter.Node, src []byte, typ, want string) bool {
	for _, c := range allChildren(n) {
		if c.Type() == typ && strings.TrimSpace(nodeText(c, src)) == want {
			return true
		}
	}
	return false
}

// walk performs a depth-first walk. fn returning false prunes the subtree.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

// innerDeclarator returns the declarator nested inside a pointer, reference,
// array, parenthesized or variadic declarator.
func innerDeclarator(n *sitter.Node) *sitter.Node {
	if d := field(n, "declarator"); d != nil {
		return d
	}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "type_qualifier", "ms_pointer_modifier", "ms_based_modifier", "attribute_declaration":
			continue
		}
		return c
	}
	return nil
}

func isTagSpecifier(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		return true
	}
	return false
}

func isPreprocBlock(n *sitter.Node) bool {
	switch n.Type() {
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef":
		return true
	}
	return false
}

func nodeKeyOf(path string, n *sitter.Node) nodeKey {
	return nodeKey{path: path, start: n.StartByte(), end: n.EndByte()}
}

type nodeKey struct {
	path       string
	start, end uint32
}
