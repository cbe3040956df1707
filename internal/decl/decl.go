// Package decl is the frontend-neutral declaration model consumed by the
// binding generator.
//
// Declarations live in a Unit arena and are referred to by TagID and
// MethodID. Two references to the same declaration compare equal by ID; no
// pointer identity is relied upon.
package decl

import "strings"

// TagID identifies a class, struct, union or enum within a Unit. The zero
// value is never a valid ID.
type TagID int

// MethodID identifies a method within a Unit. The zero value is never a
// valid ID.
type MethodID int

// TagKind is the declared kind of a tag.
type TagKind int

const (
	KindClass TagKind = iota + 1
	KindStruct
	KindUnion
	KindEnum
)

func (k TagKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	}
	return "unknown"
}

// IsRecord reports whether k is a class, struct or union.
func (k TagKind) IsRecord() bool { return k == KindClass || k == KindStruct || k == KindUnion }

// Access is a member or base access level.
type Access int

const (
	Public Access = iota + 1
	Protected
	Private
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "none"
}

// Base is one entry in a class's base list.
type Base struct {
	Type    *Type
	Access  Access
	Virtual bool
}

// Enumerator is one named constant of an enum. Value is the initializer as
// written, empty when implicit.
type Enumerator struct {
	Name  string
	Value string
}

// TagDecl is a class, struct, union or enum declaration.
type TagDecl struct {
	ID   TagID
	Name string
	Kind TagKind

	// Namespace is the enclosing namespace path, outermost first.
	Namespace []string
	// Parent is the enclosing tag for nested declarations, zero at
	// namespace scope.
	Parent TagID

	// Complete is set once a definition has been seen. File is the
	// canonical path of the defining file; it stays empty for tags that
	// were only forward-declared or synthesized for an unresolved name.
	Complete bool
	File     string

	Bases   []Base
	Methods []MethodID
	Nested  []TagID

	// Template is set for class templates. Specialization is set for
	// explicit and partial specializations.
	Template       bool
	Specialization bool

	// Enum only.
	Underlying  *Type
	Enumerators []Enumerator
	Scoped      bool
}

// MethodKind classifies special member functions.
type MethodKind int

const (
	Ordinary MethodKind = iota + 1
	Constructor
	Destructor
	Conversion
	Operator
)

// Param is a method parameter. Name is empty for unnamed parameters.
type Param struct {
	Name       string
	Type       *Type
	HasDefault bool
}

// MethodDecl is a member function declaration.
type MethodDecl struct {
	ID     MethodID
	Owner  TagID
	Name   string
	Kind   MethodKind
	Access Access

	Params []Param
	Return *Type

	Static    bool
	Virtual   bool
	Const     bool
	Deleted   bool
	Defaulted bool
	Template  bool
}

// IsDefaultConstructor reports whether m is a constructor callable with no
// arguments.
func (m *MethodDecl) IsDefaultConstructor() bool {
	if m.Kind != Constructor {
		return false
	}
	for _, p := range m.Params {
		if !p.HasDefault {
			return false
		}
	}
	return true
}

// IsCopyOrMoveConstructor reports whether m is a constructor whose first
// parameter is a reference to its own class and whose remaining parameters
// all have defaults.
func (m *MethodDecl) IsCopyOrMoveConstructor() bool {
	if m.Kind != Constructor || len(m.Params) == 0 {
		return false
	}
	first := m.Params[0].Type
	if first == nil || first.Kind != Reference || first.Pointee == nil {
		return false
	}
	pointee := first.Pointee
	if pointee.Kind != Record || pointee.Decl != m.Owner || len(pointee.Args) > 0 {
		return false
	}
	for _, p := range m.Params[1:] {
		if !p.HasDefault {
			return false
		}
	}
	return true
}

// Unit is the arena of declarations produced from one main source file and
// everything it includes.
type Unit struct {
	// MainFile is the canonical path of the file the unit was built for.
	MainFile string
	// Files lists every file parsed into the unit, in inclusion order.
	// MainFile is last.
	Files []string
	// Roots lists namespace-scope tags in document order.
	Roots []TagID

	tags    []*TagDecl
	methods []*MethodDecl
}

// NewUnit returns an empty unit for mainFile.
func NewUnit(mainFile string) *Unit {
	return &Unit{MainFile: mainFile}
}

// AddTag stores t in the arena, assigns its ID and returns it. Namespace
// scope tags are appended to Roots; nested tags are appended to their
// parent's Nested list.
func (u *Unit) AddTag(t *TagDecl) TagID {
	u.tags = append(u.tags, t)
	t.ID = TagID(len(u.tags))
	if t.Parent == 0 {
		u.Roots = append(u.Roots, t.ID)
	} else if p := u.Tag(t.Parent); p != nil {
		p.Nested = append(p.Nested, t.ID)
	}
	return t.ID
}

// AddMethod stores m in the arena, assigns its ID, appends it to its owner's
// method list and returns it.
func (u *Unit) AddMethod(m *MethodDecl) MethodID {
	u.methods = append(u.methods, m)
	m.ID = MethodID(len(u.methods))
	if owner := u.Tag(m.Owner); owner != nil {
		owner.Methods = append(owner.Methods, m.ID)
	}
	return m.ID
}

// Tag returns the tag with the given ID, or nil.
func (u *Unit) Tag(id TagID) *TagDecl {
	if id <= 0 || int(id) > len(u.tags) {
		return nil
	}
	return u.tags[id-1]
}

// Method returns the method with the given ID, or nil.
func (u *Unit) Method(id MethodID) *MethodDecl {
	if id <= 0 || int(id) > len(u.methods) {
		return nil
	}
	return u.methods[id-1]
}

// Tags returns every tag in the arena in creation order.
func (u *Unit) Tags() []*TagDecl { return u.tags }

// NamespaceOf returns the "::"-joined enclosing namespace path of a tag,
// looking through enclosing tags.
func (u *Unit) NamespaceOf(id TagID) string {
	t := u.Tag(id)
	if t == nil {
		return ""
	}
	return strings.Join(t.Namespace, "::")
}

// QualifiedName returns the fully qualified name of a tag, e.g.
// "GUI::Widget::Mode".
func (u *Unit) QualifiedName(id TagID) string {
	t := u.Tag(id)
	if t == nil {
		return ""
	}
	var scope []string
	for p := u.Tag(t.Parent); p != nil; p = u.Tag(p.Parent) {
		scope = append([]string{p.Name}, scope...)
	}
	parts := append(append(append([]string{}, t.Namespace...), scope...), t.Name)
	return strings.Join(parts, "::")
}

// DerivesFrom reports whether tag id has a base class, at any depth, whose
// qualified name is qualified. Cycles in malformed input are tolerated.
func (u *Unit) DerivesFrom(id TagID, qualified string) bool {
	seen := map[TagID]bool{id: true}
	queue := []TagID{id}
	for len(queue) > 0 {
		t := u.Tag(queue[0])
		queue = queue[1:]
		if t == nil {
			continue
		}
		for _, b := range t.Bases {
			if b.Type == nil || b.Type.Kind != Record {
				continue
			}
			if b.Type.Name == qualified || u.QualifiedName(b.Type.Decl) == qualified {
				return true
			}
			if b.Type.Decl != 0 && !seen[b.Type.Decl] {
				seen[b.Type.Decl] = true
				queue = append(queue, b.Type.Decl)
			}
		}
	}
	return false
}
