package decl

// Visitor receives declarations offered by Walk. Any returned error stops
// the walk and is returned from Walk unchanged.
type Visitor interface {
	VisitClass(u *Unit, t *TagDecl) error
	VisitMethod(u *Unit, m *MethodDecl) error
	VisitEnum(u *Unit, t *TagDecl) error
}

// Walk offers the declarations of u to v in document order.
//
// Every namespace-scope record is offered through VisitClass, followed by
// every non-private method declared in it or in any tag nested inside it.
// Namespace-scope enums are offered through VisitEnum. Offering is not
// admission: v decides which declarations it keeps.
func Walk(u *Unit, v Visitor) error {
	for _, id := range u.Roots {
		t := u.Tag(id)
		if t == nil {
			continue
		}
		if t.Kind == KindEnum {
			if err := v.VisitEnum(u, t); err != nil {
				return err
			}
			continue
		}
		if err := v.VisitClass(u, t); err != nil {
			return err
		}
		if err := walkMethods(u, t, v); err != nil {
			return err
		}
	}
	return nil
}

func walkMethods(u *Unit, t *TagDecl, v Visitor) error {
	for _, mid := range t.Methods {
		m := u.Method(mid)
		if m == nil || m.Access == Private {
			continue
		}
		if err := v.VisitMethod(u, m); err != nil {
			return err
		}
	}
	for _, nid := range t.Nested {
		n := u.Tag(nid)
		if n == nil || !n.Kind.IsRecord() {
			continue
		}
		if err := walkMethods(u, n, v); err != nil {
			return err
		}
	}
	return nil
}
