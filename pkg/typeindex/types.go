// Package typeindex resolves the most specific registration for a Go type
// over the lattice formed by interface implementation and struct embedding.
package typeindex

import "reflect"

// TypeOf returns the reflect.Type for T. Unlike reflect.TypeOf it works for
// interface types.
func TypeOf[T any]() reflect.Type {
	return Normalize(reflect.TypeOf((*T)(nil)).Elem())
}

// Normalize identifies a pointer to a non-interface type with its element
// type, so *Subject and Subject index the same entry.
func Normalize(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() != reflect.Interface {
		t = t.Elem()
	}
	return t
}

// IsSubtype reports whether q is a (or is reflexively equal to) subtype of a.
//
// q <= a holds when q == a, when a is an interface implemented by q or *q,
// or when q is a struct embedding a field whose type is a subtype of a.
func IsSubtype(q, a reflect.Type) bool {
	return isSubtype(Normalize(q), Normalize(a), map[reflect.Type]bool{})
}

func isSubtype(q, a reflect.Type, seen map[reflect.Type]bool) bool {
	if q == nil || a == nil {
		return false
	}
	if q == a {
		return true
	}
	if a.Kind() == reflect.Interface {
		if q.Implements(a) {
			return true
		}
		return q.Kind() != reflect.Interface && reflect.PointerTo(q).Implements(a)
	}
	if q.Kind() != reflect.Struct || seen[q] {
		return false
	}
	seen[q] = true
	for i := 0; i < q.NumField(); i++ {
		f := q.Field(i)
		if f.Anonymous && isSubtype(Normalize(f.Type), a, seen) {
			return true
		}
	}
	return false
}

// MoreSpecific reports whether a is strictly more specific than b.
func MoreSpecific(a, b reflect.Type) bool {
	return IsSubtype(a, b) && !IsSubtype(b, a)
}

// FullName returns the package qualified name of t.
func FullName(t reflect.Type) string {
	t = Normalize(t)
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// ShortName returns the unqualified name of t.
func ShortName(t reflect.Type) string {
	t = Normalize(t)
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
