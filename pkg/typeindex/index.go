package typeindex

import (
	"reflect"
	"sort"
	"strings"
)

// Entry associates a handler with exactly one type and the identity of the
// extension that registered it.
type Entry[H any] struct {
	Type    reflect.Type
	Handler H
	Owner   string
}

// Resolution is the outcome of Resolve: a unique most specific entry, an
// ambiguous set of incomparable most specific entries, or nothing.
type Resolution[H any] struct {
	Query     reflect.Type
	Match     Entry[H]
	Ambiguous []Entry[H]
	found     bool
}

// Found reports whether a unique most specific entry was resolved.
func (r Resolution[H]) Found() bool {
	return r.found
}

// IsAmbiguous reports whether more than one incomparable entry is most specific.
func (r Resolution[H]) IsAmbiguous() bool {
	return len(r.Ambiguous) > 1
}

// Index holds at most one entry per exact type. It is not safe for
// concurrent use; callers confine it to one goroutine.
type Index[H any] struct {
	entries map[reflect.Type]Entry[H]
	order   []reflect.Type
}

// New creates an empty Index.
func New[H any]() *Index[H] {
	return &Index[H]{entries: make(map[reflect.Type]Entry[H])}
}

// Add registers e. If an entry already exists for exactly e.Type, nothing
// changes and the existing entry is returned with added == false.
func (x *Index[H]) Add(e Entry[H]) (prev Entry[H], added bool) {
	e.Type = Normalize(e.Type)
	if existing, ok := x.entries[e.Type]; ok {
		return existing, false
	}
	x.entries[e.Type] = e
	x.order = append(x.order, e.Type)
	return e, true
}

// Get returns the entry registered for exactly t.
func (x *Index[H]) Get(t reflect.Type) (Entry[H], bool) {
	e, ok := x.entries[Normalize(t)]
	return e, ok
}

// Len returns the number of entries.
func (x *Index[H]) Len() int {
	return len(x.order)
}

// Entries returns all entries in registration order.
func (x *Index[H]) Entries() []Entry[H] {
	out := make([]Entry[H], 0, len(x.order))
	for _, t := range x.order {
		out = append(out, x.entries[t])
	}
	return out
}

// Covers reports whether some entry is registered for q or an ancestor of q.
func (x *Index[H]) Covers(q reflect.Type) bool {
	q = Normalize(q)
	if _, ok := x.entries[q]; ok {
		return true
	}
	for _, t := range x.order {
		if IsSubtype(q, t) {
			return true
		}
	}
	return false
}

// Candidates returns every entry whose type is q or an ancestor of q, in
// registration order.
func (x *Index[H]) Candidates(q reflect.Type) []Entry[H] {
	q = Normalize(q)
	var out []Entry[H]
	for _, t := range x.order {
		if IsSubtype(q, t) {
			out = append(out, x.entries[t])
		}
	}
	return out
}

// Resolve finds the most specific entry applicable to q.
//
// The maximal elements of the candidate set are those not strictly dominated
// by another candidate under the subtype order. An exact entry for q
// dominates its strict ancestors but not an equivalent interface. Registration
// order never affects the result.
func (x *Index[H]) Resolve(q reflect.Type) Resolution[H] {
	q = Normalize(q)
	res := Resolution[H]{Query: q}

	candidates := x.Candidates(q)
	maximal := make([]Entry[H], 0, len(candidates))
	for i, c := range candidates {
		dominated := false
		for j, other := range candidates {
			if i != j && MoreSpecific(other.Type, c.Type) {
				dominated = true
				break
			}
		}
		if !dominated {
			maximal = append(maximal, c)
		}
	}

	switch len(maximal) {
	case 0:
	case 1:
		res.Match = maximal[0]
		res.found = true
	default:
		SortEntries(maximal)
		res.Ambiguous = maximal
	}
	return res
}

// SortEntries orders entries by short type name, then full name, then owner.
func SortEntries[H any](entries []Entry[H]) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if sa, sb := ShortName(a.Type), ShortName(b.Type); sa != sb {
			return sa < sb
		}
		if fa, fb := FullName(a.Type), FullName(b.Type); fa != fb {
			return fa < fb
		}
		return a.Owner < b.Owner
	})
}

// Describe renders entries as "[Name (owner), ...]" for diagnostics.
func Describe[H any](entries []Entry[H]) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = ShortName(e.Type) + " (" + e.Owner + ")"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
