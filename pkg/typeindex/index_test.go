package typeindex

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type resource interface{ ID() string }

type baseResource interface {
	resource
	Base()
}

type baseResource2 interface {
	resource
	Base2()
}

// sameAsBase has the method set of baseResource, so the two are mutual subtypes.
type sameAsBase interface {
	resource
	Base()
}

type testResource struct{}

func (testResource) ID() string { return "test" }
func (testResource) Base()      {}

// resource <- baseResource <- testResource <- testResource2
type testResource2 struct{ testResource }

// testResource3 embeds testResource and also implements baseResource directly.
type testResource3 struct{ testResource }

func (testResource3) Base() {}

// testResource4 implements both baseResource and baseResource2.
type testResource4 struct{}

func (testResource4) ID() string { return "4" }
func (testResource4) Base()      {}
func (testResource4) Base2()     {}

type pointerResource struct{}

func (*pointerResource) ID() string { return "ptr" }

type selfRef struct{ *selfRef }

func owners(entries []Entry[string]) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Owner
	}
	return out
}

func TestIsSubtype(t *testing.T) {
	tests := []struct {
		name string
		q, a reflect.Type
		want bool
	}{
		{"reflexive struct", TypeOf[testResource](), TypeOf[testResource](), true},
		{"reflexive interface", TypeOf[resource](), TypeOf[resource](), true},
		{"struct implements interface", TypeOf[testResource](), TypeOf[baseResource](), true},
		{"struct implements root", TypeOf[testResource](), TypeOf[resource](), true},
		{"interface embeds interface", TypeOf[baseResource](), TypeOf[resource](), true},
		{"root is not subtype of child", TypeOf[resource](), TypeOf[baseResource](), false},
		{"embedding is subtype", TypeOf[testResource2](), TypeOf[testResource](), true},
		{"embedder is not supertype", TypeOf[testResource](), TypeOf[testResource2](), false},
		{"embedding inherits interfaces", TypeOf[testResource2](), TypeOf[baseResource](), true},
		{"unrelated interfaces", TypeOf[baseResource](), TypeOf[baseResource2](), false},
		{"pointer receiver methods count", TypeOf[pointerResource](), TypeOf[resource](), true},
		{"pointer normalized", reflect.TypeOf(&testResource{}), TypeOf[testResource](), true},
		{"self reference terminates", TypeOf[selfRef](), TypeOf[testResource](), false},
		{"nil", nil, TypeOf[resource](), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSubtype(tt.q, tt.a); got != tt.want {
				t.Errorf("typeindex:index_test - IsSubtype(%v, %v) = %v, want %v", tt.q, tt.a, got, tt.want)
			}
		})
	}
}

func TestMoreSpecific(t *testing.T) {
	if !MoreSpecific(TypeOf[baseResource](), TypeOf[resource]()) {
		t.Error("typeindex:index_test - baseResource should be more specific than resource")
	}
	if MoreSpecific(TypeOf[resource](), TypeOf[baseResource]()) {
		t.Error("typeindex:index_test - resource should not be more specific than baseResource")
	}
	if MoreSpecific(TypeOf[baseResource](), TypeOf[sameAsBase]()) || MoreSpecific(TypeOf[sameAsBase](), TypeOf[baseResource]()) {
		t.Error("typeindex:index_test - identical method sets must not dominate each other")
	}
}

func TestIndex_AddDuplicateKeepsFirst(t *testing.T) {
	x := New[string]()
	if _, added := x.Add(Entry[string]{Type: TypeOf[testResource](), Handler: "h1", Owner: "a"}); !added {
		t.Fatal("typeindex:index_test - first Add should succeed")
	}

	prev, added := x.Add(Entry[string]{Type: reflect.TypeOf(&testResource{}), Handler: "h2", Owner: "b"})
	if added {
		t.Fatal("typeindex:index_test - duplicate Add should fail")
	}
	if prev.Owner != "a" || prev.Handler != "h1" {
		t.Errorf("typeindex:index_test - prev = %+v, want first entry", prev)
	}
	if x.Len() != 1 {
		t.Errorf("typeindex:index_test - Len = %d, want 1", x.Len())
	}
	if got := x.Resolve(TypeOf[testResource]()); got.Match.Handler != "h1" {
		t.Errorf("typeindex:index_test - handler = %q, want h1", got.Match.Handler)
	}
}

func TestIndex_Covers(t *testing.T) {
	x := New[string]()
	x.Add(Entry[string]{Type: TypeOf[baseResource](), Handler: "h1", Owner: "a"})

	if !x.Covers(TypeOf[baseResource]()) {
		t.Error("typeindex:index_test - exact type should be covered")
	}
	if !x.Covers(TypeOf[testResource2]()) {
		t.Error("typeindex:index_test - subtype should be covered")
	}
	if x.Covers(TypeOf[resource]()) {
		t.Error("typeindex:index_test - supertype should not be covered")
	}
	if x.Covers(TypeOf[pointerResource]()) {
		t.Error("typeindex:index_test - unrelated type should not be covered")
	}
}

func TestIndex_ResolveMostSpecific(t *testing.T) {
	orders := [][]Entry[string]{
		{
			{Type: TypeOf[resource](), Handler: "h1", Owner: "root"},
			{Type: TypeOf[testResource](), Handler: "h3", Owner: "leaf"},
			{Type: TypeOf[baseResource](), Handler: "h2", Owner: "mid"},
		},
		{
			{Type: TypeOf[testResource](), Handler: "h3", Owner: "leaf"},
			{Type: TypeOf[baseResource](), Handler: "h2", Owner: "mid"},
			{Type: TypeOf[resource](), Handler: "h1", Owner: "root"},
		},
		{
			{Type: TypeOf[baseResource](), Handler: "h2", Owner: "mid"},
			{Type: TypeOf[resource](), Handler: "h1", Owner: "root"},
			{Type: TypeOf[testResource](), Handler: "h3", Owner: "leaf"},
		},
	}

	for i, entries := range orders {
		x := New[string]()
		for _, e := range entries {
			x.Add(e)
		}

		cases := map[reflect.Type]string{
			TypeOf[resource]():      "h1",
			TypeOf[baseResource]():  "h2",
			TypeOf[testResource]():  "h3",
			TypeOf[testResource2](): "h3",
			TypeOf[testResource3](): "h3",
			TypeOf[testResource4](): "h2",
		}
		for q, want := range cases {
			res := x.Resolve(q)
			if !res.Found() {
				t.Errorf("typeindex:index_test - order %d: %v not resolved (ambiguous=%v)", i, q, owners(res.Ambiguous))
				continue
			}
			if res.Match.Handler != want {
				t.Errorf("typeindex:index_test - order %d: Resolve(%v) = %q, want %q", i, q, res.Match.Handler, want)
			}
		}
	}
}

func TestIndex_ResolveAmbiguous(t *testing.T) {
	x := New[string]()
	x.Add(Entry[string]{Type: TypeOf[resource](), Handler: "h1", Owner: "root"})
	x.Add(Entry[string]{Type: TypeOf[baseResource2](), Handler: "h3", Owner: "two"})
	x.Add(Entry[string]{Type: TypeOf[baseResource](), Handler: "h2", Owner: "one"})

	res := x.Resolve(TypeOf[testResource4]())
	if res.Found() {
		t.Fatalf("typeindex:index_test - expected ambiguity, got %q", res.Match.Handler)
	}
	if !res.IsAmbiguous() {
		t.Fatal("typeindex:index_test - expected IsAmbiguous")
	}
	if diff := cmp.Diff([]string{"one", "two"}, owners(res.Ambiguous)); diff != "" {
		t.Errorf("typeindex:index_test - ambiguous owners mismatch (-want +got):\n%s", diff)
	}
	if got, want := Describe(res.Ambiguous), "[baseResource (one), baseResource2 (two)]"; got != want {
		t.Errorf("typeindex:index_test - Describe = %q, want %q", got, want)
	}
}

func TestIndex_ResolveMutualSubtypesIsAmbiguous(t *testing.T) {
	x := New[string]()
	x.Add(Entry[string]{Type: TypeOf[sameAsBase](), Handler: "h2", Owner: "b"})
	x.Add(Entry[string]{Type: TypeOf[baseResource](), Handler: "h1", Owner: "a"})

	res := x.Resolve(TypeOf[testResource]())
	if !res.IsAmbiguous() {
		t.Fatalf("typeindex:index_test - expected ambiguity, got found=%v", res.Found())
	}
	if diff := cmp.Diff([]string{"a", "b"}, owners(res.Ambiguous)); diff != "" {
		t.Errorf("typeindex:index_test - ambiguous owners mismatch (-want +got):\n%s", diff)
	}
}

func TestIndex_ResolveExactMutualSubtypeIsAmbiguous(t *testing.T) {
	x := New[string]()
	x.Add(Entry[string]{Type: TypeOf[baseResource](), Handler: "h1", Owner: "a"})
	x.Add(Entry[string]{Type: TypeOf[sameAsBase](), Handler: "h2", Owner: "b"})
	x.Add(Entry[string]{Type: TypeOf[resource](), Handler: "h0", Owner: "c"})

	for _, q := range []reflect.Type{TypeOf[baseResource](), TypeOf[sameAsBase]()} {
		res := x.Resolve(q)
		if !res.IsAmbiguous() {
			t.Fatalf("typeindex:index_test - %s: expected ambiguity, got found=%v", ShortName(q), res.Found())
		}
		if diff := cmp.Diff([]string{"a", "b"}, owners(res.Ambiguous)); diff != "" {
			t.Errorf("typeindex:index_test - %s: ambiguous owners mismatch (-want +got):\n%s", ShortName(q), diff)
		}
	}

	res := x.Resolve(TypeOf[resource]())
	if !res.Found() || res.Match.Owner != "c" {
		t.Errorf("typeindex:index_test - exact entry without equivalents should win, got %+v", res)
	}
}

func TestIndex_ResolveNothing(t *testing.T) {
	x := New[string]()
	x.Add(Entry[string]{Type: TypeOf[baseResource2](), Handler: "h", Owner: "a"})

	res := x.Resolve(TypeOf[testResource]())
	if res.Found() || res.IsAmbiguous() {
		t.Errorf("typeindex:index_test - expected empty resolution, got %+v", res)
	}
}

func TestIndex_EntriesInRegistrationOrder(t *testing.T) {
	x := New[string]()
	x.Add(Entry[string]{Type: TypeOf[testResource](), Owner: "a"})
	x.Add(Entry[string]{Type: TypeOf[resource](), Owner: "b"})
	x.Add(Entry[string]{Type: TypeOf[baseResource](), Owner: "c"})

	if diff := cmp.Diff([]string{"a", "b", "c"}, owners(x.Entries())); diff != "" {
		t.Errorf("typeindex:index_test - entries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, owners(x.Candidates(TypeOf[testResource2]()))); diff != "" {
		t.Errorf("typeindex:index_test - candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestNames(t *testing.T) {
	const pkg = "github.com/creekservice/creek-service/pkg/typeindex"
	if got := FullName(reflect.TypeOf(&testResource{})); got != pkg+".testResource" {
		t.Errorf("typeindex:index_test - FullName = %q", got)
	}
	if got := ShortName(TypeOf[baseResource]()); got != "baseResource" {
		t.Errorf("typeindex:index_test - ShortName = %q", got)
	}
	if got := FullName(reflect.TypeOf([]int{})); got != "[]int" {
		t.Errorf("typeindex:index_test - FullName(unnamed) = %q", got)
	}
}
