package services

import (
	"reflect"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/extension"
	"github.com/creekservice/creek-service/pkg/temporal"
	"github.com/creekservice/creek-service/pkg/typeindex"
)

// Context is the assembled runtime context of a service. It is immutable
// and safe for concurrent use.
type Context struct {
	clock      temporal.Clock
	extensions *orderedmap.OrderedMap[reflect.Type, extension.Extension]
}

func newContext(clock temporal.Clock, extensions *orderedmap.OrderedMap[reflect.Type, extension.Extension]) *Context {
	return &Context{clock: clock, extensions: extensions}
}

// Clock returns the clock services should read the time from.
func (c *Context) Clock() temporal.Clock {
	return c.clock
}

// Extension returns the extension instance whose type is exactly t.
func (c *Context) Extension(t reflect.Type) (extension.Extension, error) {
	if t == nil {
		return nil, errs.New(errs.CodeIllegalArgument, "extension type must not be nil")
	}
	ext, ok := c.extensions.Get(typeindex.Normalize(t))
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "No extension of type %s is installed", typeindex.FullName(t))
	}
	return ext, nil
}

// Extensions returns all extension instances in discovery order.
func (c *Context) Extensions() []extension.Extension {
	out := make([]extension.Extension, 0, c.extensions.Len())
	for _, k := range c.extensions.Keys() {
		ext, _ := c.extensions.Get(k)
		out = append(out, ext)
	}
	return out
}

// Extension returns the single extension instance assignable to T. T may be
// an extension's concrete type or an interface it implements.
func Extension[T any](c *Context) (T, error) {
	var zero T
	want := typeindex.TypeOf[T]()

	if ext, ok := c.extensions.Get(want); ok {
		return as[T](ext)
	}

	var matches []typeindex.Entry[extension.Extension]
	for _, k := range c.extensions.Keys() {
		if typeindex.IsSubtype(k, want) {
			ext, _ := c.extensions.Get(k)
			matches = append(matches, typeindex.Entry[extension.Extension]{Type: k, Handler: ext, Owner: ext.Name()})
		}
	}

	switch len(matches) {
	case 0:
		return zero, errs.New(errs.CodeNotFound, "No extension of type %s is installed", typeindex.FullName(want))
	case 1:
		return as[T](matches[0].Handler)
	default:
		typeindex.SortEntries(matches)
		return zero, errs.New(errs.CodeAmbiguous,
			"More than one extension matches type %s: %s", typeindex.FullName(want), typeindex.Describe(matches))
	}
}

func as[T any](ext extension.Extension) (T, error) {
	if v, ok := ext.(T); ok {
		return v, nil
	}
	if rv := reflect.ValueOf(ext); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		if v, ok := rv.Elem().Interface().(T); ok {
			return v, nil
		}
	}
	var zero T
	return zero, errs.New(errs.CodeIllegalState, "extension %T cannot be returned as %s",
		ext, typeindex.FullName(typeindex.TypeOf[T]()))
}
