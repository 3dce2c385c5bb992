// Package extension defines the contract between the service context and the
// extensions installed in a service binary.
package extension

import (
	"reflect"

	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/metadata"
	"github.com/creekservice/creek-service/pkg/typeindex"
)

// Extension is the instance an extension contributes to the service context.
type Extension interface {
	// Name returns a short identifier, e.g. "nats".
	Name() string
}

// Provider initializes an extension. Initialize is called exactly once per
// context assembly, on the assembling goroutine, while the registration
// window is open for this provider. It must not block.
type Provider interface {
	Initialize(api Service, components []metadata.ComponentDescriptor) (Extension, error)
}

// Service is the handle a provider uses to register with the context.
type Service interface {
	Model() Model
	Options() Options
}

// ResourceHandler handles all resources of the type it is registered for and
// of any subtype without a more specific handler.
type ResourceHandler interface {
	// Validate checks a group of resources that resolved to this handler.
	Validate(resources []metadata.ResourceDescriptor) error
}

// ValidateFunc adapts a function to a ResourceHandler.
type ValidateFunc func(resources []metadata.ResourceDescriptor) error

// Validate calls f.
func (f ValidateFunc) Validate(resources []metadata.ResourceDescriptor) error {
	return f(resources)
}

// Model holds the resource handlers registered by extensions.
type Model interface {
	// AddResource registers h for descriptors of type t and its subtypes.
	AddResource(t reflect.Type, h ResourceHandler) error
	// HasType reports whether some handler covers t.
	HasType(t reflect.Type) (bool, error)
	// ResourceHandler returns the most specific handler for t.
	ResourceHandler(t reflect.Type) (ResourceHandler, error)
}

// Consumer receives a caller supplied option.
type Consumer func(option any) error

// Options lets an extension declare the option types it consumes.
type Options interface {
	Accept(t reflect.Type, consume Consumer) error
}

// AddResource registers h for descriptors of type T.
func AddResource[T metadata.ResourceDescriptor](m Model, h ResourceHandler) error {
	return m.AddResource(typeindex.TypeOf[T](), h)
}

// AcceptOption declares that the calling extension consumes options of type T.
// Options are delivered by value or pointer, whichever the caller supplied.
func AcceptOption[T any](o Options, consume func(T) error) error {
	return o.Accept(typeindex.TypeOf[T](), func(option any) error {
		switch v := option.(type) {
		case T:
			return consume(v)
		case *T:
			return consume(*v)
		}
		if rv := reflect.ValueOf(option); rv.IsValid() && rv.Kind() != reflect.Pointer {
			ptr := reflect.New(rv.Type())
			ptr.Elem().Set(rv)
			if v, ok := ptr.Interface().(T); ok {
				return consume(v)
			}
		}
		return errs.New(errs.CodeIllegalArgument, "option of type %T cannot be delivered as %s",
			option, typeindex.FullName(typeindex.TypeOf[T]()))
	})
}
