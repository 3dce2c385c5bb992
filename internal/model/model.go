// Package model implements the resource registry extensions populate while
// they initialize.
package model

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/creekservice/creek-service/internal/guard"
	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/extension"
	"github.com/creekservice/creek-service/pkg/metadata"
	"github.com/creekservice/creek-service/pkg/typeindex"
)

const logPrefix = "model:model"

// Model maps resource descriptor types to the handlers registered for them.
// All methods must be called on the goroutine that owns the guard.
type Model struct {
	guard    *guard.Guard
	handlers *typeindex.Index[extension.ResourceHandler]
}

var _ extension.Model = (*Model)(nil)

// New creates an empty model confined by g.
func New(g *guard.Guard) *Model {
	return &Model{
		guard:    g,
		handlers: typeindex.New[extension.ResourceHandler](),
	}
}

// Initializing opens the registration window for identity, or closes it when
// identity is empty.
func (m *Model) Initializing(identity string) error {
	return m.guard.Initializing(identity)
}

// AddResource registers h for descriptors of type t and of any subtype
// without a more specific handler.
func (m *Model) AddResource(t reflect.Type, h extension.ResourceHandler) error {
	owner, err := m.guard.CheckMutable("AddResource")
	if err != nil {
		return err
	}
	if t == nil || h == nil {
		return errs.New(errs.CodeIllegalArgument, "AddResource requires a type and a handler")
	}

	prev, added := m.handlers.Add(typeindex.Entry[extension.ResourceHandler]{
		Type:    t,
		Handler: h,
		Owner:   owner,
	})
	if !added {
		return errs.New(errs.CodeDuplicateRegistration,
			"Handler already registered for type: %s, registering extension: %s",
			typeindex.FullName(prev.Type), prev.Owner)
	}

	slog.Debug(fmt.Sprintf("%s - Registered resource handler for %s from %s",
		logPrefix, typeindex.FullName(prev.Type), owner))
	return nil
}

// HasType reports whether a handler is registered for t or one of its
// supertypes.
func (m *Model) HasType(t reflect.Type) (bool, error) {
	if err := m.guard.CheckGoroutine("HasType"); err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}
	return m.handlers.Covers(t), nil
}

// ResourceHandler returns the most specific handler for t.
func (m *Model) ResourceHandler(t reflect.Type) (extension.ResourceHandler, error) {
	if err := m.guard.CheckGoroutine("ResourceHandler"); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errs.New(errs.CodeIllegalArgument, "ResourceHandler requires a type")
	}

	res := m.handlers.Resolve(t)
	switch {
	case res.Found():
		return res.Match.Handler, nil
	case res.IsAmbiguous():
		return nil, errs.New(errs.CodeAmbiguous,
			"Unable to determine most specific resource handler for type: %s. Could be any handler for any type in %s",
			typeindex.FullName(res.Query), typeindex.Describe(res.Ambiguous))
	default:
		return nil, errs.New(errs.CodeNotFound,
			"Unknown resource descriptor type: %s\nAre you missing an extension? Check the extension packages linked into the service.",
			typeindex.FullName(res.Query))
	}
}

// Group is a set of resources resolved to the same handler.
type Group struct {
	Type      reflect.Type
	Owner     string
	Handler   extension.ResourceHandler
	Resources []metadata.ResourceDescriptor
}

// Group partitions resources by their most specific handler. Groups and the
// resources within them keep declaration order.
func (m *Model) Group(resources []metadata.ResourceDescriptor) ([]Group, error) {
	if err := m.guard.CheckGoroutine("Group"); err != nil {
		return nil, err
	}

	var groups []Group
	index := map[reflect.Type]int{}
	for _, r := range resources {
		if r == nil {
			return nil, errs.New(errs.CodeIllegalArgument, "resource descriptor must not be nil")
		}
		if _, err := m.ResourceHandler(reflect.TypeOf(r)); err != nil {
			return nil, err
		}
		match := m.handlers.Resolve(reflect.TypeOf(r)).Match
		i, ok := index[match.Type]
		if !ok {
			i = len(groups)
			index[match.Type] = i
			groups = append(groups, Group{Type: match.Type, Owner: match.Owner, Handler: match.Handler})
		}
		groups[i].Resources = append(groups[i].Resources, r)
	}
	return groups, nil
}
