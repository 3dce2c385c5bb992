package descriptor

import (
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/metadata"
)

// Factory decodes the spec of a resource entry into a descriptor.
type Factory func(spec *yaml.Node) (metadata.ResourceDescriptor, error)

var (
	kindsMu sync.RWMutex
	kinds   = map[string]Factory{}
)

// RegisterKind makes a resource kind available to descriptor files.
// Extensions register their kinds from init. It panics if kind is empty,
// factory is nil, or kind is already registered.
func RegisterKind(kind string, factory Factory) {
	if kind == "" || factory == nil {
		panic("descriptor: RegisterKind requires a kind and a factory")
	}
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if _, dup := kinds[kind]; dup {
		panic("descriptor: RegisterKind called twice for " + kind)
	}
	kinds[kind] = factory
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func build(spec ResourceSpec) (metadata.ResourceDescriptor, error) {
	kindsMu.RLock()
	factory, ok := kinds[spec.Kind]
	kindsMu.RUnlock()
	if !ok {
		return nil, errs.New(errs.CodeIllegalArgument,
			"unknown resource kind %q, known kinds: %v. Are you missing an extension?", spec.Kind, Kinds())
	}
	r, err := factory(&spec.Spec)
	if err != nil {
		return nil, errs.Wrap(errs.CodeIllegalArgument, err, "invalid %s resource", spec.Kind)
	}
	if r == nil {
		return nil, errs.New(errs.CodeIllegalArgument, "resource kind %s produced no descriptor", spec.Kind)
	}
	return r, nil
}
