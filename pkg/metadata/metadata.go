// Package metadata defines the descriptor contracts a service exposes to the
// extension context.
package metadata

// ResourceDescriptor describes a resource a component uses. The concrete Go
// type of a descriptor decides which extension handles it.
type ResourceDescriptor interface {
	// ID uniquely identifies the resource, e.g. "nats://subject/orders".
	ID() string
}

// ComponentDescriptor describes a deployable component and its resources.
type ComponentDescriptor interface {
	Name() string
	Inputs() []ResourceDescriptor
	Internals() []ResourceDescriptor
	Outputs() []ResourceDescriptor
}

// ServiceDescriptor describes a service component.
type ServiceDescriptor interface {
	ComponentDescriptor
	DockerImage() string
}

// Resources returns the inputs, internals and outputs of c, in that order.
func Resources(c ComponentDescriptor) []ResourceDescriptor {
	in, internal, out := c.Inputs(), c.Internals(), c.Outputs()
	all := make([]ResourceDescriptor, 0, len(in)+len(internal)+len(out))
	all = append(all, in...)
	all = append(all, internal...)
	return append(all, out...)
}
