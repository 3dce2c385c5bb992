// Package descriptor loads service descriptors from YAML or JSON files.
package descriptor

import (
	"gopkg.in/yaml.v3"

	"github.com/creekservice/creek-service/pkg/metadata"
)

// File is the on-disk form of a service descriptor.
type File struct {
	Name        string         `yaml:"name" json:"name"`
	DockerImage string         `yaml:"dockerImage,omitempty" json:"dockerImage,omitempty"`
	Inputs      []ResourceSpec `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Internals   []ResourceSpec `yaml:"internals,omitempty" json:"internals,omitempty"`
	Outputs     []ResourceSpec `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// ResourceSpec is a resource entry. Kind selects the factory that decodes Spec.
type ResourceSpec struct {
	Kind string    `yaml:"kind" json:"kind"`
	Spec yaml.Node `yaml:"spec" json:"spec"`
}

// Service is a loaded service descriptor.
type Service struct {
	name        string
	dockerImage string
	inputs      []metadata.ResourceDescriptor
	internals   []metadata.ResourceDescriptor
	outputs     []metadata.ResourceDescriptor
}

var _ metadata.ServiceDescriptor = (*Service)(nil)

// NewService creates a descriptor with no resources.
func NewService(name, dockerImage string) *Service {
	return &Service{name: name, dockerImage: dockerImage}
}

func (s *Service) Name() string                              { return s.name }
func (s *Service) DockerImage() string                       { return s.dockerImage }
func (s *Service) Inputs() []metadata.ResourceDescriptor    { return s.inputs }
func (s *Service) Internals() []metadata.ResourceDescriptor { return s.internals }
func (s *Service) Outputs() []metadata.ResourceDescriptor   { return s.outputs }

// AddInput appends an input resource.
func (s *Service) AddInput(r metadata.ResourceDescriptor) *Service {
	s.inputs = append(s.inputs, r)
	return s
}

// AddInternal appends an internal resource.
func (s *Service) AddInternal(r metadata.ResourceDescriptor) *Service {
	s.internals = append(s.internals, r)
	return s
}

// AddOutput appends an output resource.
func (s *Service) AddOutput(r metadata.ResourceDescriptor) *Service {
	s.outputs = append(s.outputs, r)
	return s
}
