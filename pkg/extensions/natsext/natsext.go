// Package natsext is the NATS extension. Linking it into a service binary
// installs it:
//
//	import _ "github.com/creekservice/creek-service/pkg/extensions/natsext"
package natsext

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"

	"github.com/creekservice/creek-service/pkg/commsutil"
	"github.com/creekservice/creek-service/pkg/descriptor"
	"github.com/creekservice/creek-service/pkg/extension"
	"github.com/creekservice/creek-service/pkg/metadata"
)

const logPrefix = "natsext:natsext"

// Kind is the descriptor kind of Subject resources.
const Kind = "nats.subject"

func init() {
	extension.Register(Provider{})
	descriptor.RegisterKind(Kind, func(spec *yaml.Node) (metadata.ResourceDescriptor, error) {
		var s Subject
		if err := spec.Decode(&s); err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Subject is a NATS subject a component consumes or produces.
type Subject struct {
	Name string `yaml:"subject" json:"subject"`
}

// ID returns the resource id, e.g. "nats://orders.created".
func (s Subject) ID() string {
	return "nats://" + s.Name
}

// Options configures the NATS connection of the service.
type Options struct {
	URL        string
	ClientName string
}

// Provider installs the NATS extension.
type Provider struct{}

func (Provider) String() string { return "nats" }

// RequiresAPI declares the supported extension API versions.
func (Provider) RequiresAPI() string { return "^1.0" }

// Initialize registers the Subject handler and the Options consumer.
func (Provider) Initialize(api extension.Service, components []metadata.ComponentDescriptor) (extension.Extension, error) {
	ext := &Extension{
		options: Options{URL: comms.DefaultURL},
		outputs: map[string]bool{},
	}
	for _, c := range components {
		ext.options.ClientName = c.Name()
		for _, r := range c.Outputs() {
			if s, ok := asSubject(r); ok {
				ext.outputs[s.Name] = true
			}
		}
	}

	if err := extension.AddResource[Subject](api.Model(), extension.ValidateFunc(ext.validate)); err != nil {
		return nil, err
	}
	if err := extension.AcceptOption(api.Options(), ext.configure); err != nil {
		return nil, err
	}
	return ext, nil
}

// Extension is the NATS extension instance.
type Extension struct {
	options  Options
	subjects []Subject
	outputs  map[string]bool
}

// Name returns "nats".
func (*Extension) Name() string { return "nats" }

// Options returns the effective connection options.
func (e *Extension) Options() Options { return e.options }

// Subjects returns the validated subjects in declaration order.
func (e *Extension) Subjects() []Subject {
	return append([]Subject(nil), e.subjects...)
}

// Connect opens a connection using the effective options.
func (e *Extension) Connect() (*comms.Conn, error) {
	return commsutil.Connect(commsutil.ConnectParams{URL: e.options.URL, Name: e.options.ClientName})
}

func (e *Extension) configure(o Options) error {
	if o.URL == "" {
		return fmt.Errorf("%s - NATS URL must not be empty", logPrefix)
	}
	if o.ClientName == "" {
		o.ClientName = e.options.ClientName
	}
	e.options = o
	return nil
}

func (e *Extension) validate(resources []metadata.ResourceDescriptor) error {
	seen := map[string]bool{}
	for _, r := range e.subjects {
		seen[r.Name] = true
	}
	for _, r := range resources {
		s, ok := asSubject(r)
		if !ok {
			return fmt.Errorf("%s - unexpected resource %T", logPrefix, r)
		}
		if err := commsutil.ValidateSubject(s.Name, !e.outputs[s.Name]); err != nil {
			return fmt.Errorf("%s - invalid subject resource %s: %w", logPrefix, s.ID(), err)
		}
		if !seen[s.Name] {
			seen[s.Name] = true
			e.subjects = append(e.subjects, s)
		}
	}
	slog.Debug(fmt.Sprintf("%s - Validated %d subjects", logPrefix, len(resources)))
	return nil
}

func asSubject(r metadata.ResourceDescriptor) (Subject, bool) {
	switch s := r.(type) {
	case Subject:
		return s, true
	case *Subject:
		if s != nil {
			return *s, true
		}
	}
	return Subject{}, false
}
