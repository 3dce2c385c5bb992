// Package services assembles the runtime context of a service from the
// extensions installed in its binary.
package services

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/samber/lo"

	"github.com/creekservice/creek-service/internal/guard"
	"github.com/creekservice/creek-service/internal/model"
	"github.com/creekservice/creek-service/pkg/dispatcher"
	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/extension"
	"github.com/creekservice/creek-service/pkg/metadata"
	"github.com/creekservice/creek-service/pkg/temporal"
	"github.com/creekservice/creek-service/pkg/typeindex"
)

const logPrefix = "services:builder"

// UnsupportedResourcePrefix starts the error returned when a component declares
// resources no installed extension handles.
const UnsupportedResourcePrefix = "Component defines resources for which no extension is installed."

// State is the assembly progress of a Builder.
type State int

const (
	Created State = iota
	Discovering
	Initializing
	ValidatingResources
	DispatchingOptions
	Built
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Discovering:
		return "Discovering"
	case Initializing:
		return "Initializing"
	case ValidatingResources:
		return "ValidatingResources"
	case DispatchingOptions:
		return "DispatchingOptions"
	case Built:
		return "Built"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Builder assembles a Context. A Builder assembles at most once and must be
// built on a single goroutine.
type Builder struct {
	service    metadata.ServiceDescriptor
	options    []any
	clock      temporal.Clock
	discoverer extension.Discoverer
	state      State
	err        error
}

// NewBuilder creates a Builder for svc using the installed extensions.
func NewBuilder(svc metadata.ServiceDescriptor) *Builder {
	return &Builder{service: svc, discoverer: extension.Default}
}

// NewContext assembles a Context for svc with default settings.
func NewContext(svc metadata.ServiceDescriptor) (*Context, error) {
	return NewBuilder(svc).Build()
}

// WithOption adds an option to deliver to the extension that accepts it.
func (b *Builder) WithOption(opt any) *Builder {
	b.options = append(b.options, opt)
	return b
}

// WithClock overrides the clock. Without it the clock is the one named by
// CREEK_CLOCK, or the system clock.
func (b *Builder) WithClock(c temporal.Clock) *Builder {
	b.clock = c
	return b
}

// WithDiscoverer replaces extension discovery.
func (b *Builder) WithDiscoverer(d extension.Discoverer) *Builder {
	b.discoverer = d
	return b
}

// State returns the assembly progress.
func (b *Builder) State() State {
	return b.state
}

// Err returns the error that failed assembly, if any.
func (b *Builder) Err() error {
	return b.err
}

// Build assembles the Context. Either the fully built Context or the first
// error is returned.
func (b *Builder) Build() (*Context, error) {
	if b.state != Created {
		return nil, errs.New(errs.CodeIllegalState, "context already assembled, state: %s", b.state)
	}
	ctx, err := b.assemble()
	if err != nil {
		b.state = Failed
		b.err = err
		slog.Error(fmt.Sprintf("%s - Failed to assemble service context: %v", logPrefix, err))
		return nil, err
	}
	b.enter(Built)
	return ctx, nil
}

func (b *Builder) enter(s State) {
	slog.Debug(fmt.Sprintf("%s - %s -> %s", logPrefix, b.state, s))
	b.state = s
}

type serviceAPI struct {
	model   *model.Model
	options *dispatcher.Dispatcher
}

func (a serviceAPI) Model() extension.Model     { return a.model }
func (a serviceAPI) Options() extension.Options { return a.options }

type instance struct {
	ext      extension.Extension
	provider string
}

func (b *Builder) assemble() (*Context, error) {
	if b.service == nil {
		return nil, errs.New(errs.CodeIllegalArgument, "service descriptor must not be nil")
	}
	if b.discoverer == nil {
		return nil, errs.New(errs.CodeIllegalArgument, "extension discoverer must not be nil")
	}

	b.enter(Discovering)
	providers := b.discoverer.Providers()
	for _, p := range providers {
		if p == nil {
			return nil, errs.New(errs.CodeIllegalArgument, "discovered a nil extension provider")
		}
		if err := extension.CheckCompatible(p); err != nil {
			return nil, err
		}
	}

	b.enter(Initializing)
	g := guard.New()
	api := serviceAPI{model: model.New(g), options: dispatcher.NewDispatcher(g)}
	instances, err := b.initialize(api, providers)
	if err != nil {
		return nil, err
	}
	if err := g.Seal(); err != nil {
		return nil, err
	}

	b.enter(ValidatingResources)
	if err := b.validateResources(api.model); err != nil {
		return nil, err
	}

	b.enter(DispatchingOptions)
	if err := api.options.DispatchAll(b.options); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		if clock, err = temporal.LoadFromEnv(temporal.AccurateClock{}); err != nil {
			return nil, err
		}
	}

	extensions := orderedmap.NewOrderedMap[reflect.Type, extension.Extension]()
	for _, t := range instances.Keys() {
		inst, _ := instances.Get(t)
		extensions.Set(t, inst.ext)
	}

	slog.Info(fmt.Sprintf("%s - Assembled context for %s with extensions %v", logPrefix,
		b.service.Name(), lo.Map(extensions.Keys(), func(t reflect.Type, _ int) string { return typeindex.ShortName(t) })))
	return newContext(clock, extensions), nil
}

func (b *Builder) initialize(api serviceAPI, providers []extension.Provider) (*orderedmap.OrderedMap[reflect.Type, instance], error) {
	components := []metadata.ComponentDescriptor{b.service}
	instances := orderedmap.NewOrderedMap[reflect.Type, instance]()

	for _, p := range providers {
		name := extension.ProviderName(p)
		if name == "" {
			return nil, errs.New(errs.CodeIllegalArgument, "extension provider %T has an empty name", p)
		}
		if err := api.model.Initializing(name); err != nil {
			return nil, err
		}
		ext, err := p.Initialize(api, components)
		if clearErr := api.model.Initializing(""); clearErr != nil {
			return nil, clearErr
		}
		if err != nil {
			return nil, fmt.Errorf("%s - extension %s failed to initialize: %w", logPrefix, name, err)
		}
		if ext == nil || (reflect.ValueOf(ext).Kind() == reflect.Pointer && reflect.ValueOf(ext).IsNil()) {
			return nil, errs.New(errs.CodeIllegalState, "extension provider %s returned no extension", name)
		}

		t := typeindex.Normalize(reflect.TypeOf(ext))
		if prev, dup := instances.Get(t); dup {
			return nil, errs.New(errs.CodeIllegalArgument,
				"extension type %s is provided by both %s and %s", typeindex.FullName(t), prev.provider, name)
		}
		instances.Set(t, instance{ext: ext, provider: name})
		slog.Debug(fmt.Sprintf("%s - Initialized extension %s from %s", logPrefix, ext.Name(), name))
	}
	return instances, nil
}

func (b *Builder) validateResources(m *model.Model) error {
	resources := metadata.Resources(b.service)

	var unsupported []string
	for _, r := range resources {
		if r == nil {
			return errs.New(errs.CodeIllegalArgument, "component %s declares a nil resource", b.service.Name())
		}
		ok, err := m.HasType(reflect.TypeOf(r))
		if err != nil {
			return err
		}
		if !ok {
			unsupported = append(unsupported, typeindex.FullName(reflect.TypeOf(r)))
		}
	}
	if len(unsupported) > 0 {
		unsupported = lo.Uniq(unsupported)
		sort.Strings(unsupported)
		return errs.New(errs.CodeUnsupportedResource,
			"%s Are you missing an extension? Check the extension packages linked into the service. component: %s, unsupported_resources: [%s]",
			UnsupportedResourcePrefix, b.service.Name(), strings.Join(unsupported, ", "))
	}

	groups, err := m.Group(resources)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := group.Handler.Validate(group.Resources); err != nil {
			return fmt.Errorf("%s - %s rejected resources of %s: %w",
				logPrefix, group.Owner, b.service.Name(), err)
		}
	}
	return nil
}
