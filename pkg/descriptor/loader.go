package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/metadata"
)

const logPrefix = "descriptor:loader"

// EnvDescriptorFile names the environment variable holding a descriptor path.
const EnvDescriptorFile = "CREEK_SERVICE_DESCRIPTOR"

// DefaultPaths are tried after explicit paths and CREEK_SERVICE_DESCRIPTOR.
var DefaultPaths = []string{"creek-service.yaml", "config/creek-service.yaml"}

// Load reads the first descriptor file that exists.
// It tries paths in order: first any paths passed in, then CREEK_SERVICE_DESCRIPTOR, then DefaultPaths.
// A file that exists but does not parse is an error.
func Load(paths ...string) (*Service, string, error) {
	all := lo.Compact(append(append([]string{}, paths...), os.Getenv(EnvDescriptorFile)))
	all = append(all, DefaultPaths...)

	for _, p := range all {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, p, fmt.Errorf("%s - failed to read %s: %w", logPrefix, p, err)
		}

		svc, err := Parse(data)
		if err != nil {
			return nil, p, fmt.Errorf("%s - failed to parse %s: %w", logPrefix, p, err)
		}
		slog.Info(fmt.Sprintf("%s - Loaded service descriptor %s from %s", logPrefix, svc.Name(), p))
		return svc, p, nil
	}

	return nil, "", errs.New(errs.CodeNotFound, "no service descriptor found, tried %v", all)
}

// Parse decodes a YAML or JSON descriptor and builds its resources.
func Parse(data []byte) (*Service, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return FromFile(&f)
}

// FromFile builds a Service from its on-disk form.
func FromFile(f *File) (*Service, error) {
	if f.Name == "" {
		return nil, errs.New(errs.CodeIllegalArgument, "service descriptor requires a name")
	}

	svc := NewService(f.Name, f.DockerImage)
	sections := []struct {
		name  string
		specs []ResourceSpec
		add   func(metadata.ResourceDescriptor) *Service
	}{
		{"inputs", f.Inputs, svc.AddInput},
		{"internals", f.Internals, svc.AddInternal},
		{"outputs", f.Outputs, svc.AddOutput},
	}
	for _, section := range sections {
		for i, spec := range section.specs {
			r, err := build(spec)
			if err != nil {
				return nil, fmt.Errorf("%s - %s[%d]: %w", logPrefix, section.name, i, err)
			}
			section.add(r)
		}
	}
	return svc, nil
}
