package extension

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/semver"
)

const logPrefix = "extension:discovery"

// APIVersion is the version of the extension contract implemented by this
// module. Providers declare the range they support via Compatible.
const APIVersion = "1.0.0"

// Compatible is implemented by providers that declare which versions of the
// extension contract they support, as a semver constraint such as "^1.0".
type Compatible interface {
	RequiresAPI() string
}

// Discoverer supplies the providers available to a service, in a stable order.
type Discoverer interface {
	Providers() []Provider
}

// Static is a Discoverer over a fixed provider list.
type Static []Provider

// Providers returns the list as given.
func (s Static) Providers() []Provider {
	return append([]Provider(nil), s...)
}

var (
	installedMu sync.Mutex
	installed   []Provider
)

// Register installs p for default discovery. Extension packages call it from
// init, so linking the package into a binary installs the extension.
// Registering a nil provider or the same provider twice panics.
func Register(p Provider) {
	if p == nil {
		panic("extension: Register provider is nil")
	}
	installedMu.Lock()
	defer installedMu.Unlock()
	canCompare := reflect.TypeOf(p).Comparable()
	for _, existing := range installed {
		if canCompare && existing == p {
			panic(fmt.Sprintf("extension: Register called twice for provider %s", ProviderName(p)))
		}
	}
	installed = append(installed, p)
	slog.Debug(fmt.Sprintf("%s - Installed extension provider %s", logPrefix, ProviderName(p)))
}

// Installed returns every registered provider in registration order.
func Installed() []Provider {
	installedMu.Lock()
	defer installedMu.Unlock()
	return append([]Provider(nil), installed...)
}

// Default discovers the providers installed with Register.
var Default Discoverer = installedDiscoverer{}

type installedDiscoverer struct{}

func (installedDiscoverer) Providers() []Provider {
	return Installed()
}

// ProviderName returns the identity used for p in diagnostics.
func ProviderName(p Provider) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", p), "*")
}

// CheckCompatible verifies a Compatible provider supports APIVersion.
func CheckCompatible(p Provider) error {
	c, ok := p.(Compatible)
	if !ok {
		return nil
	}
	ok, err := semver.Satisfies(APIVersion, c.RequiresAPI())
	if err != nil {
		return errs.Wrap(errs.CodeIncompatibleExtension, err,
			"extension %s declares an invalid API requirement %q", ProviderName(p), c.RequiresAPI())
	}
	if !ok {
		return errs.New(errs.CodeIncompatibleExtension,
			"extension %s requires extension API %s, but this runtime provides %s",
			ProviderName(p), c.RequiresAPI(), APIVersion)
	}
	return nil
}
