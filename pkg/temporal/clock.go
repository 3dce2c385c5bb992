// Package temporal provides the clock services read the current time from.
package temporal

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/creekservice/creek-service/pkg/errs"
)

const logPrefix = "temporal:clock"

// EnvClock names the environment variable that selects a registered clock.
const EnvClock = "CREEK_CLOCK"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// AccurateClock reads the system clock.
type AccurateClock struct{}

// Now returns time.Now().
func (AccurateClock) Now() time.Time {
	return time.Now()
}

// ClockFunc adapts a function to a Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// Factory creates a clock. Factories are registered by name and selected at
// startup through CREEK_CLOCK.
type Factory func() (Clock, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		"accurate": func() (Clock, error) { return AccurateClock{}, nil },
	}
)

// RegisterClock makes a clock factory available under name. It panics if
// name is empty, factory is nil, or name is already registered.
func RegisterClock(name string, factory Factory) {
	if name == "" || factory == nil {
		panic("temporal: RegisterClock requires a name and a factory")
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[name]; dup {
		panic("temporal: RegisterClock called twice for " + name)
	}
	factories[name] = factory
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Names returns the registered clock names, sorted.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load returns the clock registered as name, or defaultClock when name is
// empty. An unknown name or a failing factory is an error.
func Load(name string, defaultClock Clock) (Clock, error) {
	if name == "" {
		if defaultClock == nil {
			return nil, errs.New(errs.CodeIllegalArgument, "a default clock is required")
		}
		return defaultClock, nil
	}

	factory, ok := Lookup(name)
	if !ok {
		return nil, errs.New(errs.CodeClockResolution,
			"no clock registered with name %q, known clocks: %v", name, Names())
	}
	clock, err := factory()
	if err != nil {
		return nil, errs.Wrap(errs.CodeClockResolution, err, "failed to create clock %q", name)
	}
	if clock == nil {
		return nil, errs.New(errs.CodeClockResolution, "clock factory %q returned no clock", name)
	}

	slog.Info(fmt.Sprintf("%s - Using clock %s", logPrefix, name))
	return clock, nil
}

type clockEnv struct {
	Clock string `envconfig:"CREEK_CLOCK"`
}

// LoadFromEnv loads the clock named by CREEK_CLOCK, falling back to
// defaultClock only when the variable is unset or empty.
func LoadFromEnv(defaultClock Clock) (Clock, error) {
	var env clockEnv
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("%s - failed to read %s: %w", logPrefix, EnvClock, err)
	}
	return Load(env.Clock, defaultClock)
}
