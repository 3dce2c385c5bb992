// Package guard confines mutation of an in-progress extension registry to one
// goroutine and to the window in which an extension is initializing.
package guard

import (
	"github.com/petermattis/goid"

	"github.com/creekservice/creek-service/pkg/errs"
)

// MutationContext names the only call during which registrations are accepted.
const MutationContext = "Provider.Initialize"

// Guard enforces single goroutine affinity and the registration window. It
// uses no locks: any call from a goroutine other than the owner fails.
type Guard struct {
	owner  int64
	active string
	sealed bool
}

// New binds a Guard to the calling goroutine.
func New() *Guard {
	return NewFor(goid.Get())
}

// NewFor binds a Guard to the goroutine with the given id.
func NewFor(goroutineID int64) *Guard {
	return &Guard{owner: goroutineID}
}

// Owner returns the id of the goroutine the guard is bound to.
func (g *Guard) Owner() int64 {
	return g.owner
}

// CheckGoroutine fails with CONCURRENT_ACCESS if called off the owner goroutine.
func (g *Guard) CheckGoroutine(op string) error {
	if current := goid.Get(); current != g.owner {
		return errs.New(errs.CodeConcurrentAccess,
			"%s called from goroutine %d, but the model is confined to goroutine %d", op, current, g.owner)
	}
	return nil
}

// Initializing sets the identity of the extension currently initializing, or
// clears it when identity is empty.
func (g *Guard) Initializing(identity string) error {
	if err := g.CheckGoroutine("Initializing"); err != nil {
		return err
	}
	if identity == "" {
		g.active = ""
		return nil
	}
	if g.sealed {
		return errs.New(errs.CodeIllegalState, "registration window is closed, cannot initialize: %s", identity)
	}
	if g.active != "" {
		return errs.New(errs.CodeIllegalState, "cannot initialize %s while %s is still initializing", identity, g.active)
	}
	g.active = identity
	return nil
}

// Active returns the identity of the initializing extension, or "".
func (g *Guard) Active() string {
	return g.active
}

// Seal closes the registration window permanently.
func (g *Guard) Seal() error {
	if err := g.CheckGoroutine("Seal"); err != nil {
		return err
	}
	g.active = ""
	g.sealed = true
	return nil
}

// Sealed reports whether Seal has been called.
func (g *Guard) Sealed() bool {
	return g.sealed
}

// CheckMutable verifies op is called on the owner goroutine while an extension
// is initializing and returns that extension's identity.
func (g *Guard) CheckMutable(op string) (string, error) {
	if err := g.CheckGoroutine(op); err != nil {
		return "", err
	}
	if g.active == "" {
		return "", errs.New(errs.CodeUnsupportedOperation,
			"The model can only be changed during the %s call", MutationContext)
	}
	return g.active, nil
}
