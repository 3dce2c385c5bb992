// Package dispatcher routes caller supplied options to the extension that
// declared it consumes them.
package dispatcher

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/creekservice/creek-service/internal/guard"
	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/extension"
	"github.com/creekservice/creek-service/pkg/typeindex"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes options to consumers by the option's runtime type.
type Dispatcher struct {
	guard     *guard.Guard
	consumers *typeindex.Index[extension.Consumer]
}

var _ extension.Options = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher that shares g with the model, so options
// can only be declared while an extension is initializing.
func NewDispatcher(g *guard.Guard) *Dispatcher {
	return &Dispatcher{
		guard:     g,
		consumers: typeindex.New[extension.Consumer](),
	}
}

// Accept declares that the initializing extension consumes options of type t
// and of any subtype without a more specific consumer.
func (d *Dispatcher) Accept(t reflect.Type, consume extension.Consumer) error {
	owner, err := d.guard.CheckMutable("Accept")
	if err != nil {
		return err
	}
	if t == nil || consume == nil {
		return errs.New(errs.CodeIllegalArgument, "Accept requires an option type and a consumer")
	}

	prev, added := d.consumers.Add(typeindex.Entry[extension.Consumer]{
		Type:    t,
		Handler: consume,
		Owner:   owner,
	})
	if !added {
		return errs.New(errs.CodeDuplicateRegistration,
			"Option type already accepted: %s, accepting extension: %s",
			typeindex.FullName(prev.Type), prev.Owner)
	}
	slog.Debug(fmt.Sprintf("%s - %s accepts options of type %s", logPrefix, owner, typeindex.FullName(prev.Type)))
	return nil
}

// Dispatch delivers opt to the most specific consumer of its type.
func (d *Dispatcher) Dispatch(opt any) error {
	if err := d.guard.CheckGoroutine("Dispatch"); err != nil {
		return err
	}
	if opt == nil {
		return errs.New(errs.CodeIllegalArgument, "option must not be nil")
	}

	res := d.consumers.Resolve(reflect.TypeOf(opt))
	switch {
	case res.Found():
	case res.IsAmbiguous():
		return errs.New(errs.CodeAmbiguous,
			"Unable to determine most specific consumer for option type: %s. Could be any consumer for any type in %s",
			typeindex.FullName(res.Query), typeindex.Describe(res.Ambiguous))
	default:
		return errs.New(errs.CodeUnhandledOption,
			"No extension handled option of type: %s", typeindex.FullName(res.Query))
	}

	slog.Debug(fmt.Sprintf("%s - type=%s extension=%s", logPrefix, typeindex.FullName(res.Query), res.Match.Owner))
	if err := res.Match.Handler(opt); err != nil {
		return errs.Wrap(errs.CodeIllegalArgument, err,
			"extension %s rejected option of type %s", res.Match.Owner, typeindex.FullName(res.Query))
	}
	return nil
}

// DispatchAll dispatches opts in order and stops at the first failure.
func (d *Dispatcher) DispatchAll(opts []any) error {
	for _, opt := range opts {
		if err := d.Dispatch(opt); err != nil {
			return err
		}
	}
	return nil
}

// Accepted returns the declared option types in declaration order.
func (d *Dispatcher) Accepted() []reflect.Type {
	entries := d.consumers.Entries()
	out := make([]reflect.Type, len(entries))
	for i, e := range entries {
		out[i] = e.Type
	}
	return out
}
