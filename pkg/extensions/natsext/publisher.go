package natsext

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/creekservice/creek-service/pkg/errs"
)

const publisherLogPrefix = "natsext:publisher"

// Publisher publishes JSON payloads to the output subjects the service declares.
type Publisher struct {
	nc      *comms.Conn
	outputs map[string]bool
}

// Publisher returns a Publisher over nc restricted to declared outputs.
func (e *Extension) Publisher(nc *comms.Conn) *Publisher {
	outputs := make(map[string]bool, len(e.outputs))
	for s := range e.outputs {
		outputs[s] = true
	}
	return &Publisher{nc: nc, outputs: outputs}
}

// Publish encodes v and publishes it to subject.
func (p *Publisher) Publish(_ context.Context, subject string, v any) error {
	if !p.outputs[subject] {
		return errs.New(errs.CodeIllegalArgument, "subject %s is not a declared output of the service", subject)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s - failed to encode payload: %w", publisherLogPrefix, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", publisherLogPrefix, subject, err))
		return err
	}
	slog.Debug(fmt.Sprintf("%s - Published %d bytes to %s", publisherLogPrefix, len(data), subject))
	return nil
}
