package natsext

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/creekservice/creek-service/pkg/descriptor"
	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/extension"
	"github.com/creekservice/creek-service/pkg/services"
	"github.com/creekservice/creek-service/pkg/temporal"
)

const testPrefix = "natsext:natsext_test"

func build(t *testing.T, svc *descriptor.Service, opts ...any) (*Extension, error) {
	t.Helper()
	b := services.NewBuilder(svc).
		WithDiscoverer(extension.Static{Provider{}}).
		WithClock(temporal.AccurateClock{})
	for _, o := range opts {
		b.WithOption(o)
	}
	ctx, err := b.Build()
	if err != nil {
		return nil, err
	}
	return services.Extension[*Extension](ctx)
}

func TestProvider_Installed(t *testing.T) {
	found := false
	for _, p := range extension.Installed() {
		if _, ok := p.(Provider); ok {
			found = true
		}
	}
	if !found {
		t.Errorf("%s - expected Provider to be installed by init", testPrefix)
	}
	if err := extension.CheckCompatible(Provider{}); err != nil {
		t.Errorf("%s - provider should be compatible: %v", testPrefix, err)
	}
}

func TestExtension_Defaults(t *testing.T) {
	svc := descriptor.NewService("orders", "").
		AddInput(Subject{Name: "orders.*"}).
		AddOutput(&Subject{Name: "orders.shipped"}).
		AddInput(Subject{Name: "orders.*"})

	ext, err := build(t, svc)
	if err != nil {
		t.Fatalf("%s - Build failed: %v", testPrefix, err)
	}
	if diff := cmp.Diff(Options{URL: comms.DefaultURL, ClientName: "orders"}, ext.Options()); diff != "" {
		t.Errorf("%s - options mismatch (-want +got):\n%s", testPrefix, diff)
	}
	want := []Subject{{Name: "orders.*"}, {Name: "orders.shipped"}}
	if diff := cmp.Diff(want, ext.Subjects()); diff != "" {
		t.Errorf("%s - subjects mismatch (-want +got):\n%s", testPrefix, diff)
	}
}

func TestExtension_OptionsDelivered(t *testing.T) {
	ext, err := build(t, descriptor.NewService("orders", ""), Options{URL: "nats://nats:4222"})
	if err != nil {
		t.Fatalf("%s - Build failed: %v", testPrefix, err)
	}
	if diff := cmp.Diff(Options{URL: "nats://nats:4222", ClientName: "orders"}, ext.Options()); diff != "" {
		t.Errorf("%s - options mismatch (-want +got):\n%s", testPrefix, diff)
	}

	_, err = build(t, descriptor.NewService("orders", ""), Options{})
	if !errors.Is(err, errs.ErrIllegalArgument) {
		t.Errorf("%s - expected ILLEGAL_ARGUMENT for empty URL, got %v", testPrefix, err)
	}
}

func TestExtension_InvalidSubjects(t *testing.T) {
	tests := []struct {
		name string
		svc  *descriptor.Service
	}{
		{"empty token", descriptor.NewService("svc", "").AddInput(Subject{Name: "orders..created"})},
		{"wildcard output", descriptor.NewService("svc", "").AddOutput(Subject{Name: "orders.>"})},
		{"empty", descriptor.NewService("svc", "").AddInternal(Subject{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := build(t, tt.svc); err == nil {
				t.Errorf("%s - expected validation error", testPrefix)
			}
		})
	}
}

func TestDescriptorKind(t *testing.T) {
	svc, err := descriptor.Parse([]byte("name: orders\ninputs:\n  - kind: nats.subject\n    spec:\n      subject: orders.created\n"))
	if err != nil {
		t.Fatalf("%s - Parse failed: %v", testPrefix, err)
	}
	if diff := cmp.Diff([]string{"nats://orders.created"}, []string{svc.Inputs()[0].ID()}); diff != "" {
		t.Errorf("%s - ids mismatch (-want +got):\n%s", testPrefix, diff)
	}
}

func startTestServer(t *testing.T) *commsserver.Server {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", testPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", testPrefix)
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func TestPublisher_Publish(t *testing.T) {
	ns := startTestServer(t)
	svc := descriptor.NewService("orders", "").AddOutput(Subject{Name: "orders.shipped"})
	ext, err := build(t, svc, Options{URL: ns.ClientURL()})
	if err != nil {
		t.Fatalf("%s - Build failed: %v", testPrefix, err)
	}

	nc, err := ext.Connect()
	if err != nil {
		t.Fatalf("%s - Connect failed: %v", testPrefix, err)
	}
	defer nc.Close()

	received := make(chan map[string]string, 1)
	sub, err := nc.Subscribe("orders.shipped", func(msg *comms.Msg) {
		var payload map[string]string
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Errorf("%s - failed to unmarshal: %v", testPrefix, err)
			return
		}
		received <- payload
	})
	if err != nil {
		t.Fatalf("%s - Subscribe failed: %v", testPrefix, err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatalf("%s - Flush failed: %v", testPrefix, err)
	}

	pub := ext.Publisher(nc)
	if err := pub.Publish(context.Background(), "orders.shipped", map[string]string{"id": "42"}); err != nil {
		t.Fatalf("%s - Publish failed: %v", testPrefix, err)
	}

	select {
	case got := <-received:
		if diff := cmp.Diff(map[string]string{"id": "42"}, got); diff != "" {
			t.Errorf("%s - payload mismatch (-want +got):\n%s", testPrefix, diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timed out waiting for message", testPrefix)
	}

	err = pub.Publish(context.Background(), "orders.created", map[string]string{})
	if !errors.Is(err, errs.ErrIllegalArgument) {
		t.Errorf("%s - expected ILLEGAL_ARGUMENT for undeclared subject, got %v", testPrefix, err)
	}
	if err := pub.Publish(context.Background(), "orders.shipped", make(chan int)); err == nil {
		t.Errorf("%s - expected encode error", testPrefix)
	}
}
