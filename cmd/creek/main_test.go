package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const mainTestPrefix = "cmd/creek:main_test"

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"run", "validate", "ensure-schemas", "extensions", "CREEK_SERVICE_DESCRIPTOR", "CREEK_CLOCK"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestRunExtensions(t *testing.T) {
	var buf bytes.Buffer
	runExtensions(&buf)
	out := buf.String()
	for _, want := range []string{"nats (API ^1.0)", "postgres (API ^1.0)", "nats.subject", "postgres.table", "accurate", "Extension API: 1.0.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("%s - output should contain %q:\n%s", mainTestPrefix, want, out)
		}
	}
}

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "creek-service.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("%s - write failed: %v", mainTestPrefix, err)
	}
	return p
}

func clearHostEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"CREEK_SERVICE_DESCRIPTOR", "CREEK_NATS_URL", "DATABASE_URL", "CREEK_DB_MAX_CONNS", "CREEK_DB_ENSURE_SCHEMAS", "CREEK_CLOCK"} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestRunValidate(t *testing.T) {
	clearHostEnv(t)
	path := writeDescriptor(t, `
name: orders
inputs:
  - kind: nats.subject
    spec:
      subject: orders.created
outputs:
  - kind: postgres.table
    spec:
      schema: sales
      name: orders
`)

	var buf bytes.Buffer
	if err := runValidate(&buf, path); err != nil {
		t.Fatalf("%s - runValidate failed: %v", mainTestPrefix, err)
	}
	out := buf.String()
	for _, want := range []string{"Service orders is valid.", "nats://orders.created", "postgres://sales.orders"} {
		if !strings.Contains(out, want) {
			t.Errorf("%s - output should contain %q:\n%s", mainTestPrefix, want, out)
		}
	}
}

func TestRunValidate_InvalidResource(t *testing.T) {
	clearHostEnv(t)
	path := writeDescriptor(t, `
name: orders
outputs:
  - kind: nats.subject
    spec:
      subject: orders.>
`)
	if err := runValidate(&bytes.Buffer{}, path); err == nil {
		t.Errorf("%s - expected wildcard output subject to fail validation", mainTestPrefix)
	}
}

func TestRunEnsureSchemas_RequiresDatabaseURL(t *testing.T) {
	clearHostEnv(t)
	path := writeDescriptor(t, "name: orders\n")
	err := runEnsureSchemas(&bytes.Buffer{}, path)
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("%s - expected DATABASE_URL error, got %v", mainTestPrefix, err)
	}
}
