// Package main is the entrypoint for the creek service host.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/creekservice/creek-service/internal/config"
	"github.com/creekservice/creek-service/internal/server"
	"github.com/creekservice/creek-service/pkg/descriptor"
	"github.com/creekservice/creek-service/pkg/extension"
	"github.com/creekservice/creek-service/pkg/extensions/pgext"
	"github.com/creekservice/creek-service/pkg/metadata"
	"github.com/creekservice/creek-service/pkg/services"
	"github.com/creekservice/creek-service/pkg/temporal"
)

const usage = `Usage: creek [command]
       creek run                    Host the service (extensions, HTTP health).
       creek validate [file]        Assemble the service context and report problems.
       creek ensure-schemas [file]  Create the Postgres schemas of the declared tables.
       creek extensions             List installed extensions, resource kinds and clocks.

Commands:
  run             (default) Host the service described by the descriptor file.
  validate        Check every resource is handled and every option consumed; does not connect.
  ensure-schemas  Connect to DATABASE_URL and create missing schemas.
  extensions      List what is linked into this binary.

Environment: CREEK_SERVICE_DESCRIPTOR, CREEK_NATS_URL, CREEK_NATS_NAME, DATABASE_URL,
CREEK_DB_MAX_CONNS, CREEK_CLOCK, HTTP_PORT, LOG_LEVEL. A .env file in the working directory is loaded first.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}
	file := ""
	if len(args) > 1 {
		file = args[1]
	}

	switch cmd {
	case "validate":
		if err := runValidate(os.Stdout, file); err != nil {
			log.Fatalf("creek validate: %v", err)
		}
		return
	case "ensure-schemas":
		if err := runEnsureSchemas(os.Stdout, file); err != nil {
			log.Fatalf("creek ensure-schemas: %v", err)
		}
		return
	case "extensions":
		runExtensions(os.Stdout)
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "run", "":
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("creek: %v", err)
	}
}

func assemble(file string) (*config.Config, metadata.ServiceDescriptor, *services.Context, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForValidate(); err != nil {
		return nil, nil, nil, err
	}
	svc, _, err := descriptor.Load(file, cfg.DescriptorFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load descriptor: %w", err)
	}
	rc, err := server.Assemble(cfg, svc)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, svc, rc, nil
}

func runValidate(w io.Writer, file string) error {
	_, svc, rc, err := assemble(file)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Service %s is valid.\n", svc.Name())
	names := make([]string, 0, len(rc.Extensions()))
	for _, ext := range rc.Extensions() {
		names = append(names, ext.Name())
	}
	fmt.Fprintf(w, "Extensions: %s\n", strings.Join(names, ", "))
	for _, r := range metadata.Resources(svc) {
		fmt.Fprintf(w, "  %s\n", r.ID())
	}
	return nil
}

func runEnsureSchemas(w io.Writer, file string) error {
	cfg, _, rc, err := assemble(file)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	pg, err := services.Extension[*pgext.Extension](rc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pg.Pool(ctx)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := pg.EnsureSchemas(ctx, pool); err != nil {
		return err
	}
	fmt.Fprintf(w, "Schemas ready: %s\n", strings.Join(pg.Schemas(), ", "))
	return nil
}

func runExtensions(w io.Writer) {
	fmt.Fprintln(w, "Extensions:")
	for _, p := range extension.Installed() {
		requires := "any"
		if c, ok := p.(extension.Compatible); ok {
			requires = c.RequiresAPI()
		}
		fmt.Fprintf(w, "  %s (API %s)\n", extension.ProviderName(p), requires)
	}
	fmt.Fprintf(w, "Resource kinds: %s\n", strings.Join(descriptor.Kinds(), ", "))
	fmt.Fprintf(w, "Clocks: %s\n", strings.Join(temporal.Names(), ", "))
	fmt.Fprintf(w, "Extension API: %s\n", extension.APIVersion)
}
