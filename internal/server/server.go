// Package server hosts an assembled service: it connects the installed
// extensions and serves HTTP health endpoints until shutdown.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/creekservice/creek-service/internal/config"
	"github.com/creekservice/creek-service/internal/logging"
	"github.com/creekservice/creek-service/pkg/descriptor"
	"github.com/creekservice/creek-service/pkg/extensions/natsext"
	"github.com/creekservice/creek-service/pkg/extensions/pgext"
	"github.com/creekservice/creek-service/pkg/metadata"
	"github.com/creekservice/creek-service/pkg/services"
)

const logPrefix = "server:server"

// Server hosts one service.
type Server struct {
	cfg        *config.Config
	svc        metadata.ServiceDescriptor
	rc         *services.Context
	nc         *comms.Conn
	pool       *pgxpool.Pool
	httpServer *http.Server
}

// ExtensionOptions returns the extension options configured by cfg.
func ExtensionOptions(cfg *config.Config) []any {
	var opts []any
	if cfg.NATSURL != "" {
		opts = append(opts, natsext.Options{URL: cfg.NATSURL, ClientName: cfg.NATSName})
	}
	if cfg.DatabaseURL != "" {
		opts = append(opts, pgext.Options{DatabaseURL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	}
	return opts
}

// Assemble builds the runtime context of svc with the options from cfg.
func Assemble(cfg *config.Config, svc metadata.ServiceDescriptor) (*services.Context, error) {
	b := services.NewBuilder(svc)
	for _, opt := range ExtensionOptions(cfg) {
		b.WithOption(opt)
	}
	rc, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to assemble %s: %w", logPrefix, svc.Name(), err)
	}
	return rc, nil
}

// Run hosts the service described by the configured descriptor, blocks until
// a shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	logging.Setup(os.Stdout, cfg.LogLevel)
	if err := cfg.ValidateForRun(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Load the service descriptor
	svc, path, err := descriptor.Load(cfg.DescriptorFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load service descriptor: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Starting %s from %s", logPrefix, svc.Name(), path))

	// Step 2: Assemble the context
	rc, err := Assemble(cfg, svc)
	if err != nil {
		return err
	}
	s := &Server{cfg: cfg, svc: svc, rc: rc}
	defer s.close()

	// Step 3: Connect extensions with declared resources
	if err := s.connect(ctx); err != nil {
		return err
	}

	// Step 4: Start HTTP health server
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.routes()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - %s is ready", logPrefix, svc.Name()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func (s *Server) connect(ctx context.Context) error {
	if ext, err := services.Extension[*natsext.Extension](s.rc); err == nil && len(ext.Subjects()) > 0 {
		nc, err := ext.Connect()
		if err != nil {
			return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		}
		s.nc = nc
	}

	if ext, err := services.Extension[*pgext.Extension](s.rc); err == nil && len(ext.Tables()) > 0 && s.cfg.DatabaseURL != "" {
		pool, err := ext.Pool(ctx)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool
		if s.cfg.EnsureSchemas {
			if err := ext.EnsureSchemas(ctx, pool); err != nil {
				return fmt.Errorf("%s - failed to ensure schemas: %w", logPrefix, err)
			}
		}
	}
	return nil
}

func (s *Server) close() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	return mux
}

// HealthOutput is the body of the /health endpoint.
type HealthOutput struct {
	Status     string          `json:"status"`
	Service    string          `json:"service"`
	Extensions []string        `json:"extensions"`
	Checks     map[string]bool `json:"checks"`
	Timestamp  string          `json:"timestamp"`
}

// Health reports the state of the connections the service holds.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	h := &HealthOutput{
		Status:    "healthy",
		Service:   s.svc.Name(),
		Checks:    map[string]bool{},
		Timestamp: s.rc.Clock().Now().UTC().Format(time.RFC3339),
	}
	for _, ext := range s.rc.Extensions() {
		h.Extensions = append(h.Extensions, ext.Name())
	}
	if s.nc != nil {
		h.Checks["nats"] = s.nc.IsConnected()
	}
	if s.pool != nil {
		h.Checks["database"] = s.pool.Ping(ctx) == nil
	}
	for _, ok := range h.Checks {
		if !ok {
			h.Status = "unhealthy"
		}
	}
	return h
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.Health(ctx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	}
}

// homePageTemplate lists the service, its extensions and its resources.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Health.Service}}</title>
  <style>
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
  </style>
</head>
<body>
  <h1>{{.Health.Service}}</h1>
  <p>Status: {{.Health.Status}} at {{.Health.Timestamp}}</p>
  <h2>Extensions</h2>
  <ul>{{range .Health.Extensions}}<li>{{.}}</li>{{end}}</ul>
  <h2>Resources</h2>
  {{if not .Resources}}<p>No resources declared.</p>{{else}}
  <table>
    <thead><tr><th>Role</th><th>Resource</th></tr></thead>
    <tbody>{{range .Resources}}<tr><td>{{.Role}}</td><td>{{.ID}}</td></tr>{{end}}</tbody>
  </table>
  {{end}}
</body>
</html>
`

type resourceRow struct {
	Role string
	ID   string
}

type homeData struct {
	Health    *HealthOutput
	Resources []resourceRow
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{Health: s.Health(ctx)}
		for _, section := range []struct {
			role      string
			resources []metadata.ResourceDescriptor
		}{
			{"input", s.svc.Inputs()},
			{"internal", s.svc.Internals()},
			{"output", s.svc.Outputs()},
		} {
			for _, res := range section.resources {
				data.Resources = append(data.Resources, resourceRow{Role: section.role, ID: res.ID()})
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
