// Package pgext is the Postgres extension. Linking it into a service binary
// installs it.
package pgext

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/creekservice/creek-service/pkg/db"
	"github.com/creekservice/creek-service/pkg/descriptor"
	"github.com/creekservice/creek-service/pkg/errs"
	"github.com/creekservice/creek-service/pkg/extension"
	"github.com/creekservice/creek-service/pkg/metadata"
)

const logPrefix = "pgext:pgext"

// Kind is the descriptor kind of Table resources.
const Kind = "postgres.table"

// DefaultSchema is used for tables that do not name a schema.
const DefaultSchema = "public"

func init() {
	extension.Register(Provider{})
	descriptor.RegisterKind(Kind, func(spec *yaml.Node) (metadata.ResourceDescriptor, error) {
		var t Table
		if err := spec.Decode(&t); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// Table is a Postgres table a component owns or reads.
type Table struct {
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Name   string `yaml:"name" json:"name"`
}

// ID returns the resource id, e.g. "postgres://orders.line_items".
func (t Table) ID() string {
	return "postgres://" + t.schema() + "." + t.Name
}

func (t Table) schema() string {
	if t.Schema == "" {
		return DefaultSchema
	}
	return t.Schema
}

// Options configures the database of the service.
type Options struct {
	DatabaseURL string
	MaxConns    int32
}

// Provider installs the Postgres extension.
type Provider struct{}

func (Provider) String() string { return "postgres" }

// RequiresAPI declares the supported extension API versions.
func (Provider) RequiresAPI() string { return "^1.0" }

// Initialize registers the Table handler and the Options consumer.
func (Provider) Initialize(api extension.Service, _ []metadata.ComponentDescriptor) (extension.Extension, error) {
	ext := &Extension{}
	if err := extension.AddResource[Table](api.Model(), extension.ValidateFunc(ext.validate)); err != nil {
		return nil, err
	}
	if err := extension.AcceptOption(api.Options(), ext.configure); err != nil {
		return nil, err
	}
	return ext, nil
}

// Extension is the Postgres extension instance.
type Extension struct {
	options Options
	tables  []Table
}

// Name returns "postgres".
func (*Extension) Name() string { return "postgres" }

// Options returns the effective database options.
func (e *Extension) Options() Options { return e.options }

// Tables returns the validated tables in declaration order, with schemas resolved.
func (e *Extension) Tables() []Table {
	return append([]Table(nil), e.tables...)
}

// Schemas returns the distinct schemas of the declared tables, sorted.
func (e *Extension) Schemas() []string {
	schemas := lo.Uniq(lo.Map(e.tables, func(t Table, _ int) string { return t.Schema }))
	sort.Strings(schemas)
	return schemas
}

// Pool opens a connection pool to the configured database.
func (e *Extension) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	if e.options.DatabaseURL == "" {
		return nil, errs.New(errs.CodeIllegalState, "no database URL configured for the postgres extension")
	}
	return db.NewPool(ctx, db.PoolParams{DatabaseURL: e.options.DatabaseURL, MaxConns: e.options.MaxConns})
}

// EnsureSchemas creates every schema the declared tables live in.
func (e *Extension) EnsureSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	for _, schema := range e.Schemas() {
		if err := db.EnsureSchema(ctx, pool, schema); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extension) configure(o Options) error {
	if o.DatabaseURL == "" {
		return fmt.Errorf("%s - database URL must not be empty", logPrefix)
	}
	if o.MaxConns < 0 {
		return fmt.Errorf("%s - max connections must not be negative, got %d", logPrefix, o.MaxConns)
	}
	e.options = o
	return nil
}

func (e *Extension) validate(resources []metadata.ResourceDescriptor) error {
	for _, r := range resources {
		var t Table
		switch v := r.(type) {
		case Table:
			t = v
		case *Table:
			if v == nil {
				return fmt.Errorf("%s - nil table resource", logPrefix)
			}
			t = *v
		default:
			return fmt.Errorf("%s - unexpected resource %T", logPrefix, r)
		}
		t.Schema = t.schema()
		if err := db.ValidateIdentifier(t.Schema); err != nil {
			return fmt.Errorf("%s - invalid table resource %s: %w", logPrefix, t.ID(), err)
		}
		if err := db.ValidateIdentifier(t.Name); err != nil {
			return fmt.Errorf("%s - invalid table resource %s: %w", logPrefix, t.ID(), err)
		}
		if !lo.Contains(e.tables, t) {
			e.tables = append(e.tables, t)
		}
	}
	slog.Debug(fmt.Sprintf("%s - Validated %d tables", logPrefix, len(resources)))
	return nil
}
