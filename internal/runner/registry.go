package runner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/text/cases"

	"github.com/vinay-bit/research-apps-php-sub002/internal/config"
	"github.com/vinay-bit/research-apps-php-sub002/internal/fixtures"
	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
)

// Environment is the provisioned test environment a Runner drives and the
// suites read from. *environment.Environment implements it.
type Environment interface {
	Init(ctx context.Context) error
	Cleanup(ctx context.Context) error
	EnsureDirectories() error
	Connect(ctx context.Context) error
	SeedDependencies(ctx context.Context) error
	CleanDatabase(ctx context.Context) error
	DropDatabase(ctx context.Context) error

	DB() *sql.DB
	Dialect() store.Dialect
	Config() config.Config
	Logger() *slog.Logger
	Fixtures(opts ...fixtures.Option) (*fixtures.Factory, error)
}

// Suite is a named group of related tests.
//
// RunTests records every outcome in c. A returned error (or a panic) is a
// failure of the suite itself; the runner records it as one synthetic
// failed test named after the suite.
type Suite interface {
	RunTests(ctx context.Context, env Environment, c *harness.Collector) error
}

// SuiteFunc adapts a function to Suite.
type SuiteFunc func(ctx context.Context, env Environment, c *harness.Collector) error

// RunTests implements Suite.
func (f SuiteFunc) RunTests(ctx context.Context, env Environment, c *harness.Collector) error {
	return f(ctx, env, c)
}

// Factory constructs a fresh Suite for each run.
type Factory func() Suite

// Registry maps suite names to factories. Names keep their registration
// order; lookups ignore case.
type Registry struct {
	names     []string
	factories map[string]Factory
	canonical map[string]string
	fold      cases.Caser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		canonical: make(map[string]string),
		fold:      cases.Fold(),
	}
}

// Register adds a suite. Names must be unique ignoring case and must not
// collide with a dispatch command.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("register suite: empty name")
	}
	if f == nil {
		return fmt.Errorf("register suite %q: nil factory", name)
	}
	key := r.fold.String(name)
	if isReserved(key) {
		return fmt.Errorf("register suite %q: name is a reserved command", name)
	}
	if existing, ok := r.canonical[key]; ok {
		return fmt.Errorf("register suite %q: already registered as %q", name, existing)
	}
	r.names = append(r.names, name)
	r.factories[key] = f
	r.canonical[key] = name
	return nil
}

// MustRegister is Register that panics on error. Intended for static
// registry construction.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Names returns the registered suite names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Lookup finds a suite by name, ignoring case. It returns the name the
// suite was registered under.
func (r *Registry) Lookup(name string) (string, Factory, bool) {
	key := r.fold.String(name)
	f, ok := r.factories[key]
	if !ok {
		return "", nil, false
	}
	return r.canonical[key], f, true
}
