// Package environment provisions the isolated test database the suites run
// against.
//
// Lifecycle: Init (idempotent) → any number of suite runs → Cleanup.
// Init creates the log and upload directories and connects to the test
// database, creating it on first use. A new database gets its schema cloned
// from the reference database; when that fails the fixed baseline schema of
// the dialect is installed instead.
//
// Only connection failures are fatal. Everything else the provisioner does
// is best-effort and logged.
package environment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/vinay-bit/research-apps-php-sub002/internal/config"
	"github.com/vinay-bit/research-apps-php-sub002/internal/fixtures"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// dirMode is the permission of provisioned directories.
const dirMode os.FileMode = 0o755

// Environment owns the test database connection.
//
// An Environment is not safe for concurrent use. One runner per target
// database is assumed.
type Environment struct {
	cfg     config.Config
	dialect store.Dialect
	db      *sql.DB
	logger  *slog.Logger

	initialized bool
}

// New creates an Environment for cfg, selecting the dialect from
// cfg.Database.Driver. A nil logger discards output.
func New(cfg config.Config, logger *slog.Logger) (*Environment, error) {
	d, err := store.New(cfg.Database.Driver, store.Options{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Charset:  cfg.Database.Charset,
		Dir:      cfg.Database.Dir,
	})
	if err != nil {
		return nil, err
	}
	return NewWithDialect(cfg, d, logger), nil
}

// NewWithDialect creates an Environment using an explicit dialect.
func NewWithDialect(cfg config.Config, d store.Dialect, logger *slog.Logger) *Environment {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Environment{cfg: cfg, dialect: d, logger: logger}
}

// Config returns the configuration the environment was built with.
func (e *Environment) Config() config.Config { return e.cfg }

// Dialect returns the database dialect.
func (e *Environment) Dialect() store.Dialect { return e.dialect }

// Logger returns the environment logger.
func (e *Environment) Logger() *slog.Logger { return e.logger }

// DB returns the open test database, or nil before Connect.
func (e *Environment) DB() *sql.DB { return e.db }

// DatabaseName returns the configured test database name.
func (e *Environment) DatabaseName() string { return e.cfg.Database.Name }

// Fixtures returns a fixture factory writing to the test database.
func (e *Environment) Fixtures(opts ...fixtures.Option) (*fixtures.Factory, error) {
	db, err := e.requireDB()
	if err != nil {
		return nil, err
	}
	opts = append([]fixtures.Option{fixtures.WithLogger(e.logger)}, opts...)
	return fixtures.New(db, e.dialect, e.cfg.TestData, opts...)
}

func (e *Environment) requireDB() (*sql.DB, error) {
	if e.db == nil {
		return nil, testerr.New(testerr.KindConnection, "database", "not connected")
	}
	return e.db, nil
}

// Init provisions directories and connects. Calling it again after a
// successful Init does nothing.
func (e *Environment) Init(ctx context.Context) error {
	if e.initialized {
		return nil
	}
	e.logger.Info("initializing test environment", "driver", e.dialect.Name(), "database", e.cfg.Database.Name)
	if err := e.EnsureDirectories(); err != nil {
		return err
	}
	if err := e.Connect(ctx); err != nil {
		e.logger.Error("test environment initialization failed", "error", err)
		return err
	}
	e.initialized = true
	return nil
}

// EnsureDirectories creates the log and upload directories if absent.
func (e *Environment) EnsureDirectories() error {
	for _, dir := range []string{e.cfg.Paths.LogDir, e.cfg.Paths.UploadDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Connect opens the test database. A missing database is created (see
// CreateDatabase) and opened once more; every other failure is a fatal
// connection error.
func (e *Environment) Connect(ctx context.Context) error {
	if e.db != nil {
		return nil
	}
	err := e.open(ctx)
	if testerr.Is(err, testerr.KindUnknownDatabase) {
		e.logger.Warn("test database does not exist, creating it", "database", e.cfg.Database.Name)
		return e.CreateDatabase(ctx)
	}
	if err != nil {
		return asConnection("connect", err)
	}
	e.logger.Info("connected to test database", "database", e.cfg.Database.Name)
	return nil
}

func (e *Environment) open(ctx context.Context) error {
	db, err := e.dialect.Open(ctx, e.cfg.Database.Name)
	if err != nil {
		return err
	}
	e.db = db
	return nil
}

// asConnection escalates err to a fatal connection error unless it
// already is one.
func asConnection(op string, err error) error {
	if testerr.IsFatal(err) {
		return err
	}
	return testerr.Wrap(testerr.KindConnection, op, err)
}

// CreateDatabase creates the test database if needed, connects to it and
// installs the schema: cloned from the reference database, or the
// baseline when cloning fails.
func (e *Environment) CreateDatabase(ctx context.Context) error {
	name := e.cfg.Database.Name
	if err := e.dialect.CreateDatabase(ctx, name); err != nil {
		return asConnection("create database "+name, err)
	}
	if e.db == nil {
		if err := e.open(ctx); err != nil {
			return asConnection("connect", err)
		}
	}
	e.logger.Info("test database created", "database", name)

	if err := e.CloneSchema(ctx); err != nil {
		e.logger.Warn("schema clone failed, installing minimal schema", "error", err)
		e.CreateMinimalSchema(ctx)
	}
	return nil
}

// CloneSchema copies every table, view and trigger of the reference
// database into the test database.
//
// Foreign key checks are off for the whole copy so tables can be created
// in any order. An object that cannot be read or created is logged and
// skipped. The result is a SCHEMA_CLONE error when the reference cannot
// be read at all or nothing was cloned.
func (e *Environment) CloneSchema(ctx context.Context) error {
	ref := e.cfg.Database.Reference
	if ref == "" {
		return testerr.New(testerr.KindSchemaClone, "clone schema", "no reference database configured")
	}
	db, err := e.requireDB()
	if err != nil {
		return err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return testerr.Wrap(testerr.KindSchemaClone, "clone schema", err)
	}
	defer conn.Close()

	schema, detach, err := e.dialect.AttachReference(ctx, conn, ref)
	if err != nil {
		return testerr.Wrap(testerr.KindSchemaClone, "attach reference "+ref, err)
	}
	defer detach()

	objs, err := e.dialect.ListObjects(ctx, conn, schema)
	if err != nil {
		return testerr.Wrap(testerr.KindSchemaClone, "list reference objects", err)
	}
	if len(objs) == 0 {
		return testerr.New(testerr.KindSchemaClone, "list reference objects", fmt.Sprintf("reference database %s is empty", ref))
	}
	store.SortForClone(objs)

	if err := e.dialect.SetForeignKeyChecks(ctx, conn, false); err != nil {
		return testerr.Wrap(testerr.KindSchemaClone, "disable foreign key checks", err)
	}
	defer func() {
		if err := e.dialect.SetForeignKeyChecks(context.WithoutCancel(ctx), conn, true); err != nil {
			e.logger.Error("failed to re-enable foreign key checks", "error", err)
		}
	}()

	cloned := 0
	for _, obj := range objs {
		if err := e.cloneObject(ctx, conn, schema, obj); err != nil {
			e.logger.Warn("skipping object during schema clone", "object", obj.Name, "kind", obj.Kind, "error", err)
			continue
		}
		cloned++
	}
	if cloned == 0 {
		return testerr.New(testerr.KindSchemaClone, "clone schema", "no object could be cloned")
	}
	e.logger.Info("schema cloned", "reference", ref, "objects", cloned, "skipped", len(objs)-cloned)
	return nil
}

func (e *Environment) cloneObject(ctx context.Context, conn *sql.Conn, schema string, obj store.Object) error {
	stmts, err := e.dialect.CreateStatements(ctx, conn, schema, obj)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		stmt = e.dialect.RewriteCreate(stmt, obj, schema, e.cfg.Database.Name)
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return e.dialect.Classify("create "+obj.Name, err)
		}
	}
	return nil
}

// CreateMinimalSchema installs the dialect's baseline schema. Each
// statement is attempted independently; failures are logged, never returned.
func (e *Environment) CreateMinimalSchema(ctx context.Context) {
	db, err := e.requireDB()
	if err != nil {
		e.logger.Error("cannot create minimal schema", "error", err)
		return
	}
	failed := 0
	for _, stmt := range e.dialect.Baseline() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			failed++
			e.logger.Warn("minimal schema statement failed", "error", err)
		}
	}
	e.logger.Info("minimal schema created", "statements", len(e.dialect.Baseline()), "failed", failed)
}

// SeedDependencies inserts the lookup rows every fixture depends on.
func (e *Environment) SeedDependencies(ctx context.Context) error {
	f, err := e.Fixtures()
	if err != nil {
		return err
	}
	return f.CreateTestDependencies(ctx)
}

// CleanDatabase empties every base table with foreign key checks off.
// Tables that fail to truncate are logged and reported together.
func (e *Environment) CleanDatabase(ctx context.Context) error {
	db, err := e.requireDB()
	if err != nil {
		return err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return e.dialect.Classify("clean database", err)
	}
	defer conn.Close()

	tables, err := e.dialect.Tables(ctx, conn)
	if err != nil {
		return err
	}
	if err := e.dialect.SetForeignKeyChecks(ctx, conn, false); err != nil {
		return err
	}

	var errs []error
	for _, table := range tables {
		if err := e.dialect.Truncate(ctx, conn, table); err != nil {
			e.logger.Warn("failed to truncate table", "table", table, "error", err)
			errs = append(errs, err)
		}
	}
	if err := e.dialect.SetForeignKeyChecks(ctx, conn, true); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		e.logger.Info("test database cleaned", "tables", len(tables))
	}
	return errors.Join(errs...)
}

// DropDatabase closes the connection and removes the test database.
func (e *Environment) DropDatabase(ctx context.Context) error {
	if err := e.Close(); err != nil {
		e.logger.Warn("failed to close connection before drop", "error", err)
	}
	if err := e.dialect.DropDatabase(ctx, e.cfg.Database.Name); err != nil {
		return err
	}
	e.logger.Info("test database dropped", "database", e.cfg.Database.Name)
	return nil
}

// Cleanup ends a run: the database is cleaned when cleanup_after_run is
// set, then the connection is closed. A later Init reconnects.
func (e *Environment) Cleanup(ctx context.Context) error {
	if e.db == nil {
		e.initialized = false
		return nil
	}
	var err error
	if e.cfg.Run.CleanupAfterRun {
		err = e.CleanDatabase(ctx)
	}
	if cerr := e.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close closes the database connection. It is safe to call repeatedly.
func (e *Environment) Close() error {
	e.initialized = false
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}
