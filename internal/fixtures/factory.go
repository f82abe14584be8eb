// Package fixtures builds minimally valid domain rows for the suites.
//
// Every Create* method merges a default row with caller overrides
// (overrides win), fills in a generated identifier when the table needs one
// and the caller did not supply the key, inserts the row with a
// parameterized statement and returns the new surrogate id.
//
// Lookup rows (roles, departments, ...) are seeded lazily before the first
// dependent insert, so a fresh Factory can be used on an empty database.
package fixtures

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vinay-bit/research-apps-php-sub002/internal/config"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
)

// Row is a column → value map.
type Row map[string]any

// Identifier prefixes.
const (
	PrefixStudent     = "STU"
	PrefixProject     = "PRJ"
	PrefixPublication = "PUB"
)

// IdentifierPattern matches every generated identifier:
// prefix + 4-digit year + 4-digit number.
var IdentifierPattern = regexp.MustCompile(`^(STU|PRJ|PUB)\d{4}\d{4}$`)

// PatternFor returns the identifier pattern of a single prefix.
func PatternFor(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\d{4}\d{4}$`)
}

// Source is the random source used for identifier suffixes.
type Source interface {
	Intn(n int) int
}

type defaultSource struct{}

func (defaultSource) Intn(n int) int { return rand.IntN(n) }

// Factory creates fixture rows.
type Factory struct {
	db       store.Querier
	dialect  store.Dialect
	data     config.TestDataConfig
	defaults *Defaults
	now      func() time.Time
	rand     Source
	logger   *slog.Logger

	seeded bool

	hashOnce sync.Once
	hash     string
	hashErr  error
}

// Option configures a Factory.
type Option func(*Factory)

// WithClock sets the time source for identifier years and dates.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) { f.now = now }
}

// WithSource sets the random source for identifier suffixes.
func WithSource(src Source) Option {
	return func(f *Factory) { f.rand = src }
}

// WithDefaults replaces the embedded lookup seed rows.
func WithDefaults(d *Defaults) Option {
	return func(f *Factory) { f.defaults = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// New creates a Factory writing through db.
func New(db store.Querier, dialect store.Dialect, data config.TestDataConfig, opts ...Option) (*Factory, error) {
	f := &Factory{
		db:      db,
		dialect: dialect,
		data:    data,
		now:     time.Now,
		rand:    defaultSource{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.defaults == nil {
		d, err := LoadDefaults()
		if err != nil {
			return nil, err
		}
		f.defaults = d
	}
	return f, nil
}

// GenerateIdentifier returns prefix + current year + a zero-padded random
// 4-digit number. The value is not checked against existing rows.
func (f *Factory) GenerateIdentifier(prefix string) string {
	return fmt.Sprintf("%s%04d%04d", prefix, f.now().Year(), f.rand.Intn(10000))
}

// CreateTestDependencies inserts every lookup seed row unless a row with
// the same key already exists.
func (f *Factory) CreateTestDependencies(ctx context.Context) error {
	for _, seed := range f.defaults.Ordered() {
		query, args, err := store.BuildInsert(f.dialect, seed.Table, seed.Row, true)
		if err != nil {
			return err
		}
		if _, err := f.db.ExecContext(ctx, query, args...); err != nil {
			return f.dialect.Classify("seed "+seed.Table, err)
		}
	}
	f.seeded = true
	f.logger.Debug("fixture dependencies seeded")
	return nil
}

func (f *Factory) ensureDependencies(ctx context.Context) error {
	if f.seeded {
		return nil
	}
	return f.CreateTestDependencies(ctx)
}

// uniqueSuffix returns a short random token for unique text columns.
func uniqueSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (f *Factory) passwordHash() (string, error) {
	f.hashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(f.data.Password), bcrypt.MinCost)
		f.hash, f.hashErr = string(h), err
	})
	if f.hashErr != nil {
		return "", fmt.Errorf("hash test password: %w", f.hashErr)
	}
	return f.hash, nil
}

// insert merges overrides over defaults, generates idColumn when it is
// required and absent, and inserts into table.
func (f *Factory) insert(ctx context.Context, table string, defaults, overrides Row, idColumn, prefix string) (int64, error) {
	if err := f.ensureDependencies(ctx); err != nil {
		return 0, err
	}
	row := Row{}
	maps.Copy(row, defaults)
	maps.Copy(row, overrides)
	if idColumn != "" {
		if _, ok := row[idColumn]; !ok {
			row[idColumn] = f.GenerateIdentifier(prefix)
		}
	}

	id, err := store.Insert(ctx, f.dialect, f.db, table, row)
	if err != nil {
		return 0, err
	}
	f.logger.Debug("fixture created", "table", table, "id", id)
	return id, nil
}

// CreateTestUser inserts a user with a unique email.
func (f *Factory) CreateTestUser(ctx context.Context, overrides Row) (int64, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return 0, err
	}
	defaults := Row{
		"email_id":      fmt.Sprintf("test_%s@%s", uniqueSuffix(), f.data.EmailDomain),
		"password_hash": hash,
		"first_name":    f.data.FirstName,
		"last_name":     f.data.LastName,
		"role_id":       1,
		"department_id": 1,
		"is_active":     1,
	}
	return f.insert(ctx, "users", defaults, overrides, "", "")
}

// CreateTestStudent inserts a student. Without a student_id key one is
// generated; an explicit nil is inserted as NULL.
func (f *Factory) CreateTestStudent(ctx context.Context, overrides Row) (int64, error) {
	defaults := Row{
		"first_name":      f.data.FirstName,
		"last_name":       "Student",
		"email_id":        fmt.Sprintf("student_%s@%s", uniqueSuffix(), f.data.EmailDomain),
		"program_id":      1,
		"department_id":   1,
		"enrollment_year": f.now().Year(),
	}
	return f.insert(ctx, "students", defaults, overrides, "student_id", PrefixStudent)
}

// CreateTestProject inserts a project. A lead user is created unless
// lead_user_id is overridden.
func (f *Factory) CreateTestProject(ctx context.Context, overrides Row) (int64, error) {
	defaults := Row{
		"title":         "Test Project",
		"description":   "Project created by the test harness",
		"status_id":     1,
		"department_id": 1,
		"start_date":    f.now().Format(time.DateOnly),
	}
	if _, ok := overrides["lead_user_id"]; !ok {
		lead, err := f.CreateTestUser(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("create project lead: %w", err)
		}
		defaults["lead_user_id"] = lead
	}
	return f.insert(ctx, "projects", defaults, overrides, "project_id", PrefixProject)
}

// CreateTestPublication inserts a publication not attached to a project
// unless project_id is overridden.
func (f *Factory) CreateTestPublication(ctx context.Context, overrides Row) (int64, error) {
	defaults := Row{
		"title":          "Test Publication",
		"type_id":        1,
		"published_year": f.now().Year(),
	}
	return f.insert(ctx, "publications", defaults, overrides, "publication_id", PrefixPublication)
}

// CreateTestTimeEntry inserts a time entry. The user and project are
// created unless overridden.
func (f *Factory) CreateTestTimeEntry(ctx context.Context, overrides Row) (int64, error) {
	defaults := Row{
		"entry_date":  f.now().Format(time.DateOnly),
		"hours":       1.5,
		"description": "Test time entry",
	}
	if _, ok := overrides["user_id"]; !ok {
		user, err := f.CreateTestUser(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("create time entry user: %w", err)
		}
		defaults["user_id"] = user
	}
	if _, ok := overrides["project_id"]; !ok {
		project, err := f.CreateTestProject(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("create time entry project: %w", err)
		}
		defaults["project_id"] = project
	}
	return f.insert(ctx, "time_entries", defaults, overrides, "", "")
}

// LinkStudentAccount links a student to a user account. Each side can be
// linked at most once.
func (f *Factory) LinkStudentAccount(ctx context.Context, studentID, userID int64) (int64, error) {
	return f.insert(ctx, "student_accounts", nil, Row{"student_id": studentID, "user_id": userID}, "", "")
}

// AddProjectMember adds userID to projectID.
func (f *Factory) AddProjectMember(ctx context.Context, projectID, userID int64) (int64, error) {
	return f.insert(ctx, "project_members", nil, Row{"project_id": projectID, "user_id": userID}, "", "")
}
