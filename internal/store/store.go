package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Identifiers cannot be parameterized, so everything interpolated into SQL
// must pass this check first.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to interpolate as an identifier.
func ValidIdentifier(name string) bool {
	return validIdentifier.MatchString(name)
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ObjectKind is the kind of a schema object.
type ObjectKind string

const (
	KindTable   ObjectKind = "table"
	KindView    ObjectKind = "view"
	KindTrigger ObjectKind = "trigger"
)

// Object is a named schema object of the reference schema.
type Object struct {
	Name string
	Kind ObjectKind
}

// cloneOrder ranks object kinds so tables exist before the views and
// triggers that reference them.
var cloneOrder = map[ObjectKind]int{KindTable: 0, KindView: 1, KindTrigger: 2}

// SortForClone orders objects tables first, then views, then triggers,
// by name within a kind.
func SortForClone(objs []Object) {
	sort.SliceStable(objs, func(i, j int) bool {
		if cloneOrder[objs[i].Kind] != cloneOrder[objs[j].Kind] {
			return cloneOrder[objs[i].Kind] < cloneOrder[objs[j].Kind]
		}
		return objs[i].Name < objs[j].Name
	})
}

// ForeignKey is a (table, column) → (referenced table, referenced column) edge.
type ForeignKey struct {
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Index describes one index of a table.
type Index struct {
	Name    string
	Primary bool
	Unique  bool
	Columns []string
}

// Dialect abstracts the engine-specific parts of provisioning and introspection.
type Dialect interface {
	// Name returns the driver name ("mysql" or "sqlite").
	Name() string

	// Open connects to database and verifies the connection.
	// A missing database is reported as testerr.KindUnknownDatabase,
	// any other failure as testerr.KindConnection.
	Open(ctx context.Context, database string) (*sql.DB, error)

	// CreateDatabase creates database if it does not exist.
	CreateDatabase(ctx context.Context, database string) error

	// DropDatabase removes database if it exists.
	DropDatabase(ctx context.Context, database string) error

	// CurrentDatabase returns the name of the database q is connected to.
	CurrentDatabase(ctx context.Context, q Querier) (string, error)

	// AttachReference makes the reference database readable on conn and
	// returns the schema qualifier to read it through plus a detach func.
	AttachReference(ctx context.Context, conn *sql.Conn, reference string) (schema string, detach func(), err error)

	// ListObjects enumerates tables, views and triggers of schema.
	ListObjects(ctx context.Context, q Querier, schema string) ([]Object, error)

	// CreateStatements returns the statements recreating obj, read from schema.
	CreateStatements(ctx context.Context, q Querier, schema string, obj Object) ([]string, error)

	// RewriteCreate makes a creation statement idempotent and retargets
	// schema qualifiers from the reference to the target database.
	RewriteCreate(stmt string, obj Object, from, to string) string

	// SetForeignKeyChecks toggles foreign key enforcement for q's session.
	SetForeignKeyChecks(ctx context.Context, q Querier, enabled bool) error

	// Truncate removes every row of table and resets its id sequence.
	Truncate(ctx context.Context, q Querier, table string) error

	// Tables lists the base tables of the current database.
	Tables(ctx context.Context, q Querier) ([]string, error)

	// Columns lists the columns of table in the current database.
	Columns(ctx context.Context, q Querier, table string) ([]string, error)

	// ForeignKeys lists every foreign key of the current database.
	ForeignKeys(ctx context.Context, q Querier) ([]ForeignKey, error)

	// Indexes lists the indexes of table, including the primary key.
	Indexes(ctx context.Context, q Querier, table string) ([]Index, error)

	// Triggers lists trigger names of the current database.
	Triggers(ctx context.Context, q Querier) ([]string, error)

	// Baseline returns the fixed minimal schema, one statement per element.
	Baseline() []string

	// Quote quotes an identifier.
	Quote(ident string) string

	// InsertIgnoreVerb returns the insert-if-absent verb ("INSERT IGNORE").
	InsertIgnoreVerb() string

	// Classify maps a driver error to a testerr kind, tagging it with op.
	Classify(op string, err error) error
}

// BuildInsert builds a parameterized INSERT for row. Columns are sorted for
// deterministic statements. ignore selects insert-if-absent semantics.
func BuildInsert(d Dialect, table string, row map[string]any, ignore bool) (string, []any, error) {
	if !ValidIdentifier(table) {
		return "", nil, fmt.Errorf("invalid table name %q: must match pattern %s", table, validIdentifier)
	}
	if len(row) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		if !ValidIdentifier(c) {
			return "", nil, fmt.Errorf("invalid column name %q: must match pattern %s", c, validIdentifier)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
		args[i] = row[c]
	}

	verb := "INSERT"
	if ignore {
		verb = d.InsertIgnoreVerb()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, d.Quote(table), strings.Join(quoted, ", "), placeholders)
	return query, args, nil
}

// Insert runs BuildInsert and returns the new row id. Driver errors are
// classified through d.
func Insert(ctx context.Context, d Dialect, q Querier, table string, row map[string]any) (int64, error) {
	query, args, err := BuildInsert(d, table, row, false)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, d.Classify("insert "+table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, d.Classify("insert "+table, err)
	}
	return id, nil
}

// Count returns SELECT COUNT(*) of query.
func Count(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// queryStrings collects the first column of every row.
func queryStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// New returns the dialect for driver.
func New(driver string, opts Options) (Dialect, error) {
	switch driver {
	case "mysql":
		return NewMySQL(opts), nil
	case "sqlite", "sqlite3":
		return NewSQLite(opts.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// Options carries connection settings for New.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Charset  string
	Dir      string
}
