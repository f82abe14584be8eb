package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// referenceAlias is the schema name the reference database is ATTACHed under.
const referenceAlias = "refdb"

// SQLite is the file-backed dialect. Database "name" lives at <dir>/<name>.db.
type SQLite struct {
	dir string
}

var _ Dialect = (*SQLite)(nil)

// NewSQLite creates a SQLite dialect storing databases under dir.
func NewSQLite(dir string) *SQLite {
	return &SQLite{dir: dir}
}

// Name implements Dialect.
func (s *SQLite) Name() string { return "sqlite" }

// Path returns the file backing database.
func (s *SQLite) Path(database string) string {
	return filepath.Join(s.dir, database+".db")
}

// Open implements Dialect.
//
// The connection is configured with:
//   - foreign key enforcement
//   - a 5-second busy timeout
//   - a single connection, so session pragmas stay in effect
func (s *SQLite) Open(ctx context.Context, database string) (*sql.DB, error) {
	path := s.Path(database)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, testerr.New(testerr.KindUnknownDatabase, "open "+database, fmt.Sprintf("database file %s does not exist", path))
		}
		return nil, testerr.Wrap(testerr.KindConnection, "open "+database, err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, testerr.Wrap(testerr.KindConnection, "open "+database, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, testerr.Wrap(testerr.KindConnection, "ping "+database, err)
	}

	// SQLite only supports one writer at a time, and PRAGMA foreign_keys
	// is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, testerr.Wrap(testerr.KindConnection, "configure "+database, err)
	}
	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// CreateDatabase implements Dialect. Creating an existing file is a no-op.
func (s *SQLite) CreateDatabase(ctx context.Context, database string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return testerr.Wrap(testerr.KindConnection, "create "+database, err)
	}
	db, err := sql.Open("sqlite3", s.Path(database))
	if err != nil {
		return testerr.Wrap(testerr.KindConnection, "create "+database, err)
	}
	defer db.Close()
	// The file is only created once a connection touches it.
	if _, err := db.ExecContext(ctx, "PRAGMA user_version"); err != nil {
		return testerr.Wrap(testerr.KindConnection, "create "+database, err)
	}
	return nil
}

// DropDatabase implements Dialect.
func (s *SQLite) DropDatabase(_ context.Context, database string) error {
	path := s.Path(database)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("drop %s: %w", database, err)
		}
	}
	return nil
}

// CurrentDatabase implements Dialect.
func (s *SQLite) CurrentDatabase(ctx context.Context, q Querier) (string, error) {
	var file string
	if err := q.QueryRowContext(ctx, "SELECT file FROM pragma_database_list WHERE name = 'main'").Scan(&file); err != nil {
		return "", s.Classify("current database", err)
	}
	return strings.TrimSuffix(filepath.Base(file), ".db"), nil
}

// AttachReference implements Dialect.
func (s *SQLite) AttachReference(ctx context.Context, conn *sql.Conn, reference string) (string, func(), error) {
	path := s.Path(reference)
	// ATTACH would silently create a missing file.
	if _, err := os.Stat(path); err != nil {
		return "", nil, testerr.Wrap(testerr.KindSchemaClone, "attach "+reference, err)
	}
	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+referenceAlias, path); err != nil {
		return "", nil, testerr.Wrap(testerr.KindSchemaClone, "attach "+reference, err)
	}
	detach := func() {
		_, _ = conn.ExecContext(context.Background(), "DETACH DATABASE "+referenceAlias)
	}
	return referenceAlias, detach, nil
}

// ListObjects implements Dialect.
func (s *SQLite) ListObjects(ctx context.Context, q Querier, schema string) ([]Object, error) {
	if !ValidIdentifier(schema) {
		return nil, fmt.Errorf("invalid schema %q", schema)
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT name, type FROM %s.sqlite_master
		 WHERE type IN ('table', 'view', 'trigger') AND name NOT LIKE 'sqlite_%%'
		 ORDER BY name`, schema))
	if err != nil {
		return nil, s.Classify("list objects", err)
	}
	defer rows.Close()

	var objs []Object
	for rows.Next() {
		var o Object
		var kind string
		if err := rows.Scan(&o.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		o.Kind = ObjectKind(kind)
		objs = append(objs, o)
	}
	return objs, rows.Err()
}

// CreateStatements implements Dialect. Tables come with their explicit indexes.
func (s *SQLite) CreateStatements(ctx context.Context, q Querier, schema string, obj Object) ([]string, error) {
	if !ValidIdentifier(schema) {
		return nil, fmt.Errorf("invalid schema %q", schema)
	}
	var stmt string
	err := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT sql FROM %s.sqlite_master WHERE name = ? AND type = ?", schema),
		obj.Name, string(obj.Kind)).Scan(&stmt)
	if err != nil {
		return nil, s.Classify("show create "+obj.Name, err)
	}
	stmts := []string{stmt}
	if obj.Kind != KindTable {
		return stmts, nil
	}

	indexes, err := queryStrings(ctx, q,
		fmt.Sprintf("SELECT sql FROM %s.sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY name", schema),
		obj.Name)
	if err != nil {
		return nil, s.Classify("show indexes "+obj.Name, err)
	}
	return append(stmts, indexes...), nil
}

var sqliteCreatePrefix = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:TEMP\s+|TEMPORARY\s+)?(TABLE|VIEW|TRIGGER|UNIQUE\s+INDEX|INDEX)\s+(?:IF\s+NOT\s+EXISTS\s+)?`)

// RewriteCreate implements Dialect.
func (s *SQLite) RewriteCreate(stmt string, _ Object, from, _ string) string {
	out := sqliteCreatePrefix.ReplaceAllString(stmt, "CREATE $1 IF NOT EXISTS ")
	// Statements execute against main; drop qualifiers naming the reference.
	for _, q := range []string{`"` + from + `".`, from + ".", `"` + referenceAlias + `".`, referenceAlias + "."} {
		out = strings.ReplaceAll(out, q, "")
	}
	return out
}

// SetForeignKeyChecks implements Dialect.
func (s *SQLite) SetForeignKeyChecks(ctx context.Context, q Querier, enabled bool) error {
	mode := "OFF"
	if enabled {
		mode = "ON"
	}
	if _, err := q.ExecContext(ctx, "PRAGMA foreign_keys = "+mode); err != nil {
		return s.Classify("foreign_keys "+mode, err)
	}
	return nil
}

// Truncate implements Dialect.
func (s *SQLite) Truncate(ctx context.Context, q Querier, table string) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM "+s.Quote(table)); err != nil {
		return s.Classify("truncate "+table, err)
	}
	n, err := Count(ctx, q, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'")
	if err != nil {
		return s.Classify("truncate "+table, err)
	}
	if n == 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil {
		return s.Classify("reset sequence "+table, err)
	}
	return nil
}

// Tables implements Dialect.
func (s *SQLite) Tables(ctx context.Context, q Querier) ([]string, error) {
	names, err := queryStrings(ctx, q,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, s.Classify("list tables", err)
	}
	return names, nil
}

// Columns implements Dialect.
func (s *SQLite) Columns(ctx context.Context, q Querier, table string) ([]string, error) {
	cols, err := queryStrings(ctx, q, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, s.Classify("columns "+table, err)
	}
	return cols, nil
}

// ForeignKeys implements Dialect.
func (s *SQLite) ForeignKeys(ctx context.Context, q Querier) ([]ForeignKey, error) {
	tables, err := s.Tables(ctx, q)
	if err != nil {
		return nil, err
	}
	var fks []ForeignKey
	for _, table := range tables {
		rows, err := q.QueryContext(ctx, `SELECT "from", "table", COALESCE("to", '') FROM pragma_foreign_key_list(?)`, table)
		if err != nil {
			return nil, s.Classify("foreign keys "+table, err)
		}
		for rows.Next() {
			fk := ForeignKey{Table: table}
			if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan foreign key: %w", err)
			}
			fks = append(fks, fk)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, s.Classify("foreign keys "+table, err)
		}
	}
	return fks, nil
}

// Indexes implements Dialect.
//
// An INTEGER PRIMARY KEY aliases the rowid and has no separate index entry;
// it is reported as a synthetic primary index named "PRIMARY".
func (s *SQLite) Indexes(ctx context.Context, q Querier, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`, table)
	if err != nil {
		return nil, s.Classify("indexes "+table, err)
	}
	var indexes []Index
	hasPrimary := false
	for rows.Next() {
		var idx Index
		var unique int
		var origin string
		if err := rows.Scan(&idx.Name, &unique, &origin); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan index: %w", err)
		}
		idx.Unique = unique == 1
		idx.Primary = origin == "pk"
		hasPrimary = hasPrimary || idx.Primary
		indexes = append(indexes, idx)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, s.Classify("indexes "+table, err)
	}

	for i := range indexes {
		cols, err := queryStrings(ctx, q, "SELECT name FROM pragma_index_info(?) ORDER BY seqno", indexes[i].Name)
		if err != nil {
			return nil, s.Classify("index columns "+indexes[i].Name, err)
		}
		indexes[i].Columns = cols
	}

	if !hasPrimary {
		pk, err := queryStrings(ctx, q, "SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk", table)
		if err != nil {
			return nil, s.Classify("primary key "+table, err)
		}
		if len(pk) > 0 {
			indexes = append([]Index{{Name: "PRIMARY", Primary: true, Unique: true, Columns: pk}}, indexes...)
		}
	}
	return indexes, nil
}

// Triggers implements Dialect.
func (s *SQLite) Triggers(ctx context.Context, q Querier) ([]string, error) {
	names, err := queryStrings(ctx, q, "SELECT name FROM sqlite_master WHERE type = 'trigger' ORDER BY name")
	if err != nil {
		return nil, s.Classify("list triggers", err)
	}
	return names, nil
}

// Baseline implements Dialect.
func (s *SQLite) Baseline() []string {
	return sqliteBaseline
}

// Quote implements Dialect.
func (s *SQLite) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// InsertIgnoreVerb implements Dialect.
func (s *SQLite) InsertIgnoreVerb() string {
	return "INSERT OR IGNORE"
}

// Classify implements Dialect.
func (s *SQLite) Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if testerr.KindOf(err) != testerr.KindUnknown {
		return err
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint:
			return testerr.Wrap(testerr.KindConstraintViolation, op, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrIoErr:
			return testerr.Wrap(testerr.KindConnection, op, err)
		}
	}
	return testerr.Wrap(testerr.KindQuery, op, err)
}
