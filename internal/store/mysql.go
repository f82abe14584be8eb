package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// MySQL server error numbers the harness distinguishes.
const (
	mysqlErrDupEntry            = 1062
	mysqlErrDupEntryWithKeyName = 1586
	mysqlErrBadNull             = 1048
	mysqlErrNoDefaultForField   = 1364
	mysqlErrRowIsReferenced     = 1451
	mysqlErrNoReferencedRow     = 1452
	mysqlErrRowIsReferencedOld  = 1217
	mysqlErrNoReferencedRowOld  = 1216
	mysqlErrCheckConstraint     = 3819
	mysqlErrBadDB               = 1049
	mysqlErrAccessDenied        = 1045
	mysqlErrDBAccessDenied      = 1044
	mysqlErrTooManyConnections  = 1040
	mysqlErrServerShutdown      = 1053
	mysqlErrHostNotPrivileged   = 1130
)

// MySQL is the server-backed dialect.
type MySQL struct {
	opts Options
}

var _ Dialect = (*MySQL)(nil)

// NewMySQL creates a MySQL dialect.
func NewMySQL(opts Options) *MySQL {
	if opts.Port == 0 {
		opts.Port = 3306
	}
	if opts.Charset == "" {
		opts.Charset = "utf8mb4"
	}
	return &MySQL{opts: opts}
}

// Name implements Dialect.
func (m *MySQL) Name() string { return "mysql" }

// DSN returns the data source name for database. An empty database
// connects to the server without selecting one.
func (m *MySQL) DSN(database string) string {
	cfg := mysql.NewConfig()
	cfg.User = m.opts.User
	cfg.Passwd = m.opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(m.opts.Host, strconv.Itoa(m.opts.Port))
	cfg.DBName = database
	cfg.ParseTime = true
	// ParseTime guarantees FormatDSN emitted a query string.
	return cfg.FormatDSN() + "&charset=" + url.QueryEscape(m.opts.Charset)
}

// Open implements Dialect.
func (m *MySQL) Open(ctx context.Context, database string) (*sql.DB, error) {
	db, err := sql.Open("mysql", m.DSN(database))
	if err != nil {
		return nil, testerr.Wrap(testerr.KindConnection, "open "+database, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlErrBadDB {
			return nil, testerr.Wrap(testerr.KindUnknownDatabase, "open "+database, err)
		}
		return nil, testerr.Wrap(testerr.KindConnection, "ping "+database, err)
	}
	return db, nil
}

// withServer runs fn on a connection that has no database selected.
func (m *MySQL) withServer(ctx context.Context, op string, fn func(*sql.DB) error) error {
	db, err := sql.Open("mysql", m.DSN(""))
	if err != nil {
		return testerr.Wrap(testerr.KindConnection, op, err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return testerr.Wrap(testerr.KindConnection, op, err)
	}
	return fn(db)
}

// CreateDatabase implements Dialect.
func (m *MySQL) CreateDatabase(ctx context.Context, database string) error {
	if !ValidIdentifier(database) {
		return fmt.Errorf("invalid database name %q", database)
	}
	charset := m.opts.Charset
	if !ValidIdentifier(charset) {
		return fmt.Errorf("invalid charset %q", charset)
	}
	return m.withServer(ctx, "create "+database, func(db *sql.DB) error {
		stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET %s", m.Quote(database), charset)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return m.Classify("create "+database, err)
		}
		return nil
	})
}

// DropDatabase implements Dialect.
func (m *MySQL) DropDatabase(ctx context.Context, database string) error {
	if !ValidIdentifier(database) {
		return fmt.Errorf("invalid database name %q", database)
	}
	return m.withServer(ctx, "drop "+database, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+m.Quote(database)); err != nil {
			return m.Classify("drop "+database, err)
		}
		return nil
	})
}

// CurrentDatabase implements Dialect.
func (m *MySQL) CurrentDatabase(ctx context.Context, q Querier) (string, error) {
	var name sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&name); err != nil {
		return "", m.Classify("current database", err)
	}
	return name.String, nil
}

// AttachReference implements Dialect. The reference database lives on the
// same server, so it is read through its own name.
func (m *MySQL) AttachReference(ctx context.Context, _ *sql.Conn, reference string) (string, func(), error) {
	if !ValidIdentifier(reference) {
		return "", nil, testerr.New(testerr.KindSchemaClone, "attach "+reference, "invalid reference database name")
	}
	return reference, func() {}, nil
}

// ListObjects implements Dialect.
func (m *MySQL) ListObjects(ctx context.Context, q Querier, schema string) ([]Object, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT TABLE_NAME, TABLE_TYPE FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`, schema)
	if err != nil {
		return nil, m.Classify("list objects", err)
	}
	defer rows.Close()

	var objs []Object
	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		kind := KindTable
		if tableType == "VIEW" {
			kind = KindView
		}
		objs = append(objs, Object{Name: name, Kind: kind})
	}
	if err := rows.Err(); err != nil {
		return nil, m.Classify("list objects", err)
	}

	triggers, err := queryStrings(ctx, q, `
		SELECT TRIGGER_NAME FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ? ORDER BY TRIGGER_NAME`, schema)
	if err != nil {
		return nil, m.Classify("list triggers", err)
	}
	for _, name := range triggers {
		objs = append(objs, Object{Name: name, Kind: KindTrigger})
	}
	return objs, nil
}

// CreateStatements implements Dialect.
func (m *MySQL) CreateStatements(ctx context.Context, q Querier, schema string, obj Object) ([]string, error) {
	var query, column string
	qualified := m.Quote(schema) + "." + m.Quote(obj.Name)
	switch obj.Kind {
	case KindTable:
		query, column = "SHOW CREATE TABLE "+qualified, "Create Table"
	case KindView:
		query, column = "SHOW CREATE VIEW "+qualified, "Create View"
	case KindTrigger:
		query, column = "SHOW CREATE TRIGGER "+qualified, "SQL Original Statement"
	default:
		return nil, fmt.Errorf("unsupported object kind %q", obj.Kind)
	}

	stmt, err := showCreate(ctx, q, query, column)
	if err != nil {
		return nil, m.Classify("show create "+obj.Name, err)
	}
	if obj.Kind == KindTrigger {
		// Triggers have no IF NOT EXISTS before 8.0.29.
		return []string{"DROP TRIGGER IF EXISTS " + m.Quote(obj.Name), stmt}, nil
	}
	return []string{stmt}, nil
}

// showCreate reads the named column of a SHOW CREATE result. The column
// count differs between tables, views and triggers.
func showCreate(ctx context.Context, q Querier, query, column string) (string, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", sql.ErrNoRows
	}
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return "", err
	}
	for i, c := range cols {
		if strings.EqualFold(c, column) {
			return vals[i].String, nil
		}
	}
	return "", fmt.Errorf("column %q not in result %v", column, cols)
}

var (
	mysqlDefiner       = regexp.MustCompile("(?i)\\s+DEFINER\\s*=\\s*(`[^`]*`|'[^']*'|[^\\s@]+)@(`[^`]*`|'[^']*'|[^\\s]+)")
	mysqlAutoIncrement = regexp.MustCompile(`(?i)\s+AUTO_INCREMENT=\d+`)
	mysqlCreateTable   = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?`)
	mysqlCreateView    = regexp.MustCompile(`(?i)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?`)
)

// RewriteCreate implements Dialect.
func (m *MySQL) RewriteCreate(stmt string, obj Object, from, to string) string {
	out := strings.ReplaceAll(stmt, m.Quote(from)+".", m.Quote(to)+".")
	out = mysqlDefiner.ReplaceAllString(out, "")
	switch obj.Kind {
	case KindTable:
		out = mysqlAutoIncrement.ReplaceAllString(out, "")
		out = mysqlCreateTable.ReplaceAllString(out, "CREATE TABLE IF NOT EXISTS ")
	case KindView:
		out = mysqlCreateView.ReplaceAllString(out, "CREATE OR REPLACE ")
	}
	return out
}

// SetForeignKeyChecks implements Dialect.
func (m *MySQL) SetForeignKeyChecks(ctx context.Context, q Querier, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	if _, err := q.ExecContext(ctx, fmt.Sprintf("SET FOREIGN_KEY_CHECKS = %d", v)); err != nil {
		return m.Classify("foreign_key_checks", err)
	}
	return nil
}

// Truncate implements Dialect.
func (m *MySQL) Truncate(ctx context.Context, q Querier, table string) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if _, err := q.ExecContext(ctx, "TRUNCATE TABLE "+m.Quote(table)); err != nil {
		return m.Classify("truncate "+table, err)
	}
	return nil
}

// Tables implements Dialect.
func (m *MySQL) Tables(ctx context.Context, q Querier) ([]string, error) {
	names, err := queryStrings(ctx, q, `
		SELECT TABLE_NAME FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`)
	if err != nil {
		return nil, m.Classify("list tables", err)
	}
	return names, nil
}

// Columns implements Dialect.
func (m *MySQL) Columns(ctx context.Context, q Querier, table string) ([]string, error) {
	cols, err := queryStrings(ctx, q, `
		SELECT COLUMN_NAME FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, m.Classify("columns "+table, err)
	}
	return cols, nil
}

// ForeignKeys implements Dialect.
func (m *MySQL) ForeignKeys(ctx context.Context, q Querier) ([]ForeignKey, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY TABLE_NAME, COLUMN_NAME`)
	if err != nil {
		return nil, m.Classify("foreign keys", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// Indexes implements Dialect.
func (m *MySQL) Indexes(ctx context.Context, q Querier, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT INDEX_NAME, NON_UNIQUE, COLUMN_NAME FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`, table)
	if err != nil {
		return nil, m.Classify("indexes "+table, err)
	}
	defer rows.Close()

	var indexes []Index
	byName := make(map[string]int)
	for rows.Next() {
		var name, column string
		var nonUnique int
		if err := rows.Scan(&name, &nonUnique, &column); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		i, ok := byName[name]
		if !ok {
			indexes = append(indexes, Index{Name: name, Primary: name == "PRIMARY", Unique: nonUnique == 0})
			i = len(indexes) - 1
			byName[name] = i
		}
		indexes[i].Columns = append(indexes[i].Columns, column)
	}
	return indexes, rows.Err()
}

// Triggers implements Dialect.
func (m *MySQL) Triggers(ctx context.Context, q Querier) ([]string, error) {
	names, err := queryStrings(ctx, q, `
		SELECT TRIGGER_NAME FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = DATABASE() ORDER BY TRIGGER_NAME`)
	if err != nil {
		return nil, m.Classify("list triggers", err)
	}
	return names, nil
}

// Baseline implements Dialect.
func (m *MySQL) Baseline() []string {
	return mysqlBaseline
}

// Quote implements Dialect.
func (m *MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// InsertIgnoreVerb implements Dialect.
func (m *MySQL) InsertIgnoreVerb() string {
	return "INSERT IGNORE"
}

// Classify implements Dialect.
func (m *MySQL) Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if testerr.KindOf(err) != testerr.KindUnknown {
		return err
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDupEntry, mysqlErrDupEntryWithKeyName, mysqlErrBadNull, mysqlErrNoDefaultForField,
			mysqlErrRowIsReferenced, mysqlErrNoReferencedRow, mysqlErrRowIsReferencedOld,
			mysqlErrNoReferencedRowOld, mysqlErrCheckConstraint:
			return testerr.Wrap(testerr.KindConstraintViolation, op, err)
		case mysqlErrBadDB:
			return testerr.Wrap(testerr.KindUnknownDatabase, op, err)
		case mysqlErrAccessDenied, mysqlErrDBAccessDenied, mysqlErrTooManyConnections,
			mysqlErrServerShutdown, mysqlErrHostNotPrivileged:
			return testerr.Wrap(testerr.KindConnection, op, err)
		}
		return testerr.Wrap(testerr.KindQuery, op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.As(err, &netErr) {
		return testerr.Wrap(testerr.KindConnection, op, err)
	}
	return testerr.Wrap(testerr.KindQuery, op, err)
}
