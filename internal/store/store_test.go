package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

func TestNew_SelectsDialect(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"mysql", "mysql"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
	}
	for _, tt := range tests {
		d, err := New(tt.driver, Options{Dir: t.TempDir()})
		if err != nil {
			t.Fatalf("New(%q) failed: %v", tt.driver, err)
		}
		if d.Name() != tt.want {
			t.Errorf("New(%q).Name() = %q, want %q", tt.driver, d.Name(), tt.want)
		}
	}

	if _, err := New("postgres", Options{}); err == nil {
		t.Error("New(postgres) should fail")
	}
}

func TestSQLiteOpen_UnknownDatabase(t *testing.T) {
	d := NewSQLite(t.TempDir())

	_, err := d.Open(context.Background(), "missing")
	if got := testerr.KindOf(err); got != testerr.KindUnknownDatabase {
		t.Fatalf("KindOf(Open(missing)) = %q, want %q (err=%v)", got, testerr.KindUnknownDatabase, err)
	}
}

func TestSQLiteCreateAndDrop(t *testing.T) {
	ctx := context.Background()
	d := NewSQLite(t.TempDir())

	// Creating twice is a no-op.
	for i := 0; i < 2; i++ {
		if err := d.CreateDatabase(ctx, "research_apps_test"); err != nil {
			t.Fatalf("CreateDatabase() iteration %d failed: %v", i, err)
		}
	}
	if _, err := os.Stat(d.Path("research_apps_test")); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	db, err := d.Open(ctx, "research_apps_test")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	name, err := d.CurrentDatabase(ctx, db)
	if err != nil {
		t.Fatalf("CurrentDatabase() failed: %v", err)
	}
	if name != "research_apps_test" {
		t.Errorf("CurrentDatabase() = %q, want research_apps_test", name)
	}
	db.Close()

	if err := d.DropDatabase(ctx, "research_apps_test"); err != nil {
		t.Fatalf("DropDatabase() failed: %v", err)
	}
	if _, err := os.Stat(d.Path("research_apps_test")); !os.IsNotExist(err) {
		t.Error("database file still exists after drop")
	}
	// Dropping a missing database is fine.
	if err := d.DropDatabase(ctx, "research_apps_test"); err != nil {
		t.Errorf("second DropDatabase() failed: %v", err)
	}
}

func TestBaseline_Introspection(t *testing.T) {
	ctx := context.Background()
	d, db := createTestDatabase(t, "introspect")

	tables, err := d.Tables(ctx, db)
	if err != nil {
		t.Fatalf("Tables() failed: %v", err)
	}
	want := append(append([]string{}, LookupTables...), DomainTables...)
	for _, table := range want {
		if !contains(tables, table) {
			t.Errorf("table %q missing from %v", table, tables)
		}
	}
	if contains(tables, "sqlite_sequence") {
		t.Error("Tables() should hide sqlite internal tables")
	}

	cols, err := d.Columns(ctx, db, "users")
	if err != nil {
		t.Fatalf("Columns() failed: %v", err)
	}
	if cols[0] != "id" || !contains(cols, "email_id") {
		t.Errorf("Columns(users) = %v", cols)
	}

	fks, err := d.ForeignKeys(ctx, db)
	if err != nil {
		t.Fatalf("ForeignKeys() failed: %v", err)
	}
	wantFK := ForeignKey{Table: "projects", Column: "lead_user_id", ReferencedTable: "users", ReferencedColumn: "id"}
	found := false
	for _, fk := range fks {
		if fk == wantFK {
			found = true
		}
	}
	if !found {
		t.Errorf("ForeignKeys() missing %+v", wantFK)
	}

	indexes, err := d.Indexes(ctx, db, "users")
	if err != nil {
		t.Fatalf("Indexes() failed: %v", err)
	}
	var primary, uniqueEmail bool
	for _, idx := range indexes {
		if idx.Primary && len(idx.Columns) == 1 && idx.Columns[0] == "id" {
			primary = true
		}
		if idx.Unique && len(idx.Columns) == 1 && idx.Columns[0] == "email_id" {
			uniqueEmail = true
		}
	}
	if !primary || !uniqueEmail {
		t.Errorf("Indexes(users) = %+v, want primary id and unique email_id", indexes)
	}

	triggers, err := d.Triggers(ctx, db)
	if err != nil {
		t.Fatalf("Triggers() failed: %v", err)
	}
	if !contains(triggers, TriggerStudentID) || !contains(triggers, TriggerProjectID) {
		t.Errorf("Triggers() = %v", triggers)
	}
}

func TestBaseline_StudentTriggerFillsIdentifier(t *testing.T) {
	ctx := context.Background()
	d, db := createTestDatabase(t, "trigger")
	seedLookups(t, d, db)

	id, err := Insert(ctx, d, db, "students", map[string]any{
		"student_id":      nil,
		"first_name":      "Ada",
		"last_name":       "Lovelace",
		"program_id":      1,
		"department_id":   1,
		"enrollment_year": 2024,
	})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	var sid string
	if err := db.QueryRow("SELECT student_id FROM students WHERE id = ?", id).Scan(&sid); err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if !strings.HasPrefix(sid, "STU") || len(sid) != 11 {
		t.Errorf("student_id = %q, want STUyyyynnnn", sid)
	}
}

func TestInsert_DuplicateIsConstraintViolation(t *testing.T) {
	ctx := context.Background()
	d, db := createTestDatabase(t, "dup")
	seedLookups(t, d, db)

	if _, err := Insert(ctx, d, db, "users", testUser("dup@example.com")); err != nil {
		t.Fatalf("first Insert() failed: %v", err)
	}
	_, err := Insert(ctx, d, db, "users", testUser("dup@example.com"))
	if got := testerr.KindOf(err); got != testerr.KindConstraintViolation {
		t.Fatalf("KindOf(duplicate insert) = %q, want %q (err=%v)", got, testerr.KindConstraintViolation, err)
	}
}

func TestInsert_MissingParentIsConstraintViolation(t *testing.T) {
	ctx := context.Background()
	d, db := createTestDatabase(t, "fk")
	seedLookups(t, d, db)

	row := testUser("orphan@example.com")
	row["role_id"] = 999999
	_, err := Insert(ctx, d, db, "users", row)
	if got := testerr.KindOf(err); got != testerr.KindConstraintViolation {
		t.Fatalf("KindOf(orphan insert) = %q, want %q (err=%v)", got, testerr.KindConstraintViolation, err)
	}
}

func TestTruncate_ResetsSequence(t *testing.T) {
	ctx := context.Background()
	d, db := createTestDatabase(t, "truncate")
	seedLookups(t, d, db)

	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := Insert(ctx, d, db, "users", testUser(email)); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}
	if err := d.Truncate(ctx, db, "users"); err != nil {
		t.Fatalf("Truncate() failed: %v", err)
	}
	n, err := Count(ctx, db, "SELECT COUNT(*) FROM users")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("users has %d rows after truncate", n)
	}

	id, err := Insert(ctx, d, db, "users", testUser("c@example.com"))
	if err != nil {
		t.Fatalf("Insert() after truncate failed: %v", err)
	}
	if id != 1 {
		t.Errorf("id after truncate = %d, want 1", id)
	}
}

func TestBuildInsert(t *testing.T) {
	query, args, err := BuildInsert(NewMySQL(Options{}), "users", map[string]any{"last_name": "B", "email_id": "a@b", "first_name": "A"}, false)
	if err != nil {
		t.Fatalf("BuildInsert() failed: %v", err)
	}
	wantQuery := "INSERT INTO `users` (`email_id`, `first_name`, `last_name`) VALUES (?, ?, ?)"
	if query != wantQuery {
		t.Errorf("query = %q, want %q", query, wantQuery)
	}
	if len(args) != 3 || args[0] != "a@b" || args[2] != "B" {
		t.Errorf("args = %v", args)
	}

	query, _, err = BuildInsert(NewSQLite(""), "roles", map[string]any{"id": 1}, true)
	if err != nil {
		t.Fatalf("BuildInsert(ignore) failed: %v", err)
	}
	if !strings.HasPrefix(query, `INSERT OR IGNORE INTO "roles"`) {
		t.Errorf("ignore query = %q", query)
	}
}

func TestBuildInsert_RejectsInvalidIdentifiers(t *testing.T) {
	d := NewSQLite("")
	tests := []struct {
		name  string
		table string
		row   map[string]any
	}{
		{"bad table", "users; DROP TABLE users", map[string]any{"id": 1}},
		{"bad column", "users", map[string]any{"id = 1 --": 1}},
		{"no columns", "users", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := BuildInsert(d, tt.table, tt.row, false); err == nil {
				t.Error("BuildInsert() should fail")
			}
		})
	}
}

func TestSortForClone(t *testing.T) {
	objs := []Object{
		{Name: "trg_a", Kind: KindTrigger},
		{Name: "v_hours", Kind: KindView},
		{Name: "users", Kind: KindTable},
		{Name: "roles", Kind: KindTable},
	}
	SortForClone(objs)

	want := []string{"roles", "users", "v_hours", "trg_a"}
	for i, name := range want {
		if objs[i].Name != name {
			t.Fatalf("order = %v, want %v", objs, want)
		}
	}
}

func TestSQLiteRewriteCreate(t *testing.T) {
	d := NewSQLite("")
	tests := []struct {
		in   string
		want string
	}{
		{`CREATE TABLE "users" (id INTEGER)`, `CREATE TABLE IF NOT EXISTS "users" (id INTEGER)`},
		{`CREATE VIEW v AS SELECT 1`, `CREATE VIEW IF NOT EXISTS v AS SELECT 1`},
		{`CREATE UNIQUE INDEX ux ON users(email_id)`, `CREATE UNIQUE INDEX IF NOT EXISTS ux ON users(email_id)`},
		{`CREATE TRIGGER IF NOT EXISTS t AFTER INSERT ON refdb.students BEGIN SELECT 1; END`,
			`CREATE TRIGGER IF NOT EXISTS t AFTER INSERT ON students BEGIN SELECT 1; END`},
	}
	for _, tt := range tests {
		if got := d.RewriteCreate(tt.in, Object{}, "research_apps", "research_apps_test"); got != tt.want {
			t.Errorf("RewriteCreate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMySQLRewriteCreate(t *testing.T) {
	d := NewMySQL(Options{})

	table := "CREATE TABLE `users` (\n  `id` int NOT NULL AUTO_INCREMENT\n) ENGINE=InnoDB AUTO_INCREMENT=42 DEFAULT CHARSET=utf8mb4"
	got := d.RewriteCreate(table, Object{Name: "users", Kind: KindTable}, "research_apps", "research_apps_test")
	if !strings.HasPrefix(got, "CREATE TABLE IF NOT EXISTS `users`") {
		t.Errorf("table rewrite = %q", got)
	}
	if strings.Contains(got, "AUTO_INCREMENT=42") {
		t.Errorf("table rewrite kept AUTO_INCREMENT option: %q", got)
	}
	if !strings.Contains(got, "NOT NULL AUTO_INCREMENT") {
		t.Errorf("table rewrite dropped the column attribute: %q", got)
	}

	view := "CREATE ALGORITHM=UNDEFINED DEFINER=`root`@`localhost` SQL SECURITY DEFINER VIEW `v_project_hours` AS select `research_apps`.`time_entries`.`project_id` AS `project_id` from `research_apps`.`time_entries`"
	got = d.RewriteCreate(view, Object{Name: "v_project_hours", Kind: KindView}, "research_apps", "research_apps_test")
	if !strings.HasPrefix(got, "CREATE OR REPLACE ALGORITHM=UNDEFINED SQL SECURITY DEFINER VIEW") {
		t.Errorf("view rewrite = %q", got)
	}
	if strings.Contains(got, "`research_apps`.") || !strings.Contains(got, "`research_apps_test`.`time_entries`") {
		t.Errorf("view rewrite did not retarget the schema: %q", got)
	}
}

func TestMySQLDSN(t *testing.T) {
	d := NewMySQL(Options{Host: "db.local", User: "root", Password: "secret"})

	dsn := d.DSN("research_apps_test")
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q) failed: %v", dsn, err)
	}
	if cfg.Addr != "db.local:3306" || cfg.DBName != "research_apps_test" || cfg.User != "root" {
		t.Errorf("parsed DSN = %+v", cfg)
	}
	if !strings.Contains(dsn, "charset=utf8mb4") {
		t.Errorf("DSN %q lacks charset", dsn)
	}
}

func TestClassify(t *testing.T) {
	m := NewMySQL(Options{})
	s := NewSQLite("")
	tests := []struct {
		name string
		d    Dialect
		err  error
		want testerr.Kind
	}{
		{"mysql duplicate", m, &mysql.MySQLError{Number: 1062}, testerr.KindConstraintViolation},
		{"mysql fk", m, &mysql.MySQLError{Number: 1452}, testerr.KindConstraintViolation},
		{"mysql unknown db", m, &mysql.MySQLError{Number: 1049}, testerr.KindUnknownDatabase},
		{"mysql access denied", m, &mysql.MySQLError{Number: 1045}, testerr.KindConnection},
		{"mysql syntax", m, &mysql.MySQLError{Number: 1064}, testerr.KindQuery},
		{"mysql invalid conn", m, mysql.ErrInvalidConn, testerr.KindConnection},
		{"sqlite constraint", s, sqlite3.Error{Code: sqlite3.ErrConstraint}, testerr.KindConstraintViolation},
		{"sqlite cantopen", s, sqlite3.Error{Code: sqlite3.ErrCantOpen}, testerr.KindConnection},
		{"sqlite other", s, errors.New("no such table: x"), testerr.KindQuery},
		{"already classified", s, testerr.New(testerr.KindSchemaClone, "clone", "x"), testerr.KindSchemaClone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testerr.KindOf(tt.d.Classify("op", tt.err))
			if got != tt.want {
				t.Errorf("KindOf(Classify(%v)) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}

	if m.Classify("op", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
