package suites

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/vinay-bit/research-apps-php-sub002/internal/fixtures"
	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// RequiredTables must exist in the test database.
var RequiredTables = append(append([]string(nil), store.LookupTables...), store.DomainTables...)

// RequiredColumns lists the columns the application reads, per table.
var RequiredColumns = map[string][]string{
	"users":        {"id", "email_id", "password_hash", "first_name", "last_name", "role_id", "department_id", "is_active"},
	"students":     {"id", "student_id", "first_name", "last_name", "program_id", "department_id"},
	"projects":     {"id", "project_id", "title", "status_id", "lead_user_id", "department_id"},
	"time_entries": {"id", "user_id", "project_id", "entry_date", "hours"},
}

// columnTables fixes the order RequiredColumns is checked in.
var columnTables = []string{"users", "students", "projects", "time_entries"}

// RequiredForeignKeys are (table, column, referenced table) triples.
// Extra foreign keys in the database are allowed.
var RequiredForeignKeys = []store.ForeignKey{
	{Table: "users", Column: "role_id", ReferencedTable: "roles"},
	{Table: "users", Column: "department_id", ReferencedTable: "departments"},
	{Table: "students", Column: "program_id", ReferencedTable: "programs"},
	{Table: "student_accounts", Column: "student_id", ReferencedTable: "students"},
	{Table: "student_accounts", Column: "user_id", ReferencedTable: "users"},
	{Table: "projects", Column: "lead_user_id", ReferencedTable: "users"},
	{Table: "projects", Column: "status_id", ReferencedTable: "project_statuses"},
	{Table: "project_members", Column: "project_id", ReferencedTable: "projects"},
	{Table: "project_members", Column: "user_id", ReferencedTable: "users"},
	{Table: "time_entries", Column: "user_id", ReferencedTable: "users"},
	{Table: "time_entries", Column: "project_id", ReferencedTable: "projects"},
}

// indexedTables must carry a primary key index.
var indexedTables = []string{"users", "students", "projects", "time_entries"}

// Schema verifies structure and integrity rules of the test database.
// Every check is its own test; a failing check does not stop the others.
type Schema struct {
	s *session
}

// RunTests implements runner.Suite.
func (sc *Schema) RunTests(ctx context.Context, env runner.Environment, c *harness.Collector) error {
	s, err := newSession(ctx, env, c, NameSchema)
	if err != nil {
		return err
	}
	sc.s = s

	c.Run("Database connection", sc.testConnection)
	c.Run("Required tables exist", sc.testTables)
	c.Run("Required columns exist", sc.testColumns)
	c.Run("Foreign keys are defined", sc.testForeignKeys)
	c.Run("Unique constraints are enforced", sc.testUniqueness)
	c.Run("Identifier triggers", sc.testTriggers)
	c.Run("Tables are indexed", sc.testIndexes)
	c.Run("Referential integrity", sc.testIntegrity)
	return nil
}

func (sc *Schema) testConnection() error {
	s := sc.s
	var one int64
	if err := s.db.QueryRowContext(s.ctx, "SELECT 1").Scan(&one); err != nil {
		return s.dialect.Classify("select 1", err)
	}
	if err := harness.AssertCount(1, one, "SELECT 1"); err != nil {
		return err
	}
	name, err := s.dialect.CurrentDatabase(s.ctx, s.db)
	if err != nil {
		return err
	}
	return harness.AssertEqual(s.env.Config().Database.Name, name, "connected to the configured test database")
}

func (sc *Schema) testTables() error {
	s := sc.s
	tables, err := s.dialect.Tables(s.ctx, s.db)
	if err != nil {
		return err
	}
	return harness.AssertContains(tables, RequiredTables, "required tables")
}

func (sc *Schema) testColumns() error {
	s := sc.s
	for _, table := range columnTables {
		cols, err := s.dialect.Columns(s.ctx, s.db, table)
		if err != nil {
			return err
		}
		if err := harness.AssertContains(cols, RequiredColumns[table], "columns of "+table); err != nil {
			return err
		}
	}
	return nil
}

func fkTriple(fk store.ForeignKey) string {
	return fmt.Sprintf("%s.%s -> %s", fk.Table, fk.Column, fk.ReferencedTable)
}

func (sc *Schema) testForeignKeys() error {
	s := sc.s
	fks, err := s.dialect.ForeignKeys(s.ctx, s.db)
	if err != nil {
		return err
	}
	have := make([]string, 0, len(fks))
	for _, fk := range fks {
		have = append(have, fkTriple(fk))
	}
	want := make([]string, 0, len(RequiredForeignKeys))
	for _, fk := range RequiredForeignKeys {
		want = append(want, fkTriple(fk))
	}
	return harness.AssertContains(have, want, "foreign keys")
}

func (sc *Schema) testUniqueness() error {
	s := sc.s

	email := fmt.Sprintf("unique_%s@%s", uuid.NewString(), s.env.Config().TestData.EmailDomain)
	if _, err := s.f.CreateTestUser(s.ctx, fixtures.Row{"email_id": email}); err != nil {
		return err
	}
	if err := harness.AssertThrows(func() error {
		_, err := s.f.CreateTestUser(s.ctx, fixtures.Row{"email_id": email})
		return err
	}, testerr.KindConstraintViolation, "duplicate email"); err != nil {
		return err
	}

	studentID := s.f.GenerateIdentifier(fixtures.PrefixStudent)
	student, err := s.f.CreateTestStudent(s.ctx, fixtures.Row{"student_id": studentID})
	if err != nil {
		return err
	}
	if err := harness.AssertThrows(func() error {
		_, err := s.f.CreateTestStudent(s.ctx, fixtures.Row{"student_id": studentID})
		return err
	}, testerr.KindConstraintViolation, "duplicate student_id"); err != nil {
		return err
	}

	user, err := s.f.CreateTestUser(s.ctx, nil)
	if err != nil {
		return err
	}
	other, err := s.f.CreateTestUser(s.ctx, nil)
	if err != nil {
		return err
	}
	if _, err := s.f.LinkStudentAccount(s.ctx, student, user); err != nil {
		return err
	}
	return harness.AssertThrows(func() error {
		_, err := s.f.LinkStudentAccount(s.ctx, student, other)
		return err
	}, testerr.KindConstraintViolation, "second account for one student")
}

// testTriggers checks trigger presence softly and the identifier format
// of rows inserted without one. When a trigger is missing the factory
// supplies the identifier instead.
func (sc *Schema) testTriggers() error {
	s := sc.s
	triggers, err := s.dialect.Triggers(s.ctx, s.db)
	if err != nil {
		return err
	}

	checks := []struct {
		trigger, table, column, prefix string
		create                         func(fixtures.Row) (int64, error)
	}{
		{store.TriggerStudentID, "students", "student_id", fixtures.PrefixStudent,
			func(r fixtures.Row) (int64, error) { return s.f.CreateTestStudent(s.ctx, r) }},
		{store.TriggerProjectID, "projects", "project_id", fixtures.PrefixProject,
			func(r fixtures.Row) (int64, error) { return s.f.CreateTestProject(s.ctx, r) }},
	}
	for _, chk := range checks {
		var overrides fixtures.Row
		if slices.Contains(triggers, chk.trigger) {
			overrides = fixtures.Row{chk.column: nil}
		} else {
			s.logger.Warn("identifier trigger missing, checking generated identifier", "trigger", chk.trigger)
		}
		id, err := chk.create(overrides)
		if err != nil {
			return err
		}
		v, err := s.column(chk.table, chk.column, id)
		if err != nil {
			return err
		}
		if err := harness.AssertTrue(v.Valid, chk.table+"."+chk.column+" is set"); err != nil {
			return err
		}
		if err := harness.AssertMatches(fixtures.PatternFor(chk.prefix).String(), v.String, chk.table+"."+chk.column+" format"); err != nil {
			return err
		}
	}
	return nil
}

func (sc *Schema) testIndexes() error {
	s := sc.s
	for _, table := range indexedTables {
		indexes, err := s.dialect.Indexes(s.ctx, s.db, table)
		if err != nil {
			return err
		}
		if err := harness.AssertTrue(len(indexes) > 0, table+" has indexes"); err != nil {
			return err
		}
		primary := slices.ContainsFunc(indexes, func(idx store.Index) bool { return idx.Primary })
		if err := harness.AssertTrue(primary, table+" has a primary key index"); err != nil {
			return err
		}
	}
	return nil
}

func (sc *Schema) testIntegrity() error {
	s := sc.s
	if err := harness.AssertThrows(func() error {
		_, err := s.f.CreateTestTimeEntry(s.ctx, fixtures.Row{"user_id": missingID, "project_id": missingID})
		return err
	}, testerr.KindConstraintViolation, "time entry with missing parents"); err != nil {
		return err
	}

	orphans, err := s.count(`SELECT COUNT(*) FROM time_entries te
		LEFT JOIN users u ON te.user_id = u.id
		LEFT JOIN projects p ON te.project_id = p.id
		WHERE u.id IS NULL OR p.id IS NULL`)
	if err != nil {
		return err
	}
	return harness.AssertCount(0, orphans, "orphaned time entries")
}
