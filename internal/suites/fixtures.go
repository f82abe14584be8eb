package suites

import (
	"context"

	"github.com/vinay-bit/research-apps-php-sub002/internal/fixtures"
	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
)

// Fixtures checks the fixture factory against the live schema.
type Fixtures struct{}

// RunTests implements runner.Suite.
func (Fixtures) RunTests(ctx context.Context, env runner.Environment, c *harness.Collector) error {
	s, err := newSession(ctx, env, c, NameFixtures)
	if err != nil {
		return err
	}

	c.Run("Dependencies are idempotent", func() error {
		if err := s.f.CreateTestDependencies(ctx); err != nil {
			return err
		}
		before, err := s.count("SELECT COUNT(*) FROM roles")
		if err != nil {
			return err
		}
		if err := s.f.CreateTestDependencies(ctx); err != nil {
			return err
		}
		after, err := s.count("SELECT COUNT(*) FROM roles")
		if err != nil {
			return err
		}
		return harness.AssertCount(int(before), after, "roles after seeding twice")
	})

	c.Run("Overrides take precedence", func() error {
		id, err := s.f.CreateTestUser(ctx, fixtures.Row{"first_name": "Override"})
		if err != nil {
			return err
		}
		v, err := s.column("users", "first_name", id)
		if err != nil {
			return err
		}
		return harness.AssertEqual("Override", v.String)
	})

	c.Run("Identifiers follow the prefix format", func() error {
		for _, prefix := range []string{fixtures.PrefixStudent, fixtures.PrefixProject, fixtures.PrefixPublication} {
			id := s.f.GenerateIdentifier(prefix)
			if err := harness.AssertMatches(fixtures.PatternFor(prefix).String(), id, prefix+" identifier"); err != nil {
				return err
			}
		}
		return nil
	})

	c.Run("Students get distinct identifiers", func() error {
		first, err := s.f.CreateTestStudent(ctx, nil)
		if err != nil {
			return err
		}
		second, err := s.f.CreateTestStudent(ctx, nil)
		if err != nil {
			return err
		}
		a, err := s.column("students", "student_id", first)
		if err != nil {
			return err
		}
		b, err := s.column("students", "student_id", second)
		if err != nil {
			return err
		}
		return harness.AssertNotEqual(a.String, b.String)
	})

	c.Run("Student accounts link a student and a user", func() error {
		student, err := s.f.CreateTestStudent(ctx, nil)
		if err != nil {
			return err
		}
		user, err := s.f.CreateTestUser(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := s.f.LinkStudentAccount(ctx, student, user); err != nil {
			return err
		}
		n, err := s.count("SELECT COUNT(*) FROM student_accounts WHERE student_id = ? AND user_id = ?", student, user)
		if err != nil {
			return err
		}
		return harness.AssertCount(1, n)
	})

	c.Run("Lookup rows are seeded", func() error {
		for _, table := range store.LookupTables {
			n, err := s.count("SELECT COUNT(*) FROM " + s.dialect.Quote(table) + " WHERE id = 1")
			if err != nil {
				return err
			}
			if err := harness.AssertCount(1, n, table); err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}
