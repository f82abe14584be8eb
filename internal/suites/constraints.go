package suites

import (
	"context"

	"github.com/vinay-bit/research-apps-php-sub002/internal/fixtures"
	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// Constraints checks that the database rejects invalid rows.
type Constraints struct{}

// RunTests implements runner.Suite.
func (Constraints) RunTests(ctx context.Context, env runner.Environment, c *harness.Collector) error {
	s, err := newSession(ctx, env, c, NameConstraints)
	if err != nil {
		return err
	}

	c.Run("Users require an email", func() error {
		return harness.AssertThrows(func() error {
			_, err := s.f.CreateTestUser(ctx, fixtures.Row{"email_id": nil})
			return err
		}, testerr.KindConstraintViolation)
	})

	c.Run("Project members are unique", func() error {
		project, err := s.f.CreateTestProject(ctx, nil)
		if err != nil {
			return err
		}
		user, err := s.f.CreateTestUser(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := s.f.AddProjectMember(ctx, project, user); err != nil {
			return err
		}
		return harness.AssertThrows(func() error {
			_, err := s.f.AddProjectMember(ctx, project, user)
			return err
		}, testerr.KindConstraintViolation)
	})

	c.Run("Publications require an existing project", func() error {
		return harness.AssertThrows(func() error {
			_, err := s.f.CreateTestPublication(ctx, fixtures.Row{"project_id": missingID})
			return err
		}, testerr.KindConstraintViolation)
	})

	c.Run("Time entries require an existing project", func() error {
		return harness.AssertThrows(func() error {
			_, err := s.f.CreateTestTimeEntry(ctx, fixtures.Row{"project_id": missingID})
			return err
		}, testerr.KindConstraintViolation)
	})

	c.Run("Referenced users cannot be deleted", func() error {
		lead, err := s.f.CreateTestUser(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := s.f.CreateTestProject(ctx, fixtures.Row{"lead_user_id": lead}); err != nil {
			return err
		}
		if err := harness.AssertThrows(func() error {
			_, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", lead)
			return s.dialect.Classify("delete user", err)
		}, testerr.KindConstraintViolation); err != nil {
			return err
		}
		n, err := s.count("SELECT COUNT(*) FROM users WHERE id = ?", lead)
		if err != nil {
			return err
		}
		return harness.AssertCount(1, n, "lead user still present")
	})
	return nil
}
