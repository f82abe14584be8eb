package suites

import (
	"context"

	"github.com/vinay-bit/research-apps-php-sub002/internal/fixtures"
	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// TimeEntries checks time tracking rows and the per-project hours view.
type TimeEntries struct{}

// RunTests implements runner.Suite.
func (TimeEntries) RunTests(ctx context.Context, env runner.Environment, c *harness.Collector) error {
	s, err := newSession(ctx, env, c, NameTimeEntries)
	if err != nil {
		return err
	}

	c.Run("Entries are recorded per user", func() error {
		user, err := s.f.CreateTestUser(ctx, nil)
		if err != nil {
			return err
		}
		project, err := s.f.CreateTestProject(ctx, fixtures.Row{"lead_user_id": user})
		if err != nil {
			return err
		}
		for range 3 {
			if _, err := s.f.CreateTestTimeEntry(ctx, fixtures.Row{"user_id": user, "project_id": project}); err != nil {
				return err
			}
		}
		n, err := s.count("SELECT COUNT(*) FROM time_entries WHERE user_id = ?", user)
		if err != nil {
			return err
		}
		return harness.AssertCount(3, n, "entries for user")
	})

	c.Run("Hours aggregate per project", func() error {
		project, err := s.f.CreateTestProject(ctx, nil)
		if err != nil {
			return err
		}
		for _, hours := range []float64{1.5, 2.25} {
			if _, err := s.f.CreateTestTimeEntry(ctx, fixtures.Row{"project_id": project, "hours": hours}); err != nil {
				return err
			}
		}
		var total float64
		query := "SELECT total_hours FROM " + s.dialect.Quote(store.ProjectHoursView) + " WHERE project_id = ?"
		if err := s.db.QueryRowContext(ctx, query, project).Scan(&total); err != nil {
			return s.dialect.Classify("read "+store.ProjectHoursView, err)
		}
		return harness.AssertEqual(3.75, total, "total hours")
	})

	c.Run("Entries require an existing user", func() error {
		return harness.AssertThrows(func() error {
			_, err := s.f.CreateTestTimeEntry(ctx, fixtures.Row{"user_id": missingID})
			return err
		}, testerr.KindConstraintViolation)
	})
	return nil
}
