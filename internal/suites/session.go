package suites

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vinay-bit/research-apps-php-sub002/internal/fixtures"
	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// session bundles what a suite needs for one run.
type session struct {
	ctx     context.Context
	env     runner.Environment
	db      *sql.DB
	dialect store.Dialect
	f       *fixtures.Factory
	c       *harness.Collector
	logger  *slog.Logger
}

func newSession(ctx context.Context, env runner.Environment, c *harness.Collector, suite string) (*session, error) {
	db := env.DB()
	if db == nil {
		return nil, testerr.New(testerr.KindConnection, suite, "environment is not connected")
	}
	f, err := env.Fixtures()
	if err != nil {
		return nil, fmt.Errorf("create fixture factory: %w", err)
	}
	return &session{
		ctx:     ctx,
		env:     env,
		db:      db,
		dialect: env.Dialect(),
		f:       f,
		c:       c,
		logger:  env.Logger().With("suite", suite),
	}, nil
}

// count runs a COUNT(*) query, classifying driver errors.
func (s *session) count(query string, args ...any) (int64, error) {
	n, err := store.Count(s.ctx, s.db, query, args...)
	if err != nil {
		return 0, s.dialect.Classify("count", err)
	}
	return n, nil
}

// column reads one column of the row with the given surrogate id.
func (s *session) column(table, column string, id int64) (sql.NullString, error) {
	var v sql.NullString
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", s.dialect.Quote(column), s.dialect.Quote(table))
	if err := s.db.QueryRowContext(s.ctx, query, id).Scan(&v); err != nil {
		return v, s.dialect.Classify("read "+table+"."+column, err)
	}
	return v, nil
}

// missingID is a surrogate id no fixture will reach.
const missingID = 999999999
