package fixtures

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vinay-bit/research-apps-php-sub002/internal/config"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testutil"
)

var fixedNow = time.Date(2024, 9, 2, 14, 0, 0, 0, time.UTC)

// newTestDB creates a baseline sqlite database in a temp dir.
func newTestDB(t *testing.T) (store.Dialect, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	d := store.NewSQLite(t.TempDir())
	require.NoError(t, d.CreateDatabase(ctx, "fixtures_test"))
	db, err := d.Open(ctx, "fixtures_test")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range d.Baseline() {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	return d, db
}

func newTestFactory(t *testing.T, opts ...Option) (*Factory, *sql.DB) {
	t.Helper()
	d, db := newTestDB(t)
	opts = append([]Option{WithClock(testutil.NewFixedClock(fixedNow).Now)}, opts...)
	f, err := New(db, d, config.DefaultConfig().TestData, opts...)
	require.NoError(t, err)
	return f, db
}

func TestGenerateIdentifier(t *testing.T) {
	f, _ := newTestFactory(t, WithSource(testutil.NewSequenceSource(7, 9999, 123)))

	assert.Equal(t, "STU20240007", f.GenerateIdentifier(PrefixStudent))
	assert.Equal(t, "PRJ20249999", f.GenerateIdentifier(PrefixProject))
	assert.Equal(t, "PUB20240123", f.GenerateIdentifier(PrefixPublication))
}

func TestGenerateIdentifier_MatchesPattern(t *testing.T) {
	f, err := New(nil, store.NewSQLite(""), config.DefaultConfig().TestData)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		for _, prefix := range []string{PrefixStudent, PrefixProject, PrefixPublication} {
			id := f.GenerateIdentifier(prefix)
			assert.Regexp(t, IdentifierPattern, id)
			assert.Regexp(t, PatternFor(prefix), id)
		}
	}
}

func TestCreateTestDependencies_Idempotent(t *testing.T) {
	f, db := newTestFactory(t)
	ctx := context.Background()

	require.NoError(t, f.CreateTestDependencies(ctx))
	require.NoError(t, f.CreateTestDependencies(ctx))

	for _, table := range store.LookupTables {
		n, err := store.Count(ctx, db, "SELECT COUNT(*) FROM "+table+" WHERE id = 1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, table)
	}
}

func TestCreateTestUser_SeedsLazily(t *testing.T) {
	f, db := newTestFactory(t)
	ctx := context.Background()

	id, err := f.CreateTestUser(ctx, nil)
	require.NoError(t, err)
	assert.Positive(t, id)

	var email, hash, first string
	err = db.QueryRow("SELECT email_id, password_hash, first_name FROM users WHERE id = ?", id).Scan(&email, &hash, &first)
	require.NoError(t, err)
	assert.Regexp(t, `^test_[0-9a-f]{12}@example\.com$`, email)
	assert.Equal(t, "Test", first)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("TestPassword123!")))
}

func TestCreateTestUser_OverridesWin(t *testing.T) {
	f, db := newTestFactory(t)
	ctx := context.Background()

	id, err := f.CreateTestUser(ctx, Row{"email_id": "ada@example.com", "first_name": "Ada"})
	require.NoError(t, err)

	var email, first, last string
	require.NoError(t, db.QueryRow("SELECT email_id, first_name, last_name FROM users WHERE id = ?", id).Scan(&email, &first, &last))
	assert.Equal(t, "ada@example.com", email)
	assert.Equal(t, "Ada", first)
	assert.Equal(t, "User", last)
}

func TestCreateTestUser_DuplicateEmail(t *testing.T) {
	f, _ := newTestFactory(t)
	ctx := context.Background()

	_, err := f.CreateTestUser(ctx, Row{"email_id": "dup@example.com"})
	require.NoError(t, err)

	_, err = f.CreateTestUser(ctx, Row{"email_id": "dup@example.com"})
	assert.Equal(t, testerr.KindConstraintViolation, testerr.KindOf(err))

	// Generated emails never collide.
	_, err = f.CreateTestUser(ctx, nil)
	require.NoError(t, err)
	_, err = f.CreateTestUser(ctx, nil)
	require.NoError(t, err)
}

func TestCreateTestStudent_GeneratesIdentifier(t *testing.T) {
	f, db := newTestFactory(t, WithSource(testutil.NewSequenceSource(42)))
	ctx := context.Background()

	id, err := f.CreateTestStudent(ctx, nil)
	require.NoError(t, err)

	var sid string
	var year int
	require.NoError(t, db.QueryRow("SELECT student_id, enrollment_year FROM students WHERE id = ?", id).Scan(&sid, &year))
	assert.Equal(t, "STU20240042", sid)
	assert.Equal(t, 2024, year)
}

func TestCreateTestStudent_ExplicitNilLeavesTriggerToFill(t *testing.T) {
	f, db := newTestFactory(t)
	ctx := context.Background()

	id, err := f.CreateTestStudent(ctx, Row{"student_id": nil})
	require.NoError(t, err)

	var sid string
	require.NoError(t, db.QueryRow("SELECT student_id FROM students WHERE id = ?", id).Scan(&sid))
	assert.Regexp(t, PatternFor(PrefixStudent), sid)
}

func TestCreateTestStudent_DuplicateIdentifier(t *testing.T) {
	// A source that repeats forces the accepted collision case.
	f, _ := newTestFactory(t, WithSource(testutil.NewSequenceSource(5)))
	ctx := context.Background()

	_, err := f.CreateTestStudent(ctx, nil)
	require.NoError(t, err)
	_, err = f.CreateTestStudent(ctx, nil)
	assert.Equal(t, testerr.KindConstraintViolation, testerr.KindOf(err))
}

func TestCreateTestProject_CreatesLead(t *testing.T) {
	f, db := newTestFactory(t)
	ctx := context.Background()

	id, err := f.CreateTestProject(ctx, nil)
	require.NoError(t, err)

	var pid, start string
	var lead int64
	require.NoError(t, db.QueryRow("SELECT project_id, lead_user_id, start_date FROM projects WHERE id = ?", id).Scan(&pid, &lead, &start))
	assert.Regexp(t, PatternFor(PrefixProject), pid)
	assert.Equal(t, "2024-09-02", start)

	n, err := store.Count(ctx, db, "SELECT COUNT(*) FROM users WHERE id = ?", lead)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCreateTestProject_UnknownLeadRejected(t *testing.T) {
	f, _ := newTestFactory(t)

	_, err := f.CreateTestProject(context.Background(), Row{"lead_user_id": 999999})
	assert.Equal(t, testerr.KindConstraintViolation, testerr.KindOf(err))
}

func TestCreateTestPublicationAndTimeEntry(t *testing.T) {
	f, db := newTestFactory(t)
	ctx := context.Background()

	pub, err := f.CreateTestPublication(ctx, nil)
	require.NoError(t, err)
	var pubID string
	require.NoError(t, db.QueryRow("SELECT publication_id FROM publications WHERE id = ?", pub).Scan(&pubID))
	assert.Regexp(t, PatternFor(PrefixPublication), pubID)

	entry, err := f.CreateTestTimeEntry(ctx, Row{"hours": 2.25})
	require.NoError(t, err)
	var hours float64
	var date string
	require.NoError(t, db.QueryRow("SELECT hours, entry_date FROM time_entries WHERE id = ?", entry).Scan(&hours, &date))
	assert.InDelta(t, 2.25, hours, 1e-9)
	assert.Equal(t, "2024-09-02", date)
}

func TestLinkStudentAccount_OneToOne(t *testing.T) {
	f, _ := newTestFactory(t)
	ctx := context.Background()

	student, err := f.CreateTestStudent(ctx, nil)
	require.NoError(t, err)
	user, err := f.CreateTestUser(ctx, nil)
	require.NoError(t, err)
	other, err := f.CreateTestUser(ctx, nil)
	require.NoError(t, err)

	_, err = f.LinkStudentAccount(ctx, student, user)
	require.NoError(t, err)

	_, err = f.LinkStudentAccount(ctx, student, other)
	assert.Equal(t, testerr.KindConstraintViolation, testerr.KindOf(err))
}

func TestAddProjectMember_Unique(t *testing.T) {
	f, _ := newTestFactory(t)
	ctx := context.Background()

	project, err := f.CreateTestProject(ctx, nil)
	require.NoError(t, err)
	user, err := f.CreateTestUser(ctx, nil)
	require.NoError(t, err)

	_, err = f.AddProjectMember(ctx, project, user)
	require.NoError(t, err)
	_, err = f.AddProjectMember(ctx, project, user)
	assert.Equal(t, testerr.KindConstraintViolation, testerr.KindOf(err))
}

func TestParseDefaults(t *testing.T) {
	d, err := LoadDefaults()
	require.NoError(t, err)
	seeds := d.Ordered()
	require.Len(t, seeds, len(store.LookupTables))
	assert.Equal(t, "roles", seeds[0].Table)
	assert.Equal(t, "publication_types", seeds[len(seeds)-1].Table)

	_, err = ParseDefaults([]byte("lookups:\n  widgets:\n    - id: 1\n"))
	assert.ErrorContains(t, err, `unknown lookup table "widgets"`)

	_, err = ParseDefaults([]byte("lookups:\n  roles:\n    - name: Admin\n"))
	assert.ErrorContains(t, err, "has no id")
}

func TestCreateTestDependencies_WithDefaults(t *testing.T) {
	d, err := ParseDefaults([]byte("lookups:\n  roles:\n    - id: 7\n      name: Reviewer\n"))
	require.NoError(t, err)
	f, db := newTestFactory(t, WithDefaults(d))
	ctx := context.Background()

	require.NoError(t, f.CreateTestDependencies(ctx))

	var name string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM roles WHERE id = 7").Scan(&name))
	assert.Equal(t, "Reviewer", name)

	n, err := store.Count(ctx, db, "SELECT COUNT(*) FROM departments")
	require.NoError(t, err)
	assert.Zero(t, n)
}
