package runner

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinay-bit/research-apps-php-sub002/internal/config"
	"github.com/vinay-bit/research-apps-php-sub002/internal/environment"
	"github.com/vinay-bit/research-apps-php-sub002/internal/fixtures"
	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/store"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// fakeEnv records lifecycle calls.
type fakeEnv struct {
	calls   []string
	initErr error
	stepErr map[string]error
}

func (f *fakeEnv) record(name string) error {
	f.calls = append(f.calls, name)
	return f.stepErr[name]
}

func (f *fakeEnv) Init(context.Context) error {
	f.calls = append(f.calls, "init")
	return f.initErr
}
func (f *fakeEnv) Cleanup(context.Context) error          { return f.record("cleanup") }
func (f *fakeEnv) EnsureDirectories() error               { return f.record("dirs") }
func (f *fakeEnv) Connect(context.Context) error          { return f.record("connect") }
func (f *fakeEnv) SeedDependencies(context.Context) error { return f.record("seed") }
func (f *fakeEnv) CleanDatabase(context.Context) error    { return f.record("clean") }
func (f *fakeEnv) DropDatabase(context.Context) error     { return f.record("drop") }
func (f *fakeEnv) DB() *sql.DB                            { return nil }
func (f *fakeEnv) Dialect() store.Dialect                 { return nil }
func (f *fakeEnv) Config() config.Config                  { return config.DefaultConfig() }
func (f *fakeEnv) Logger() *slog.Logger                   { return slog.New(slog.DiscardHandler) }
func (f *fakeEnv) Fixtures(...fixtures.Option) (*fixtures.Factory, error) {
	return nil, errors.New("no database")
}

// passingSuite records one passing test named after the suite.
func passingSuite(name string, ran *[]string) Factory {
	return func() Suite {
		return SuiteFunc(func(_ context.Context, _ Environment, c *harness.Collector) error {
			*ran = append(*ran, name)
			c.Run(name+" works", func() error { return nil })
			return nil
		})
	}
}

func newTestRunner(t *testing.T, env Environment, reg *Registry) (*Runner, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return New(reg, env, Options{Out: &out}), &out
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	var ran []string
	require.NoError(t, reg.Register("Schema", passingSuite("Schema", &ran)))
	require.NoError(t, reg.Register("Time Entries", passingSuite("Time Entries", &ran)))

	assert.Equal(t, []string{"Schema", "Time Entries"}, reg.Names())

	name, f, ok := reg.Lookup("time entries")
	assert.True(t, ok)
	assert.NotNil(t, f)
	assert.Equal(t, "Time Entries", name)

	_, _, ok = reg.Lookup("Nonexistent")
	assert.False(t, ok)

	assert.ErrorContains(t, reg.Register("SCHEMA", passingSuite("x", &ran)), "already registered")
	assert.ErrorContains(t, reg.Register("All", passingSuite("x", &ran)), "reserved")
	assert.Error(t, reg.Register("", passingSuite("x", &ran)))
	assert.Error(t, reg.Register("Nil", nil))
	assert.Panics(t, func() { reg.MustRegister("schema", passingSuite("x", &ran)) })
}

func TestRunAll_FailingMiddleSuite(t *testing.T) {
	for _, mode := range []string{"error", "panic"} {
		t.Run(mode, func(t *testing.T) {
			var ran []string
			reg := NewRegistry()
			reg.MustRegister("First", passingSuite("First", &ran))
			reg.MustRegister("Second", func() Suite {
				return SuiteFunc(func(context.Context, Environment, *harness.Collector) error {
					ran = append(ran, "Second")
					if mode == "panic" {
						panic("index out of range")
					}
					return errors.New("table missing")
				})
			})
			reg.MustRegister("Third", passingSuite("Third", &ran))

			env := &fakeEnv{}
			r, out := newTestRunner(t, env, reg)

			s, err := r.RunAll(context.Background())
			require.NoError(t, err)

			assert.Equal(t, []string{"First", "Second", "Third"}, ran)
			assert.Equal(t, 3, s.Total)
			assert.Equal(t, 1, s.Failed)

			var failed []harness.TestResult
			for _, tr := range r.Collector().Tests() {
				if !tr.Passed {
					failed = append(failed, tr)
				}
			}
			require.Len(t, failed, 1)
			assert.Equal(t, "Second", failed[0].Name)
			assert.Contains(t, failed[0].Message, string(testerr.KindSuiteExecution))

			assert.Equal(t, []string{"init", "cleanup"}, env.calls)
			assert.Equal(t, StateIdle, r.State())
			assert.Contains(t, out.String(), "Third works")
		})
	}
}

func TestRunAll_InitFailureStillCleansUp(t *testing.T) {
	var ran []string
	reg := NewRegistry()
	reg.MustRegister("Schema", passingSuite("Schema", &ran))
	env := &fakeEnv{initErr: testerr.New(testerr.KindConnection, "connect", "connection refused")}
	r, out := newTestRunner(t, env, reg)

	_, err := r.RunAll(context.Background())

	require.Error(t, err)
	assert.True(t, testerr.IsFatal(err))
	assert.Empty(t, ran)
	assert.Equal(t, []string{"init", "cleanup"}, env.calls)
	assert.Contains(t, out.String(), "Environment initialization failed")
	assert.Equal(t, StateIdle, r.State())
}

func TestRunSpecific(t *testing.T) {
	var ran []string
	reg := NewRegistry()
	reg.MustRegister("Schema", passingSuite("Schema", &ran))
	reg.MustRegister("Constraints", passingSuite("Constraints", &ran))
	env := &fakeEnv{}
	r, _ := newTestRunner(t, env, reg)

	s, err := r.RunSpecific(context.Background(), "constraints")
	require.NoError(t, err)

	assert.Equal(t, []string{"Constraints"}, ran)
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, []string{"init", "cleanup"}, env.calls)
}

func TestRunSpecific_UnknownSuite(t *testing.T) {
	var ran []string
	reg := NewRegistry()
	reg.MustRegister("Schema", passingSuite("Schema", &ran))
	reg.MustRegister("Time Entries", passingSuite("Time Entries", &ran))
	env := &fakeEnv{}
	r, out := newTestRunner(t, env, reg)

	_, err := r.RunSpecific(context.Background(), "Nonexistent")

	require.ErrorIs(t, err, ErrUnknownSuite)
	assert.Empty(t, ran)
	assert.Equal(t, []string{"init", "cleanup"}, env.calls)
	assert.Contains(t, out.String(), `Unknown test suite: "Nonexistent"`)
	assert.Contains(t, out.String(), "  - Schema\n")
	assert.Contains(t, out.String(), "  - Time Entries\n")
}

func TestRunner_StateTransitions(t *testing.T) {
	var seen []State
	reg := NewRegistry()
	var r *Runner
	reg.MustRegister("Observer", func() Suite {
		return SuiteFunc(func(context.Context, Environment, *harness.Collector) error {
			seen = append(seen, r.State())
			assert.Equal(t, "Observer", r.CurrentSuite())
			return nil
		})
	})
	r, _ = newTestRunner(t, &fakeEnv{}, reg)
	assert.Equal(t, StateIdle, r.State())

	_, err := r.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []State{StateRunning}, seen)
	assert.Equal(t, StateIdle, r.State())
	assert.Empty(t, r.CurrentSuite())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "cleaning_up", StateCleaningUp.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestDispatch(t *testing.T) {
	var ran []string
	reg := NewRegistry()
	reg.MustRegister("Schema", passingSuite("Schema", &ran))

	tests := []struct {
		command   string
		want      string
		wantCalls []string
	}{
		{"", CommandAll, []string{"init", "cleanup"}},
		{"ALL", CommandAll, []string{"init", "cleanup"}},
		{"Setup", CommandSetup, []string{"dirs", "connect", "seed"}},
		{"cleanup", CommandCleanup, []string{"connect", "clean", "drop"}},
		{"help", CommandHelp, nil},
		{"-h", CommandHelp, nil},
		{"--HELP", CommandHelp, nil},
		{" schema ", "Schema", []string{"init", "cleanup"}},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			env := &fakeEnv{}
			r, _ := newTestRunner(t, env, reg)

			o, err := r.Dispatch(context.Background(), tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.Command)
			assert.True(t, o.OK)
			assert.Equal(t, tt.wantCalls, env.calls)
		})
	}
}

func TestDispatch_UnknownSuite(t *testing.T) {
	r, _ := newTestRunner(t, &fakeEnv{}, NewRegistry())

	o, err := r.Dispatch(context.Background(), "Nonexistent")
	assert.ErrorIs(t, err, ErrUnknownSuite)
	assert.False(t, o.OK)
}

func TestDispatch_FailedTestIsNotOK(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("Broken", func() Suite {
		return SuiteFunc(func(_ context.Context, _ Environment, c *harness.Collector) error {
			c.Run("always fails", func() error { return harness.AssertTrue(false) })
			return nil
		})
	})
	r, _ := newTestRunner(t, &fakeEnv{}, reg)

	o, err := r.Dispatch(context.Background(), "all")
	require.NoError(t, err)
	assert.False(t, o.OK)
	require.NotNil(t, o.Summary)
	assert.Equal(t, 1, o.Summary.Failed)
}

func TestSetup_StepsAreIndependent(t *testing.T) {
	env := &fakeEnv{stepErr: map[string]error{"connect": errors.New("connection refused")}}
	r, out := newTestRunner(t, env, NewRegistry())

	ok := r.Setup(context.Background())

	assert.False(t, ok)
	assert.Equal(t, []string{"dirs", "connect", "seed"}, env.calls)
	assert.Contains(t, out.String(), harness.PassMarker+" Create directories")
	assert.Contains(t, out.String(), harness.FailMarker+" Connect to test database: connection refused")
}

func TestTeardown_DropRunsAfterCleanFailure(t *testing.T) {
	env := &fakeEnv{stepErr: map[string]error{"clean": errors.New("locked")}}
	r, out := newTestRunner(t, env, NewRegistry())

	ok := r.Teardown(context.Background())

	assert.False(t, ok)
	assert.Equal(t, []string{"connect", "clean", "drop"}, env.calls)
	assert.Contains(t, out.String(), harness.PassMarker+" Drop test database")
}

func TestUsage(t *testing.T) {
	var ran []string
	reg := NewRegistry()
	reg.MustRegister("Schema", passingSuite("Schema", &ran))
	var out bytes.Buffer
	r := New(reg, &fakeEnv{}, Options{Out: &out, Program: "testkit"})

	r.Usage()

	assert.True(t, strings.HasPrefix(out.String(), "Usage: testkit [command]"))
	for _, s := range []string{"all", "setup", "cleanup", "--help", "  - Schema"} {
		assert.Contains(t, out.String(), s)
	}
}

// TestSetupCleanupAll drives the full scenario against a real sqlite
// environment: the database must be re-provisionable after a drop.
func TestSetupCleanupAll(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.Dir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.UploadDir = filepath.Join(root, "uploads")
	env, err := environment.New(cfg, nil)
	require.NoError(t, err)
	defer env.Close()

	reg := NewRegistry()
	reg.MustRegister("Users", func() Suite {
		return SuiteFunc(func(ctx context.Context, env Environment, c *harness.Collector) error {
			f, err := env.Fixtures()
			if err != nil {
				return err
			}
			c.Run("create user", func() error {
				_, err := f.CreateTestUser(ctx, nil)
				return err
			})
			return nil
		})
	})
	r, _ := newTestRunner(t, env, reg)
	ctx := context.Background()

	for _, cmd := range []string{"setup", "cleanup", "all"} {
		o, err := r.Dispatch(ctx, cmd)
		require.NoError(t, err, cmd)
		assert.True(t, o.OK, cmd)
	}
	s := r.Collector().Results()
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.Passed)
}
