// Package runner drives test suites through the run lifecycle:
//
//	Idle → Initializing → Running(suite₁) … Running(suiteₙ) → Reporting → CleaningUp → Idle
//
// Every suite runs inside a fault boundary. A suite that returns an error
// or panics is recorded as one failed synthetic test named after the suite
// and the run continues with the next suite. Only a failure to initialize
// the environment ends a run early, and cleanup runs in every case.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// ErrUnknownSuite is returned when a requested suite is not registered.
var ErrUnknownSuite = errors.New("unknown test suite")

// State is the lifecycle state of a Runner.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateReporting
	StateCleaningUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateReporting:
		return "reporting"
	case StateCleaningUp:
		return "cleaning_up"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Runner.
type Options struct {
	// Out receives reports and step output. Defaults to os.Stdout.
	Out io.Writer
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
	// Collector defaults to a new collector using Logger.
	Collector *harness.Collector
	// Program is the command name shown in usage. Defaults to "testkit".
	Program string
}

// Runner executes registered suites against one environment.
// Runs are strictly sequential; a Runner is not safe for concurrent use.
type Runner struct {
	registry  *Registry
	env       Environment
	collector *harness.Collector
	out       io.Writer
	logger    *slog.Logger
	program   string

	state State
	suite string
}

// New creates a Runner.
func New(registry *Registry, env Environment, opts Options) *Runner {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Collector == nil {
		opts.Collector = harness.NewCollector(opts.Logger)
	}
	if opts.Program == "" {
		opts.Program = "testkit"
	}
	return &Runner{
		registry:  registry,
		env:       env,
		collector: opts.Collector,
		out:       opts.Out,
		logger:    opts.Logger,
		program:   opts.Program,
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State { return r.state }

// Collector returns the collector results are recorded in.
func (r *Runner) Collector() *harness.Collector { return r.collector }

// Registry returns the suite registry.
func (r *Runner) Registry() *Registry { return r.registry }

func (r *Runner) setState(s State, attrs ...any) {
	r.state = s
	r.logger.Debug("runner state", append([]any{"state", s.String()}, attrs...)...)
}

// RunAll runs every registered suite in registration order.
func (r *Runner) RunAll(ctx context.Context) (harness.Summary, error) {
	r.logger.Info("running all test suites", "suites", len(r.registry.Names()))
	return r.run(ctx, r.registry.Names())
}

// RunSpecific runs the single suite registered under name (case-insensitive).
//
// An unknown name prints the registered names, runs nothing and returns
// ErrUnknownSuite. The environment is still initialized and cleaned up.
func (r *Runner) RunSpecific(ctx context.Context, name string) (harness.Summary, error) {
	canonical, _, ok := r.registry.Lookup(name)
	if ok {
		r.logger.Info("running test suite", "suite", canonical)
		return r.run(ctx, []string{canonical})
	}

	r.collector.Reset()
	defer r.cleanup(ctx)

	r.setState(StateInitializing)
	initErr := r.env.Init(ctx)
	if initErr != nil {
		fmt.Fprintf(r.out, "%s Environment initialization failed: %v\n", harness.FailMarker, initErr)
	}

	r.logger.Error("unknown test suite", "suite", name)
	fmt.Fprintf(r.out, "Unknown test suite: %q\n", name)
	r.printSuites()
	return r.collector.Results(), errors.Join(fmt.Errorf("%w: %q", ErrUnknownSuite, name), initErr)
}

// run is the shared lifecycle of RunAll and RunSpecific.
func (r *Runner) run(ctx context.Context, names []string) (harness.Summary, error) {
	r.collector.Reset()
	defer r.cleanup(ctx)

	r.setState(StateInitializing)
	if err := r.env.Init(ctx); err != nil {
		r.logger.Error("environment initialization failed", "error", err)
		fmt.Fprintf(r.out, "%s Environment initialization failed: %v\n", harness.FailMarker, err)
		return r.collector.Results(), err
	}

	for _, name := range names {
		r.runSuite(ctx, name)
	}

	r.setState(StateReporting)
	r.collector.PrintResults(r.out)
	return r.collector.Finish(), nil
}

// cleanup always leaves the runner Idle.
func (r *Runner) cleanup(ctx context.Context) {
	r.setState(StateCleaningUp)
	defer r.setState(StateIdle)

	if err := r.env.Cleanup(context.WithoutCancel(ctx)); err != nil {
		r.logger.Error("environment cleanup failed", "error", err)
	}
}

// runSuite is the fault boundary around one suite.
func (r *Runner) runSuite(ctx context.Context, name string) {
	r.suite = name
	r.setState(StateRunning, "suite", name)
	defer func() { r.suite = "" }()

	_, factory, ok := r.registry.Lookup(name)
	if !ok {
		r.collector.Record(name, false, testerr.New(testerr.KindSuiteExecution, name, "suite is not registered").Error())
		return
	}

	if err := r.invoke(ctx, factory); err != nil {
		serr := testerr.Wrap(testerr.KindSuiteExecution, name, err)
		r.logger.Error("test suite failed", "suite", name, "error", err)
		r.collector.Record(name, false, serr.Error())
	}
}

func (r *Runner) invoke(ctx context.Context, factory Factory) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return factory().RunTests(ctx, r.env, r.collector)
}

// CurrentSuite returns the suite being run, or "" outside StateRunning.
func (r *Runner) CurrentSuite() string { return r.suite }
