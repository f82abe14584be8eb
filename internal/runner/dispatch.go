package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
)

// Dispatch commands. Anything else names a suite.
const (
	CommandAll     = "all"
	CommandSetup   = "setup"
	CommandCleanup = "cleanup"
	CommandHelp    = "help"
)

// isReserved reports whether a case-folded name is a dispatch command.
func isReserved(folded string) bool {
	switch folded {
	case CommandAll, CommandSetup, CommandCleanup, CommandHelp, "-h", "--help", "":
		return true
	}
	return false
}

// Outcome is the result of a dispatched command.
type Outcome struct {
	// Command is the normalized command, or the canonical suite name.
	Command string
	// Summary is set for commands that ran suites.
	Summary *harness.Summary
	// OK is false when a test or a provisioning step failed.
	OK bool
}

// Dispatch runs one command of the dispatch vocabulary:
//
//	all (or empty)        every suite
//	setup                 provision the environment
//	cleanup               clean and drop the test database
//	help, -h, --help      usage
//	<suite name>          one suite
//
// Matching is case-insensitive. The returned error is non-nil for fatal
// environment failures and unknown suite names.
func (r *Runner) Dispatch(ctx context.Context, command string) (Outcome, error) {
	cmd := strings.TrimSpace(command)
	switch strings.ToLower(cmd) {
	case "", CommandAll:
		s, err := r.RunAll(ctx)
		return Outcome{Command: CommandAll, Summary: &s, OK: err == nil && s.AllPassed()}, err
	case CommandSetup:
		ok := r.Setup(ctx)
		return Outcome{Command: CommandSetup, OK: ok}, nil
	case CommandCleanup:
		ok := r.Teardown(ctx)
		return Outcome{Command: CommandCleanup, OK: ok}, nil
	case CommandHelp, "-h", "--help":
		r.Usage()
		return Outcome{Command: CommandHelp, OK: true}, nil
	}

	name := cmd
	if canonical, _, ok := r.registry.Lookup(cmd); ok {
		name = canonical
	}
	s, err := r.RunSpecific(ctx, cmd)
	return Outcome{Command: name, Summary: &s, OK: err == nil && s.AllPassed()}, err
}

// step runs one provisioning step and prints its outcome. Failures are
// reported, never returned.
func (r *Runner) step(desc string, fn func() error) bool {
	if err := fn(); err != nil {
		r.logger.Error(desc+" failed", "error", err)
		fmt.Fprintf(r.out, "%s %s: %v\n", harness.FailMarker, desc, err)
		return false
	}
	r.logger.Info(desc)
	fmt.Fprintf(r.out, "%s %s\n", harness.PassMarker, desc)
	return true
}

// Setup provisions the environment: directories, database and lookup rows.
// Every step is attempted; the result reports whether all succeeded.
func (r *Runner) Setup(ctx context.Context) bool {
	r.setState(StateInitializing)
	defer r.setState(StateIdle)

	fmt.Fprintln(r.out, "Setting up test environment...")
	ok := r.step("Create directories", r.env.EnsureDirectories)
	ok = r.step("Connect to test database", func() error { return r.env.Connect(ctx) }) && ok
	ok = r.step("Seed test dependencies", func() error { return r.env.SeedDependencies(ctx) }) && ok
	return ok
}

// Teardown cleans and drops the test database. Every step is attempted;
// the result reports whether all succeeded.
func (r *Runner) Teardown(ctx context.Context) bool {
	r.setState(StateCleaningUp)
	defer r.setState(StateIdle)

	fmt.Fprintln(r.out, "Cleaning up test environment...")
	ok := r.step("Clean test database", func() error {
		if err := r.env.Connect(ctx); err != nil {
			return err
		}
		return r.env.CleanDatabase(ctx)
	})
	ok = r.step("Drop test database", func() error { return r.env.DropDatabase(ctx) }) && ok
	return ok
}

// Usage prints the dispatch vocabulary and the registered suites.
func (r *Runner) Usage() {
	fmt.Fprintf(r.out, "Usage: %s [command]\n\n", r.program)
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  all          Run every registered suite (default)")
	fmt.Fprintln(r.out, "  setup        Provision the test environment")
	fmt.Fprintln(r.out, "  cleanup      Clean and drop the test database")
	fmt.Fprintln(r.out, "  help         Show this help (also -h, --help)")
	fmt.Fprintln(r.out, "  <suite>      Run a single suite; quote names containing spaces")
	fmt.Fprintln(r.out)
	r.printSuites()
}

func (r *Runner) printSuites() {
	fmt.Fprintln(r.out, "Available suites:")
	for _, name := range r.registry.Names() {
		fmt.Fprintf(r.out, "  - %s\n", name)
	}
}
