package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
	"github.com/vinay-bit/research-apps-php-sub002/internal/suites"
)

// DispatchResult is the JSON payload of a dispatched command.
type DispatchResult struct {
	Command string          `json:"command"`
	OK      bool            `json:"ok"`
	Report  *harness.Report `json:"report,omitempty"`
}

// runDispatch runs one command of the dispatch vocabulary and maps the
// outcome to an exit code.
func runDispatch(cmd *cobra.Command, opts *RootOptions, command string) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}

	a, err := newApp(opts, f.LogWriter(), nil)
	if err != nil {
		f.jsonError(CodeEnvironment, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	defer a.Close()

	r := a.newRunner(f.RunnerWriter())
	o, err := r.Dispatch(cmd.Context(), command)

	result := DispatchResult{Command: o.Command, OK: o.OK}
	if o.Summary != nil {
		rep := r.Collector().Report()
		result.Report = &rep
	}

	switch {
	case errors.Is(err, runner.ErrUnknownSuite):
		f.jsonError(CodeUnknownSuite, err.Error(), map[string]any{"suites": a.registry.Names()})
	case err != nil:
		f.jsonError(CodeEnvironment, err.Error(), result)
	case !o.OK:
		f.jsonError(CodeTestsFailed, "one or more tests failed", result)
	default:
		return f.Success(result)
	}
	return dispatchExit(o, err)
}

// printHelp prints the dispatch usage for the root command and cobra's
// usage for subcommands.
func printHelp(c *cobra.Command) {
	out := c.OutOrStdout()
	if c != c.Root() {
		if c.Long != "" {
			fmt.Fprintln(out, c.Long)
			fmt.Fprintln(out)
		}
		fmt.Fprint(out, c.UsageString())
		return
	}

	r := runner.New(suites.DefaultRegistry(), nil, runner.Options{Out: out, Program: c.Name()})
	r.Usage()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Other commands:")
	for _, sub := range c.Commands() {
		if sub.IsAvailableCommand() {
			fmt.Fprintf(out, "  %-12s %s\n", sub.Name(), sub.Short)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	fmt.Fprint(out, c.LocalFlags().FlagUsages())
}
