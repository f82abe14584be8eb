package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/vinay-bit/research-apps-php-sub002/internal/config"
	"github.com/vinay-bit/research-apps-php-sub002/internal/environment"
	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
	"github.com/vinay-bit/research-apps-php-sub002/internal/logging"
	"github.com/vinay-bit/research-apps-php-sub002/internal/metrics"
	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
	"github.com/vinay-bit/research-apps-php-sub002/internal/suites"
)

// app wires configuration, logging, the environment and the suite
// registry for one process.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
	env      *environment.Environment
	registry *runner.Registry
	recorder *metrics.Recorder
}

// flagOverrides maps set root flags to config keys.
func flagOverrides(opts *RootOptions) map[string]any {
	overrides := map[string]any{}
	if opts.Driver != "" {
		overrides["database.driver"] = opts.Driver
	}
	if opts.Database != "" {
		overrides["database.name"] = opts.Database
	}
	if opts.Verbose {
		overrides["run.verbose"] = true
	}
	return overrides
}

// newApp loads configuration and builds the process dependencies. Log
// lines are mirrored to logOut in verbose mode.
func newApp(opts *RootOptions, logOut io.Writer, extra map[string]any) (*app, error) {
	overrides := flagOverrides(opts)
	for k, v := range extra {
		overrides[k] = v
	}
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath:    opts.ConfigPath,
		FlagOverrides: overrides,
	})
	if err != nil {
		return nil, err
	}

	logger, closeLog := logging.New(logging.Options{
		Dir:     cfg.Paths.LogDir,
		Verbose: cfg.Run.Verbose,
		Stdout:  logOut,
	})
	env, err := environment.New(cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		env:      env,
		registry: suites.DefaultRegistry(),
		recorder: metrics.NewRecorder(),
	}, nil
}

// newRunner builds a runner reporting to out. Every runner shares the
// environment and the metrics recorder.
func (a *app) newRunner(out io.Writer) *runner.Runner {
	return runner.New(a.registry, a.env, runner.Options{
		Out:       out,
		Logger:    a.logger,
		Collector: harness.NewCollector(a.logger, harness.WithRecorder(a.recorder)),
	})
}

// Close releases the database connection and the log file.
func (a *app) Close() error {
	return errors.Join(a.env.Close(), a.closeLog())
}
