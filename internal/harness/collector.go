package harness

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// unnamedTest is recorded when EndTest is called without an active test.
const unnamedTest = "(unnamed test)"

// Collector records named test outcomes in order.
//
// Results are keyed by the case-folded test name: recording a name that
// folds to an existing key replaces that entry in place and adopts the new
// display name. A Collector is not safe for concurrent use; suites run
// strictly one after another.
type Collector struct {
	results map[string]TestResult
	order   []string
	fold    cases.Caser

	current      string
	currentStart time.Time

	start  time.Time
	runID  string
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
	rec    Recorder
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock sets the time source used for run and test durations.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithRunID fixes the run identifier instead of generating a UUID per run.
func WithRunID(id string) Option {
	return func(c *Collector) { c.newID = func() string { return id } }
}

// WithRecorder forwards every recorded outcome and summary to r.
func WithRecorder(r Recorder) Option {
	return func(c *Collector) { c.rec = r }
}

// NewCollector creates an empty collector. A nil logger discards output.
func NewCollector(logger *slog.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Collector{
		fold:   cases.Fold(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

// Reset discards every result and starts a new run.
func (c *Collector) Reset() {
	c.results = make(map[string]TestResult)
	c.order = nil
	c.current = ""
	c.start = c.now()
	c.runID = c.newID()
}

// RunID identifies the current run.
func (c *Collector) RunID() string {
	return c.runID
}

// StartTest makes name the active test.
func (c *Collector) StartTest(name string) {
	if c.current != "" {
		c.logger.Warn("test started before previous test ended", "previous", c.current, "test", name)
	}
	c.current = name
	c.currentStart = c.now()
	c.logger.Debug("test started", "test", name)
}

// EndTest records the outcome of the active test and clears it.
func (c *Collector) EndTest(passed bool, message string) {
	name := c.current
	if name == "" {
		name = unnamedTest
		c.currentStart = c.now()
	}
	c.store(TestResult{
		Name:     name,
		Passed:   passed,
		Message:  message,
		Duration: c.now().Sub(c.currentStart),
	})
	c.current = ""
}

// Record stores a result that was not bracketed by StartTest/EndTest,
// such as the synthetic result for a failed suite.
func (c *Collector) Record(name string, passed bool, message string) {
	c.store(TestResult{Name: name, Passed: passed, Message: message})
}

// Run executes fn as the test name. The test passes when fn returns nil;
// otherwise the error text becomes the failure message. A panic inside fn
// is recorded as a failure and does not escape.
func (c *Collector) Run(name string, fn func() error) (passed bool) {
	c.StartTest(name)
	defer func() {
		if r := recover(); r != nil {
			c.EndTest(false, fmt.Sprintf("panic: %v", r))
			passed = false
		}
	}()

	if err := fn(); err != nil {
		c.EndTest(false, err.Error())
		return false
	}
	c.EndTest(true, "")
	return true
}

func (c *Collector) store(r TestResult) {
	key := c.fold.String(r.Name)
	if _, exists := c.results[key]; !exists {
		c.order = append(c.order, key)
	}
	c.results[key] = r

	if r.Passed {
		c.logger.Info("PASS: "+r.Name, "duration", r.Duration)
	} else {
		c.logger.Error("FAIL: "+r.Name, "message", r.Message)
	}
	if c.rec != nil {
		c.rec.RecordTest(r)
	}
}

// Tests returns the recorded results in first-recorded order.
func (c *Collector) Tests() []TestResult {
	out := make([]TestResult, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.results[key])
	}
	return out
}

// Results computes the run summary. SuccessRate is 0 when nothing ran.
func (c *Collector) Results() Summary {
	s := Summary{
		RunID:    c.runID,
		Total:    len(c.order),
		Duration: c.now().Sub(c.start),
	}
	for _, r := range c.results {
		if r.Passed {
			s.Passed++
		}
	}
	s.Failed = s.Total - s.Passed
	if s.Total > 0 {
		s.SuccessRate = float64(s.Passed) / float64(s.Total) * 100
	}
	return s
}

// Finish computes the summary and hands it to the recorder, if any.
func (c *Collector) Finish() Summary {
	s := c.Results()
	if c.rec != nil {
		c.rec.RecordRun(s)
	}
	c.logger.Info("run finished", "run_id", s.RunID, "total", s.Total, "passed", s.Passed, "failed", s.Failed)
	return s
}

// Report returns the summary together with every result.
func (c *Collector) Report() Report {
	s := c.Results()
	return Report{
		Summary:    s,
		DurationMS: s.Duration.Milliseconds(),
		Tests:      c.Tests(),
	}
}
