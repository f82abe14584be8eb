package harness

import "time"

// TestResult is the recorded outcome of one named test.
type TestResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"-"`
}

// Summary aggregates the results of a run.
type Summary struct {
	RunID       string        `json:"run_id"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	SuccessRate float64       `json:"success_rate"`
	Duration    time.Duration `json:"-"`
}

// AllPassed reports whether the run recorded no failures.
func (s Summary) AllPassed() bool {
	return s.Failed == 0
}

// Report is the machine-readable form of a run.
type Report struct {
	Summary
	DurationMS int64        `json:"duration_ms"`
	Tests      []TestResult `json:"tests"`
}

// Recorder observes outcomes as they are recorded. The metrics package
// implements it.
type Recorder interface {
	RecordTest(result TestResult)
	RecordRun(summary Summary)
}
