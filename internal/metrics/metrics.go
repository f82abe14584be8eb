// Package metrics exports run results as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vinay-bit/research-apps-php-sub002/internal/harness"
)

const MetricsNamespace = "testkit"

// Result label values.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Recorder implements harness.Recorder on its own registry, so several
// recorders can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	testsTotal   *prometheus.CounterVec
	runsTotal    *prometheus.CounterVec
	lastRun      *prometheus.GaugeVec
	lastDuration prometheus.Gauge
	lastSuccess  prometheus.Gauge
}

var _ harness.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tests_total",
			Help:      "Count of recorded tests by result",
		}, []string{
			"result",
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "runs_total",
			Help:      "Count of completed runs by result",
		}, []string{
			"result",
		}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_tests",
			Help:      "Number of tests in the last completed run by result",
		}, []string{
			"result",
		}),
		lastDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last completed run",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_success_rate",
			Help:      "Success rate of the last completed run, in percent",
		}),
	}
}

func result(passed bool) string {
	if passed {
		return ResultPass
	}
	return ResultFail
}

// RecordTest implements harness.Recorder.
func (r *Recorder) RecordTest(t harness.TestResult) {
	r.testsTotal.WithLabelValues(result(t.Passed)).Inc()
}

// RecordRun implements harness.Recorder.
func (r *Recorder) RecordRun(s harness.Summary) {
	r.runsTotal.WithLabelValues(result(s.AllPassed())).Inc()
	r.lastRun.WithLabelValues(ResultPass).Set(float64(s.Passed))
	r.lastRun.WithLabelValues(ResultFail).Set(float64(s.Failed))
	r.lastDuration.Set(s.Duration.Seconds())
	r.lastSuccess.Set(s.SuccessRate)
}

// Registry returns the registry the metrics are registered in.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
