package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run phases ...
const (
	PhaseSetup = "setup"
	PhaseRun   = "run"
)

// Recorder collects per run metrics of one step invocation.
type Recorder struct {
	registry      *prometheus.Registry
	phaseDuration *prometheus.GaugeVec
	phaseAttempts *prometheus.GaugeVec
	runSuccess    *prometheus.GaugeVec
}

// NewRecorder ...
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ci_test_phase_duration_seconds",
			Help: "Wall clock duration of a test run phase",
		}, []string{"run", "phase"}),
		phaseAttempts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ci_test_phase_attempts",
			Help: "Number of attempts a test run phase needed",
		}, []string{"run", "phase"}),
		runSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ci_test_run_success",
			Help: "1 if the test run passed, 0 otherwise",
		}, []string{"run"}),
	}

	r.registry.MustRegister(r.phaseDuration, r.phaseAttempts, r.runSuccess)

	return r
}

// ObservePhase records how long a phase took and how many attempts it needed.
func (r *Recorder) ObservePhase(run, phase string, duration time.Duration, attempts int) {
	r.phaseDuration.WithLabelValues(run, phase).Set(duration.Seconds())
	r.phaseAttempts.WithLabelValues(run, phase).Set(float64(attempts))
}

// ObserveResult ...
func (r *Recorder) ObserveResult(run string, passed bool) {
	value := 0.0
	if passed {
		value = 1
	}
	r.runSuccess.WithLabelValues(run).Set(value)
}

// Gatherer ...
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
