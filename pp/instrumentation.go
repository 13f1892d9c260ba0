package pp

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// ResultSuccess for success result label
	ResultSuccess = "success"
	// ResultErrored for errored result label
	ResultErrored = "errored"
)

// Instrumentation holds the Prometheus collectors of one orchestrator. A nil
// *Instrumentation records nothing.
type Instrumentation struct {
	fitDurations *prometheus.HistogramVec
	fitCounter   *prometheus.CounterVec
	fitTimeouts  *prometheus.CounterVec
	scores       *prometheus.GaugeVec
	evalFailures prometheus.Counter
}

// NewInstrumentation creates the collectors and registers them with reg.
// A nil reg returns a nil *Instrumentation.
func NewInstrumentation(reg prometheus.Registerer) (*Instrumentation, error) {
	if reg == nil {
		return nil, nil
	}
	in := &Instrumentation{
		fitDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ppgrid",
				Subsystem: "train",
				Name:      "fit_durations",

				Help: "Duration in seconds of a single model fit, labelled by family and result.",

				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"family", "result"},
		),
		fitCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ppgrid",
				Subsystem: "train",
				Name:      "fits",

				Help: "Number of (variant, family, label) fits, labelled by variant, family and result.",
			},
			[]string{"variant", "family", "result"},
		),
		fitTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ppgrid",
				Subsystem: "train",
				Name:      "timeouts",

				Help: "Number of fits abandoned after the fit timeout, labelled by family.",
			},
			[]string{"family"},
		),
		scores: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ppgrid",
				Subsystem: "evaluate",
				Name:      "score",

				Help: "Last evaluation score, labelled by label and composite id.",
			},
			[]string{"label", "composite_id"},
		),
		evalFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ppgrid",
				Subsystem: "evaluate",
				Name:      "failures",

				Help: "Number of registry entries that could not be evaluated.",
			},
		),
	}
	for _, c := range []prometheus.Collector{in.fitDurations, in.fitCounter, in.fitTimeouts, in.scores, in.evalFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// fitTimer starts timing a fit. The returned func records the duration
// and the outcome.
func (in *Instrumentation) fitTimer(variant, family string) func(err error, timedOut bool) {
	if in == nil {
		return func(error, bool) {}
	}
	var result string
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		in.fitDurations.WithLabelValues(family, result).Observe(v)
	}))
	return func(err error, timedOut bool) {
		result = ResultSuccess
		if err != nil {
			result = ResultErrored
		}
		timer.ObserveDuration()
		in.fitCounter.WithLabelValues(variant, family, result).Inc()
		// Forcing the timeout counter to 0 if it has not been initialized
		in.fitTimeouts.WithLabelValues(family)
		if timedOut {
			in.fitTimeouts.WithLabelValues(family).Inc()
		}
	}
}

func (in *Instrumentation) observeScore(category, id string, score float64) {
	if in == nil {
		return
	}
	in.scores.WithLabelValues(category, id).Set(score)
}

func (in *Instrumentation) evaluationFailed() {
	if in == nil {
		return
	}
	in.evalFailures.Inc()
}
