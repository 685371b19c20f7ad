// metrics/metrics.go
package metrics

import (
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// maxOperationLabelLength caps the operation label so a caller building
// names from data cannot grow the registry without bound.
const maxOperationLabelLength = 64

// Recorder counts and times database operations on its own registry, so
// tests and repeated runs in one process never collide on the global one.
type Recorder struct {
	reg      *prometheus.Registry
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder builds a Recorder with the Go runtime and process collectors
// plus the operation counter and histogram.
//
// It panics, or logs fatally when logger is non-nil, if registration fails.
// That only happens on a programming error in the collector definitions.
func NewRecorder(logger *zap.Logger) *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mongocrud_operations_total",
				Help: "Database operations by name and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mongocrud_operation_duration_seconds",
				Help: "Duration of database operations.",
				// buckets in seconds
				Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 2, 10},
			},
			[]string{"operation"},
		),
	}

	r.mustRegister(logger, "Go collector", collectors.NewGoCollector())
	r.mustRegister(logger, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.mustRegister(logger, "operation counter", r.ops)
	r.mustRegister(logger, "operation histogram", r.duration)
	return r
}

func (r *Recorder) mustRegister(logger *zap.Logger, name string, c prometheus.Collector) {
	if err := r.reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return
		}
		if logger != nil {
			logger.Fatal("failed to register "+name, zap.Error(err))
		} else {
			panic("metrics: failed to register " + name + ": " + err.Error())
		}
	}
}

// Registry exposes the underlying registry, e.g. for gathering in tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Track runs fn, then counts it under op with an ok/error outcome and
// records how long it took. fn's error is returned unchanged.
//
// A nil Recorder just runs fn.
func (r *Recorder) Track(op string, fn func() error) error {
	if r == nil {
		return fn()
	}
	op = operationLabel(op)
	start := time.Now()
	err := fn()
	r.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.ops.WithLabelValues(op, outcome).Inc()
	return err
}

// WriteTextfile writes the current exposition to path atomically, in the
// format node_exporter's textfile collector reads.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func operationLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	if len(op) <= maxOperationLabelLength {
		return op
	}
	return truncateUTF8(op, maxOperationLabelLength-3) + "..."
}

// truncateUTF8 truncates s to at most maxBytes bytes without splitting
// multi-byte UTF-8 characters. If maxBytes <= 0, returns an empty string.
func truncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
