package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PlaybackMetrics tracks resolution outcomes, ledger admissions and cascades.
type PlaybackMetrics struct {
	resolutions     *prometheus.CounterVec
	admissions      *prometheus.CounterVec
	cascadeOutcome  *prometheus.CounterVec
	cascadeDuration prometheus.Histogram
}

// NewPlaybackMetrics registers the playback metrics on the provided registerer.
func NewPlaybackMetrics(reg prometheus.Registerer) *PlaybackMetrics {
	if reg == nil {
		return &PlaybackMetrics{}
	}
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_playback_resolutions_total",
		Help: "Playback resolutions by outcome code and entitlement basis.",
	}, []string{"outcome", "basis"})
	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_device_admissions_total",
		Help: "Device session admissions by ledger backend and result.",
	}, []string{"backend", "result"})
	cascadeOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_cascade_runs_total",
		Help: "Series tier cascade runs by outcome.",
	}, []string{"outcome"})
	cascadeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "playgate_cascade_duration_seconds",
		Help:    "Duration of series tier cascades in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(resolutions, admissions, cascadeOutcome, cascadeDuration)
	return &PlaybackMetrics{
		resolutions:     resolutions,
		admissions:      admissions,
		cascadeOutcome:  cascadeOutcome,
		cascadeDuration: cascadeDuration,
	}
}

// IncResolution counts one playback resolution.
func (m *PlaybackMetrics) IncResolution(outcome, basis string) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(normalizeLabel(outcome), normalizeLabel(basis)).Inc()
}

// IncAdmission counts one ledger admission attempt.
func (m *PlaybackMetrics) IncAdmission(backend, result string) {
	if m == nil || m.admissions == nil {
		return
	}
	m.admissions.WithLabelValues(normalizeLabel(backend), normalizeLabel(result)).Inc()
}

// ObserveCascade records a cascade run.
func (m *PlaybackMetrics) ObserveCascade(outcome string, duration time.Duration) {
	if m == nil || m.cascadeOutcome == nil {
		return
	}
	m.cascadeOutcome.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.cascadeDuration.Observe(duration.Seconds())
}
