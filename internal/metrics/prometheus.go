package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. Each instance owns its registry so
// tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	// Consultation metrics
	ActiveConsultations  prometheus.Gauge
	ConsultationsStarted *prometheus.CounterVec
	ConsultationsStopped *prometheus.CounterVec
	ConsultationDuration prometheus.Histogram

	// Live stream metrics
	AudioFramesIn    *prometheus.CounterVec
	AudioFramesOut   prometheus.Counter
	AudioDecodeErrs  prometheus.Counter
	MessagesDropped  prometheus.Counter
	MessagesSent     *prometheus.CounterVec
	ReportsPublished *prometheus.CounterVec

	// Support chat metrics
	SupportRequests prometheus.Counter
	SupportFailures prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ActiveConsultations: f.NewGauge(prometheus.GaugeOpts{
			Name: "suma_active_consultations",
			Help: "Current number of live consultations",
		}),
		ConsultationsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "suma_consultations_started_total",
			Help: "Total number of consultations started",
		}, []string{"role"}),
		ConsultationsStopped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "suma_consultations_stopped_total",
			Help: "Total number of consultations stopped",
		}, []string{"reason"}),
		ConsultationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "suma_consultation_duration_seconds",
			Help:    "Duration of consultations in seconds",
			Buckets: prometheus.ExponentialBuckets(15, 2, 9), // 15s to ~1 hour
		}),
		AudioFramesIn: f.NewCounterVec(prometheus.CounterOpts{
			Name: "suma_audio_frames_in_total",
			Help: "Total number of audio frames received from clients",
		}, []string{"encoding"}),
		AudioFramesOut: f.NewCounter(prometheus.CounterOpts{
			Name: "suma_audio_frames_out_total",
			Help: "Total number of audio frames sent to clients",
		}),
		AudioDecodeErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "suma_audio_decode_errors_total",
			Help: "Total number of client audio frames that failed to decode",
		}),
		MessagesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "suma_messages_dropped_total",
			Help: "Total number of messages dropped because no handler was registered",
		}),
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "suma_messages_total",
			Help: "Total number of transcript messages by sender",
		}, []string{"sender"}),
		ReportsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "suma_reports_published_total",
			Help: "Total number of consultation reports published by target and result",
		}, []string{"target", "result"}),
		SupportRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "suma_support_requests_total",
			Help: "Total number of support chat messages",
		}),
		SupportFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "suma_support_failures_total",
			Help: "Total number of support chat messages the model failed to answer",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
