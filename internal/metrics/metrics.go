package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/session"
	"github.com/sjawhar/callwatch/internal/transcript"
)

// Metrics records controller activity. It is wired in as both a session
// presenter and the router's event observer.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal      *prometheus.CounterVec
	EventErrors      *prometheus.CounterVec
	EventLatency     *prometheus.HistogramVec
	CallsStarted     *prometheus.CounterVec
	CallsEnded       *prometheus.CounterVec
	CallDuration     prometheus.Histogram
	CallState        *prometheus.GaugeVec
	TranscriptLines  *prometheus.CounterVec
	ReportsReceived  prometheus.Counter
	ReportScore      prometheus.Histogram
	ReportsUnscored  prometheus.Counter
	DeviceReady      prometheus.Gauge
	ChannelConnected prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callwatch_events_total",
				Help: "Controller events applied, by kind and source",
			},
			[]string{"kind", "source"},
		),
		EventErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callwatch_event_errors_total",
				Help: "Controller events refused, by kind",
			},
			[]string{"kind"},
		),
		EventLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callwatch_event_apply_seconds",
				Help:    "Time to apply one controller event including side effects",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"kind"},
		),
		CallsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callwatch_calls_started_total",
				Help: "Calls started, by announcing source",
			},
			[]string{"source"},
		),
		CallsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callwatch_calls_ended_total",
				Help: "Calls ended, by reason",
			},
			[]string{"reason"},
		),
		CallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "callwatch_call_duration_seconds",
			Help:    "Duration of finished calls",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		CallState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "callwatch_call_state",
				Help: "1 for the controller's current state, 0 otherwise",
			},
			[]string{"state"},
		),
		TranscriptLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callwatch_transcript_lines_total",
				Help: "Transcript lines received, by role",
			},
			[]string{"role"},
		),
		ReportsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callwatch_reports_received_total",
			Help: "Quality reports received",
		}),
		ReportScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "callwatch_report_overall_score",
			Help:    "Overall score of received reports on the 0-10 scale",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		ReportsUnscored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callwatch_reports_unscored_total",
			Help: "Reports with no recognizable metrics",
		}),
		DeviceReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callwatch_device_ready",
			Help: "1 once the telephony device has registered",
		}),
		ChannelConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callwatch_notification_channel_connected",
			Help: "1 while the notification channel is connected",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsTotal,
		m.EventErrors,
		m.EventLatency,
		m.CallsStarted,
		m.CallsEnded,
		m.CallDuration,
		m.CallState,
		m.TranscriptLines,
		m.ReportsReceived,
		m.ReportScore,
		m.ReportsUnscored,
		m.DeviceReady,
		m.ChannelConnected,
	)
	m.setState(session.StateIdle)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEvent(kind session.Kind, source session.Source, err error, took time.Duration) {
	m.EventsTotal.WithLabelValues(string(kind), string(source)).Inc()
	m.EventLatency.WithLabelValues(string(kind)).Observe(took.Seconds())
	if err != nil {
		m.EventErrors.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) setState(state session.State) {
	for _, st := range session.States() {
		v := 0.0
		if st == state {
			v = 1
		}
		m.CallState.WithLabelValues(string(st)).Set(v)
	}
}

func (m *Metrics) BroadcastCallStarted(call session.CallSession) {
	m.CallsStarted.WithLabelValues(string(call.Source)).Inc()
}

func (m *Metrics) BroadcastCallState(state session.State, _ session.Capabilities) {
	m.setState(state)
}

func (m *Metrics) BroadcastTranscriptLine(_ string, line transcript.Line) {
	m.TranscriptLines.WithLabelValues(string(line.Role)).Inc()
}

func (m *Metrics) BroadcastReportReady(_ string, r *report.QualityReport) {
	m.ReportsReceived.Inc()
	if score, ok := r.OverallScore(); ok {
		m.ReportScore.Observe(score)
		return
	}
	m.ReportsUnscored.Inc()
}

func (m *Metrics) BroadcastCallEnded(_ string, reason string, duration time.Duration) {
	m.CallsEnded.WithLabelValues(reason).Inc()
	m.CallDuration.Observe(duration.Seconds())
}

func (m *Metrics) BroadcastDeviceStatus(ready bool) {
	m.DeviceReady.Set(boolValue(ready))
}

func (m *Metrics) BroadcastChannelStatus(connected bool, _ string) {
	m.ChannelConnected.Set(boolValue(connected))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
