// Package metrics holds the Prometheus instruments of the voice bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "dex_voice_bridge"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionStates     *prometheus.CounterVec
	RealtimeEvents    *prometheus.CounterVec
	Utterances        *prometheus.CounterVec
	Turns             *prometheus.CounterVec
	FunctionCalls     *prometheus.CounterVec
	DroppedSpeech     prometheus.Counter
	UtteranceDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions between connecting and closed.",
		}),
		SessionStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
		RealtimeEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "realtime_events_total",
			Help:      "Realtime server events by kind.",
		}, []string{"kind"}),
		Utterances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "utterances_total",
			Help:      "Captured speaker utterances by outcome.",
		}, []string{"outcome"}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ai_turns_total",
			Help:      "Completed AI turns by outcome.",
		}, []string{"outcome"}),
		FunctionCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "function_calls_total",
			Help:      "Dispatched function calls by name and outcome.",
		}, []string{"name", "outcome"}),
		DroppedSpeech: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dropped_speech_total",
			Help:      "Speaking-start events dropped while the AI was speaking.",
		}),
		UtteranceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "utterance_audio_seconds",
			Help:      "Seconds of audio per forwarded utterance.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30},
		}),
		gatherer: reg,
	}
}

func (m *Metrics) SessionTransition(state string) {
	if m == nil {
		return
	}
	m.SessionStates.WithLabelValues(state).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) RealtimeEvent(kind string) {
	if m == nil {
		return
	}
	m.RealtimeEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) Utterance(outcome string, audio time.Duration) {
	if m == nil {
		return
	}
	m.Utterances.WithLabelValues(outcome).Inc()
	if audio > 0 {
		m.UtteranceDuration.Observe(audio.Seconds())
	}
}

func (m *Metrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) FunctionCall(name, outcome string) {
	if m == nil {
		return
	}
	m.FunctionCalls.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) SpeechDropped() {
	if m == nil {
		return
	}
	m.DroppedSpeech.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
