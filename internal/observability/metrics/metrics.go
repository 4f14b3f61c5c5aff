// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_voice_tutor"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsFailed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Capture metrics
	CaptureFramesSent    prometheus.Counter
	CaptureFramesQueued  prometheus.Counter
	CaptureFramesDropped *prometheus.CounterVec

	// Playback metrics
	PlaybackUnits        prometheus.Counter
	PlaybackAudioSeconds prometheus.Counter
	PlaybackDecodeErrors prometheus.Counter
	PlaybackInterrupts   prometheus.Counter

	// Transcript metrics
	TranscriptFragments *prometheus.CounterVec
	TranscriptFinals    *prometheus.CounterVec
	TurnsCompleted      prometheus.Counter

	// Live channel metrics
	LiveConnectLatency *prometheus.HistogramVec
	LiveMessages       *prometheus.CounterVec
	LiveErrors         *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCRequests *prometheus.CounterVec
	GRPCLatency  *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of tutor sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active tutor sessions",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended in error",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of tutor sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		// Capture metrics
		CaptureFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_frames_sent_total",
			Help:      "Total audio frames handed to the live channel",
		}),
		CaptureFramesQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_frames_queued_total",
			Help:      "Total audio frames buffered before the channel handle was available",
		}),
		CaptureFramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_frames_dropped_total",
			Help:      "Total audio frames dropped",
		}, []string{"reason"}),

		// Playback metrics
		PlaybackUnits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_units_total",
			Help:      "Total audio units scheduled for playback",
		}),
		PlaybackAudioSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_audio_seconds_total",
			Help:      "Total seconds of synthesized speech scheduled",
		}),
		PlaybackDecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_decode_errors_total",
			Help:      "Total inbound audio chunks dropped because they could not be decoded",
		}),
		PlaybackInterrupts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_interrupts_total",
			Help:      "Total times playback was cut off by a user barge-in",
		}),

		// Transcript metrics
		TranscriptFragments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_fragments_total",
			Help:      "Total transcription fragments received",
		}, []string{"speaker"}),
		TranscriptFinals: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_finals_total",
			Help:      "Total transcript entries finalized",
		}, []string{"speaker"}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_completed_total",
			Help:      "Total conversational turns completed",
		}),

		// Live channel metrics
		LiveConnectLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "live_connect_latency_seconds",
			Help:      "Time to open the live channel in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"transport"}),
		LiveMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_messages_total",
			Help:      "Total server messages received on the live channel",
		}, []string{"transport", "type"}),
		LiveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_errors_total",
			Help:      "Total live channel errors",
		}, []string{"transport", "error_type"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// gRPC metrics
		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC calls handled",
		}, []string{"method", "code"}),
		GRPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_latency_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending. reason is empty for a clean end.
func (m *Metrics) RecordSessionEnd(reason string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if reason != "" {
		m.SessionsFailed.WithLabelValues(reason).Inc()
	}
}

// RecordFrameSent records an audio frame handed to the channel.
func (m *Metrics) RecordFrameSent() {
	m.CaptureFramesSent.Inc()
}

// RecordFrameQueued records an audio frame buffered ahead of the handle.
func (m *Metrics) RecordFrameQueued() {
	m.CaptureFramesQueued.Inc()
}

// RecordFrameDropped records a dropped audio frame.
func (m *Metrics) RecordFrameDropped(reason string) {
	m.CaptureFramesDropped.WithLabelValues(reason).Inc()
}

// RecordPlayback records a unit scheduled for playback.
func (m *Metrics) RecordPlayback(seconds float64) {
	m.PlaybackUnits.Inc()
	m.PlaybackAudioSeconds.Add(seconds)
}

// RecordDecodeError records an undecodable inbound audio chunk.
func (m *Metrics) RecordDecodeError() {
	m.PlaybackDecodeErrors.Inc()
}

// RecordInterrupt records playback cut off by the user.
func (m *Metrics) RecordInterrupt() {
	m.PlaybackInterrupts.Inc()
}

// RecordFragment records a transcription fragment.
func (m *Metrics) RecordFragment(speaker string) {
	m.TranscriptFragments.WithLabelValues(speaker).Inc()
}

// RecordFinal records a finalized transcript entry.
func (m *Metrics) RecordFinal(speaker string) {
	m.TranscriptFinals.WithLabelValues(speaker).Inc()
}

// RecordTurnComplete records a completed turn.
func (m *Metrics) RecordTurnComplete() {
	m.TurnsCompleted.Inc()
}

// RecordLiveConnect records the time taken to open the channel.
func (m *Metrics) RecordLiveConnect(transport string, latencySeconds float64) {
	m.LiveConnectLatency.WithLabelValues(transport).Observe(latencySeconds)
}

// RecordLiveMessage records an inbound server message.
func (m *Metrics) RecordLiveMessage(transport, msgType string) {
	m.LiveMessages.WithLabelValues(transport, msgType).Inc()
}

// RecordLiveError records a live channel error.
func (m *Metrics) RecordLiveError(transport, errorType string) {
	m.LiveErrors.WithLabelValues(transport, errorType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPC records a handled gRPC call.
func (m *Metrics) RecordGRPC(method, code string, latencySeconds float64) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(latencySeconds)
}
