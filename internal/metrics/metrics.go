// Package metrics exposes the Prometheus instruments of the recorder and the
// transcription pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics of the application.
type Metrics struct {
	// Capture
	CaptureBlocks        prometheus.Counter
	CaptureBlocksDropped prometheus.Counter
	CaptureWriteErrors   prometheus.Counter
	InputVolume          prometheus.Gauge

	// Recorder
	RecordingsStarted *prometheus.CounterVec
	RecordingsStopped *prometheus.CounterVec
	RecordingFailures prometheus.Counter
	RecorderState     prometheus.Gauge
	SessionDuration   prometheus.Histogram

	// Conversion
	Conversions *prometheus.CounterVec

	// Transcription
	Transcriptions        *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	TranscriptionsActive  prometheus.Gauge
	ProbeAttempts         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates all metrics and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CaptureBlocks: f.NewCounter(prometheus.CounterOpts{
			Name: "recwhisper_capture_blocks_total",
			Help: "Total number of audio blocks delivered by the capture device",
		}),
		CaptureBlocksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "recwhisper_capture_blocks_dropped_total",
			Help: "Total number of audio blocks dropped because the delivery queue was full",
		}),
		CaptureWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "recwhisper_capture_write_errors_total",
			Help: "Total number of failed WAV block writes",
		}),
		InputVolume: f.NewGauge(prometheus.GaugeOpts{
			Name: "recwhisper_input_volume",
			Help: "RMS volume of the most recent capture block (0..1)",
		}),
		RecordingsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recwhisper_recordings_started_total",
			Help: "Total number of recording sessions started by trigger",
		}, []string{"trigger"}),
		RecordingsStopped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recwhisper_recordings_stopped_total",
			Help: "Total number of recording sessions stopped by reason",
		}, []string{"reason"}),
		RecordingFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "recwhisper_recording_failures_total",
			Help: "Total number of recording sessions that failed to start",
		}),
		RecorderState: f.NewGauge(prometheus.GaugeOpts{
			Name: "recwhisper_recorder_state",
			Help: "Current recorder state (0=idle, 1=monitoring, 2=recording)",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "recwhisper_session_duration_seconds",
			Help:    "Length of closed recording sessions",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		Conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recwhisper_conversions_total",
			Help: "Total number of audio conversions by tier",
		}, []string{"tier"}),
		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recwhisper_transcriptions_total",
			Help: "Total number of pipeline runs by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "recwhisper_transcription_duration_seconds",
			Help:    "Time spent uploading and waiting for the transcription server",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		TranscriptionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "recwhisper_transcriptions_active",
			Help: "Number of pipeline runs in flight",
		}),
		ProbeAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recwhisper_probe_attempts_total",
			Help: "Connection probe attempts by path and result",
		}, []string{"path", "result"}),
		gatherer: reg,
	}
}

// Discard returns metrics registered on a private registry. Used as the
// default by components constructed without explicit metrics.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the scrape handler for the registry the metrics live in.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
