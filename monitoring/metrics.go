package monitoring

import (
	"context"
	"time"

	"checkin-system/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_attempts_total",
			Help: "Check-in attempts by method and result code",
		},
		[]string{"method", "result"},
	)

	queueAdmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_queue_admissions_total",
			Help: "Playback queue admission attempts by result",
		},
		[]string{"result"},
	)

	queueTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_queue_transitions_total",
			Help: "Playback queue status transitions by target status",
		},
		[]string{"status"},
	)

	queueWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkin_queue_waiting",
			Help: "Entries currently WAITING in the playback queue",
		},
	)

	recognitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkin_recognition_duration_seconds",
			Help:    "Latency of face recognition calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"result"},
	)
)

// WaitingCounter is the slice of the queue store the collector needs.
type WaitingCounter interface {
	CountWaiting(ctx context.Context) (int, error)
}

type Monitor struct {
	queue WaitingCounter
}

func NewMonitor(queue WaitingCounter) *Monitor {
	return &Monitor{queue: queue}
}

// Run refreshes the WAITING gauge every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collectQueueMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectQueueMetrics(ctx)
		}
	}
}

func (m *Monitor) collectQueueMetrics(ctx context.Context) {
	if m == nil || m.queue == nil {
		return
	}
	n, err := m.queue.CountWaiting(ctx)
	if err != nil {
		log := logging.With("monitoring")
		log.Warn().Err(err).Msg("collect queue length")
		return
	}
	queueWaiting.Set(float64(n))
}

// The Track* methods are nil-safe so services can run without a monitor in tests.

func (m *Monitor) TrackCheckin(method, result string) {
	if m == nil {
		return
	}
	checkinsTotal.WithLabelValues(method, result).Inc()
}

func (m *Monitor) TrackAdmission(result string) {
	if m == nil {
		return
	}
	queueAdmissions.WithLabelValues(result).Inc()
}

func (m *Monitor) TrackTransition(status string) {
	if m == nil {
		return
	}
	queueTransitions.WithLabelValues(status).Inc()
}

func (m *Monitor) SetWaiting(n int) {
	if m == nil {
		return
	}
	queueWaiting.Set(float64(n))
}

func (m *Monitor) TrackRecognition(result string, d time.Duration) {
	if m == nil {
		return
	}
	recognitionDuration.WithLabelValues(result).Observe(d.Seconds())
}
