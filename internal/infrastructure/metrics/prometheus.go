// Package metrics provides Prometheus-based metrics recording for processing runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder записывает метрики прогонов моделей и событий диалога
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	eventsTotal *prometheus.CounterVec
}

// NewRecorder регистрирует метрики в reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapsense_processing_runs_total",
				Help: "Total number of processing runs by task and status",
			},
			[]string{"task", "status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapsense_processing_duration_seconds",
				Help:    "Duration of processing runs in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"task"},
		),
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapsense_events_total",
				Help: "Total number of conversation events by kind",
			},
			[]string{"event"},
		),
	}
}

// ObserveRun записывает завершённый прогон. status: "success" или вид сбоя.
func (r *Recorder) ObserveRun(task, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(task, status).Inc()
	r.runDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// IncEvent увеличивает счётчик события диалога
func (r *Recorder) IncEvent(event string) {
	if r == nil {
		return
	}
	r.eventsTotal.WithLabelValues(event).Inc()
}
