// Package metrics exposes scheduling activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sky-flux/cardsched"
)

// Collector implements cardsched.Recorder.
type Collector struct {
	answers       *prometheus.CounterVec
	staleStates   prometheus.Counter
	memoryUpdates prometheus.Counter
	trainingRuns  *prometheus.CounterVec
	trainingTime  prometheus.Histogram
	trainingItems prometheus.Gauge
}

var _ cardsched.Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardsched_answers_total",
			Help: "Answers recorded, by rating and revlog kind.",
		}, []string{"rating", "kind"}),
		staleStates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardsched_stale_state_total",
			Help: "Answers rejected because the card changed underneath them.",
		}),
		memoryUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardsched_memory_state_updates_total",
			Help: "Cards whose memory state was recomputed.",
		}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardsched_training_runs_total",
			Help: "Parameter training runs, by outcome.",
		}, []string{"result"}),
		trainingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardsched_training_duration_seconds",
			Help:    "Time spent training parameters.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		trainingItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cardsched_training_items",
			Help: "Items used by the most recent training run.",
		}),
	}
	reg.MustRegister(
		c.answers,
		c.staleStates,
		c.memoryUpdates,
		c.trainingRuns,
		c.trainingTime,
		c.trainingItems,
	)
	return c
}

func (c *Collector) AnswerRecorded(rating cardsched.Rating, kind cardsched.RevlogKind) {
	c.answers.WithLabelValues(rating.String(), kind.String()).Inc()
}

func (c *Collector) StaleStateRejected() {
	c.staleStates.Inc()
}

func (c *Collector) MemoryStatesUpdated(cards int) {
	c.memoryUpdates.Add(float64(cards))
}

func (c *Collector) TrainingFinished(items int, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.trainingRuns.WithLabelValues(result).Inc()
	c.trainingTime.Observe(seconds)
	c.trainingItems.Set(float64(items))
}

// Handler serves the metrics registered with g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
