package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spellingbee_uploads_total",
			Help: "Recording uploads by outcome",
		},
		[]string{"status"},
	)
	SubmissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spellingbee_word_submissions_total",
			Help: "SubmitWords calls that appended at least one word",
		},
	)
	PersistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spellingbee_persistence_failures_total",
			Help: "Store writes that failed and were left for the flusher",
		},
		[]string{"collection"},
	)
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spellingbee_events_dropped_total",
			Help: "Registry events dropped because a subscriber was not keeping up",
		},
	)
	WordsScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spellingbee_words_scored_total",
			Help: "Scored spelling attempts",
		},
		[]string{"result"},
	)
	WordPoints = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spellingbee_word_points",
			Help:    "Points awarded per scored word",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

func init() {
	prometheus.MustRegister(UploadsTotal)
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(PersistenceFailures)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(WordsScored)
	prometheus.MustRegister(WordPoints)
}

// ObserveScore records one scored word.
func ObserveScore(correct, timedOut bool, points int) {
	switch {
	case timedOut:
		WordsScored.WithLabelValues("timeout").Inc()
	case correct:
		WordsScored.WithLabelValues("correct").Inc()
	default:
		WordsScored.WithLabelValues("incorrect").Inc()
	}
	WordPoints.Observe(float64(points))
}
