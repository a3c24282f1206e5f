package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CompareRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simmatch_compare_requests_total",
		Help: "Total number of comparison requests by outcome",
	}, []string{"outcome"})

	CompareDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simmatch_compare_duration_seconds",
		Help:    "Time taken to read, embed and score both uploads",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	PairsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simmatch_pairs_scored_total",
		Help: "Number of sentence pairs scored",
	})

	MatchesFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simmatch_matches_total",
		Help: "Number of pairs at or above the threshold",
	})

	StoredResults = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simmatch_results_stored",
		Help: "Results currently available for download",
	})
)
