package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexedDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kerkoapp",
		Name:      "indexed_documents",
		Help:      "Number of documents in the search index.",
	})

	lastSync = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kerkoapp",
		Name:      "last_sync_timestamp_seconds",
		Help:      "Time of the last successful Zotero sync.",
	})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kerkoapp",
		Name:      "sync_duration_seconds",
		Help:      "Duration of Zotero syncs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	indexRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kerkoapp",
		Name:      "index_refreshes_total",
		Help:      "Index rebuilds from the cache, by outcome.",
	}, []string{"outcome"})
)
