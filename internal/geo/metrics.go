package geo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GeocodeRequestsTotal tracks calls to the external geocoder
	GeocodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_requests_total",
			Help: "Total number of external geocoding requests",
		},
		[]string{"provider", "result"}, // ok, not_found, error
	)

	// CentroidCacheLookupsTotal tracks centroid cache lookups
	CentroidCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "centroid_cache_lookups_total",
			Help: "Total number of country centroid cache lookups",
		},
		[]string{"result"}, // hit, negative_hit, store_hit, miss
	)

	// GeocodeLatency tracks external geocoder latency
	GeocodeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geocode_latency_seconds",
			Help:    "External geocoding latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)
