// Package observability holds the service's Prometheus collectors. Init
// attaches them to a registry.
package observability

import (
	"errors"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	filterEncodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_encode_total",
			Help: "Filter encodings by output format and outcome.",
		},
		[]string{"format", "outcome"},
	)

	filterEncodeDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filter_encode_duration_seconds",
			Help:    "Time spent encoding a filter spec, cache lookups excluded.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
		},
		[]string{"format"},
	)

	filterPredicatesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_predicates_dropped_total",
			Help: "Attribute predicates left out of the output because they were incomplete.",
		},
		[]string{"format", "reason"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Encoded-filter cache lookups by outcome and tier.",
		},
		[]string{"outcome", "tier"},
	)

	cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"op"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encode_events_total",
			Help: "Encode events handed to Kafka, by result.",
		},
		[]string{"result"},
	)

	hotKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_hot_keys",
			Help: "Keys currently tracked by the hotness tracker.",
		},
	)

	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_admission_total",
			Help: "Redis admission decisions for freshly encoded output.",
		},
		[]string{"decision"},
	)

	purgeKeys = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_purged_keys_total",
			Help: "Cache keys removed by purge events.",
		},
	)

	purgeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_purge_duration_seconds",
			Help:    "Time to apply one purge event.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"result"},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Purge consumer failures by kind.",
		},
		[]string{"kind"},
	)

	purgeLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "purge_consumer_lag",
			Help: "Messages behind the high water mark per purge partition.",
		},
		[]string{"partition"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		filterEncodeTotal, filterEncodeDurationSeconds, filterPredicatesDropped,
		cacheResults, cacheOps, redisOpDuration, eventsPublished,
		hotKeys, admissions, purgeKeys, purgeDuration, kafkaConsumerErrors, purgeLag,
	}
}

var initMu sync.Mutex

// Init registers every collector on reg. Registering on the same registry
// twice is a no-op; disabled leaves the collectors detached.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	initMu.Lock()
	defer initMu.Unlock()
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// ObserveEncode records one encode call; err == nil counts as "ok".
func ObserveEncode(format string, err error, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	filterEncodeTotal.WithLabelValues(format, outcome).Inc()
	filterEncodeDurationSeconds.WithLabelValues(format).Observe(durationSeconds)
}

func IncPredicateDropped(format, reason string) {
	filterPredicatesDropped.WithLabelValues(format, reason).Inc()
}

func IncCacheHit(tier string) {
	cacheResults.WithLabelValues("hit", tier).Inc()
}

func IncCacheMiss() {
	cacheResults.WithLabelValues("miss", "none").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOps.WithLabelValues(op, result).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncEvent(result string) {
	eventsPublished.WithLabelValues(result).Inc()
}

func SetHotKeys(n int) {
	hotKeys.Set(float64(n))
}

// IncAdmission counts one admission decision for the redis tier.
func IncAdmission(admitted bool) {
	if admitted {
		admissions.WithLabelValues("admit").Inc()
		return
	}
	admissions.WithLabelValues("reject").Inc()
}

func ObservePurge(keys int, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	} else {
		purgeKeys.Add(float64(keys))
	}
	purgeDuration.WithLabelValues(result).Observe(durationSeconds)
}

func IncKafkaConsumerError(kind string) {
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func SetPurgeLag(partition int32, lag int64) {
	if lag < 0 {
		lag = 0
	}
	purgeLag.WithLabelValues(strconv.FormatInt(int64(partition), 10)).Set(float64(lag))
}
