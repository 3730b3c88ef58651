package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace"

type Metrics struct {
	Relay    RelayMetrics
	DocStore DocStoreMetrics
	Kafka    KafkaMetrics
	API      APIMetrics
	Repo     RepoMetrics
	Go       GoMetrics
}

type RelayMetrics struct {
	// Dispatcher
	DispatchRunsTotal    *prometheus.CounterVec
	DispatchedTotal      prometheus.Counter
	DispatchSkippedTotal *prometheus.CounterVec

	// Executor
	ProcessedTotal  *prometheus.CounterVec
	ProcessDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	// Sweeper
	ReclaimedTotal prometheus.Counter
}

type DocStoreMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type KafkaMetrics struct {
	// Producer
	ProducerAttemptLatencySeconds *prometheus.HistogramVec
	ProducerOperationsTotal       *prometheus.CounterVec
	ProducerSuccessAttempts       *prometheus.HistogramVec

	// Consumer
	ConsumerMessagesTotal   *prometheus.CounterVec
	ConsumerProcessDuration *prometheus.HistogramVec
	ConsumerRebalancesTotal *prometheus.CounterVec
	ConsumerInFlight        *prometheus.GaugeVec
}

type APIMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

type RepoMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	DurationSeconds *prometheus.HistogramVec
	InFlight        *prometheus.GaugeVec
}

type GoMetrics struct {
	InternalGoroutines *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Relay: RelayMetrics{
			DispatchRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "dispatch_runs_total",
				Help:      "Dispatcher scans by result.",
			}, []string{"result"}), // ok|empty|error

			DispatchedTotal: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "dispatched_total",
				Help:      "Ledger events claimed and handed to the worker pool.",
			}),

			DispatchSkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "dispatch_skipped_total",
				Help:      "Eligible ledger events not dispatched in a scan, by reason.",
			}, []string{"reason"}), // pool_full|already_claimed|claim_error

			ProcessedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "processed_total",
				Help:      "Executor outcomes by event type.",
			}, []string{"event_type", "result"}), // completed|retry|failed|storage_error

			ProcessDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "process_duration_seconds",
				Help:      "External write duration per ledger event.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"event_type"}),

			InFlight: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "inflight_events",
				Help:      "Ledger events reserved in the worker pool.",
			}),

			ReclaimedTotal: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "reclaimed_total",
				Help:      "Stale processing rows returned to the queue.",
			}),
		},

		DocStore: DocStoreMetrics{
			RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "docstore",
				Name:      "requests_total",
				Help:      "Document store writes by driver, collection and result.",
			}, []string{"driver", "collection", "result"}), // ok|error|permanent

			RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "docstore",
				Name:      "request_duration_seconds",
				Help:      "Document store write latency.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}, []string{"driver", "collection"}),
		},

		Kafka: KafkaMetrics{
			ProducerAttemptLatencySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "producer_attempt_latency_seconds",
				Help:      "Latency per single produce attempt.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"topic", "result"}), // ok|error

			ProducerOperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "producer_operations_total",
				Help:      "Total produce operations (one call) by result.",
			}, []string{"topic", "result"}), // success|exhausted|permanent|canceled

			ProducerSuccessAttempts: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "producer_success_attempts",
				Help:      "Attempt number on which produce operation succeeded.",
				Buckets:   []float64{1, 2, 3, 4, 5},
			}, []string{"topic"}),

			ConsumerMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "consumer_messages_total",
				Help:      "Total consumed Kafka messages by topic and result.",
			}, []string{"topic", "result"}), // enqueued|invalid|error

			ConsumerProcessDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "consumer_process_duration_seconds",
				Help:      "Kafka message processing duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"topic"}),

			ConsumerRebalancesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "consumer_rebalances_total",
				Help:      "Consumer rebalance lifecycle events.",
			}, []string{"event"}),

			ConsumerInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "consumer_inflight_messages",
				Help:      "Messages currently being processed.",
			}, []string{"topic"}),
		},

		API: APIMetrics{
			HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, path and status.",
			}, []string{"method", "path", "status"}),

			HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"method", "path", "status"}),
		},
		Repo: RepoMetrics{
			RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "requests_total",
				Help:      "Total DB requests by operation, name, result and error kind.",
			}, []string{"op", "name", "result", "error_kind"}),

			DurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "request_duration_seconds",
				Help:      "DB request duration in seconds.",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"op", "name", "result"}),

			InFlight: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "inflight",
				Help:      "Number of in-flight DB requests.",
			}, []string{"op", "name"}),
		},
		Go: GoMetrics{
			InternalGoroutines: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "go",
				Name:      "internal_goroutines",
				Help:      "Number of running internal goroutines by name.",
			}, []string{"name"}),
		},
	}
}
