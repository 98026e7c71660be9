package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "photos_processed_total",
		Help:      "Total number of photo processing runs by outcome",
	}, []string{"outcome"})

	SelfiesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "selfies_processed_total",
		Help:      "Total number of selfie encodings by outcome",
	}, []string{"outcome"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected in uploaded photos",
	})

	MatchesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "matches_recorded_total",
		Help:      "Total number of face to client matches recorded",
	}, []string{"source"})

	EncoderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pm",
		Name:      "encoder_duration_seconds",
		Help:      "Duration of face encoder stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	PurchasesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "purchases_settled_total",
		Help:      "Total number of purchases moved to paid",
	})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "downloads_total",
		Help:      "Download attempts by result",
	}, []string{"result"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "payment_webhook_events_total",
		Help:      "Payment provider events received",
	}, []string{"event"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pm",
		Name:      "queue_depth",
		Help:      "Number of tasks waiting in the local queue",
	})

	TaskRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "task_retries_total",
		Help:      "Task redeliveries by task type",
	}, []string{"type"})

	TaskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "task_failures_total",
		Help:      "Tasks that failed permanently or exhausted retries",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pm",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pm",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
