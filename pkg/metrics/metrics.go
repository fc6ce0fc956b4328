// Package metrics exposes Prometheus collectors for enrollment,
// authentication and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceadmin",
		Name:      "frames_processed_total",
		Help:      "Total number of frames read from capture sources",
	}, []string{"operation"})

	FacesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceadmin",
		Name:      "faces_detected_total",
		Help:      "Total number of frames in which a face was detected",
	}, []string{"operation"})

	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceadmin",
		Name:      "enrollments_total",
		Help:      "Enrollment attempts by outcome code",
	}, []string{"code"})

	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceadmin",
		Name:      "auth_attempts_total",
		Help:      "Authentication attempts by outcome code",
	}, []string{"code"})

	MatchDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "faceadmin",
		Name:      "match_distance",
		Help:      "Distance of accepted matches",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceadmin",
		Name:      "inference_duration_seconds",
		Help:      "Duration of model inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	RegisteredAdmins = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceadmin",
		Name:      "registered_admins",
		Help:      "Number of enrolled admin identities",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceadmin",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
