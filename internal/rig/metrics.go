package rig

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for one avatar pipeline.
type Metrics struct {
	FramesAccepted prometheus.Counter
	FramesRejected *prometheus.CounterVec
	Ticks          prometheus.Counter
	TickDuration   prometheus.Histogram
	BonesUpdated   prometheus.Counter
	BonesSkipped   prometheus.Counter
	Calibrations   prometheus.Counter
	Receiving      prometheus.Gauge
}

// Rejection cause labels.
const (
	RejectMalformed = "malformed"
	RejectParse     = "parse"
)

// NewMetrics registers the avatar metrics on the given registerer. Pass a
// fresh registry per pipeline instance; tests use their own.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "avatar", Name: "frames_accepted_total",
			Help: "Pose frames accepted into the accumulation buffer.",
		}),
		FramesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avatar", Name: "frames_rejected_total",
			Help: "Pose frames dropped before ingestion, by cause.",
		}, []string{"cause"}),
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "avatar", Name: "ticks_total",
			Help: "Retargeting ticks executed.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "avatar", Name: "tick_duration_seconds",
			Help:    "Wall time of one retargeting tick.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 8),
		}),
		BonesUpdated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "avatar", Name: "bones_updated_total",
			Help: "Bone orientations written by the solver.",
		}),
		BonesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "avatar", Name: "bones_skipped_total",
			Help: "Bone updates skipped (missing bone or degenerate direction).",
		}),
		Calibrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "avatar", Name: "calibrations_total",
			Help: "Calibration passes completed.",
		}),
		Receiving: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "avatar", Name: "receiving",
			Help: "1 while the frame stream is live, 0 after watchdog timeout.",
		}),
	}
}
