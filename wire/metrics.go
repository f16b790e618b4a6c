package wire

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// framesEncoded counts frames written, by channel.
	framesEncoded = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "wire_frames_encoded",
		Help: "The total number of frames encoded",
	}, []string{"channel"})

	// framesDecoded counts frames successfully parsed, by channel.
	framesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "wire_frames_decoded",
		Help: "The total number of frames decoded",
	}, []string{"channel"})

	// frameErrors counts rejected frames, by channel and reason.
	frameErrors = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "wire_frame_errors",
		Help: "The total number of frames rejected as malformed",
	}, []string{"channel", "reason"})

	// frameBytes observes frame sizes, by channel and direction.
	frameBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "wire_frame_bytes",
		Help:    "The size of frames in bytes",
		Buckets: prometheus.ExponentialBuckets(16, 4, 8), //nolint:mnd
	}, []string{"channel", "direction"})
)
