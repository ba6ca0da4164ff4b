package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesDecoded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "canprobe",
			Subsystem: "pipeline",
			Name:      "frames_decoded_total",
			Help:      "Complete CAN frames decoded from the serial stream.",
		},
	)
	framingErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "canprobe",
			Subsystem: "pipeline",
			Name:      "framing_errors_total",
			Help:      "Malformed or truncated wire frames dropped.",
		},
	)
	bytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "canprobe",
			Subsystem: "pipeline",
			Name:      "bytes_read_total",
			Help:      "Raw bytes pulled from the transport.",
		},
	)
	readErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "canprobe",
			Subsystem: "pipeline",
			Name:      "read_errors_total",
			Help:      "Transport read errors (retried, never fatal).",
		},
	)
	queueDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "canprobe",
			Subsystem: "pipeline",
			Name:      "queue_dropped_total",
			Help:      "Undelivered records discarded on queue overflow.",
		},
	)
	bufferBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "canprobe",
			Subsystem: "pipeline",
			Name:      "buffer_bytes",
			Help:      "Decoder accumulator occupancy in bytes.",
		},
	)
	sdoRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canprobe",
			Subsystem: "sdo",
			Name:      "requests_total",
			Help:      "SDO requests by direction and terminal outcome.",
		},
		[]string{"direction", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesDecoded, framingErrors, bytesRead, readErrors,
			queueDropped, bufferBytes, sdoRequests,
		)
	})
}

func RecordFramesDecoded(n uint64) {
	RegisterMetrics()
	framesDecoded.Add(float64(n))
}

func RecordFramingErrors(n uint64) {
	RegisterMetrics()
	framingErrors.Add(float64(n))
}

func RecordBytesRead(n int) {
	RegisterMetrics()
	bytesRead.Add(float64(n))
}

func RecordReadError() {
	RegisterMetrics()
	readErrors.Inc()
}

func RecordQueueDropped(n int) {
	RegisterMetrics()
	queueDropped.Add(float64(n))
}

func SetBufferBytes(n int) {
	RegisterMetrics()
	bufferBytes.Set(float64(n))
}

func RecordSDORequest(direction, outcome string) {
	RegisterMetrics()
	sdoRequests.WithLabelValues(direction, outcome).Inc()
}
