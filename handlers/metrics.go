package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCountMetric = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echo_requests_total",
			Help: "Number of requests answered by the echo handler",
		},
		[]string{
			"method",
			"status",
		},
	)

	requestDurationSecondsMetric = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "echo_request_duration_seconds",
			Help: "Histogram of response durations by the echo handler",
			Buckets: prometheus.ExponentialBuckets(
				0.001, 4, 7, // This buckets [...0.001  0.004  0.016  0.064  0.256  1.024  4.096...]
			),
		},
		[]string{
			"method",
		},
	)

	requestSizeBytesMetric = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "echo_request_size_bytes",
			Help: "Histogram of request body sizes received by the echo handler",
			Buckets: prometheus.ExponentialBuckets(
				64, 4, 8, // This buckets [...64  256  1Ki  4Ki  16Ki  64Ki  256Ki  1Mi...]
			),
		},
	)

	responseSizeBytesMetric = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "echo_response_size_bytes",
			Help: "Histogram of response body sizes written by the echo handler",
			Buckets: prometheus.ExponentialBuckets(
				64, 4, 8, // This buckets [...64  256  1Ki  4Ki  16Ki  64Ki  256Ki  1Mi...]
			),
		},
	)

	requestsInFlightMetric = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "echo_requests_in_flight",
			Help: "Number of requests currently being answered",
		},
	)

	handlerPanicCountMetric = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "echo_handler_panic_total",
			Help: "Number of panics recovered while answering requests",
		},
	)
)

// RegisterMetrics registers the handler metrics with r. To use the default
// (global) metrics registry, pass prometheus.DefaultRegisterer.
func RegisterMetrics(r prometheus.Registerer) {
	r.MustRegister(
		requestCountMetric,
		requestDurationSecondsMetric,
		requestSizeBytesMetric,
		responseSizeBytesMetric,
		requestsInFlightMetric,
		handlerPanicCountMetric,
	)
}

// Label values must stay bounded however clients behave. Methods outside the
// registered verb set collapse into "other", status codes are reduced to
// their class, and the request path never becomes a label at all.
var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodConnect: true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

func methodLabel(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// statusRecorder captures the status code and the number of body bytes
// written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status       int
	bytesWritten int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (n int, err error) {
	n, err = rec.ResponseWriter.Write(b)
	rec.bytesWritten += n
	return
}

// Measure wraps a handler so that every completed request is counted and
// timed. Recording is a handful of atomic updates per request, so concurrent
// requests never lose counts and never wait on each other.
func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestsInFlightMetric.Inc()
		defer requestsInFlightMetric.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, req)
		duration := time.Since(start)

		method := methodLabel(req.Method)
		requestCountMetric.With(prometheus.Labels{
			"method": method,
			"status": statusClass(rec.status),
		}).Inc()
		requestDurationSecondsMetric.With(prometheus.Labels{
			"method": method,
		}).Observe(duration.Seconds())
		responseSizeBytesMetric.Observe(float64(rec.bytesWritten))
	})
}
