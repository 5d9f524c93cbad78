// Package metrics exposes Prometheus collectors for tap-leaflink sync runs.
//
// # Overview
//
// All collectors are registered on the default registry at package init
// and are labeled by stream. They are only scraped when the CLI is started
// with --metrics-addr; otherwise recording is a cheap in-memory update.
//
// # Basic Usage
//
//	metrics.PagesFetched.WithLabelValues("products").Inc()
//
//	timer := metrics.NewTimer("products")
//	resp, err := client.Get(ctx, url, nil)
//	if err != nil {
//	    timer.ObserveRequest(0)
//	    return err
//	}
//	timer.ObserveRequest(resp.StatusCode)
//
//	srv, errc := metrics.Serve(":9102")
//	defer srv.Close()
//	go func() { log.Println(<-errc) }()
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PagesFetched counts successfully decoded pages per stream
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaflink_pages_fetched_total",
			Help: "Total number of result pages fetched",
		},
		[]string{"stream"},
	)

	// RecordsEmitted counts records handed to the sink per stream
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaflink_records_emitted_total",
			Help: "Total number of records emitted",
		},
		[]string{"stream"},
	)

	// RequestDuration tracks page request latency by stream and status
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leaflink_request_duration_seconds",
			Help:    "Page request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"stream", "status"},
	)

	// StreamFailures counts failed stream syncs by error type
	StreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaflink_stream_failures_total",
			Help: "Total number of stream syncs that failed",
		},
		[]string{"stream", "type"},
	)

	// Watermark is the latest committed replication value per stream,
	// as a unix timestamp when the value is a time.
	Watermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leaflink_watermark_timestamp_seconds",
			Help: "Latest committed replication key value",
		},
		[]string{"stream"},
	)
)

// StatusLabel converts a response status into a label value; transport
// failures are reported as "error".
func StatusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}

// Timer measures a single request for a stream.
type Timer struct {
	start  time.Time
	stream string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(stream string) *Timer {
	return &Timer{
		start:  time.Now(),
		stream: stream,
	}
}

// Stop returns the elapsed duration since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveRequest records the elapsed time in RequestDuration and returns it.
func (t *Timer) ObserveRequest(status int) time.Duration {
	d := t.Stop()
	RequestDuration.WithLabelValues(t.stream, StatusLabel(status)).Observe(d.Seconds())
	return d
}

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a background /metrics endpoint on addr. Listen errors are
// reported through errc, which is closed when the server stops.
func Serve(addr string) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	return srv, errc
}
