// Package metrics exposes Prometheus counters for the harvesting pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks the number of HTTP GETs dispatched by fetchers.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// RequestErrorsTotal tracks requests that failed with a transport error
	// or a non-200 status.
	RequestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_request_errors_total",
		Help: "The total number of failed HTTP requests.",
	})
	// BytesFetched tracks the cumulative size of successful response bodies.
	BytesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetched_bytes_total",
		Help: "The total number of body bytes fetched.",
	})
	// ItemsSucceeded counts items whose status record reported success.
	ItemsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_items_succeeded_total",
		Help: "The total number of harvested items that succeeded.",
	})
	// ItemsFailed counts items whose status record reported failure,
	// including records synthesized by the completion deadline.
	ItemsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_items_failed_total",
		Help: "The total number of harvested items that failed.",
	})
)
