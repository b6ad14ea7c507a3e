// Package metrics constructs the service's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a counter of HTTP requests rejected by the rate limiter.
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewPushFailuresTotal returns a counter of push deliveries the provider rejected or never answered.
func NewPushFailuresTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_failures_total",
		Help: "Total number of failed push notification deliveries",
	})
}

// NewAssignmentsTotal returns accept/decline outcomes by label.
func NewAssignmentsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignments_total",
		Help: "Delivery request decisions by outcome",
	}, []string{"outcome"})
}

// NewTrackingUpdatesTotal returns processed position updates by outcome.
func NewTrackingUpdatesTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_updates_total",
		Help: "Hauler position updates by outcome",
	}, []string{"outcome"})
}

// Register registers collectors on reg, tolerating ones already registered.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
