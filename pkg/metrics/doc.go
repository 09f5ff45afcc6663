/*
Package metrics provides Prometheus metrics collection and exposition for
the circuit fabric, admin service, family handlers, and event projector.

Metrics are registered at package init via prometheus.MustRegister and
exposed through Handler() for scraping. Components update gauges and
counters directly (e.g. metrics.CircuitsTotal.WithLabelValues(...).Set(n))
rather than going through a central collector, since each subsystem already
holds the lock needed to read its own counts.

Timer is a small helper for histogram observations:

	t := metrics.NewTimer()
	defer t.ObserveDuration(metrics.DirectMessageRoutingDuration)

HealthChecker (health.go) is a separate, lighter-weight concern: a
process-wide component health registry exposed as JSON, independent of
the Prometheus registry, for use by a liveness/readiness endpoint.
*/
package metrics
