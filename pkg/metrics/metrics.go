// Package metrics exposes Prometheus collectors for the press/post
// lifecycle. The registry is the default global one served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Activations counts completed activations by asset variant.
	Activations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pressbot",
		Name:      "activations_total",
		Help:      "Completed control activations by asset.",
	}, []string{"asset"})

	// DeliveryFailures counts activations that failed at the delivery step.
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pressbot",
		Name:      "delivery_failures_total",
		Help:      "Activations that failed while executing the outbound endpoint.",
	})

	// ControlMismatches counts skipped deactivations due to a stale or
	// externally replaced control reference.
	ControlMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pressbot",
		Name:      "control_mismatches_total",
		Help:      "Deactivations aborted because the live message did not match the tracked control.",
	})

	// ReconcileRepairs counts controls recreated by the reconciler.
	ReconcileRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pressbot",
		Name:      "reconcile_repairs_total",
		Help:      "Controls recreated because the tracked message was gone.",
	})

	// ReconcileReattached counts controls found intact and reattached.
	ReconcileReattached = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pressbot",
		Name:      "reconcile_reattached_total",
		Help:      "Controls found alive and reattached during reconciliation.",
	})

	// BoundChannels tracks the number of currently bound channels.
	BoundChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pressbot",
		Name:      "bound_channels",
		Help:      "Number of channel bindings currently persisted.",
	})
)
