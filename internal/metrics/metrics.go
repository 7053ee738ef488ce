package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal counts billing webhook events by type and
	// processing outcome (processed, failed, duplicate, ignored).
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockhost_webhook_events_total",
		Help: "Billing webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	// ProvisionAttemptsTotal counts panel provisioning attempts.
	ProvisionAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockhost_provision_attempts_total",
		Help: "Panel provisioning attempts by outcome.",
	}, []string{"outcome"})

	// PanelUp reports game-panel API reachability (1 up, 0 down).
	PanelUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blockhost_panel_up",
		Help: "Whether the game panel API answered the last health probe.",
	})
)
