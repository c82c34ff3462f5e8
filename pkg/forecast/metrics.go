package forecast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fallbackTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "powercast",
		Subsystem: "forecast",
		Name:      "fallback_total",
		Help:      "Plant forecasts served by the synthetic fallback, by reason.",
	},
	[]string{"plant_type", "reason"},
)
