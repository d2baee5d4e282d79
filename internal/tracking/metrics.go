package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var viewsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "recovery_views_recorded_total",
	Help: "Total number of product-view events persisted.",
})
