// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var configReloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamtier_config_reload_total",
	Help: "Configuration reloads by result",
}, []string{"result"}) // result=success|failure

// IncConfigReload counts a configuration reload attempt.
func IncConfigReload(success bool) {
	configReloadTotal.WithLabelValues(resultLabel(success)).Inc()
}
