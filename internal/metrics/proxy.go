// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var proxyUpstreamTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamtier_proxy_upstream_total",
	Help: "Backend proxy upstream requests by kind and status class",
}, []string{"kind", "status"})

// IncProxyUpstream records one upstream request made by the backend proxy.
// kind is "manifest" or "media"; status 0 means transport failure.
func IncProxyUpstream(kind string, status int) {
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	proxyUpstreamTotal.WithLabelValues(kind, class).Inc()
}
