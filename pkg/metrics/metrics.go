// Package metrics registers the daemon's prometheus collectors. All
// collectors are registered on the default registry and exposed via
// /metrics on the admin listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RelayRequests counts relay pipeline outcomes by result label
	// (accepted, unauthorized, throttled, no_channel, not_member,
	// nick_in_use, bad_chars, bad_shape).
	RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayd_relay_requests_total",
		Help: "Relay pipeline outcomes by result.",
	}, []string{"result"})

	FederationSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayd_federation_sent_total",
		Help: "Relay envelopes handed to peer links.",
	})
	FederationDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayd_federation_dropped_total",
		Help: "Relay envelopes dropped because a peer link was down or full.",
	})
	FederationReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayd_federation_received_total",
		Help: "Relay envelopes received from peers.",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayd_connected_clients",
		Help: "Currently registered client connections.",
	})
	Channels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relayd_channels",
		Help: "Channels currently present in the directory.",
	})
	DroppedLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayd_dropped_lines_total",
		Help: "Outbound lines dropped because a client send queue was full.",
	})

	RegistryOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayd_registry_ops_total",
		Help: "Channel registry operations by op and result.",
	}, []string{"op", "result"})
)
