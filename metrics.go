package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the application
type Metrics struct {
	// WebSocket connection metrics
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter

	// Authentication metrics
	AuthChallenges prometheus.Counter
	AuthSessions   prometheus.Counter
	Validations    *prometheus.CounterVec

	// Registry metrics
	AccountsCreated         prometheus.Counter
	ResourceAccountsCreated prometheus.Counter
	KeyRotations            *prometheus.CounterVec

	// RPC method metrics
	RPCRequests *prometheus.CounterVec
}

// NewMetrics initializes and registers Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "authnode_connected_clients",
			Help: "Number of currently connected WebSocket clients",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "authnode_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),
		AuthChallenges: factory.NewCounter(prometheus.CounterOpts{
			Name: "authnode_auth_challenges_total",
			Help: "Total number of authentication challenges issued",
		}),
		AuthSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "authnode_auth_sessions_total",
			Help: "Total number of JWT sessions issued",
		}),
		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authnode_validations_total",
			Help: "Authenticator validations by scheme and result",
		}, []string{"scheme", "result"}),
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "authnode_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		ResourceAccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "authnode_resource_accounts_created_total",
			Help: "Total number of resource accounts created",
		}),
		KeyRotations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authnode_key_rotations_total",
			Help: "Authentication key rotations by scheme",
		}, []string{"scheme"}),
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authnode_rpc_requests_total",
			Help: "RPC requests by method",
		}, []string{"method"}),
	}
}
