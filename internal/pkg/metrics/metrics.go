package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RPCRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kaia_defi",
		Name:      "rpc_requests_total",
		Help:      "JSON-RPC calls issued to chain nodes.",
	}, []string{"chain", "method", "status"})

	RPCDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kaia_defi",
		Name:      "rpc_request_duration_seconds",
		Help:      "Latency of JSON-RPC calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"chain", "method"})

	Transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kaia_defi",
		Name:      "transactions_total",
		Help:      "Transactions submitted by the contract layer, by operation and outcome.",
	}, []string{"op", "status"})

	Quotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kaia_defi",
		Name:      "swap_quotes_total",
		Help:      "Swap quote computations by outcome.",
	}, []string{"outcome"})

	SessionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kaia_defi",
		Name:      "session_events_total",
		Help:      "Wallet session transitions.",
	}, []string{"kind"})

	PriceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kaia_defi",
		Name:      "price_requests_total",
		Help:      "DEX Screener requests by chain and outcome.",
	}, []string{"chain", "status"})

	registerOnce sync.Once
)

// MustRegisterMetrics registers every collector with the default registry.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RPCRequests, RPCDuration, Transactions, Quotes, SessionEvents, PriceRequests)
	})
}
