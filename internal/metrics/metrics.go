// Package metrics holds the prometheus counters of the cryptographic core.
//
// Counters are package-level and safe to increment before registration;
// binaries that serve /metrics call Register once.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// Handshakes counts session key exchanges by result (ok, unwrap, transport, timeout).
	Handshakes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "konnect_handshakes_total",
		Help: "The total number of session key handshakes",
	}, []string{"result"})

	// EnvelopesEncrypted counts per-recipient message envelopes produced.
	EnvelopesEncrypted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "konnect_envelopes_encrypted_total",
		Help: "The total number of message envelopes produced",
	})

	// DecryptFailures counts failures to open data, by stage.
	DecryptFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "konnect_decrypt_failures_total",
		Help: "The total number of failed decryptions",
	}, []string{"stage"})

	// VaultOperations counts KeyVault calls by operation and result.
	VaultOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "konnect_vault_operations_total",
		Help: "The total number of key vault operations",
	}, []string{"op", "result"})

	// RESTRequests counts requests served by the key server.
	RESTRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "konnect_rest_requests_processed_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint", "status"})

	// RESTResponseTime is the key server's response time distribution.
	RESTResponseTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "konnect_restapi_response_time_milliseconds",
		Help:    "REST API response time distributions",
		Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500},
	}, []string{"method", "endpoint"})
)

// Register adds every counter to reg. Repeated calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			Handshakes,
			EnvelopesEncrypted,
			DecryptFailures,
			VaultOperations,
			RESTRequests,
			RESTResponseTime,
		)
	})
}

// Result maps an error to the "ok"/"error" label pair used by VaultOperations.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
