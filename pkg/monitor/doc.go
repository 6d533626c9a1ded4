// Package monitor tracks the health of content-generation providers.
//
// Every provider has a HealthRecord, fed by reported request outcomes, and a
// CircuitBreaker. Success and error rates and the response time are
// exponential moving averages with a smoothing factor of 0.1; the first
// response time sample seeds the average.
//
// # Circuit Breaker
//
//	closed ──(5 consecutive failures)──▶ open ──(ResetCircuitBreaker)──▶ closed
//
// When a half-open delay is configured, an open circuit older than the delay
// admits a single trial request (half_open). The trial's outcome closes or
// re-opens the circuit.
//
// # Probing
//
// StartProbing runs a Prober against every provider on a ticker. Probes only
// move the status between healthy and degraded; the breaker is driven by
// real outcomes alone.
//
// # Events
//
// Subscribe returns a buffered channel of healthUpdate and configUpdate
// events. Delivery never blocks the monitor: events for a full subscriber
// are dropped and counted.
package monitor
