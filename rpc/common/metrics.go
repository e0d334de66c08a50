package common

import (
	"fmt"
	"sync/atomic"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Exported metrics (prometheus text format, see cmd serve /metrics)
// --------------------------------------------------------------------------

// CountInboundRequest counts a routed inbound request by verb and resulting status
func CountInboundRequest(verb string, status int) {
	vm.GetOrCreateCounter(fmt.Sprintf(`dstream_inbound_requests_total{verb=%q,status="%d"}`, verb, status)).Inc()
}

// CountOutboundRequest counts an outbound request by outcome (ok, error)
func CountOutboundRequest(outcome string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`dstream_outbound_requests_total{outcome=%q}`, outcome)).Inc()
}

// CountReconnect counts a reconnect attempt by outcome (ok, rejected, failed)
func CountReconnect(outcome string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`dstream_reconnects_total{outcome=%q}`, outcome)).Inc()
}

// CountDisconnect counts transport disconnects by transport name
func CountDisconnect(transport string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`dstream_disconnects_total{transport=%q}`, transport)).Inc()
}

// pendingCalls is the number of outbound calls waiting for a response in this process
var pendingCalls atomic.Int64

func init() {
	vm.NewGauge(`dstream_pending_calls`, func() float64 {
		return float64(pendingCalls.Load())
	})
}

// AddPending adjusts the pending calls gauge by delta
func AddPending(delta int) {
	pendingCalls.Add(int64(delta))
}

// ObserveDispatch records the processing time of an inbound request
func ObserveDispatch(start time.Time) {
	vm.GetOrCreateHistogram(`dstream_dispatch_duration_seconds`).UpdateDuration(start)
	Stats.dispatch.UpdateSince(start)
}

// --------------------------------------------------------------------------
// In-process statistics (served by the stats diagnostic endpoint)
// --------------------------------------------------------------------------

// streamStats bundles the go-metrics instruments of one process
type streamStats struct {
	registry gometrics.Registry
	dispatch gometrics.Timer
	inbound  gometrics.Meter
	outbound gometrics.Meter
	failures gometrics.Counter
}

// Stats are the process wide in-memory statistics
var Stats = newStreamStats()

func newStreamStats() *streamStats {
	r := gometrics.NewRegistry()
	return &streamStats{
		registry: r,
		dispatch: gometrics.NewRegisteredTimer("router.dispatch", r),
		inbound:  gometrics.NewRegisteredMeter("requests.inbound", r),
		outbound: gometrics.NewRegisteredMeter("requests.outbound", r),
		failures: gometrics.NewRegisteredCounter("requests.failed", r),
	}
}

// MarkInbound marks one inbound request
func (s *streamStats) MarkInbound() { s.inbound.Mark(1) }

// MarkOutbound marks one outbound request
func (s *streamStats) MarkOutbound() { s.outbound.Mark(1) }

// MarkFailure counts a failed request in either direction
func (s *streamStats) MarkFailure() { s.failures.Inc(1) }

// Snapshot returns all instruments as a json friendly map
func (s *streamStats) Snapshot() map[string]map[string]interface{} {
	return s.registry.GetAll()
}
