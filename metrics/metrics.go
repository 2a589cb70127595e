// Package metrics defines the recorder surface the SDK reports request,
// transfer, and paywall events through.
package metrics

import "time"

// Recorder receives event counters and operation latencies. Implementations
// must be safe for concurrent use.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
