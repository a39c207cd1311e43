// Package timer holds the periodic timer configuration shared by the
// scheduler and the per-arch timer drivers.
package timer

import (
	"sync/atomic"
	"time"
)

// TickInterval is the period of the per-core scheduler tick.
const TickInterval = 10 * time.Millisecond

var ticks uint64

// TicksFor converts a duration into a number of whole ticks, rounding down.
func TicksFor(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / TickInterval)
}

// Tick advances the system uptime by one tick. Only the boot core's timer
// handler calls it.
func Tick() {
	atomic.AddUint64(&ticks, 1)
}

// Uptime returns the time elapsed since the first tick, with tick
// resolution.
func Uptime() time.Duration {
	return time.Duration(atomic.LoadUint64(&ticks)) * TickInterval
}
