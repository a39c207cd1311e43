package task

import (
	"kernos/kernel/cmdline"
	"kernos/kernel/mm"
	"kernos/kernel/timer"
	"time"
)

// Config holds the scheduler tunables.
type Config struct {
	// TargetLatency is the period in which every runnable thread of a core
	// should get to run once.
	TargetLatency time.Duration

	// MinTimeSlice is the lower bound of a quantum, in ticks.
	MinTimeSlice uint64

	// RunListPool is the number of bucket nodes carved out per run queue.
	RunListPool int

	// KernelStackSize is the size of the kernel stack given to each thread.
	KernelStackSize mm.Size
}

// minRunListPool is one bucket per priority for both epoch lists. Smaller
// pools could run dry inside Schedule, which has no way to report it.
const minRunListPool = 2 * 256

// DefaultConfig returns the configuration used when the command line does not
// override anything. The default pool holds one bucket per priority for both
// epoch lists so it cannot be exhausted.
func DefaultConfig() Config {
	return Config{
		TargetLatency:   200 * time.Millisecond,
		MinTimeSlice:    2,
		RunListPool:     minRunListPool,
		KernelStackSize: 16 * mm.Kb,
	}
}

// ConfigFromCmdLine overlays the sched.* keys of a parsed kernel command line
// on top of DefaultConfig. Invalid values keep their defaults.
func ConfigFromCmdLine(kv map[string]string) Config {
	cfg := DefaultConfig()

	if ms := cmdline.Uint(kv, "sched.target_latency_ms", 0); ms > 0 {
		cfg.TargetLatency = time.Duration(ms) * time.Millisecond
	}
	if ticks := cmdline.Uint(kv, "sched.min_timeslice", 0); ticks > 0 {
		cfg.MinTimeSlice = ticks
	}
	if n := cmdline.Uint(kv, "sched.runlist_pool", 0); n >= minRunListPool && n <= 1<<16 {
		cfg.RunListPool = int(n)
	} else if n > 0 {
		log.Warnf("ignoring sched.runlist_pool=%d: must be between %d and %d", n, minRunListPool, 1<<16)
	}
	if kb := cmdline.Uint(kv, "sched.kstack_kb", 0); kb > 0 {
		if size := mm.Size(kb) * mm.Kb; size.PageAligned() {
			cfg.KernelStackSize = size
		} else {
			log.Warnf("ignoring sched.kstack_kb=%d: not page aligned", kb)
		}
	}

	return cfg
}

// timeSlice returns the quantum, in ticks, of a thread at priority prio when
// n threads share the core. Higher priorities and lighter load get longer
// quanta; the result never drops below MinTimeSlice.
func (cfg *Config) timeSlice(prio uint8, n uint64) uint64 {
	if n == 0 {
		n = 1
	}

	slice := timer.TicksFor(cfg.TargetLatency * time.Duration(256-uint(prio)) / time.Duration(256*n))
	if slice < cfg.MinTimeSlice {
		return cfg.MinTimeSlice
	}
	return slice
}
