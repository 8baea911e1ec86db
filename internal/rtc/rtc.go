// Package rtc implements the real-time-clock pseudo-device: a 1024 Hz physical
// tick source divided down per-process into a virtual frequency, using a sync.Mutex + sync.Cond
// to gate a single blocked reader per process.
package rtc

import (
	"sync"

	"github.com/cbrewer/trident/internal/log"
)

// PhysicalRate is the fixed physical tick rate the hardware is programmed to once at boot.
const PhysicalRate = 1024

// DefaultVirtualHz is the rate `open` configures: 2 Hz.
const DefaultVirtualHz = 2

type procState struct {
	divisor int // Physical ticks per virtual tick; 0 means "closed".
	counter int
	pending bool
}

// RTC is the shared real-time-clock driver: one state record per process, advanced by Tick,
// which the kernel's RTC vector handler (Trident.RTCTick) calls at PhysicalRate.
type RTC struct {
	mut   sync.Mutex
	conds []*sync.Cond
	procs []procState

	log *log.Logger
}

// New creates an RTC driver sized for n processes.
func New(n int) *RTC {
	r := &RTC{
		conds: make([]*sync.Cond, n),
		procs: make([]procState, n),
		log:   log.DefaultLogger(),
	}

	for i := range r.conds {
		r.conds[i] = sync.NewCond(&r.mut)
	}

	return r
}

// Open sets pid's target divisor to PhysicalRate/DefaultVirtualHz.
func (r *RTC) Open(pid int) {
	r.mut.Lock()
	defer r.mut.Unlock()

	r.procs[pid] = procState{divisor: PhysicalRate / DefaultVirtualHz}
}

// Close zeroes pid's target, counter, and pending flag.
func (r *RTC) Close(pid int) {
	r.mut.Lock()
	defer r.mut.Unlock()

	r.procs[pid] = procState{}
}

// isPowerOfTwo reports whether n is a power of two.
func isPowerOfTwo(n uint32) bool { return n != 0 && n&(n-1) == 0 }

// Write requires n==4 and *buf a power of two in [2,1024]; it sets pid's divisor accordingly.
// Returns 0 on success, -1 otherwise, and on failure leaves the divisor unchanged.
func (r *RTC) Write(pid int, hz uint32, n int) int {
	if n != 4 || hz < 2 || hz > 1024 || !isPowerOfTwo(hz) {
		return -1
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	r.procs[pid].divisor = PhysicalRate / int(hz)

	return 0
}

// Read clears pid's pending flag, then blocks until Tick sets it again, then returns 0.
func (r *RTC) Read(pid int) int {
	r.mut.Lock()
	defer r.mut.Unlock()

	r.procs[pid].pending = false

	for !r.procs[pid].pending {
		r.conds[pid].Wait()
	}

	return 0
}

// Tick advances every open process's counter by one physical tick, setting the pending flag
// (and waking any blocked reader) for processes whose counter reaches their divisor.
func (r *RTC) Tick() {
	r.mut.Lock()
	defer r.mut.Unlock()

	for i := range r.procs {
		p := &r.procs[i]
		if p.divisor == 0 {
			continue
		}

		p.counter++

		if p.counter >= p.divisor {
			p.counter = 0
			p.pending = true
			r.conds[i].Broadcast()
		}
	}
}
