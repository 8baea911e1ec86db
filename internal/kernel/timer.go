package kernel

// timer.go drives the two periodic interrupt sources Trident needs from outside itself: the
// scheduler's timer IRQ and the RTC's fixed 1024 Hz physical tick. A real kernel programs the
// PIT/RTC hardware once at boot and then only reacts to IRQs; Trident's stand-in is a pair of
// time.Ticker-driven, context-cancelled background goroutines that call Tick/RTCTick.

import (
	"context"
	"time"

	"github.com/cbrewer/trident/internal/rtc"
)

// DefaultSchedulerHz is the tick rate schedulerTick runs at absent an explicit choice: 50 Hz, the
// middle of a typical 10-100 Hz preemption range.
const DefaultSchedulerHz = 50

// RunScheduler starts the timer IRQ source at hz and blocks until ctx is done.
func (k *Trident) RunScheduler(ctx context.Context, hz int) {
	if hz <= 0 {
		hz = DefaultSchedulerHz
	}

	t := time.NewTicker(time.Second / time.Duration(hz))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			k.Tick()
		}
	}
}

// RunRTC starts the real-time-clock's physical tick source and blocks until ctx is done.
func (k *Trident) RunRTC(ctx context.Context) {
	t := time.NewTicker(time.Second / time.Duration(rtc.PhysicalRate))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			k.RTCTick()
		}
	}
}
