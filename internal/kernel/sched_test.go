package kernel

import (
	"sync"
	"testing"

	"github.com/cbrewer/trident/internal/fs"
)

func TestSchedulerTick_IgnoredBeforeStartScheduling(tt *testing.T) {
	tt.Parallel()

	k := newTestKernel(tt)

	k.schedulerTick()

	if k.mux.FirstInactive() != 0 {
		tt.Error("schedulerTick bootstrapped a terminal before StartScheduling")
	}
}

func TestSchedulerTick_BootstrapsInactiveTerminal(tt *testing.T) {
	tt.Parallel()

	img := buildImage(tt, []testDentry{
		{name: ".", typ: fs.TypeDirectory},
		{name: "shell", typ: fs.TypeRegular, inodeIdx: 0},
	}, [][]byte{elfProgram("shell-body")})

	k, err := New(img)
	if err != nil {
		tt.Fatalf("New: %v", err)
	}

	started := make(chan struct{})
	block := make(chan struct{})
	defer close(block)

	// Halt respawns a root shell once this one returns, so the program runs more than once.
	var once sync.Once

	k.RegisterProgram("shell", func(p *Process) int32 {
		once.Do(func() { close(started) })
		<-block
		return 0
	})

	k.StartScheduling()
	k.schedulerTick()

	<-started

	if k.mux.FirstInactive() != 1 {
		tt.Errorf("FirstInactive after one tick = %d, want 1 (terminal 0 claimed)", k.mux.FirstInactive())
	}
}

func TestSchedulerTick_SwitchesCurrentOnceAllTerminalsActive(tt *testing.T) {
	tt.Parallel()

	k := newTestKernel(tt)
	k.StartScheduling()

	block := make(chan struct{})
	defer close(block)

	ready := make(chan PID, 3)

	k.RegisterProgram("true", func(p *Process) int32 {
		ready <- p.PID()
		<-block
		return 0
	})

	for i := 0; i < 3; i++ {
		go k.Execute(BadPID, "true")
	}

	for i := 0; i < 3; i++ {
		<-ready
	}

	// All three Executes already activated their terminal and set themselves Active before
	// sending on ready, so forcing a deterministic "current" is all that's left.
	k.procs.setCurrent(0)

	k.schedulerTick()

	if cur := k.procs.Current(); cur == nil || cur.PID != 1 {
		tt.Errorf("Current after tick = %v, want pid 1", cur)
	}
}
