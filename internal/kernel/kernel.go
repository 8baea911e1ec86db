// Package kernel's kernel.go assembles the simulated kernel from its components, grounded on the
// teacher's internal/vm/vm.go: a struct embedding one field per subsystem, a New constructor that
// wires devices together, and an OptionFn hook for test and CLI configuration.
package kernel

import (
	"fmt"
	"sync"

	"github.com/cbrewer/trident/internal/console"
	"github.com/cbrewer/trident/internal/fs"
	"github.com/cbrewer/trident/internal/keyboard"
	"github.com/cbrewer/trident/internal/log"
	"github.com/cbrewer/trident/internal/rtc"
	"github.com/cbrewer/trident/internal/terminal"
)

// Trident is the assembled kernel: paging, the process table, the terminal multiplexer, the
// filesystem reader, and the interrupt vector table, bracketed by a single mutex standing in for
// a cli/sti discipline under a single-CPU concurrency model.
type Trident struct {
	mut sync.Mutex

	procs  *Processes
	paging *Paging
	intr   *Interrupt
	irqc   *IRQController
	mux    *terminal.Multiplexer
	rtc    *rtc.RTC
	image  *fs.FS

	programs map[string]Program
	userMem  map[PID][]byte
	halters  map[PID]chan int32

	phase   kernelPhase
	started bool

	log *log.Logger
}

// OptionFn configures a Trident during New.
type OptionFn func(*Trident)

// WithLogger installs a non-default logger.
func WithLogger(l *log.Logger) OptionFn {
	return func(k *Trident) { k.log = l }
}

// New assembles a kernel around filesystem image img: it builds the paging core,
// the process table, a terminal multiplexer sized for NumTerminals consoles, an RTC driver sized
// for MaxProcesses, and wires the terminal switch callback to the paging core's per-terminal video
// tables.
func New(img []byte, opts ...OptionFn) (*Trident, error) {
	image, err := fs.New(img)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	k := &Trident{
		procs:  NewProcesses(),
		paging: NewPaging(),
		intr:   &Interrupt{},
		irqc:   NewIRQController(),
		rtc:    rtc.New(MaxProcesses),
		image:  image,
		phase:  phaseBootstrap,
		log:    log.DefaultLogger(),
	}

	var backing [terminal.Count]uint32
	for t := 0; t < terminal.Count; t++ {
		backing[t] = uint32(PhysVideoMemAddr) + uint32(t+1)*0x1000
	}

	k.mux = terminal.New(uint32(PhysVideoMemAddr), backing)

	for t := 0; t < terminal.Count; t++ {
		k.paging.NewTerminalVideoTable(TerminalID(t), t == k.mux.Visible(), Word(k.mux.BackingAddr(t)))
	}

	// onSwitch runs synchronously inside Multiplexer.Switch, itself called from SwitchTerminal
	// while k.mut is already held; it must not re-lock k.mut.
	k.mux.OnSwitch(func(old, next int) {
		k.paging.SetVisible(TerminalID(old), false, Word(k.mux.BackingAddr(old)))
		k.paging.SetVisible(TerminalID(next), true, Word(k.mux.BackingAddr(next)))

		if dir := k.paging.Installed(); dir != nil {
			k.paging.Install(dir)
		}
	})

	k.registerVectors()

	for _, opt := range opts {
		opt(k)
	}

	return k, nil
}

// registerVectors installs the device-IRQ and exception handlers. System calls do
// not route through this table: Trident has no x86 trap frame to decode (see doc.go), so
// userland programs reach the syscall surface by calling Trident's syscall-numbered methods
// directly, exactly as a real `int 0x80` handler would after decoding EAX. The vector table still
// owns the three device IRQs and the fault-to-halt(256) path, which are genuine interrupt-style
// events with no argument-marshalling step to skip.
func (k *Trident) registerVectors() {
	k.intr.Register(VectorTimer, func(k *Trident, c Cause) error {
		k.irqc.EOI(IRQTimer)
		k.schedulerTick()

		return nil
	})

	k.intr.Register(VectorKeyboard, func(k *Trident, c Cause) error {
		k.irqc.EOI(IRQKeyboard)
		return nil
	})

	k.intr.Register(VectorRTC, func(k *Trident, c Cause) error {
		k.irqc.EOI(IRQRTC)
		k.rtc.Tick()

		return nil
	})

	for v := VectorDivideError; v <= VectorLastException; v++ {
		k.intr.Register(v, func(k *Trident, c Cause) error {
			return k.haltFromFault(c)
		})
	}
}

// Tick drives the timer IRQ: the caller (an external periodic driver, at whatever rate it
// chooses) invokes this once per tick.
func (k *Trident) Tick() {
	_ = k.intr.Dispatch(k, VectorTimer, Cause{PID: k.currentPID(), Vector: VectorTimer})
}

// RTCTick drives the real-time-clock IRQ at its own fixed physical rate, independent
// of the scheduler's timer.
func (k *Trident) RTCTick() {
	_ = k.intr.Dispatch(k, VectorRTC, Cause{Vector: VectorRTC})
}

// ScanCode feeds one keyboard scan-code byte to the keyboard driver, acting on any
// edge (terminal switch, screen clear) the translation surfaces.
func (k *Trident) ScanCode(code byte) {
	_ = k.intr.Dispatch(k, VectorKeyboard, Cause{Vector: VectorKeyboard})

	edge, r, echo := k.mux.Keyboard.ScanCode(code, k.mux.Visible())

	if echo && r != 0 {
		k.mux.WriteVisible([]byte{byte(r)})
	}

	switch edge {
	case keyboard.EdgeNone:
		return
	case keyboard.EdgeBackspace:
		k.mux.Backspace(k.mux.Visible())
	case keyboard.EdgeClearScreen:
		k.mux.ClearVisible()
		replay := k.mux.Keyboard.Replay(k.mux.Visible())
		k.mux.WriteVisible(replay)
	case keyboard.EdgeSwitchTerminal0:
		k.SwitchTerminal(0)
	case keyboard.EdgeSwitchTerminal1:
		k.SwitchTerminal(1)
	case keyboard.EdgeSwitchTerminal2:
		k.SwitchTerminal(2)
	}
}

// Type feeds one already-decoded host-terminal character to the keyboard driver's line editor
// (keyboard.Keyboard.TypeRune), for internal/tty's host bridge -- see that method's comment for
// why it bypasses ScanCode's scan-code replay path.
func (k *Trident) Type(r rune) {
	edge, echoed := k.mux.Keyboard.TypeRune(r, k.mux.Visible())

	if echoed {
		k.mux.WriteVisible([]byte(string(r)))
	}

	switch edge {
	case keyboard.EdgeNone:
		return
	case keyboard.EdgeBackspace:
		k.mux.Backspace(k.mux.Visible())
	case keyboard.EdgeClearScreen:
		k.mux.ClearVisible()
		replay := k.mux.Keyboard.Replay(k.mux.Visible())
		k.mux.WriteVisible(replay)
	case keyboard.EdgeSwitchTerminal0:
		k.SwitchTerminal(0)
	case keyboard.EdgeSwitchTerminal1:
		k.SwitchTerminal(1)
	case keyboard.EdgeSwitchTerminal2:
		k.SwitchTerminal(2)
	}
}

// Render returns a snapshot of the visible terminal's frame buffer, for the host TTY bridge.
func (k *Trident) Render() [console.Height][console.Width]console.Cell {
	return k.mux.Render()
}

// SwitchTerminal implements switch_terminal, bracketed by Trident's mutex standing in
// for cli/sti.
func (k *Trident) SwitchTerminal(t TerminalID) {
	k.mut.Lock()
	defer k.mut.Unlock()

	k.mux.Switch(int(t))
}

func (k *Trident) currentPID() PID {
	k.mut.Lock()
	defer k.mut.Unlock()

	if cur := k.procs.Current(); cur != nil {
		return cur.PID
	}

	return BadPID
}

// Fault delivers a CPU exception for pid: a distinguished halt(256), since this
// simulation has no faulting instruction stream of its own to trap. A Program that wants to model
// a bad memory access or an illegal opcode calls this directly instead of actually producing one.
func (k *Trident) Fault(pid PID, vector Vector, reason string) {
	_ = k.intr.Dispatch(k, vector, Cause{PID: pid, Vector: vector, Reason: reason})
}

func (k *Trident) haltFromFault(c Cause) error {
	k.log.Warn("kernel: exception", "pid", c.PID, "vector", c.Vector, "reason", c.Reason)
	k.Halt(c.PID, 256)

	return nil
}
