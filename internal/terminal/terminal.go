// Package terminal implements the terminal multiplexer: three independent text consoles sharing
// one physical video buffer and one keyboard, switched by Alt+F1/F2/F3, with an explicit "which
// one owns physical video memory right now" swap.
package terminal

import (
	"sync"

	"github.com/cbrewer/trident/internal/console"
	"github.com/cbrewer/trident/internal/keyboard"
	"github.com/cbrewer/trident/internal/log"
)

// State is whether a terminal's first shell has been spawned yet.
type State int

const (
	Inactive State = iota
	Active
)

const Count = 3

// Multiplexer owns the three terminals' state, the single physical video buffer, and the shared
// keyboard driver.
type Multiplexer struct {
	mut sync.Mutex

	physical *console.Console
	backing  [Count]*console.Console
	states   [Count]State
	visible  int

	Keyboard *keyboard.Keyboard

	// onSwitch is invoked after the video-buffer content swap, with the previously- and
	// newly-visible terminal IDs, so the kernel can update the per-terminal page tables
	// and reload the installed directory. It is nil until wired by the kernel.
	onSwitch func(oldVisible, newVisible int)

	log *log.Logger
}

// New creates a multiplexer with terminal 0 initially visible and every terminal inactive.
func New(physicalAddr uint32, backingAddrs [Count]uint32) *Multiplexer {
	m := &Multiplexer{
		physical: console.New(physicalAddr),
		Keyboard: keyboard.New(),
		log:      log.DefaultLogger(),
	}

	for i := range m.backing {
		m.backing[i] = console.New(backingAddrs[i])
	}

	return m
}

// OnSwitch registers the callback invoked after a terminal switch's buffer swap.
func (m *Multiplexer) OnSwitch(fn func(oldVisible, newVisible int)) {
	m.mut.Lock()
	defer m.mut.Unlock()

	m.onSwitch = fn
}

// Visible returns the currently-visible terminal.
func (m *Multiplexer) Visible() int {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.visible
}

// State reports whether terminal t's first shell has been spawned.
func (m *Multiplexer) State(t int) State {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.states[t]
}

// Activate marks terminal t active (its first shell has been spawned).
func (m *Multiplexer) Activate(t int) {
	m.mut.Lock()
	defer m.mut.Unlock()

	m.states[t] = Active
}

// FirstInactive returns the lowest-numbered inactive terminal, or -1 if all three are active.
func (m *Multiplexer) FirstInactive() int {
	m.mut.Lock()
	defer m.mut.Unlock()

	for t := 0; t < Count; t++ {
		if m.states[t] == Inactive {
			return t
		}
	}

	return -1
}

// console returns the Console currently backing terminal t's writes: physical video memory if t
// is visible, or its own backing page otherwise.
func (m *Multiplexer) console(t int) *console.Console {
	if t == m.visible {
		return m.physical
	}

	return m.backing[t]
}

// Write sends b to terminal t's console, honoring the visible/backing split. It returns the
// number of bytes written (always len(b): console output cannot fail).
func (m *Multiplexer) Write(t int, b []byte) int {
	m.mut.Lock()
	c := m.console(t)
	m.mut.Unlock()

	for _, ch := range b {
		c.PutChar(ch)
	}

	return len(b)
}

// WriteVisible writes b to whichever terminal is presently visible, regardless of the caller's
// own terminal; used by keyboard echo.
func (m *Multiplexer) WriteVisible(b []byte) {
	m.mut.Lock()
	c := m.physical
	m.mut.Unlock()

	for _, ch := range b {
		c.PutChar(ch)
	}
}

// Backspace sends a backspace to terminal t's console.
func (m *Multiplexer) Backspace(t int) {
	m.mut.Lock()
	c := m.console(t)
	m.mut.Unlock()

	c.Backspace()
}

// ClearVisible clears the visible terminal's screen (Ctrl+L).
func (m *Multiplexer) ClearVisible() {
	m.mut.Lock()
	c := m.physical
	m.mut.Unlock()

	c.Clear()
}

// ReadLine blocks until terminal t has a complete input line queued, then copies it into buf.
// It delegates to the shared keyboard driver's per-terminal queue.
func (m *Multiplexer) ReadLine(t int, buf []byte) int {
	return m.Keyboard.ReadLine(t, buf)
}

// SyncVisibleCursor implements the scheduler's per-switch screen-state bookkeeping. Because each
// terminal's Console already remembers its own cursor whether or not it is presently bound to
// physical memory, no cursor state is saved or restored; it only pushes the hardware cursor when
// t is the visible terminal, and does nothing otherwise.
func (m *Multiplexer) SyncVisibleCursor(t int) {
	m.mut.Lock()
	defer m.mut.Unlock()

	if t != m.visible {
		return
	}

	m.physical.SetCursor(m.physical.Cursor())
}

// Switch implements switch_terminal: copy physical video memory into the
// currently-visible terminal's backing buffer, copy terminal t's backing into physical memory,
// record t as visible, then invoke onSwitch so the kernel can repoint the per-terminal video
// page-table entries and reload the installed directory. Callers must already hold whatever lock
// (cli/sti analogue) brackets terminal switching; Trident.SwitchTerminal does so.
func (m *Multiplexer) Switch(t int) {
	m.mut.Lock()
	old := m.visible

	if old == t {
		m.mut.Unlock()
		return
	}

	m.backing[old].CopyFrom(m.physical)
	m.physical.CopyFrom(m.backing[t])
	m.visible = t

	onSwitch := m.onSwitch
	m.mut.Unlock()

	if onSwitch != nil {
		onSwitch(old, t)
	}
}

// PhysicalAddr and BackingAddr expose the synthetic physical addresses assigned to the physical
// buffer and each terminal's backing page, so the kernel's paging core can build per-terminal
// video page tables pointing at them.
func (m *Multiplexer) PhysicalAddr() uint32    { return m.physical.PhysAddr }
func (m *Multiplexer) BackingAddr(t int) uint32 { return m.backing[t].PhysAddr }

// SetHardwareCursorFunc installs the CRTC-port callback on the physical console.
func (m *Multiplexer) SetHardwareCursorFunc(fn func(x, y int)) {
	m.physical.SetHardwareCursorFunc(fn)
}

// Render returns a snapshot of the physical (visible) console, for the host TTY bridge.
func (m *Multiplexer) Render() [console.Height][console.Width]console.Cell {
	m.mut.Lock()
	c := m.physical
	m.mut.Unlock()

	return c.Snapshot()
}
