// Package console implements the text-mode video driver: an 80x25 character frame buffer with
// cursor, scrolling, and backspace semantics, one instance per terminal.
package console

import (
	"fmt"
	"sync"

	"github.com/cbrewer/trident/internal/log"
)

const (
	Width  = 80
	Height = 25

	// DefaultAttr is the default character attribute byte: light grey on black, as on a
	// freshly reset VGA text adapter.
	DefaultAttr = byte(0x07)
)

// Cell is one character position in the frame buffer: a displayed byte and its attribute.
type Cell struct {
	Char byte
	Attr byte
}

// Cursor is a screen position.
type Cursor struct {
	X, Y int
}

// Console is one terminal's video state: its own frame buffer (used as the backing buffer when
// this terminal is not visible) plus cursor and attribute.
type Console struct {
	mut sync.Mutex

	cells  [Height][Width]Cell
	cursor Cursor
	attr   byte

	// PhysAddr is the synthetic physical address this console's buffer is mapped at when it
	// is acting as a terminal's backing page (see kernel.Paging); it is meaningless when this
	// console is the one bound to real video memory.
	PhysAddr uint32

	// moveHardwareCursor, when set, is called to move the real CRTC cursor (two port writes,
	// index then data); it is only invoked for the visible terminal's console.
	moveHardwareCursor func(x, y int)

	log *log.Logger
}

// New creates a blank console.
func New(physAddr uint32) *Console {
	c := &Console{
		attr:     DefaultAttr,
		PhysAddr: physAddr,
		log:      log.DefaultLogger(),
	}
	c.clearLocked()

	return c
}

// SetHardwareCursorFunc installs the callback used to move the real CRTC cursor. Called once by
// the terminal multiplexer for whichever console is presently visible.
func (c *Console) SetHardwareCursorFunc(fn func(x, y int)) {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.moveHardwareCursor = fn
}

// Cursor returns the current cursor position.
func (c *Console) Cursor() Cursor {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.cursor
}

// SetCursor restores a previously-saved cursor position (used by the scheduler when switching
// screen state onto a process's terminal).
func (c *Console) SetCursor(cur Cursor) {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.cursor = cur
	c.moveHW()
}

// PutChar writes c at the cursor and advances it: newline/carriage-return move to the next line
// at column 0; otherwise the character is written and the column advances,
// wrapping to the next line at column 80 and scrolling when the line reaches row 25.
func (c *Console) PutChar(ch byte) {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.putCharLocked(ch)
}

func (c *Console) putCharLocked(ch byte) {
	switch ch {
	case '\n', '\r':
		c.cursor.X = 0
		c.cursor.Y++
	default:
		c.cells[c.cursor.Y][c.cursor.X] = Cell{Char: ch, Attr: c.attr}
		c.cursor.X++

		if c.cursor.X == Width {
			c.cursor.X = 0
			c.cursor.Y++
		}
	}

	if c.cursor.Y == Height {
		c.scrollLocked()
	}

	c.moveHW()
}

// Backspace is a no-op at (0,0); wraps to the end of the previous row at column 0; otherwise
// decrements the column. The cell at the new position is cleared.
func (c *Console) Backspace() {
	c.mut.Lock()
	defer c.mut.Unlock()

	switch {
	case c.cursor.X == 0 && c.cursor.Y == 0:
		return
	case c.cursor.X == 0:
		c.cursor.Y--
		c.cursor.X = Width - 1
	default:
		c.cursor.X--
	}

	c.cells[c.cursor.Y][c.cursor.X] = Cell{Char: ' ', Attr: c.attr}
	c.moveHW()
}

// Clear overwrites the entire frame with space+attribute and resets the cursor to the origin.
func (c *Console) Clear() {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.clearLocked()
}

func (c *Console) clearLocked() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = Cell{Char: ' ', Attr: c.attr}
		}
	}

	c.cursor = Cursor{}
	c.moveHW()
}

// Scroll copies rows 1..24 onto rows 0..23, clears row 24, and sets the cursor to (0, 24).
func (c *Console) Scroll() {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.scrollLocked()
}

func (c *Console) scrollLocked() {
	for y := 1; y < Height; y++ {
		c.cells[y-1] = c.cells[y]
	}

	for x := range c.cells[Height-1] {
		c.cells[Height-1][x] = Cell{Char: ' ', Attr: c.attr}
	}

	c.cursor = Cursor{X: 0, Y: Height - 1}
}

func (c *Console) moveHW() {
	if c.moveHardwareCursor != nil {
		c.moveHardwareCursor(c.cursor.X, c.cursor.Y)
	}
}

// Snapshot returns a copy of the frame buffer for rendering onto a real host terminal.
func (c *Console) Snapshot() [Height][Width]Cell {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.cells
}

// CopyFrom overwrites this console's buffer and cursor with src's, used when swapping physical
// video memory and a terminal's backing page during a terminal switch.
func (c *Console) CopyFrom(src *Console) {
	srcCells := src.Snapshot()
	srcCursor := src.Cursor()

	c.mut.Lock()
	defer c.mut.Unlock()

	c.cells = srcCells
	c.cursor = srcCursor
	c.moveHW()
}

func (c *Console) String() string {
	return fmt.Sprintf("Console(cursor=%d,%d phys=%#x)", c.cursor.X, c.cursor.Y, c.PhysAddr)
}

// CRTCPorts models the two index/data port writes used to move the hardware cursor.
// A real implementation would write these to ports 0x3D4/0x3D5; here the ports are injected so
// the kernel can log or test the sequence without real port I/O.
type CRTCPorts struct {
	Index, Data func(v uint8)
}

// HardwareCursorFunc builds the two-byte low/high CRTC write sequence for position (x, y) in an
// 80-column text mode.
func HardwareCursorFunc(ports CRTCPorts) func(x, y int) {
	return func(x, y int) {
		pos := uint16(y*Width + x)
		ports.Index(0x0f)
		ports.Data(uint8(pos & 0xff))
		ports.Index(0x0e)
		ports.Data(uint8(pos >> 8))
	}
}
