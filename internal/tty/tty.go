// Package tty bridges Trident's three virtual terminals onto a real host terminal: raw-mode
// stdin reading via golang.org/x/term, fed into the simulated keyboard, with the simulated
// display's content mirrored back out.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/cbrewer/trident/internal/console"
	"github.com/cbrewer/trident/internal/kernel"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ErrNoTTY is returned if standard input is not a terminal.
var ErrNoTTY = errors.New("tty: not a TTY")

// Console adapts a real host terminal to a running *kernel.Trident: keystrokes are fed to
// Trident.Type, and the visible terminal's frame buffer is redrawn to the host terminal whenever
// it changes.
type Console struct {
	k *kernel.Trident

	in    *os.File
	out   *term.Terminal
	fd    int
	state *term.State

	keyCh chan byte
}

// NewConsole puts sin into raw mode and returns a Console that will drive k. Callers must call
// Restore to return the terminal to its initial state.
func NewConsole(k *kernel.Trident, sin, sout *os.File) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	c := &Console{
		k:     k,
		fd:    fd,
		in:    sin,
		out:   term.NewTerminal(sin, ""),
		state: saved,
		keyCh: make(chan byte, 16),
	}

	if err := c.setTerminalParams(1, 0); err != nil {
		return nil, err
	}

	return c, nil
}

// Run starts reading the host terminal and rendering Trident's visible console until ctx is done.
func (c *Console) Run(ctx context.Context) {
	go c.readTerminal(ctx)
	go c.feedKeyboard(ctx)

	c.renderLoop(ctx)
}

// Restore returns the host terminal to its initial state.
func (c *Console) Restore() {
	_ = c.in.SetReadDeadline(time.Now())
	_ = term.Restore(c.fd, c.state)
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, unix.TCGETS)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(c.fd, unix.TCSETS, termIO); err != nil {
		return err
	}

	_ = c.in.SetReadDeadline(time.Time{})

	return nil
}

// readTerminal reads raw bytes from the host terminal and forwards them to the key channel.
func (c *Console) readTerminal(ctx context.Context) {
	buf := bufio.NewReader(c.in)
	_ = syscall.SetNonblock(c.fd, false)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case c.keyCh <- b:
		}
	}
}

// feedKeyboard drains the key channel into Trident.Type until ctx is done.
func (c *Console) feedKeyboard(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.keyCh:
			c.k.Type(rune(b))
		}
	}
}

// renderLoop redraws the visible terminal's frame buffer at a fixed rate -- simpler than Listen-
// style change notification, and sufficient for an interactive teaching console -- until ctx is
// done.
func (c *Console) renderLoop(ctx context.Context) {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	var last [console.Height][console.Width]console.Cell

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := c.k.Render()
			if frame == last {
				continue
			}

			last = frame
			c.draw(frame)
		}
	}
}

func (c *Console) draw(frame [console.Height][console.Width]console.Cell) {
	fmt.Fprint(c.out, "\x1b[H\x1b[2J")

	for y := range frame {
		for x := range frame[y] {
			ch := frame[y][x].Char
			if ch == 0 {
				ch = ' '
			}

			fmt.Fprintf(c.out, "%c", ch)
		}

		fmt.Fprint(c.out, "\r\n")
	}
}
