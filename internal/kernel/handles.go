package kernel

// handles.go implements the FileHandle vtables fd.go's tagged interface calls for: the rtc,
// directory, and regular-file drivers, plus stdin/stdout.

import (
	"bytes"
	"encoding/binary"

	"github.com/cbrewer/trident/internal/fs"
	"github.com/cbrewer/trident/internal/rtc"
)

// regularHandle is the regular-file vtable: read advances a per-fd offset; write is rejected.
type regularHandle struct {
	image    *fs.FS
	inodeIdx uint32
	offset   int
}

func (h *regularHandle) Open(inode int32) error {
	h.inodeIdx = uint32(inode)
	h.offset = 0

	return nil
}

func (h *regularHandle) Close() error { return nil }

func (h *regularHandle) Read(buf []byte) int {
	n, err := h.image.ReadBytes(h.inodeIdx, h.offset, buf)
	if err != nil {
		return -1
	}

	h.offset += n

	return n
}

func (h *regularHandle) Write(buf []byte) int { return -1 }

func (h *regularHandle) Name() string { return "regular" }

// directoryHandle is the directory vtable: each read emits the next dentry's name and advances
// to the following one.
type directoryHandle struct {
	image *fs.FS
	next  int
}

func (h *directoryHandle) Open(inode int32) error {
	h.next = 0
	return nil
}

func (h *directoryHandle) Close() error { return nil }

func (h *directoryHandle) Read(buf []byte) int {
	if h.next >= h.image.NumDentries() {
		return 0
	}

	d, err := h.image.FindDentryByIndex(h.next)
	if err != nil {
		return 0
	}

	h.next++

	name := d.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return copy(buf, name)
}

func (h *directoryHandle) Write(buf []byte) int { return -1 }

func (h *directoryHandle) Name() string { return "directory" }

// rtcHandle adapts the shared rtc.RTC driver to the fd vtable for one process.
type rtcHandle struct {
	driver *rtc.RTC
	pid    int
}

func (h *rtcHandle) Open(inode int32) error {
	h.driver.Open(h.pid)
	return nil
}

func (h *rtcHandle) Close() error {
	h.driver.Close(h.pid)
	return nil
}

func (h *rtcHandle) Read(buf []byte) int {
	return h.driver.Read(h.pid)
}

func (h *rtcHandle) Write(buf []byte) int {
	if len(buf) != 4 {
		return -1
	}

	hz := binary.LittleEndian.Uint32(buf)

	return h.driver.Write(h.pid, hz, len(buf))
}

func (h *rtcHandle) Name() string { return "rtc" }

// terminalIn and terminalOut are the stdin/stdout handles installed in fd slots 0 and 1:
// blocking line reads and unbuffered writes against the process's own terminal.
type terminalIn struct {
	term *Trident
	t    TerminalID
}

func (h *terminalIn) Open(inode int32) error  { return nil }
func (h *terminalIn) Close() error            { return nil }
func (h *terminalIn) Write(buf []byte) int    { return -1 }
func (h *terminalIn) Name() string            { return "stdin" }
func (h *terminalIn) Read(buf []byte) int {
	return h.term.mux.ReadLine(int(h.t), buf)
}

type terminalOut struct {
	term *Trident
	t    TerminalID
}

func (h *terminalOut) Open(inode int32) error { return nil }
func (h *terminalOut) Close() error           { return nil }
func (h *terminalOut) Read(buf []byte) int    { return -1 }
func (h *terminalOut) Name() string           { return "stdout" }
func (h *terminalOut) Write(buf []byte) int {
	return h.term.mux.Write(int(h.t), buf)
}
