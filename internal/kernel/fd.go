package kernel

// fd.go implements the file-descriptor table as a tagged interface: a shared trait for
// read/write/open/close rather than raw function pointers in a record, generalized from
// per-device register dispatch to file descriptors.

import "errors"

// ErrBadFD is returned when a file-descriptor index or slot is invalid for the requested
// operation.
var ErrBadFD = errors.New("kernel: bad file descriptor")

// FileHandle is the shared interface every kind of open file implements: the fd vtable.
type FileHandle interface {
	// Open is called once, when Trident.Open installs the descriptor, with the inode index the
	// directory entry resolved to; handles not backed by an inode, such as rtc, ignore it. The
	// stdin/stdout handles a process starts with are not opened through this method.
	Open(inode int32) error

	// Close releases any state held by the handle.
	Close() error

	// Read copies up to len(buf) bytes into buf, returning the count read or -1 on error.
	Read(buf []byte) int

	// Write copies up to len(buf) bytes from buf, returning the count written or -1 on error.
	Write(buf []byte) int

	// Name identifies the handle kind for logging and invariant checks (e.g. "rtc",
	// "directory", "regular", "stdin", "stdout").
	Name() string
}

// FD is one slot of a process's file-descriptor table.
type FD struct {
	handle  FileHandle
	inode   int32
	offset  int
	inUse   bool
}

// NumFDs is the number of descriptor slots per process: 0 and 1 are console in/out, 2-7 are
// user-openable.
const NumFDs = 8

// FDTable is a process's file-descriptor table.
type FDTable [NumFDs]FD

// reset clears every slot, then installs stdin/stdout in slots 0 and 1.
func (t *FDTable) reset(stdin, stdout FileHandle) {
	for i := range t {
		t[i] = FD{}
	}

	t[0] = FD{handle: stdin, inode: -1, inUse: true}
	t[1] = FD{handle: stdout, inode: -1, inUse: true}
}

// allocate finds the lowest free slot in [2, NumFDs) and installs handle into it, returning the
// fd number.
func (t *FDTable) allocate(handle FileHandle, inode int32) (int, error) {
	for i := 2; i < NumFDs; i++ {
		if !t[i].inUse {
			t[i] = FD{handle: handle, inode: inode, inUse: true}
			return i, nil
		}
	}

	return -1, ErrBadFD
}

// release marks fd (must be in [2, NumFDs)) free again.
func (t *FDTable) release(fd int) error {
	if fd < 2 || fd >= NumFDs || !t[fd].inUse {
		return ErrBadFD
	}

	t[fd] = FD{}

	return nil
}

// closeUserFDs closes and releases every in-use slot in [2, NumFDs), used by halt.
func (t *FDTable) closeUserFDs() {
	for i := 2; i < NumFDs; i++ {
		if t[i].inUse {
			_ = t[i].handle.Close()
			t[i] = FD{}
		}
	}
}

func (t *FDTable) get(fd int) (*FD, error) {
	if fd < 0 || fd >= NumFDs || !t[fd].inUse {
		return nil, ErrBadFD
	}

	return &t[fd], nil
}
