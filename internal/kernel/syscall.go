package kernel

// syscall.go implements the remaining system calls: open/close/read/write, getargs, and vidmap,
// plus a stub handler/sigreturn pair kept for ABI completeness. Dispatch follows a vtable pattern
// over fd.go's FileHandle table, generalized from per-device register dispatch.
//
// Every syscall here takes an explicit pid rather than consulting a package-level "current
// process": each running Program already knows its own identity (see exec.go's Process), and the
// single-CPU assumption is approximated here by k.mut bracketing fd-table mutation rather than by
// funneling every call through one global "current" pointer (see kernel.go).

import "fmt"

// Open implements open(name): finds the dentry, installs the lowest free fd >= 2 with the
// matching vtable, and returns the fd or -1.
func (k *Trident) Open(pid PID, name string) int32 {
	k.mut.Lock()
	defer k.mut.Unlock()

	pcb := k.procs.Get(pid)

	d, err := k.image.FindDentryByName(name)
	if err != nil {
		return -1
	}

	var handle FileHandle

	switch d.Type {
	case 0: // rtc
		handle = &rtcHandle{driver: k.rtc, pid: int(pid)}
	case 1: // directory
		handle = &directoryHandle{image: k.image}
	case 2: // regular
		handle = &regularHandle{image: k.image}
	default:
		return -1
	}

	fd, err := pcb.Fds.allocate(handle, int32(d.InodeIdx))
	if err != nil {
		return -1
	}

	if err := handle.Open(int32(d.InodeIdx)); err != nil {
		_ = pcb.Fds.release(fd)
		return -1
	}

	return int32(fd)
}

// CloseFD implements close(fd): only fds 2-7, must be in use.
func (k *Trident) CloseFD(pid PID, fd int) int32 {
	k.mut.Lock()
	pcb := k.procs.Get(pid)
	f, err := pcb.Fds.get(fd)
	k.mut.Unlock()

	if err != nil || fd < 2 {
		return -1
	}

	_ = f.handle.Close()

	k.mut.Lock()
	err = pcb.Fds.release(fd)
	k.mut.Unlock()

	if err != nil {
		return -1
	}

	return 0
}

// ReadFD implements read(fd,buf,n): delegates to the fd's vtable. Blocking handles (stdin, rtc)
// block the calling goroutine only, per exec.go's header comment.
func (k *Trident) ReadFD(pid PID, fd int, buf []byte) int32 {
	k.mut.Lock()
	pcb := k.procs.Get(pid)
	f, err := pcb.Fds.get(fd)
	k.mut.Unlock()

	if err != nil {
		return -1
	}

	return int32(f.handle.Read(buf))
}

// WriteFD implements write(fd,buf,n).
func (k *Trident) WriteFD(pid PID, fd int, buf []byte) int32 {
	k.mut.Lock()
	pcb := k.procs.Get(pid)
	f, err := pcb.Fds.get(fd)
	k.mut.Unlock()

	if err != nil {
		return -1
	}

	return int32(f.handle.Write(buf))
}

// GetArgs implements getargs(buf,n): -1 if the caller's args string is empty; else
// copies strlen(args)+1 bytes (including the NUL) if they fit in buf, otherwise copies len(buf)
// raw bytes.
func (k *Trident) GetArgs(pid PID, buf []byte) int32 {
	k.mut.Lock()
	args := k.procs.Get(pid).Args
	k.mut.Unlock()

	if args == "" {
		return -1
	}

	withNul := append([]byte(args), 0)

	if len(withNul) <= len(buf) {
		copy(buf, withNul)
	} else {
		copy(buf, withNul[:len(buf)])
	}

	return 0
}

// errOutOfUserSpace describes a vidmap destination outside user space. Vidmap takes no
// destination pointer, so it never returns this error.
var errOutOfUserSpace = fmt.Errorf("kernel: vidmap destination outside user space")

// Vidmap implements vidmap: it installs the caller's terminal's vidmap page table and returns
// the fixed virtual address the mapping appears at, always with status 0. It returns the address
// rather than writing it through an output pointer, so no destination bounds check is made.
func (k *Trident) Vidmap(pid PID) (addr uint32, status int32) {
	k.mut.Lock()
	defer k.mut.Unlock()

	pcb := k.procs.Get(pid)

	visiblePhys := Word(k.mux.PhysicalAddr())
	if pcb.Terminal != TerminalID(k.mux.Visible()) {
		visiblePhys = Word(k.mux.BackingAddr(int(pcb.Terminal)))
	}

	vaddr := k.paging.InstallVidmap(pid, pcb.Terminal, visiblePhys)

	if dir := k.paging.Installed(); dir != nil {
		k.paging.Install(dir)
	}

	return uint32(vaddr), 0
}

// validUserAddr reports whether addr..addr+n lies within a process's 4 MiB user region. Vidmap
// does not call it: Process.Vidmap takes no output pointer and returns the address instead.
func validUserAddr(addr, n uint32) bool {
	return addr >= uint32(UserVirtAddr) && addr+n <= uint32(UserVirtAddr)+uint32(KernelPageSize)
}
