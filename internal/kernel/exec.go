package kernel

// exec.go implements execute and halt, using a per-child buffered channel (done) for the "caller
// blocks until status is ready" handoff -- the Go analogue of an interrupt-style return to user
// mode and a jump to the parent's execute-return label.
//
// Trident does not interpret the loaded bytes as x86 instructions (doc.go); a Program is instead
// a Go closure registered under the executable's filesystem name, run on its own goroutine. Since
// execute() blocks its caller until the child halts, and a
// blocking terminal/rtc read already suspends only the calling goroutine, Go's own scheduler
// provides the concurrency the three terminals' independently-blocked shells need;
// Trident.schedulerTick (sched.go) is left to perform the bookkeeping steps (console cursor swap,
// page directory reinstall, inactive-terminal bootstrap), rather than actually pausing and
// resuming Go code not at an I/O boundary.

import (
	"strings"
)

// Program is a user-mode entry point: what would otherwise be a loaded ELF binary's _start.
type Program func(p *Process) int32

// RegisterProgram installs prog under name, matching a regular-file dentry of the same name in
// the filesystem image. internal/userland's Register calls this once at boot for each built-in
// program.
func (k *Trident) RegisterProgram(name string, prog Program) {
	k.mut.Lock()
	defer k.mut.Unlock()

	if k.programs == nil {
		k.programs = map[string]Program{}
	}

	k.programs[name] = prog
}

// Process is the handle a running Program uses to reach the syscall surface: the Go
// analogue of the register/argument convention a real `int 0x80` trap would decode.
type Process struct {
	k   *Trident
	pid PID
}

// PID returns the process's own pid.
func (p *Process) PID() PID { return p.pid }

// Execute runs command as this process's child, blocking until it halts, and returns its status
// (or -1/-2 for an unknown command or a full process table, respectively).
func (p *Process) Execute(command string) int32 { return p.k.Execute(p.pid, command) }

// Halt ends this process with status; Programs normally just return their status instead, but
// Halt is exposed for programs that need to terminate from a nested call.
func (p *Process) Halt(status int32) { p.k.Halt(p.pid, status) }

func (p *Process) Open(name string) int32    { return p.k.Open(p.pid, name) }
func (p *Process) Close(fd int) int32        { return p.k.CloseFD(p.pid, fd) }
func (p *Process) Read(fd int, buf []byte) int32  { return p.k.ReadFD(p.pid, fd, buf) }
func (p *Process) Write(fd int, buf []byte) int32 { return p.k.WriteFD(p.pid, fd, buf) }
func (p *Process) GetArgs(buf []byte) int32  { return p.k.GetArgs(p.pid, buf) }
func (p *Process) Vidmap() (uint32, int32)   { return p.k.Vidmap(p.pid) }
func (p *Process) SetHandler(int32, uintptr) int32 { return -1 }
func (p *Process) Sigreturn() int32                { return -1 }

// parseCommand splits command into its executable name (first space-delimited token, max 32
// bytes) and args string (the remainder, up to 128 bytes).
func parseCommand(command string) (name, args string) {
	command = strings.TrimRight(command, "\n\x00")

	i := strings.IndexByte(command, ' ')
	if i < 0 {
		return truncate(command, 32), ""
	}

	name = truncate(command[:i], 32)
	args = truncate(strings.TrimLeft(command[i+1:], " "), 128)

	return name, args
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}

	return s
}

// Execute implements execute(command). callerPID is BadPID when bootstrapping a terminal's
// first shell (no parent).
func (k *Trident) Execute(callerPID PID, command string) int32 {
	name, args := parseCommand(command)

	if !k.image.IsExecutable(name) {
		return -1
	}

	k.mut.Lock()
	prog, known := k.programs[name]
	k.mut.Unlock()

	if !known {
		return -1
	}

	k.mut.Lock()

	pid, err := k.procs.RequestPID()
	if err != nil {
		k.mut.Unlock()
		k.log.Warn("kernel: execute: no free process slots", "command", command)
		return -2
	}

	term := TerminalID(0)

	switch {
	case k.mux.FirstInactive() >= 0:
		term = TerminalID(k.mux.FirstInactive())
		k.mux.Activate(int(term))
	case callerPID != BadPID:
		term = k.procs.Get(callerPID).Terminal
	}

	var callerDir *PageDirectory
	if callerPID != BadPID {
		callerDir = k.paging.Directory(callerPID)
	}

	dir := k.paging.NewProcessDirectory(pid, term)
	k.paging.Install(dir)

	mem := make([]byte, KernelPageSize)

	_, loadErr := k.image.LoadImage(name, mem[ProgramLoadOffset:])
	if loadErr != nil {
		if callerDir != nil {
			k.paging.Install(callerDir)
		}

		k.procs.ReleasePID(pid)
		k.mut.Unlock()

		return -1
	}

	pcb := k.procs.Get(pid)
	pcb.ParentPID = callerPID
	pcb.Terminal = term
	pcb.Active = true
	pcb.Args = args
	pcb.Fds.reset(&terminalIn{term: k, t: term}, &terminalOut{term: k, t: term})

	if k.userMem == nil {
		k.userMem = make(map[PID][]byte, MaxProcesses)
	}

	k.userMem[pid] = mem

	if callerPID != BadPID {
		k.procs.Get(callerPID).Active = false
	}

	k.procs.setCurrent(pid)

	if k.halters == nil {
		k.halters = make(map[PID]chan int32, MaxProcesses)
	}

	done := make(chan int32, 1)
	k.halters[pid] = done

	k.mut.Unlock()

	go func() {
		proc := &Process{k: k, pid: pid}
		status := prog(proc)
		k.Halt(pid, status)
	}()

	return <-done
}

// Halt implements halt(status). A process whose parent_pid is BadPID is a terminal's
// root shell: its terminal goes inactive and a fresh shell is launched on it in its place (the
// call "does not return", matched here by a tail call instead of sending to a waiting parent).
func (k *Trident) Halt(pid PID, status int32) {
	k.mut.Lock()

	pcb := k.procs.Get(pid)
	pcb.Fds.closeUserFDs()
	parent := pcb.ParentPID
	term := pcb.Terminal

	delete(k.userMem, pid)
	k.procs.ReleasePID(pid)

	if parent != BadPID && k.procs.Live(parent) {
		k.procs.Get(parent).Active = true
		k.procs.setCurrent(parent)

		if dir := k.paging.Directory(parent); dir != nil {
			k.paging.Install(dir)
		}
	}

	done, waiting := k.halters[pid]
	delete(k.halters, pid)

	k.mut.Unlock()

	// done is populated by every Execute call, whether or not its caller is actually waiting on
	// the return value (schedulerTick's "go k.Execute(BadPID, \"shell\")" is fire-and-forget), so
	// the respawn decision below turns on parent == BadPID, not on waiting -- sending here only
	// releases Execute's own goroutine from blocking on <-done.
	if waiting {
		done <- status
	}

	if parent == BadPID {
		// This was a terminal's root shell, with no Process awaiting its status. Restart it in
		// place.
		k.mux.Activate(int(term)) // Remains active: a fresh shell is about to occupy the slot.
		k.Execute(BadPID, "shell")
	}
}
