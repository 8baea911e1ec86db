package kernel

// sched.go implements the scheduler. See exec.go's header comment for why, in a goroutine-native
// simulation where execute() already blocks on its child and blocking reads already suspend only
// the calling goroutine, schedulerTick's real work is bookkeeping -- the console cursor swap and
// page-directory reinstall -- plus noticing an inactive terminal and asking execute("shell") to
// claim it, rather than raw CPU handoff.
//
// The timer IRQ handler (kernel.go's registerVectors) is the sole entry point: a periodic timer
// interrupt is the sole scheduling trigger.

// StartScheduling flips the kernel from bootstrap into running (tracked by phase): before this
// call, timer ticks are ignored.
func (k *Trident) StartScheduling() {
	k.mut.Lock()
	defer k.mut.Unlock()

	k.started = true
	k.phase = phaseRunning
}

// schedulerTick runs once per timer IRQ (kernel.go's VectorTimer handler has already acknowledged
// the IRQ by the time this runs).
func (k *Trident) schedulerTick() {
	k.mut.Lock()

	if !k.started {
		k.mut.Unlock()
		return
	}

	if first := k.mux.FirstInactive(); first >= 0 {
		k.mut.Unlock()
		go k.Execute(BadPID, "shell")

		return
	}

	next := k.procs.NextSchedulable()
	if next == nil {
		k.mut.Unlock()
		return
	}

	cur := k.procs.Current()
	if cur != nil && cur.PID == next.PID {
		k.mut.Unlock()
		return
	}

	if cur != nil {
		k.mux.SyncVisibleCursor(int(cur.Terminal))
	}

	k.mux.SyncVisibleCursor(int(next.Terminal))

	if dir := k.paging.Directory(next.PID); dir != nil {
		k.paging.Install(dir)
	}

	k.procs.setCurrent(next.PID)

	k.mut.Unlock()
}
