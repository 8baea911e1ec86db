package kernel

// intr.go implements interrupt dispatch: a vector table and a Dispatch entry point. Trident
// flattens what would otherwise be separate trap/ISR/exception tables into one vector space: a
// single software-interrupt gate for syscalls, 20 exception vectors, and a handful of device
// vectors.

import "fmt"

// Vector identifies an entry in the interrupt dispatch table.
type Vector uint8

// Interrupt vector assignments.
const (
	VectorDivideError   Vector = 0
	VectorPageFault     Vector = 14
	VectorGeneralProt   Vector = 13
	VectorInvalidOpcode Vector = 6
	VectorLastException Vector = 19

	VectorTimer    Vector = 0x20
	VectorKeyboard Vector = 0x21
	VectorRTC      Vector = 0x28

	VectorSyscall Vector = 0x80

	NumVectors = 256
)

// Handler services an interrupt, exception, or system call. It returns an error only for
// conditions the caller must translate into a process halt (see kernel.go's haltFromFault).
type Handler func(k *Trident, cause Cause) error

// Cause carries the information a handler needs about why it was invoked: which process faulted
// or made the call, and -- for exceptions -- a human-readable reason for the distinguished halt
// status.
type Cause struct {
	PID    PID
	Vector Vector
	Reason string
}

// Interrupt is the vector table (component B): a slot per vector, each registered at most once.
// Trident.registerVectors (kernel.go) fills the device and exception vectors; VectorSyscall stays
// unregistered, since system calls are direct methods on Trident.
type Interrupt struct {
	idt [NumVectors]Handler
}

// Register installs handler at vector. A second registration of an already-occupied vector
// panics: it is a kernel configuration bug, not a runtime condition.
func (in *Interrupt) Register(vec Vector, handler Handler) {
	if in.idt[vec] != nil {
		panic(fmt.Sprintf("kernel: vector %#x already registered", vec))
	}

	in.idt[vec] = handler
}

// Dispatch invokes the handler registered for vec, if any. An unregistered vector is logged and
// ignored, mirroring a default "spurious interrupt" vector.
func (in *Interrupt) Dispatch(k *Trident, vec Vector, cause Cause) error {
	h := in.idt[vec]
	if h == nil {
		k.log.Warn("intr: unregistered vector", "vector", fmt.Sprintf("%#x", uint8(vec)))
		return nil
	}

	return h(k, cause)
}
