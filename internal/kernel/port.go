package kernel

// port.go implements the IRQ controller abstraction: the core only needs the semantic operations
// a real 8259-style controller performs (mask/unmask/EOI), not register-level port I/O. The
// CRTC's two cursor-position ports are the one place this kernel models port I/O directly, in
// internal/console's CRTCPorts.

// IRQ numbers used by this kernel.
type IRQ uint8

const (
	IRQTimer    IRQ = 0
	IRQKeyboard IRQ = 1
	IRQRTC      IRQ = 8
	NumIRQs         = 16
)

// IRQController models mask/unmask/EOI: the cascaded primary/secondary chips
// themselves are out of scope.
type IRQController struct {
	masked [NumIRQs]bool
}

// NewIRQController returns a controller with every line masked, as after a cold boot.
func NewIRQController() *IRQController {
	c := &IRQController{}
	for i := range c.masked {
		c.masked[i] = true
	}

	return c
}

// Mask disables irq.
func (c *IRQController) Mask(irq IRQ) { c.masked[irq] = true }

// Unmask enables irq.
func (c *IRQController) Unmask(irq IRQ) { c.masked[irq] = false }

// Masked reports whether irq is currently disabled.
func (c *IRQController) Masked(irq IRQ) bool { return c.masked[irq] }

// EOI acknowledges the interrupt, allowing the controller to signal further interrupts of
// irq's line. Since this kernel does not model the cascaded-chip protocol, EOI is a no-op and
// records nothing.
func (c *IRQController) EOI(_ IRQ) {}
