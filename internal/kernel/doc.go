package kernel

// doc.go records a scoping decision.
//
// Trident does not decode or interpret x86 machine code. The kernel is scoped to paging, the
// process/PCB model and syscalls, the scheduler, and the filesystem reader -- explicitly treating
// the CPU, boot loader, interrupt controller wiring, and scan-code tables as external
// collaborators. A user "program" here is a Go function (see internal/userland) that calls
// through the same syscall surface a real ELF binary would reach via `int 0x80`; load_image and
// is_executable still parse the on-disk ELF header for real, so the filesystem and loader
// contracts hold even though nothing decodes the loaded bytes as instructions.
