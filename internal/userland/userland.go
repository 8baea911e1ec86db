// Package userland supplies the Go closures Trident runs in place of loaded x86 machine code (see
// internal/kernel/doc.go): each one is registered under the filesystem name of a corresponding
// regular file in the disk image, and reaches the kernel only through *kernel.Process -- the same
// surface a real ELF binary would reach via `int 0x80`.
package userland

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cbrewer/trident/internal/kernel"
)

// Register installs every built-in program on k, under the names their corresponding filesystem
// image entries must carry.
func Register(k *kernel.Trident) {
	k.RegisterProgram("shell", Shell)
	k.RegisterProgram("cat", Cat)
	k.RegisterProgram("ls", Ls)
	k.RegisterProgram("echo", Echo)
	k.RegisterProgram("counter", Counter)
}

const prompt = "391OS> "

// Shell implements the teaching kernel's default interactive program: a read-eval-print loop over
// stdin/stdout, printing the prompt, reading one line, and running it as a child via execute
// unless it is one of the two builtins below.
func Shell(p *kernel.Process) int32 {
	buf := make([]byte, 128)

	for {
		p.Write(1, []byte(prompt))

		n := p.Read(0, buf)
		if n <= 0 {
			continue
		}

		line := strings.TrimRight(string(buf[:n]), "\n")
		if line == "" {
			continue
		}

		switch line {
		case "exit", "halt":
			return 0
		}

		status := p.Execute(line)

		switch status {
		case -1:
			p.Write(1, []byte(fmt.Sprintf("no such command: %s\n", line)))
		case -2:
			p.Write(1, []byte("cannot run command, process table full\n"))
		}
	}
}

// Cat implements a file-dumping program: it opens getargs' filename and copies its contents to
// stdout. Naming a directory such as "." lists its entry names through the directory vtable;
// with no filename it prints an error and returns 1.
func Cat(p *kernel.Process) int32 {
	var args [128]byte

	if p.GetArgs(args[:]) != 0 {
		p.Write(1, []byte("cat: missing filename\n"))
		return 1
	}

	name := trimArgs(args[:])

	fd := p.Open(name)
	if fd < 0 {
		p.Write(1, []byte(fmt.Sprintf("cat: %s: not found\n", name)))
		return 1
	}
	defer p.Close(int(fd))

	buf := make([]byte, 4096)

	for {
		n := p.Read(int(fd), buf)
		if n <= 0 {
			break
		}

		p.Write(1, buf[:n])
	}

	return 0
}

// Ls implements the directory-listing program: opens "."
// and reads dentry names until read returns 0.
func Ls(p *kernel.Process) int32 {
	fd := p.Open(".")
	if fd < 0 {
		p.Write(1, []byte("ls: cannot open directory\n"))
		return 1
	}
	defer p.Close(int(fd))

	name := make([]byte, 32)

	for {
		n := p.Read(int(fd), name)
		if n <= 0 {
			break
		}

		p.Write(1, bytes.TrimRight(name[:n], "\x00"))
		p.Write(1, []byte("\n"))
	}

	return 0
}

// Echo writes its args string followed by a newline to stdout.
func Echo(p *kernel.Process) int32 {
	var args [128]byte

	if p.GetArgs(args[:]) == 0 {
		p.Write(1, []byte(trimArgs(args[:])))
	}

	p.Write(1, []byte("\n"))

	return 0
}

// Counter exercises the rtc pseudo-file: opens it, blocks on ten ticks, and prints a
// dot per tick.
func Counter(p *kernel.Process) int32 {
	fd := p.Open("rtc")
	if fd < 0 {
		p.Write(1, []byte("counter: rtc unavailable\n"))
		return 1
	}
	defer p.Close(int(fd))

	for i := 0; i < 10; i++ {
		p.Read(int(fd), nil)
		p.Write(1, []byte("."))
	}

	p.Write(1, []byte("\n"))

	return 0
}

func trimArgs(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return strings.TrimSpace(string(b))
}
