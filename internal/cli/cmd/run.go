package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cbrewer/trident/internal/cli"
	"github.com/cbrewer/trident/internal/kernel"
	"github.com/cbrewer/trident/internal/log"
	"github.com/cbrewer/trident/internal/tty"
	"github.com/cbrewer/trident/internal/userland"
)

// Run boots a Trident kernel from a filesystem image and attaches it to the host terminal.
func Run() cli.Command {
	return &runner{hz: kernel.DefaultSchedulerHz}
}

type runner struct {
	image string
	hz    int
}

func (runner) Description() string {
	return "boot the teaching kernel against a filesystem image"
}

func (r runner) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run -image disk.img

Boots the kernel, mounting the named filesystem image, and attaches the
three virtual terminals to the controlling tty. Switch terminals with
Ctrl+A/B/C; exit a shell with "exit".`)

	return err
}

func (r *runner) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	fs.StringVar(&r.image, "image", "", "path to the filesystem image")
	fs.IntVar(&r.hz, "hz", kernel.DefaultSchedulerHz, "scheduler timer rate in Hz")

	return fs
}

// Run assembles the kernel, registers the built-in userland programs, and drives an interactive
// session until ctx is canceled (Ctrl+C) or the host's standard input closes.
func (r *runner) Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int {
	if r.image == "" {
		logger.Error("run: -image is required")
		return 1
	}

	img, err := os.ReadFile(r.image)
	if err != nil {
		logger.Error("run: reading image", "err", err)
		return 1
	}

	k, err := kernel.New(img, kernel.WithLogger(logger))
	if err != nil {
		logger.Error("run: building kernel", "err", err)
		return 1
	}

	userland.Register(k)

	console, err := tty.NewConsole(k, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error("run: attaching console", "err", err)
		return 1
	}
	defer console.Restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go k.RunScheduler(ctx, r.hz)
	go k.RunRTC(ctx)

	k.StartScheduling()

	logger.Info("Trident booted", "image", r.image)

	console.Run(ctx)

	return 0
}
