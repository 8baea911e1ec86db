package cmd_test

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"testing"

	"github.com/cbrewer/trident/internal/cli"
	"github.com/cbrewer/trident/internal/cli/cmd"
	"github.com/cbrewer/trident/internal/kernel"
	"github.com/cbrewer/trident/internal/log"
)

func TestRun_FlagSetParsesImageAndHz(tt *testing.T) {
	tt.Parallel()

	r := cmd.Run()
	fs := r.FlagSet()

	if err := fs.Parse([]string{"-image", "disk.img", "-hz", "75"}); err != nil {
		tt.Fatalf("Parse: %v", err)
	}

	if got := fs.Lookup("image").Value.String(); got != "disk.img" {
		tt.Errorf("image = %q, want %q", got, "disk.img")
	}

	if got := fs.Lookup("hz").Value.String(); got != "75" {
		tt.Errorf("hz = %q, want %q", got, "75")
	}
}

func TestRun_FlagSetDefaultsHzToSchedulerDefault(tt *testing.T) {
	tt.Parallel()

	r := cmd.Run()
	fs := r.FlagSet()

	if err := fs.Parse(nil); err != nil {
		tt.Fatalf("Parse: %v", err)
	}

	want := strconv.Itoa(kernel.DefaultSchedulerHz)
	if got := fs.Lookup("hz").Value.String(); got != want {
		tt.Errorf("default hz = %q, want %q", got, want)
	}
}

func TestRun_RequiresImage(tt *testing.T) {
	tt.Parallel()

	r := cmd.Run()
	fs := r.FlagSet()

	if err := fs.Parse(nil); err != nil {
		tt.Fatalf("Parse: %v", err)
	}

	var out bytes.Buffer

	status := r.Run(context.Background(), fs.Args(), &out, log.NewFormattedLogger(io.Discard))
	if status != 1 {
		tt.Errorf("Run with no -image status = %d, want 1", status)
	}
}

func TestRun_UsageAndDescriptionAreNonEmpty(tt *testing.T) {
	tt.Parallel()

	r := cmd.Run()

	if r.Description() == "" {
		tt.Error("Description is empty")
	}

	var out bytes.Buffer
	if err := r.Usage(&out); err != nil {
		tt.Fatalf("Usage: %v", err)
	}

	if out.Len() == 0 {
		tt.Error("Usage wrote nothing")
	}
}

func TestHelp_UsageListsEveryCommand(tt *testing.T) {
	tt.Parallel()

	cmds := []cli.Command{cmd.Run()}
	help := cmd.Help(cmds)

	var out bytes.Buffer
	if err := help.Usage(&out); err != nil {
		tt.Fatalf("Usage: %v", err)
	}

	if !bytes.Contains(out.Bytes(), []byte("trident <command>")) {
		tt.Error("help usage did not describe command invocation")
	}

	if !bytes.Contains(out.Bytes(), []byte("run")) {
		tt.Error("help usage did not list the run command")
	}
}

func TestHelp_RunWithNoArgsPrintsUsage(tt *testing.T) {
	tt.Parallel()

	help := cmd.Help([]cli.Command{cmd.Run()})

	status := help.Run(context.Background(), nil, &bytes.Buffer{}, nil)
	if status != 0 {
		tt.Errorf("Run status = %d, want 0", status)
	}
}
