// Command trident is the command-line interface to Trident, a teaching kernel simulator.
package main

import (
	"context"
	"os"

	"github.com/cbrewer/trident/internal/cli"
	"github.com/cbrewer/trident/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Run(),
}

func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
