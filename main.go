package main

import (
	"os"

	"github.com/mitchellh/cli"

	"github.com/sokcho-kim/docmask/command"
	"github.com/sokcho-kim/docmask/version"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ui := &cli.BasicUi{
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	c := cli.NewCLI("docmask", version.GetVersion().SemanticVersion())
	c.Args = os.Args[1:]
	c.Commands = command.Commands(ui)

	exitStatus, err := c.Run()
	if err != nil {
		ui.Error(err.Error())
	}

	return exitStatus
}
