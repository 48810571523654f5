package command

import (
	"github.com/mitchellh/cli"
)

// Commands returns the full set of CLI command factories, keyed by subcommand
// name.
func Commands(ui cli.Ui) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"run":     RunCommandFactory(ui),
		"version": VersionCommandFactory(ui),
	}
}
