package command

// Success indicates a successful command execution.
const Success int = 0

// The following error group is intended for issues within the command's execution.
const (
	// FlagParseError indicates that a command was unable to successfully parse the flags/arguments provided to it.
	FlagParseError int = iota + 16

	// ConfigError indicates that there was an error in the docmask configuration.
	ConfigError

	// SetupError is returned when errors are encountered while setting up prerequisites for a run; e.g. reading
	// the input document, creating temporary directories.
	SetupError

	// OutputError indicates an error writing or compressing the results bundle.
	OutputError
)

// The following error group is intended for issues with the engine.
const (
	// EngineSetupError is returned when the engine cannot be built from the provided configuration.
	EngineSetupError int = iota + 32

	// EngineExecutionError is returned when the engine returns an error to the calling command.
	EngineExecutionError
)
