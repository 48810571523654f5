package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-homedir"

	"github.com/sokcho-kim/docmask/format"
	"github.com/sokcho-kim/docmask/hcl"
	"github.com/sokcho-kim/docmask/mask"
	"github.com/sokcho-kim/docmask/step"
	"github.com/sokcho-kim/docmask/util"
	"github.com/sokcho-kim/docmask/version"
)

var _ cli.Command = &RunCommand{}

type RunCommand struct {
	ui    cli.Ui
	flags *flag.FlagSet

	dryrun bool

	// Input document location
	file string

	// Bundle write location
	destination string

	// HCL file location
	config string
}

func (c *RunCommand) init() {
	const (
		fileUsageText        = "Path to the document to scan"
		dryrunUsageText      = "Validates the configuration and resolves the document format without executing the detection pipeline."
		destinationUsageText = "Path to the directory the results bundle should be written in"
		destUsageText        = "Shorthand for -destination"
		configUsageText      = "Path to HCL configuration file"
	)

	// flag.ContinueOnError allows flag.Parse to return an error if one comes up, rather than doing an `os.Exit(2)`
	// on its own.
	c.flags = flag.NewFlagSet("run", flag.ContinueOnError)

	c.flags.BoolVar(&c.dryrun, "dryrun", false, dryrunUsageText)
	c.flags.StringVar(&c.file, "file", "", fileUsageText)
	c.flags.StringVar(&c.destination, "destination", ".", destinationUsageText)
	c.flags.StringVar(&c.destination, "dest", ".", destUsageText)
	c.flags.StringVar(&c.config, "config", "", configUsageText)

	// When invalid flags are provided, Go will output a usage message of its own. If we direct our flag set to
	// io.Discard, it will effectively be hidden, allowing us to print our own Help message upon failure.
	c.flags.SetOutput(io.Discard)
}

// NewRunCommand produces a new *command pointer, initialized for use in a CLI application.
func NewRunCommand(ui cli.Ui) *RunCommand {
	c := &RunCommand{ui: ui}
	c.init()
	return c
}

// RunCommandFactory provides a cli.CommandFactory that will produce an appropriately-initiated *command.
func RunCommandFactory(ui cli.Ui) cli.CommandFactory {
	return func() (cli.Command, error) {
		return NewRunCommand(ui), nil
	}
}

// Help provides help text to users who pass in the --help flag or who enter invalid options.
func (c *RunCommand) Help() string {
	helpText := `Usage: docmask run [options]

Executes a redaction detection run over a single document and writes the results bundle. Options are available to customize the execution.
`

	return Usage(helpText, c.flags)
}

// Synopsis provides a brief description of the command, for inclusion in the application's primary --help.
func (c *RunCommand) Synopsis() string {
	return "Execute a redaction detection run"
}

// Run executes the command.
func (c *RunCommand) Run(args []string) int {
	if err := c.parseFlags(args); err != nil {
		// Output the specific error to help the user understand what went wrong.
		c.ui.Warn(err.Error())
		// Since there was an issue in input, let's show our Help to try and assist the user.
		c.ui.Warn(c.Help())
		return FlagParseError
	}

	l := configureLogging("docmask")

	// Optional .env sits beside the process; model API keys usually live there.
	if err := godotenv.Load(); err == nil {
		l.Debug("Loaded .env file")
	}

	if c.file == "" {
		c.ui.Error("the -file flag is required")
		c.ui.Warn(c.Help())
		return FlagParseError
	}

	var cfg hcl.HCL
	if c.config != "" {
		path, err := homedir.Expand(c.config)
		if err != nil {
			l.Error("Failed to expand configuration path", "config", c.config, "error", err)
			return ConfigError
		}
		cfg, err = hcl.Parse(path)
		if err != nil {
			l.Error("Failed to load configuration", "config", c.config, "error", err)
			return ConfigError
		}
		l.Debug("HCL config is", "hcl", cfg)
	}

	engine, settings, err := hcl.BuildEngine(cfg, l)
	if err != nil {
		l.Error("problem creating engine", "error", err)
		return EngineSetupError
	}

	file, err := homedir.Expand(c.file)
	if err != nil {
		l.Error("Failed to expand document path", "file", c.file, "error", err)
		return SetupError
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		l.Error("unable to read document", "file", file, "error", err)
		return SetupError
	}

	if c.dryrun {
		return c.dryRun(raw, file, settings)
	}

	res, err := engine.Run(context.Background(), raw, filepath.Base(file), settings)
	if err != nil {
		l.Error("redaction run failed", "file", file, "error", err)
		return EngineExecutionError
	}

	dest, err := homedir.Expand(c.destination)
	if err != nil {
		l.Error("Failed to expand destination path", "destination", c.destination, "error", err)
		return SetupError
	}
	resultsFile, err := writeBundle(l, dest, res)
	if err != nil {
		l.Error("unable to write results bundle", "dest", dest, "error", err)
		return OutputError
	}

	if err = writeSummary(os.Stdout, resultsFile, res); err != nil {
		l.Warn("failed to generate report summary; please review output files to ensure everything expected is present", "err", err)
		return OutputError
	}

	return Success
}

// dryRun reports what a real run would do with the document and configuration
// without calling any collaborator.
func (c *RunCommand) dryRun(raw []byte, file string, settings mask.Settings) int {
	tag := format.Resolve(raw, filepath.Base(file))

	enabled := make([]string, 0)
	for _, cat := range settings.EnabledCategories() {
		enabled = append(enabled, string(cat))
	}
	c.ui.Output(fmt.Sprintf("format: %s", tag))
	c.ui.Output(fmt.Sprintf("enabled categories: %s", strings.Join(enabled, ", ")))

	if tag == format.Unknown {
		c.ui.Error("the document format is unsupported; a run would fail")
		return EngineExecutionError
	}
	return Success
}

// configureLogging takes a logger name, sets the default configuration, grabs the LOG_LEVEL from our ENV vars, and
// returns a configured and usable logger.
func configureLogging(loggerName string) hclog.Logger {
	// Create logger, set default and log level
	appLogger := hclog.New(&hclog.LoggerOptions{
		Name:  loggerName,
		Color: hclog.AutoColor,
	})
	hclog.SetDefault(appLogger)
	if logStr := os.Getenv("LOG_LEVEL"); logStr != "" {
		if level := hclog.LevelFromString(logStr); level != hclog.NoLevel {
			appLogger.SetLevel(level)
			appLogger.Debug("Logger configuration change", "LOG_LEVEL", hclog.Fmt("%s", logStr))
		}
	}
	return hclog.Default()
}

func (c *RunCommand) parseFlags(args []string) error {
	return c.flags.Parse(args)
}

// Manifest provides a subset of run state, specifically excluding everything
// read from the document itself, so run metadata can be shared safely.
type Manifest struct {
	Version string        `json:"version"`
	Format  string        `json:"format"`
	Started time.Time     `json:"started_at"`
	Ended   time.Time     `json:"ended_at"`
	Steps   []step.Record `json:"steps"`
}

// NewManifest summarizes a run result into a Manifest.
func NewManifest(res mask.Result) Manifest {
	m := Manifest{
		Version: version.GetVersion().SemanticVersion(),
		Format:  res.Document.Format().String(),
		Steps:   res.Steps,
	}
	if len(res.Steps) > 0 {
		m.Started = res.Steps[0].Start
		m.Ended = res.Steps[len(res.Steps)-1].End
	}
	return m
}

// writeBundle gathers the result files in a scratch directory and compresses
// them into dest, returning the bundle path.
func writeBundle(l hclog.Logger, dest string, res mask.Result) (string, error) {
	tmpDir, err := os.MkdirTemp("", "docmask")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "Document.pdf"), res.Document.Bytes(), 0644); err != nil {
		return "", err
	}
	if err := util.WriteJSON(res.Patterns, filepath.Join(tmpDir, "Patterns.json")); err != nil {
		return "", err
	}
	if err := util.WriteJSON(res.MaskingMap, filepath.Join(tmpDir, "MaskingMap.json")); err != nil {
		return "", err
	}
	if err := util.WriteJSON(NewManifest(res), filepath.Join(tmpDir, "Manifest.json")); err != nil {
		return "", err
	}

	resultsFile := filepath.Join(dest, DestinationFileName())
	if err := util.TarGz(tmpDir, resultsFile); err != nil {
		return "", err
	}
	l.Info("Created results bundle", "dest", resultsFile)
	return resultsFile, nil
}

// DestinationFileName calculates a name for the results bundle, based on the current time.
func DestinationFileName() string {
	timestamp := time.Now().Format(time.RFC3339)
	return fmt.Sprintf("docmask-%s.tar.gz", timestamp)
}

func writeSummary(writer io.Writer, resultsFile string, res mask.Result) error {
	if resultsFile == "" {
		resultsFile = "<unknown>"
	}
	helpText := fmt.Sprintf("The redaction run has completed. The results bundle can be found at %s.\n", resultsFile)
	_, err := writer.Write([]byte(helpText))
	if err != nil {
		return err
	}

	t := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	_, err = fmt.Fprint(t, formatReportLine("step", "status", "duration"))
	if err != nil {
		return err
	}

	for _, r := range res.Steps {
		_, err = fmt.Fprint(t, formatReportLine(
			r.Name,
			string(r.Status),
			r.Duration().Round(time.Millisecond).String()))
		if err != nil {
			return err
		}
	}

	err = t.Flush()
	if err != nil {
		return err
	}

	patterns := 0
	for _, texts := range res.Patterns {
		patterns += len(texts)
	}
	_, err = fmt.Fprintf(writer, "Confirmed %d pattern(s) across %d category(ies).\n", patterns, len(res.Patterns))
	return err
}

func formatReportLine(cells ...string) string {
	layout := ""

	// The coercion from the argument of type []string to type []interface is required for the later
	// call to fmt.Sprintf, in which variadic arguments must be of type any/interface{}.
	strValues := make([]interface{}, len(cells))
	for i, cell := range cells {
		layout += "%s\t"
		strValues[i] = cell
	}

	layout += "\n"

	return fmt.Sprintf(layout, strValues...)
}
