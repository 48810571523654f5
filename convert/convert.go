package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cosiner/argv"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"

	"github.com/sokcho-kim/docmask/format"
	"github.com/sokcho-kim/docmask/mask"
	"github.com/sokcho-kim/docmask/util"
)

// Command template placeholders, replaced per conversion with the input file
// path, the expected output file path, and the scratch directory.
const (
	phInput  = "{{input}}"
	phOutput = "{{output}}"
	phOutdir = "{{outdir}}"
)

const outputLimit = 512

type Config struct {
	// Command is the conversion command template. It must reference {{input}}
	// and may reference {{output}} and {{outdir}}. Converters that derive the
	// output name themselves, like soffice --convert-to, only need {{outdir}}.
	Command string

	// Timeout bounds a single conversion when greater than zero.
	Timeout time.Duration

	Logger hclog.Logger
}

// Office converts word-processor documents to PDF by shelling out to an
// external office application. Office applications tolerate one instance at a
// time, so conversions are serialized on a single semaphore slot no matter how
// many goroutines share the converter.
type Office struct {
	command string
	timeout time.Duration
	sem     *semaphore.Weighted
	l       hclog.Logger
}

var _ mask.Converter = &Office{}

func NewOffice(cfg Config) (*Office, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("converter command must not be empty")
	}
	if !strings.Contains(cfg.Command, phInput) {
		return nil, fmt.Errorf("converter command must reference %s, command=%s", phInput, cfg.Command)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be a nonnegative duration, timeout='%s'", cfg.Timeout)
	}
	// Surface template quoting mistakes at startup rather than mid-pipeline.
	if _, err := parseCommand(renderCommand(cfg.Command, "input", "output", "outdir")); err != nil {
		return nil, err
	}
	l := cfg.Logger
	if l == nil {
		l = hclog.Default()
	}
	return &Office{
		command: cfg.Command,
		timeout: cfg.Timeout,
		sem:     semaphore.NewWeighted(1),
		l:       l,
	}, nil
}

// Convert writes b into a scratch directory, runs the configured command, and
// returns the produced PDF bytes. The scratch directory is removed before
// returning on every path.
func (o *Office) Convert(ctx context.Context, b []byte, src format.Tag) ([]byte, error) {
	if !src.Convertible() {
		return nil, fmt.Errorf("no conversion defined for format, format=%s", src)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("cannot convert an empty document, format=%s", src)
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.sem.Release(1)

	dir, err := os.MkdirTemp("", "docmask-convert")
	if err != nil {
		return nil, fmt.Errorf("unable to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// The office application derives the output name from the input name, so
	// both share a random basename.
	name := uuid.New().String()
	inPath := filepath.Join(dir, name+src.Ext())
	outPath := filepath.Join(dir, name+".pdf")
	if err := os.WriteFile(inPath, b, 0600); err != nil {
		return nil, fmt.Errorf("unable to write scratch input: %w", err)
	}

	rendered := renderCommand(o.command, inPath, outPath, dir)
	p, err := parseCommand(rendered)
	if err != nil {
		return nil, err
	}
	if _, err := util.HostCommandExists(p.cmd); err != nil {
		return nil, err
	}

	ectx := ctx
	if 0 < o.timeout {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	o.l.Debug("converting document", "format", src.String(), "command", p.cmd)
	bts, err := exec.CommandContext(ectx, p.cmd, p.args...).CombinedOutput()
	if err != nil {
		// A deadline or cancellation kills the process; report the context
		// error so callers can tell a timeout from a converter crash.
		if ctxErr := ectx.Err(); ctxErr != nil {
			return nil, ExecError{command: rendered, err: ctxErr}
		}
		return nil, ExecError{command: rendered, output: trimOutput(bts), err: err}
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, OutputError{command: rendered, reason: "output file missing", err: err}
	}
	if len(out) == 0 {
		return nil, OutputError{command: rendered, reason: "output file empty"}
	}
	if format.Sniff(out) != format.PDF {
		return nil, OutputError{command: rendered, reason: "output is not a pdf"}
	}

	o.l.Debug("converted document", "format", src.String(), "bytes", len(out))
	return out, nil
}

func renderCommand(command, input, output, outdir string) string {
	return strings.NewReplacer(
		phInput, input,
		phOutput, output,
		phOutdir, outdir,
	).Replace(command)
}

type parsedCommand struct {
	cmd  string
	args []string
}

func parseCommand(command string) (parsedCommand, error) {
	parsed := parsedCommand{}

	// Windows re-joins the arguments into a single string and splits them
	// itself (see doc comments on exec.Command), and its paths trip up argv's
	// escaping. A plain space split is enough there.
	if runtime.GOOS == "windows" {
		split := strings.Split(command, " ")
		parsed.cmd = split[0]
		parsed.args = split[1:]
		return parsed, nil
	}

	p, err := argv.Argv(command, nil, nil)
	if err != nil {
		return parsed, ParseError{command: command, err: err}
	}
	if len(p) > 1 {
		return parsed, ParseError{
			command: command,
			err:     fmt.Errorf("piped commands are unsupported in a converter command"),
		}
	}

	parsed.cmd = p[0][0]
	parsed.args = p[0][1:]
	return parsed, nil
}

func trimOutput(bts []byte) string {
	out := strings.TrimSpace(string(bts))
	if len(out) > outputLimit {
		out = out[:outputLimit]
	}
	return out
}

var _ error = ParseError{}

type ParseError struct {
	command string
	err     error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("error parsing converter command, command=%s, error=%s", e.command, e.err.Error())
}

func (e ParseError) Unwrap() error {
	return e.err
}

var _ error = ExecError{}

type ExecError struct {
	command string
	output  string
	err     error
}

func (e ExecError) Error() string {
	if e.output == "" {
		return fmt.Sprintf("converter exec error, command=%s, error=%s", e.command, e.err.Error())
	}
	return fmt.Sprintf("converter exec error, command=%s, output=%s, error=%s", e.command, e.output, e.err.Error())
}

func (e ExecError) Unwrap() error {
	return e.err
}

var _ error = OutputError{}

type OutputError struct {
	command string
	reason  string
	err     error
}

func (e OutputError) Error() string {
	return fmt.Sprintf("converter produced no usable output, reason=%s, command=%s", e.reason, e.command)
}

func (e OutputError) Unwrap() error {
	return e.err
}
