// Package cli implements the mediakit commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mediakit/internal/config"
	"mediakit/internal/container"
	"mediakit/internal/session"
)

// ErrUsage is returned when the command line cannot be understood. Usage has
// already been printed.
var ErrUsage = errors.New("usage")

// Run executes the command named by args[0].
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		PrintUsage(stdout)
		return ErrUsage
	}
	cmds := map[string]func(context.Context, *env, []string) error{
		"info":         runInfo,
		"import":       runImport,
		"transcode":    runTranscode,
		"export-dicom": runExportDICOM,
	}
	name := args[0]
	if name == "-h" || name == "-help" || name == "--help" || name == "help" {
		PrintUsage(stdout)
		return nil
	}
	cmd, ok := cmds[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		PrintUsage(stderr)
		return ErrUsage
	}
	return cmd(ctx, &env{name: name, stdout: stdout, stderr: stderr}, args[1:])
}

// env is what every command needs once its flags are parsed.
type env struct {
	name           string
	stdout, stderr io.Writer

	fs         *flag.FlagSet
	configPath string
	dir        string

	cfg    *config.Config
	logger *slog.Logger
}

// flags starts a flag set carrying the common -config and -c flags.
func (e *env) flags() *flag.FlagSet {
	e.fs = flag.NewFlagSet(e.name, flag.ContinueOnError)
	e.fs.SetOutput(e.stderr)
	e.fs.StringVar(&e.configPath, "config", "", "YAML configuration file")
	e.fs.StringVar(&e.dir, "c", "", "container directory (required)")
	return e.fs
}

// parse parses args and loads the configuration.
func (e *env) parse(args []string) error {
	if err := e.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return ErrUsage
	}
	if e.dir == "" {
		fmt.Fprintln(e.stderr, "-c is required")
		e.fs.Usage()
		return ErrUsage
	}
	e.cfg = config.Default()
	if e.configPath != "" {
		cfg, err := config.Load(e.configPath)
		if err != nil {
			return err
		}
		e.cfg = cfg
	}
	e.logger = e.cfg.Logger(e.stderr)
	return nil
}

// open opens the container and a session over it.
func (e *env) open() (*container.Dir, *session.Session, error) {
	if _, err := os.Stat(e.dir); err != nil && e.name != "import" {
		return nil, nil, fmt.Errorf("container does not exist: %s", e.dir)
	}
	reg, err := e.cfg.Registry(e.logger)
	if err != nil {
		return nil, nil, err
	}
	c, err := container.OpenDir(e.dir, e.cfg.ByteOrder(), e.logger)
	if err != nil {
		return nil, nil, err
	}
	return c, session.New(reg, c, e.logger, e.cfg.Criterion()), nil
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.stdout, format, args...)
}

// PrintUsage prints the command summary.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `mediakit - video essence container tool

USAGE:
  mediakit <command> -c <dir> [flags]

COMMANDS:
  info          List channels: codec, geometry, sample counts, frame offsets
  import        Create a channel from raw interleaved RGB frames
  transcode     Re-encode every channel with another codec
  export-dicom  Write a JPEG channel as a DICOM file

COMMON FLAGS:
  -c <dir>          Container directory
  -config <file>    YAML configuration (logging, selection, jpeg, tiff, batch)

EXAMPLES:
  mediakit import -c clip -codec jpeg -in frames.rgb -width 720 -height 486
  mediakit info -c clip -offsets
  mediakit transcode -c clip -codec tiff -workers 8
  mediakit export-dicom -c clip -id <descriptor> -o clip.dcm
`)
}

func rule() string { return strings.Repeat("=", 50) }
