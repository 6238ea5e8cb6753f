package logging

import (
	"os"
	"runtime/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
)

// Flag/env names for the verbosity and profiling surface shared by every
// modescore command.
const (
	FlagTrace      = "trace"
	FlagDebug      = "debug"
	FlagQuiet      = "quiet"
	FlagCPUProfile = "cpu-profile"
)

// IncludeVerbosityFlags registers the verbosity/profiling flags and wires
// StopProfiling into app.After so a CPU profile started by SetLoggingLevel
// is always closed out, even if the command's own After handler errors.
func IncludeVerbosityFlags(app *cli.App) {
	app.Flags = append(app.Flags,
		&cli.BoolFlag{
			Name:  FlagTrace,
			Usage: "enable trace-level logging",
		},
		&cli.BoolFlag{
			Name:    FlagDebug,
			Usage:   "enable debug-level logging",
			EnvVars: []string{"MODESCORE_DEBUG"},
		},
		&cli.BoolFlag{
			Name:    FlagQuiet,
			Usage:   "only log errors",
			EnvVars: []string{"MODESCORE_QUIET"},
		},
		&cli.StringFlag{
			Name:  FlagCPUProfile,
			Usage: "write a CPU profile to this path for the life of the process",
		},
	)

	if app.After == nil {
		app.After = StopProfiling
	} else {
		next := app.After
		app.After = func(c *cli.Context) error {
			return multierr.Append(next(c), StopProfiling(c))
		}
	}
	app.InvalidFlagAccessHandler = func(c *cli.Context, name string) {
		log.Fatal().Str("flag", name).Msg("invalid CLI flag accessed")
	}
}

// SetLoggingLevel applies the verbosity flags and, if a CPU profile path was
// given, starts profiling. Call once per process, right after flag parsing.
func SetLoggingLevel(c *cli.Context) error {
	SetVerboseOrQuiet(c.Bool(FlagTrace), c.Bool(FlagDebug), c.Bool(FlagQuiet))
	if path := c.String(FlagCPUProfile); path != "" {
		return errors.Wrap(ConfigureForProfiling(path), "starting cpu profile")
	}
	return nil
}

func SetVerboseOrQuiet(trace, debug, quiet bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if trace {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if quiet {
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}
}

func cliWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.UnixDate}
}

// ConfigureForCli switches the global logger to a human-readable console
// writer, for interactive terminal use rather than piped/structured output.
func ConfigureForCli() {
	log.Logger = log.Output(cliWriter())
}

// ConfigureForProfiling starts a CPU profile written to outFile. The caller
// is responsible for arranging StopProfiling to run before exit.
func ConfigureForProfiling(outFile string) error {
	f, err := os.Create(outFile)
	if err != nil {
		return errors.Wrapf(err, "creating cpu profile file %s", outFile)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return errors.Wrap(err, "starting cpu profile")
	}
	return nil
}

// StopProfiling closes out a CPU profile started by ConfigureForProfiling
// and writes a matching heap profile alongside it. A no-op when no
// --cpu-profile path was given.
func StopProfiling(c *cli.Context) error {
	fileName := c.String(FlagCPUProfile)
	if fileName == "" {
		return nil
	}
	pprof.StopCPUProfile()
	log.Info().Str("cpu-profile", fileName).Msg("cpu profile written")

	heapFile := "mem-" + fileName
	f, err := os.Create(heapFile)
	if err != nil {
		return errors.Wrapf(err, "creating heap profile file %s", heapFile)
	}
	defer f.Close()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Wrapf(err, "writing heap profile to %s", heapFile)
	}
	log.Info().Str("heap-profile", heapFile).Msg("heap profile written")
	return nil
}
