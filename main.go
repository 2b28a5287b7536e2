package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/rtscope/internal/commands"
	"github.com/hay-kot/rtscope/internal/core/config"
	"github.com/hay-kot/rtscope/internal/printer"
	"github.com/hay-kot/rtscope/pkg/utils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

type registrar interface {
	Register(app *cli.Command) *cli.Command
}

func main() {
	if err := setupLogger("info", "", nil); err != nil {
		panic(err)
	}

	var (
		p     = printer.New(os.Stderr)
		ctx   = printer.NewContext(context.Background(), p)
		flags = &commands.Flags{}
		// Live view logs are held until the alt screen is gone.
		held = &utils.DeferredWriter{}
	)

	exitCode := 0
	if err := newApp(flags, held).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr)
		p.FatalError(err)
		exitCode = 1
	}

	if held.Len() > 0 {
		if err := held.Flush(zerolog.ConsoleWriter{Out: os.Stderr}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
		}
	}

	os.Exit(exitCode)
}

func newApp(flags *commands.Flags, held *utils.DeferredWriter) *cli.Command {
	watch := commands.NewWatchCmd(flags)

	app := &cli.Command{
		Name:      "rtscope",
		Usage:     "Watch, record and replay real-time data streams",
		UsageText: "rtscope [global options] command [command options]",
		Description: `rtscope subscribes to a message bus and plots the values it receives in
the terminal, prints them, or saves them as CSV. It also records video
frames through a queued background writer.

Run 'rtscope' with no arguments to open the live view on the configured
address. Run 'rtscope pub --demo' in another terminal for test data, or
'rtscope --demo' to do both in one process.`,
		Version: build(),
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("RTSCOPE_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("RTSCOPE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("RTSCOPE_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("RTSCOPE_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		}, watch.Flags()...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// No subcommand opens the live view, which owns the terminal.
			var deferred io.Writer
			if args := c.Args().Slice(); len(args) == 0 || args[0] == "watch" {
				deferred = held
			}

			if err := setupLogger(flags.LogLevel, flags.LogFile, deferred); err != nil {
				return ctx, err
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() > 0 {
				return fmt.Errorf("unknown command %q. Run 'rtscope --help' for usage", c.Args().First())
			}
			return watch.Run(ctx, c)
		},
	}

	for _, r := range []registrar{
		watch,
		commands.NewSubCmd(flags),
		commands.NewPubCmd(flags),
		commands.NewRecordCmd(flags),
		commands.NewTopicsCmd(flags),
		commands.NewConfigCmd(flags),
		commands.NewDoctorCmd(flags),
		commands.NewDocCmd(flags),
	} {
		app = r.Register(app)
	}

	return app
}

// setupLogger points the global logger at stderr, or at deferred when the
// terminal is taken, plus logFile when set.
func setupLogger(level string, logFile string, deferred io.Writer) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	console := io.Writer(zerolog.ConsoleWriter{Out: os.Stderr})
	if deferred != nil {
		console = deferred
	}
	writers := []io.Writer{console}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	log.Logger = log.Output(zerolog.MultiLevelWriter(writers...)).Level(parsedLevel)

	return nil
}
