package commands

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/rtscope/internal/printer"
	"github.com/hay-kot/rtscope/internal/series"
	"github.com/hay-kot/rtscope/internal/subscriber"
	"github.com/hay-kot/rtscope/internal/tui"
)

const (
	demoAddress  = "mem://demo"
	demoInterval = 20 * time.Millisecond
)

type WatchCmd struct {
	flags *Flags

	address    string
	topic      string
	demo       bool
	saveOnExit bool
	exportDir  string
}

// NewWatchCmd creates a new watch command.
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

// Flags returns the watch flags. They are registered on both the root command
// and `rtscope watch`, so a fresh set is built for each. Local keeps the root
// copies from leaking into other subcommands.
func (cmd *WatchCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "address",
			Aliases:     []string{"a"},
			Usage:       "bus address (default: subscriber.address from config)",
			Local:       true,
			Destination: &cmd.address,
		},
		&cli.StringFlag{
			Name:        "topic",
			Aliases:     []string{"t"},
			Usage:       "topic prefix filter (default: subscriber.topic from config)",
			Local:       true,
			Destination: &cmd.topic,
		},
		&cli.BoolFlag{
			Name:        "demo",
			Usage:       "watch a synthetic in-process stream",
			Local:       true,
			Destination: &cmd.demo,
		},
		&cli.BoolFlag{
			Name:        "save-on-exit",
			Usage:       "save CSV files when quitting (default: export.on_exit from config)",
			Local:       true,
			Destination: &cmd.saveOnExit,
		},
		&cli.StringFlag{
			Name:        "export-dir",
			Usage:       "directory for CSV files (default: export.dir from config)",
			Local:       true,
			Destination: &cmd.exportDir,
		},
	}
}

// Register adds the watch command to the application.
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Plot a live stream in the terminal",
		UsageText: "rtscope watch [--address <addr>] [--topic <prefix>] [--demo]",
		Description: `Subscribes to a bus address and plots the configured channels.

The view redraws on a fixed interval (render.interval) and reads the newest
data each time, so a fast publisher never backs up the receive loop.

Keys:
  s        save every channel as CSV
  r        clear all channels
  p/space  pause redrawing (data keeps flowing)
  q        quit

This is also what runs when rtscope is started without a command.`,
		Flags:  cmd.Flags(),
		Action: cmd.run,
	})
	return app
}

// Run executes the watch view. Exported for use as the default command.
func (cmd *WatchCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *WatchCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config

	address := firstNonEmpty(cmd.address, cfg.Subscriber.Address)
	topic := firstNonEmpty(cmd.topic, cfg.Subscriber.Topic)
	if cmd.demo {
		address = demoAddress
	}

	opts, err := cfg.SubscriberOptions()
	if err != nil {
		return err
	}

	set, err := series.NewSet(log.With().Str("component", "series").Logger(), cfg.Channels)
	if err != nil {
		return fmt.Errorf("channels: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := subscriber.New(cmd.flags.Registry(), log.With().Str("component", "subscriber").Logger(), opts)
	sub.Observe(set.Observe)
	if err := sub.Start(ctx, address, topic); err != nil {
		return err
	}
	defer func() {
		if err := sub.Stop(); err != nil {
			log.Warn().Err(err).Msg("stop subscriber")
		}
	}()

	if cmd.demo {
		if err := cmd.startDemo(ctx, address, topic); err != nil {
			return err
		}
	}

	exportDir := firstNonEmpty(cmd.exportDir, cfg.Export.Dir)
	m := tui.New(sub, set, tui.Options{
		Interval:   cfg.Render.Interval,
		Exporter:   series.Exporter{Dir: exportDir, Template: cfg.Export.Template},
		SaveOnExit: cmd.saveOnExit || cfg.Export.OnExit,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	if fm, ok := final.(tui.Model); ok {
		pr := printer.Ctx(ctx)
		for _, path := range fm.Saved() {
			pr.Successf("saved %s", path)
		}
		if err := fm.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *WatchCmd) startDemo(ctx context.Context, address, topic string) error {
	pub, err := cmd.flags.Registry().DialPublisher(ctx, address)
	if err != nil {
		return fmt.Errorf("open demo publisher: %w", err)
	}

	go func() {
		defer func() { _ = pub.Close() }()
		if _, err := runDemo(ctx, pub, topic, demoInterval, 0, false); err != nil {
			log.Error().Err(err).Msg("demo publisher stopped")
		}
	}()
	return nil
}
