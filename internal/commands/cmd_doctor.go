package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/rtscope/internal/commands/doctor"
	"github.com/hay-kot/rtscope/internal/printer"
	"github.com/hay-kot/rtscope/pkg/executil"
)

// doctorDialTimeout bounds the bus probe.
const doctorDialTimeout = 5 * time.Second

type DoctorCmd struct {
	flags   *Flags
	format  string
	fix     bool
	offline bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your rtscope setup",
		UsageText:   "rtscope doctor [options]",
		Description: "Runs diagnostic checks on configuration, the ffmpeg encoder, the configured bus address and the data directory.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "create missing directories",
				Destination: &cmd.fix,
			},
			&cli.BoolFlag{
				Name:        "offline",
				Usage:       "skip dialing the bus address",
				Destination: &cmd.offline,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config

	checks := []doctor.Check{
		doctor.NewConfigCheck(cfg, cmd.flags.ConfigPath),
		doctor.NewFFmpegCheck(&executil.RealExecutor{}, cfg.FFmpegPath, cfg.Video.Codec),
	}
	if !cmd.offline {
		checks = append(checks, doctor.NewBusCheck(cmd.flags.Registry(), cfg.Subscriber.Address, cfg.Subscriber.Topic, doctorDialTimeout))
	}
	checks = append(checks, doctor.NewStorageCheck(cfg.DataDir, cfg.TopicsDir(), cmd.fix))

	results := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(ctx, results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(doctor.NewReport(results))
}

func (cmd *DoctorCmd) outputText(ctx context.Context, results []doctor.Result) error {
	p := printer.Ctx(ctx)

	for _, result := range results {
		p.Section(result.Name)

		for _, item := range result.Items {
			switch item.Status {
			case doctor.StatusPass:
				p.CheckItem(item.Label, item.Detail)
			case doctor.StatusWarn:
				p.WarnItem(item.Label, item.Detail)
			case doctor.StatusFail:
				p.FailItem(item.Label, item.Detail)
			}
		}

		p.Printf("")
	}

	tally := doctor.Summarize(results)
	p.Printf("Summary: %d passed, %d warnings, %d failed", tally.Passed, tally.Warned, tally.Failed)
	if tally.Fixable > 0 && !cmd.fix {
		p.Infof("%d issue(s) can be fixed with 'rtscope doctor --fix'", tally.Fixable)
	}

	if !tally.Healthy() {
		return cli.Exit("", 1)
	}

	return nil
}
