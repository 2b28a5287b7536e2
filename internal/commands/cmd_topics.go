package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/printer"
	"github.com/hay-kot/rtscope/internal/store/jsonfile"
)

type TopicsCmd struct {
	flags *Flags

	// show flags
	last int

	// prune flags
	olderThan time.Duration
}

// NewTopicsCmd creates a new topics command.
func NewTopicsCmd(flags *Flags) *TopicsCmd {
	return &TopicsCmd{flags: flags}
}

// Register adds the topics command to the application.
func (cmd *TopicsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "topics",
		Usage: "Inspect and prune recorded topics",
		Description: `Recorded topics are JSON files written by 'rtscope sub --record' and by
publishers on file:// addresses. The default store lives at
$XDG_DATA_HOME/rtscope/topics/ and can be replayed live with
'rtscope watch -a file://<dir>'.`,
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List topics with their record counts",
				UsageText: "rtscope topics list",
				Action:    cmd.runList,
			},
			{
				Name:      "show",
				Usage:     "Print the records of matching topics",
				UsageText: "rtscope topics show <pattern> [--last N]",
				Description: `Prints records as JSON lines, oldest first.

Patterns are prefixes, or globs when they contain '*' (e.g. "arm/**").`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "last",
						Aliases:     []string{"n"},
						Usage:       "print only the last N records",
						Destination: &cmd.last,
					},
				},
				Action: cmd.runShow,
			},
			{
				Name:      "prune",
				Usage:     "Remove old records",
				UsageText: "rtscope topics prune [--older-than 24h]",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:        "older-than",
						Usage:       "remove records older than this",
						Value:       7 * 24 * time.Hour,
						Destination: &cmd.olderThan,
					},
				},
				Action: cmd.runPrune,
			},
		},
	})

	return app
}

func (cmd *TopicsCmd) store() *jsonfile.MsgStore {
	cfg := cmd.flags.Config
	return jsonfile.NewMsgStore(cfg.TopicsDir()).WithMaxRecords(cfg.File.MaxRecords)
}

type topicInfo struct {
	Name        string    `json:"name"`
	RecordCount int       `json:"record_count"`
	LastRecord  time.Time `json:"last_record,omitzero"`
}

func (cmd *TopicsCmd) runList(ctx context.Context, c *cli.Command) error {
	infos, err := listTopics(ctx, cmd.store())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.Root().Writer)
	for _, info := range infos {
		if err := enc.Encode(info); err != nil {
			return err
		}
	}
	return nil
}

func listTopics(ctx context.Context, store *jsonfile.MsgStore) ([]topicInfo, error) {
	names, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	infos := make([]topicInfo, 0, len(names))
	for _, name := range names {
		topic, err := store.Topic(ctx, name)
		if err != nil {
			if errors.Is(err, messaging.ErrTopicNotFound) {
				continue // pruned since List
			}
			return nil, fmt.Errorf("read topic %q: %w", name, err)
		}

		info := topicInfo{Name: name, RecordCount: len(topic.Records)}
		for _, r := range topic.Records {
			if r.CreatedAt.After(info.LastRecord) {
				info.LastRecord = r.CreatedAt
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (cmd *TopicsCmd) runShow(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected one topic pattern")
	}

	records, err := cmd.store().Subscribe(ctx, c.Args().First(), time.Time{})
	if err != nil {
		if errors.Is(err, messaging.ErrTopicNotFound) {
			return nil
		}
		return fmt.Errorf("read topics: %w", err)
	}

	if cmd.last > 0 && len(records) > cmd.last {
		records = records[len(records)-cmd.last:]
	}

	enc := json.NewEncoder(c.Root().Writer)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *TopicsCmd) runPrune(ctx context.Context, _ *cli.Command) error {
	if cmd.olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	n, err := cmd.store().Prune(ctx, cmd.olderThan)
	if err != nil {
		return fmt.Errorf("prune topics: %w", err)
	}

	printer.Ctx(ctx).Successf("removed %d record(s) older than %s", n, cmd.olderThan)
	return nil
}
