package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/store/jsonfile"
	"github.com/hay-kot/rtscope/internal/subscriber"
)

// subBuffer is how many messages may queue between the receive loop and the
// printer before the printer starts dropping.
const subBuffer = 1024

type SubCmd struct {
	flags *Flags

	address string
	topic   string
	format  string
	decoder string
	count   int
	timeout time.Duration
	record  string
	history bool
}

// NewSubCmd creates a new sub command.
func NewSubCmd(flags *Flags) *SubCmd {
	return &SubCmd{flags: flags}
}

// Register adds the sub command to the application.
func (cmd *SubCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sub",
		Usage:     "Print messages from a bus address",
		UsageText: "rtscope sub [--address <addr>] [--topic <prefix>] [--format json|text|csv]",
		Description: `Subscribes to a bus address and prints every message as it arrives.

Each message is stamped on arrival with a sequence number, the time since the
first message and the time since the previous one.

Output defaults to colored text on a terminal and JSON lines otherwise.
With --history nothing is printed until the subscription ends; the full
history is written at once.

Supported schemes: tcp, ipc, inproc (ZeroMQ), mqtt, mqtts, kafka, ws, wss,
file (recorded topics) and mem.

Examples:
  rtscope sub                                   # configured address
  rtscope sub -a tcp://127.0.0.1:5555 -t imu    # topic prefix filter
  rtscope sub --count 100 --format csv > run.csv
  rtscope sub --timeout 30s --record bench      # also append to a file topic`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "address",
				Aliases:     []string{"a"},
				Usage:       "bus address (default: subscriber.address from config)",
				Destination: &cmd.address,
			},
			&cli.StringFlag{
				Name:        "topic",
				Aliases:     []string{"t"},
				Usage:       "topic prefix filter (default: subscriber.topic from config)",
				Destination: &cmd.topic,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format: json, text or csv (default: text on a terminal, json otherwise)",
				Destination: &cmd.format,
			},
			&cli.StringFlag{
				Name:        "decoder",
				Usage:       "payload decoder: text or msgpack (default: subscriber.decoder from config)",
				Destination: &cmd.decoder,
			},
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "exit after N messages",
				Destination: &cmd.count,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "exit after this long (e.g. 30s, 5m)",
				Destination: &cmd.timeout,
			},
			&cli.StringFlag{
				Name:        "record",
				Usage:       "also append every message to this file topic",
				Destination: &cmd.record,
			},
			&cli.BoolFlag{
				Name:        "history",
				Usage:       "print the full history once the subscription ends",
				Destination: &cmd.history,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SubCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config

	address := firstNonEmpty(cmd.address, cfg.Subscriber.Address)
	topic := firstNonEmpty(cmd.topic, cfg.Subscriber.Topic)

	format := cmd.format
	if format == "" {
		format = defaultFormat(os.Stdout)
	}
	out, err := newMessageWriter(c.Root().Writer, format, format == FormatText && term.IsTerminal(int(os.Stdout.Fd())))
	if err != nil {
		return err
	}

	opts, err := cfg.SubscriberOptions()
	if err != nil {
		return err
	}
	if cmd.decoder != "" {
		if opts.Decoder, err = messaging.DecoderByName(cmd.decoder); err != nil {
			return err
		}
	}
	opts.History = cmd.history

	var recorder messaging.Publisher
	if cmd.record != "" {
		store := jsonfile.NewMsgStore(cfg.TopicsDir()).WithMaxRecords(cfg.File.MaxRecords)
		recorder = jsonfile.NewPublisher(store)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cmd.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.timeout)
		defer cancel()
	}

	sub := subscriber.New(cmd.flags.Registry(), log.With().Str("component", "subscriber").Logger(), opts)

	// The observer runs on the receive loop, so it only hands messages off.
	queue := make(chan messaging.Message, subBuffer)
	var dropped int
	sub.Observe(func(m messaging.Message) {
		select {
		case queue <- m:
		default:
			dropped++
		}
	})

	if err := sub.Start(ctx, address, topic); err != nil {
		return err
	}
	log.Debug().Str("address", address).Str("topic", topic).Str("format", format).Msg("subscribed")

	printed, err := cmd.drain(ctx, sub, queue, out, recorder)
	stopErr := sub.Stop()

	if cmd.history {
		printed, err = cmd.printHistory(ctx, sub.History(), out, recorder)
	}
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("output could not keep up; messages were skipped")
	}

	stats := sub.Stats()
	log.Info().
		Int("printed", printed).
		Uint64("received", stats.Received).
		Uint64("decode_errors", stats.DecodeErrors).
		Uint64("dropped", stats.Dropped).
		Msg("subscription ended")

	if err != nil {
		return err
	}
	if serr := sub.Err(); serr != nil {
		return serr
	}
	if stopErr != nil && !errors.Is(stopErr, messaging.ErrClosed) {
		return stopErr
	}
	return nil
}

// drain prints queued messages until ctx ends, the subscriber stops, or the
// count is reached. In history mode messages are only counted.
func (cmd *SubCmd) drain(ctx context.Context, sub *subscriber.Subscriber, queue <-chan messaging.Message, out messageWriter, recorder messaging.Publisher) (int, error) {
	handled := 0
	handle := func(m messaging.Message) error {
		handled++
		if cmd.history {
			return nil
		}
		return cmd.emit(ctx, m, out, recorder)
	}

	for cmd.count == 0 || handled < cmd.count {
		select {
		case <-ctx.Done():
			return handled, nil
		case <-sub.Done():
			// Flush whatever was queued before the loop exited.
			for cmd.count == 0 || handled < cmd.count {
				select {
				case m := <-queue:
					if err := handle(m); err != nil {
						return handled, err
					}
				default:
					return handled, nil
				}
			}
			return handled, nil
		case m := <-queue:
			if err := handle(m); err != nil {
				return handled, err
			}
		}
	}
	return handled, nil
}

func (cmd *SubCmd) printHistory(ctx context.Context, history []messaging.Message, out messageWriter, recorder messaging.Publisher) (int, error) {
	if cmd.count > 0 && len(history) > cmd.count {
		history = history[:cmd.count]
	}
	// ctx is usually done by now; records still need to be written.
	ctx = context.WithoutCancel(ctx)
	for i, m := range history {
		if err := cmd.emit(ctx, m, out, recorder); err != nil {
			return i, err
		}
	}
	return len(history), nil
}

func (cmd *SubCmd) emit(ctx context.Context, m messaging.Message, out messageWriter, recorder messaging.Publisher) error {
	if err := out.Write(m); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if recorder != nil {
		if err := recorder.Publish(ctx, cmd.record, []byte(m.Payload)); err != nil {
			return fmt.Errorf("record message: %w", err)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
