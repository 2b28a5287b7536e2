package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

type PubCmd struct {
	flags *Flags

	address  string
	topic    string
	demo     bool
	interval time.Duration
	count    int
	msgpack  bool
}

// NewPubCmd creates a new pub command.
func NewPubCmd(flags *Flags) *PubCmd {
	return &PubCmd{flags: flags}
}

// Register adds the pub command to the application.
func (cmd *PubCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "pub",
		Usage:     "Publish payloads to a bus address",
		UsageText: "rtscope pub [--address <addr>] [--topic <topic>] [--demo] [payload...]",
		Description: `Publishes payloads to a bus address.

Payloads are taken from the arguments, or one per line from stdin. With
--demo a synthetic three-field stream (gripper opening, sine, z) is
published every --interval, which is handy for trying out 'rtscope watch'.

Publishing is not supported on ws:// and wss:// addresses.

Examples:
  rtscope pub -a tcp://127.0.0.1:5555 "1.0,2.0,3.0"
  tail -f sensor.log | rtscope pub -t imu
  rtscope pub --demo --interval 20ms
  rtscope pub --demo --msgpack -a mqtt://localhost:1883 -t robot/arm`,
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
				Usage:       "topic to publish on",
				Destination: &cmd.topic,
			},
			&cli.BoolFlag{
				Name:        "demo",
				Usage:       "publish a synthetic stream instead of reading input",
				Destination: &cmd.demo,
			},
			&cli.DurationFlag{
				Name:        "interval",
				Aliases:     []string{"i"},
				Usage:       "time between payloads; also paces stdin input",
				Value:       50 * time.Millisecond,
				Destination: &cmd.interval,
			},
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "stop after N demo payloads",
				Destination: &cmd.count,
			},
			&cli.BoolFlag{
				Name:        "msgpack",
				Usage:       "encode demo payloads as msgpack arrays",
				Destination: &cmd.msgpack,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *PubCmd) run(ctx context.Context, c *cli.Command) error {
	address := firstNonEmpty(cmd.address, cmd.flags.Config.Subscriber.Address)
	if cmd.interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub, err := cmd.flags.Registry().DialPublisher(ctx, address)
	if err != nil {
		return fmt.Errorf("open publisher: %w", err)
	}
	defer func() { _ = pub.Close() }()

	var sent int
	switch {
	case cmd.demo:
		sent, err = runDemo(ctx, pub, cmd.topic, cmd.interval, cmd.count, cmd.msgpack)
	case c.NArg() > 0:
		sent, err = cmd.publishAll(ctx, pub, c.Args().Slice())
	default:
		sent, err = cmd.publishLines(ctx, pub, os.Stdin)
	}

	log.Info().Str("address", address).Str("topic", cmd.topic).Int("sent", sent).Msg("publisher finished")
	return err
}

func (cmd *PubCmd) publishAll(ctx context.Context, pub messaging.Publisher, payloads []string) (int, error) {
	limiter := rate.NewLimiter(rate.Every(cmd.interval), 1)
	for i, p := range payloads {
		if err := limiter.Wait(ctx); err != nil {
			return i, nil
		}
		if err := pub.Publish(ctx, cmd.topic, []byte(p)); err != nil {
			return i, fmt.Errorf("publish: %w", err)
		}
	}
	return len(payloads), nil
}

// publishLines sends one payload per non-empty input line.
func (cmd *PubCmd) publishLines(ctx context.Context, pub messaging.Publisher, r io.Reader) (int, error) {
	limiter := rate.NewLimiter(rate.Every(cmd.interval), 1)
	scanner := bufio.NewScanner(r)

	sent := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return sent, nil
		}
		payload := append([]byte(nil), line...)
		if err := pub.Publish(ctx, cmd.topic, payload); err != nil {
			return sent, fmt.Errorf("publish: %w", err)
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		return sent, fmt.Errorf("read input: %w", err)
	}
	return sent, nil
}
