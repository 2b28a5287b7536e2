package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/rtscope/internal/transport"
)

const docWrapWidth = 100

type DocCmd struct {
	flags *Flags
	raw   bool
}

func NewDocCmd(flags *Flags) *DocCmd {
	return &DocCmd{flags: flags}
}

func (cmd *DocCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "doc",
		Usage: "Payload, transport and configuration guides",
		Description: `Prints reference guides as markdown.

Output is rendered for the terminal when stdout is a TTY; use --raw for the
plain markdown.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "print markdown without rendering",
				Destination: &cmd.raw,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "payload",
				Usage:  "Show the payload wire format and channel modes",
				Action: cmd.guide(payloadGuide),
			},
			{
				Name:   "transports",
				Usage:  "Show supported bus addresses",
				Action: cmd.guide(transportsGuide),
			},
			{
				Name:   "config",
				Usage:  "Show an annotated configuration file",
				Action: cmd.guide(configGuide),
			},
		},
	})
	return app
}

func (cmd *DocCmd) guide(build func() string) cli.ActionFunc {
	return func(_ context.Context, c *cli.Command) error {
		tty := !cmd.raw && term.IsTerminal(int(os.Stdout.Fd()))
		return renderMarkdown(c.Root().Writer, build(), tty, docWrapWidth)
	}
}

// renderMarkdown writes md to w, styled for a terminal when tty is set.
func renderMarkdown(w io.Writer, md string, tty bool, width int) error {
	if !tty {
		_, err := fmt.Fprintln(w, md)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("tokyo-night"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func payloadGuide() string {
	return `# Payload Format

Every message carries one payload. With the default **text** decoder the
payload must be valid UTF-8; fields are separated by commas with no quoting:

` + "```" + `
12.5,0.031,-0.2
` + "```" + `

With the **msgpack** decoder the payload must be a msgpack array of scalars
(numbers, bools, strings without commas). It is converted to the same comma
form, so channels work the same way for both.

Payloads that fail to decode are counted as undecodable and skipped; the
subscriber keeps running.

## Channels

Each channel plots one numeric field of the payload against elapsed seconds.
Values whose magnitude is at or below ` + "`deadband`" + ` become 0, then ` + "`scale`" + `
is applied.

| Mode | Behaviour |
|------|-----------|
| ` + "`roll`" + ` | shows the last ` + "`window`" + ` seconds (default 10) |
| ` + "`compress`" + ` | keeps every point and squeezes the whole run into view |
| ` + "`bar`" + ` | shows only the newest value as a bar within ` + "`y_range`" + ` |

A channel with a ` + "`topic`" + ` only sees matching messages. A payload that is
too short or not numeric for a channel is skipped for that channel only.

## Timing

Messages are stamped on arrival. ` + "`elapsed`" + ` counts from the first
message, ` + "`interval`" + ` from the previous one. Both use a monotonic clock.
`
}

func transportsGuide() string {
	var b strings.Builder
	b.WriteString(`# Bus Addresses

The scheme of the address picks the transport. An empty topic subscribes to
everything; otherwise it is a prefix filter, or a glob when it contains ` + "`*`" + `.

| Address | Transport | Publish |
|---------|-----------|---------|
| ` + "`tcp://127.0.0.1:5555`" + ` | ZeroMQ SUB (also ipc://, inproc://) | yes, binds a PUB socket |
| ` + "`mqtt://broker:1883`" + ` | MQTT (mqtts:// for TLS) | yes |
| ` + "`kafka://broker:9092`" + ` | Kafka, topic names the Kafka topic | yes |
| ` + "`ws://host:8080/stream`" + ` | WebSocket text or binary frames (wss:// for TLS) | no |
| ` + "`file:///path/to/topics`" + ` | recorded topics, new records only | yes |
| ` + "`mem://`" + ` | in-process bus used by --demo | yes |

There is no automatic reconnect. When the connection drops the subscriber
stops and reports the error.

Registered schemes: `)
	b.WriteString(strings.Join(transport.KnownSchemes(), ", "))
	b.WriteString("\n")
	return b.String()
}

func configGuide() string {
	return `# Configuration

rtscope reads ` + "`$XDG_CONFIG_HOME/rtscope/config.yaml`" + ` (override with
` + "`--config`" + ` or ` + "`RTSCOPE_CONFIG`" + `). Every key is optional.

` + "```yaml" + `
subscriber:
  address: tcp://127.0.0.1:5555
  topic: ""             # prefix filter, empty for everything
  decoder: text         # text or msgpack
  poll_interval: 1ms    # first sleep when idle, 0 to spin
  max_backoff: 20ms     # idle sleep doubles up to this
  history: false        # keep every message in memory
  hwm: 100              # per-socket receive buffer

render:
  interval: 50ms        # watch redraw period

channels:
  - title: gripper
    mode: bar
    field: 0
    y_range: {min: 0, max: 50}
  - title: "Y"
    mode: roll
    field: 1
    window: 10          # seconds shown
  - title: "Z"
    mode: compress
    field: 2
    deadband: 0.4       # |z| <= 0.4 plots as 0
    scale: 1

video:
  path: output.mp4
  fps: 30
  width: 640
  height: 480
  codec: mp4v           # mp4v, avc1, H264, MJPG, XVID, PNG, JPEG
  quality: 3            # 1 smallest to 5 best
  drain_poll: 50ms
  async: false

export:
  dir: ""               # current directory
  template: "{{ .Time }}_{{ .Title }}_data.csv"
  on_exit: false

mqtt:
  qos: 0
  username: ""
  password: ""

kafka:
  client_id: rtscope
  group: ""             # empty reads without a consumer group

file:
  poll_interval: 50ms
  max_records: 10000

ffmpeg_path: ffmpeg
` + "```" + `

Run ` + "`rtscope config validate`" + ` after editing and ` + "`rtscope config show`" + `
to see the effective values.
`
}
