package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"golang.org/x/term"

	"github.com/hay-kot/rtscope/internal/core/messaging"
	"github.com/hay-kot/rtscope/internal/styles"
)

// Output formats for `rtscope sub`.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatCSV  = "csv"
)

// messageWriter renders messages in one output format.
type messageWriter interface {
	Write(messaging.Message) error
	Flush() error
}

// defaultFormat picks text for terminals and JSON lines for pipes.
func defaultFormat(f *os.File) string {
	if term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

func newMessageWriter(w io.Writer, format string, color bool) (messageWriter, error) {
	switch format {
	case FormatJSON:
		return jsonWriter{enc: json.NewEncoder(w)}, nil
	case FormatText:
		return &textWriter{w: w, color: color}, nil
	case FormatCSV:
		return &csvWriter{w: csv.NewWriter(w)}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (json, text, csv)", format)
	}
}

type jsonWriter struct {
	enc *json.Encoder
}

func (j jsonWriter) Write(m messaging.Message) error { return j.enc.Encode(m) }

func (j jsonWriter) Flush() error { return nil }

type textWriter struct {
	w     io.Writer
	color bool
}

func (t *textWriter) Write(m messaging.Message) error {
	meta := fmt.Sprintf("%6d %10s %9s", m.Seq, seconds(m.Elapsed), "+"+seconds(m.Interval))
	if m.Topic != "" {
		meta += " " + m.Topic
	}
	payload := m.Payload
	if t.color {
		meta = styles.MetaStyle.Render(meta)
		payload = styles.PayloadStyle.Render(payload)
	}
	_, err := fmt.Fprintln(t.w, meta+"  "+payload)
	return err
}

func (t *textWriter) Flush() error { return nil }

type csvWriter struct {
	w      *csv.Writer
	header bool
}

func (c *csvWriter) Write(m messaging.Message) error {
	if !c.header {
		c.header = true
		if err := c.w.Write([]string{"seq", "received_at", "elapsed", "interval", "topic", "payload"}); err != nil {
			return err
		}
	}
	return c.w.Write([]string{
		strconv.FormatUint(m.Seq, 10),
		m.ReceivedAt.Format(time.RFC3339Nano),
		seconds(m.Elapsed),
		seconds(m.Interval),
		m.Topic,
		m.Payload,
	})
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
