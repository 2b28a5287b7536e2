package subscriber

import (
	"time"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Options configures a Subscriber.
type Options struct {
	// PollInterval is the sleep after the first empty poll. Each further empty
	// poll doubles it up to MaxBackoff; a successful receive resets it.
	// Zero yields the processor between polls instead of sleeping, which keeps
	// latency minimal at the cost of a busy core.
	PollInterval time.Duration

	// MaxBackoff caps the doubling. Values below PollInterval pin the sleep
	// at PollInterval.
	MaxBackoff time.Duration

	// History keeps every received message in memory, in addition to the latest.
	History bool

	// Decoder converts raw payloads to text. Defaults to messaging.DecodeText.
	Decoder messaging.Decoder

	// Now is the clock used to stamp messages. Defaults to time.Now, which
	// carries a monotonic reading.
	Now func() time.Time
}

// DefaultOptions returns a 1ms poll backing off to 20ms while the bus is idle.
func DefaultOptions() Options {
	return Options{
		PollInterval: time.Millisecond,
		MaxBackoff:   20 * time.Millisecond,
		Decoder:      messaging.DecodeText,
		Now:          time.Now,
	}
}

func (o Options) withDefaults() Options {
	if o.Decoder == nil {
		o.Decoder = messaging.DecodeText
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.PollInterval < 0 {
		o.PollInterval = 0
	}
	if o.MaxBackoff < o.PollInterval {
		o.MaxBackoff = o.PollInterval
	}
	return o
}

// nextBackoff doubles wait up to limit.
func nextBackoff(wait, limit time.Duration) time.Duration {
	if wait <= 0 {
		return 0
	}
	wait *= 2
	if wait > limit {
		wait = limit
	}
	return wait
}
