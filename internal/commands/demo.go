package commands

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// demoFields returns one synthetic sample at t seconds: a gripper opening in
// 0..50, a unit sine, and a z reading that sits inside the deadband most of
// the time.
func demoFields(t float64) []float64 {
	gripper := 25 + 25*math.Sin(t/2)
	wave := math.Sin(2 * math.Pi * t)
	z := 0.6 * math.Sin(t/3)
	return []float64{round3(gripper), round3(wave), round3(z)}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// demoPayload encodes fields in the wire form the decoder expects.
func demoPayload(fields []float64, asMsgpack bool) ([]byte, error) {
	if asMsgpack {
		return msgpack.Marshal(fields)
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return []byte(strings.Join(parts, messaging.FieldSeparator)), nil
}

// runDemo publishes synthetic samples every interval until ctx is done or
// count samples were sent. A count of zero runs until cancelled.
func runDemo(ctx context.Context, pub messaging.Publisher, topic string, interval time.Duration, count int, asMsgpack bool) (int, error) {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	start := time.Now()

	sent := 0
	for count == 0 || sent < count {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return sent, nil
			}
			return sent, err
		}

		payload, err := demoPayload(demoFields(time.Since(start).Seconds()), asMsgpack)
		if err != nil {
			return sent, err
		}
		if err := pub.Publish(ctx, topic, payload); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return sent, nil
			}
			return sent, err
		}
		sent++
	}
	return sent, nil
}
