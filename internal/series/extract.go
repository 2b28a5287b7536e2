package series

import (
	"math"

	"github.com/hay-kot/rtscope/internal/core/messaging"
)

// Extractor maps a message to a point.
type Extractor func(messaging.Message) (Point, error)

// FieldExtractor uses the message's elapsed seconds as x and payload field
// index as y. Values with |y| <= deadband become 0 before scale is applied.
// A zero scale means 1.
func FieldExtractor(index int, deadband, scale float64) Extractor {
	if scale == 0 {
		scale = 1
	}
	return func(m messaging.Message) (Point, error) {
		y, err := messaging.Float(m.Payload, index)
		if err != nil {
			return Point{}, err
		}
		if deadband > 0 && math.Abs(y) <= deadband {
			y = 0
		}
		return Point{X: m.Elapsed.Seconds(), Y: y * scale}, nil
	}
}
