package messaging

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldSeparator splits payload fields on the wire. There is no escaping.
const FieldSeparator = ","

// Fields splits a payload into trimmed fields.
func Fields(payload string) []string {
	parts := strings.Split(payload, FieldSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Floats parses every field of payload as a float. When want is positive the
// payload must carry exactly that many fields.
func Floats(payload string, want int) ([]float64, error) {
	fields := Fields(payload)
	if want > 0 && len(fields) != want {
		return nil, fmt.Errorf("%w: got %d fields, want %d", ErrMalformed, len(fields), want)
	}

	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %q is not a number", ErrMalformed, i, f)
		}
		out[i] = v
	}
	return out, nil
}

// Float parses the field at index. It fails when the payload is too short.
func Float(payload string, index int) (float64, error) {
	fields := Fields(payload)
	if index < 0 || index >= len(fields) {
		return 0, fmt.Errorf("%w: no field %d in %d fields", ErrMalformed, index, len(fields))
	}
	v, err := strconv.ParseFloat(fields[index], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %d: %q is not a number", ErrMalformed, index, fields[index])
	}
	return v, nil
}
