package messaging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformed marks a payload that could not be decoded. Subscribers drop
// such payloads and keep receiving.
var ErrMalformed = errors.New("malformed payload")

// Decoder turns a raw payload into the text form carried by Message.
type Decoder func(payload []byte) (string, error)

// Decoder names accepted in configuration.
const (
	DecoderText    = "text"
	DecoderMsgpack = "msgpack"
)

// DecodeText accepts any valid UTF-8 payload as-is.
func DecodeText(payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrMalformed)
	}
	return string(payload), nil
}

// DecodeMsgpack accepts a msgpack array of scalars and renders it in the
// comma-separated wire form, so consumers see the same shape regardless of
// how the publisher encoded it.
func DecodeMsgpack(payload []byte) (string, error) {
	var values []any
	if err := msgpack.Unmarshal(payload, &values); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	fields := make([]string, len(values))
	for i, v := range values {
		s, err := formatScalar(v)
		if err != nil {
			return "", fmt.Errorf("%w: field %d: %v", ErrMalformed, i, err)
		}
		fields[i] = s
	}
	return strings.Join(fields, FieldSeparator), nil
}

// DecoderByName resolves a configured decoder name. Empty means text.
func DecoderByName(name string) (Decoder, error) {
	switch name {
	case "", DecoderText:
		return DecodeText, nil
	case DecoderMsgpack:
		return DecodeMsgpack, nil
	default:
		return nil, fmt.Errorf("unknown decoder %q", name)
	}
}

func formatScalar(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case bool:
		return strconv.FormatBool(x), nil
	case int8, int16, int32, int64, int, uint8, uint16, uint32, uint64, uint:
		return fmt.Sprint(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case string:
		if strings.Contains(x, FieldSeparator) {
			return "", fmt.Errorf("string contains separator")
		}
		return x, nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}
