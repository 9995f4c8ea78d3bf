package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// Frame flags
const (
	frameJSON   byte = 0x00
	frameSnappy byte = 0x01
)

// ErrEmptyFrame is returned when decoding a zero-length message
var ErrEmptyFrame = errors.New("empty frame")

// Encode marshals v into a frame, snappy-compressed when compress is set
func Encode(v any, compress bool) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	if !compress {
		return append([]byte{frameJSON}, data...), nil
	}
	return append([]byte{frameSnappy}, snappy.Encode(nil, data)...), nil
}

// Decode unmarshals a frame produced by Encode
func Decode(frame []byte, v any) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	payload := frame[1:]
	switch frame[0] {
	case frameJSON:
	case frameSnappy:
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return fmt.Errorf("failed to decompress frame: %w", err)
		}
		payload = decoded
	default:
		return fmt.Errorf("unknown frame flag 0x%02x", frame[0])
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	return nil
}
