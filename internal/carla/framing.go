package carla

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxMessageSize bounds a single frame; scene descriptions are a few KiB.
const maxMessageSize = 64 << 20

// writeMessage writes payload prefixed with its length as a little-endian uint32.
func writeMessage(w io.Writer, payload []byte) error {
	if len(payload) > maxMessageSize {
		return fmt.Errorf("%w: message of %d bytes exceeds limit", ErrMalformedMessage, len(payload))
	}
	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	_, err := w.Write(frame)
	return err
}

// readMessage reads one length-prefixed frame.
func readMessage(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("connection closed: %w", err)
		}
		return nil, err
	}

	size := binary.LittleEndian.Uint32(header[:])
	if size > maxMessageSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", ErrMalformedMessage, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
