package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the fixed header size: big-endian uint32 message type
// followed by big-endian uint32 payload length.
const HeaderLen = 8

// DefaultMaxPayload bounds a single payload unless the caller overrides it.
const DefaultMaxPayload uint32 = 1024 * 1024

var (
	ErrShortHeader      = errors.New("frame: short header")
	ErrTruncatedPayload = errors.New("frame: truncated payload")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
)

// Header is the decoded fixed header.
type Header struct {
	MessageType   uint32
	PayloadLength uint32
}

// Frame is one complete wire message.
type Frame struct {
	Type    uint32
	Payload []byte
}

// IsFramingError reports whether err means the byte stream can no longer
// be trusted and the connection must be dropped.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrShortHeader) ||
		errors.Is(err, ErrTruncatedPayload) ||
		errors.Is(err, ErrPayloadTooLarge)
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(b))
	}
	return Header{
		MessageType:   binary.BigEndian.Uint32(b[0:4]),
		PayloadLength: binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.MessageType)
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadLength)
	return buf
}

// Encode returns the header and payload as one contiguous buffer so a
// single Write puts the whole frame on the wire.
func Encode(messageType uint32, payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], messageType)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf
}

// Read blocks until one whole frame has been read from r. A clean close
// before any header byte still yields ErrShortHeader, wrapping io.EOF so
// callers can tell an orderly disconnect apart from corruption.
func Read(r io.Reader, maxPayload uint32) (Frame, error) {
	var hb [HeaderLen]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: %w", ErrShortHeader, err)
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(hb[:])
	if err != nil {
		return Frame{}, err
	}
	if maxPayload > 0 && h.PayloadLength > maxPayload {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.PayloadLength, maxPayload)
	}

	payload := make([]byte, h.PayloadLength)
	if h.PayloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, fmt.Errorf("%w: want %d bytes: %w", ErrTruncatedPayload, h.PayloadLength, err)
			}
			return Frame{}, err
		}
	}
	return Frame{Type: h.MessageType, Payload: payload}, nil
}

// Write puts f on w in a single call.
func Write(w io.Writer, f Frame) error {
	if uint64(len(f.Payload)) > uint64(^uint32(0)) {
		return ErrPayloadTooLarge
	}
	_, err := w.Write(Encode(f.Type, f.Payload))
	return err
}
