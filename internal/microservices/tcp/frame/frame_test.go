package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadWriteRoundTrip(t *testing.T) {
	in := Frame{Type: 0x04, Payload: []byte(`{"package_id":"P1"}`)}
	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if buf.Len() != HeaderLen+len(in.Payload) {
		t.Fatalf("encoded length = %d, want %d", buf.Len(), HeaderLen+len(in.Payload))
	}
	out, err := Read(&buf, DefaultMaxPayload)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Type != in.Type || !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("frame mismatch: got=%+v want=%+v", out, in)
	}
}

func TestEncodeIsBigEndian(t *testing.T) {
	got := Encode(0xFF, []byte("ab"))
	want := []byte{0, 0, 0, 0xFF, 0, 0, 0, 2, 'a', 'b'}
	if !bytes.Equal(got, want) {
		t.Fatalf("encode = %v, want %v", got, want)
	}
	h, err := DecodeHeader(got[:HeaderLen])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.MessageType != 0xFF || h.PayloadLength != 2 {
		t.Fatalf("header = %+v", h)
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	if _, err := DecodeHeader([]byte{0, 0, 0}); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadShortHeader(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{1, 2, 3}), DefaultMaxPayload)
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	if !IsFramingError(err) {
		t.Fatalf("expected framing error")
	}
}

func TestReadCleanCloseWrapsEOF(t *testing.T) {
	_, err := Read(bytes.NewReader(nil), DefaultMaxPayload)
	if !errors.Is(err, ErrShortHeader) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected ErrShortHeader wrapping io.EOF, got %v", err)
	}
}

func TestReadTruncatedPayload(t *testing.T) {
	buf := EncodeHeader(Header{MessageType: 1, PayloadLength: 10})
	buf = append(buf, []byte("abc")...)
	_, err := Read(bytes.NewReader(buf), DefaultMaxPayload)
	if !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("expected ErrTruncatedPayload, got %v", err)
	}
}

func TestReadPayloadTooLarge(t *testing.T) {
	buf := EncodeHeader(Header{MessageType: 1, PayloadLength: 2048})
	_, err := Read(bytes.NewReader(buf), 1024)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadEmptyPayload(t *testing.T) {
	out, err := Read(bytes.NewReader(Encode(0x06, nil)), DefaultMaxPayload)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Type != 0x06 || len(out.Payload) != 0 {
		t.Fatalf("frame = %+v", out)
	}
}

func TestReadSequentialFrames(t *testing.T) {
	var buf bytes.Buffer
	for i := uint32(1); i <= 3; i++ {
		if err := Write(&buf, Frame{Type: i, Payload: []byte{byte(i)}}); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	for i := uint32(1); i <= 3; i++ {
		f, err := Read(&buf, DefaultMaxPayload)
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if f.Type != i || f.Payload[0] != byte(i) {
			t.Fatalf("frame %d = %+v", i, f)
		}
	}
}
