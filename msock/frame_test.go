package msock

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrame_WriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, 7, []byte("hello")); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	f, err := readFrame(&buf, DefaultMaxFrameLength)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.channelID != 7 {
		t.Fatalf("expected channel 7, got %d", f.channelID)
	}
	if !bytes.Equal(f.payload, []byte("hello")) {
		t.Fatalf("expected payload %q, got %q", "hello", f.payload)
	}
}

func TestFrame_ZeroLengthIsEOFMarker(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, 3, nil); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	f, err := readFrame(&buf, DefaultMaxFrameLength)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if len(f.payload) != 0 {
		t.Fatalf("expected empty payload, got %q", f.payload)
	}
}

func TestFrame_BadMagicIsFatal(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBE, 0xAD, 0xDE}) // 0xDEADBEEF little-endian
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write([]byte{0, 0, 0, 0})

	_, err := readFrame(&buf, DefaultMaxFrameLength)
	if !errors.Is(err, ErrProtocolMagic) {
		t.Fatalf("expected ErrProtocolMagic, got %v", err)
	}
}

func TestFrame_OverlargeLengthRejected(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, 1, make([]byte, 100)); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	_, err := readFrame(&buf, 16) // declared length (100) exceeds this cap
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFrame_EmptyStreamIsPlainEOF(t *testing.T) {
	var buf bytes.Buffer
	_, err := readFrame(&buf, DefaultMaxFrameLength)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on an empty stream, got %v", err)
	}
}

func TestFrame_TruncatedPayloadIsFatal(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, 1, []byte("hello world")); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	truncated := buf.Bytes()[:headerSize+3]

	_, err := readFrame(bytes.NewReader(truncated), DefaultMaxFrameLength)
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected a fatal (non-EOF) error on truncated payload, got %v", err)
	}
}
