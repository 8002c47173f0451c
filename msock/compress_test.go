package msock

import (
	"bytes"
	"io"
	"testing"
)

func TestCompressionMode_String(t *testing.T) {
	if got := CompressionGzip.String(); got != "gzip" {
		t.Fatalf("expected %q, got %q", "gzip", got)
	}
	if got := CompressionZstd.String(); got != "zstd" {
		t.Fatalf("expected %q, got %q", "zstd", got)
	}
}

func TestCompressedChannel_GzipRoundTrip(t *testing.T) {
	testCompressedChannelRoundTrip(t, CompressionGzip)
}

func TestCompressedChannel_ZstdRoundTrip(t *testing.T) {
	testCompressedChannelRoundTrip(t, CompressionZstd)
}

func testCompressedChannelRoundTrip(t *testing.T, mode CompressionMode) {
	t.Helper()

	a, b := pipeConns()
	connA := NewConnection(a, Config{}, Callbacks{})
	connB := NewConnection(b, Config{}, Callbacks{})
	connA.Open()
	connB.Open()
	defer connA.Close()
	defer connB.Close()

	chA, _ := connA.CreateChannel(mustID(1), ChannelData)
	chB, _ := connB.CreateChannel(mustID(1), ChannelData)

	ccA, err := NewCompressedChannel(chA, mode)
	if err != nil {
		t.Fatalf("NewCompressedChannel (sender): %v", err)
	}
	ccB, err := NewCompressedChannel(chB, mode)
	if err != nil {
		t.Fatalf("NewCompressedChannel (receiver): %v", err)
	}

	want := bytes.Repeat([]byte("compress me please, over and over again "), 500)

	go func() {
		ccA.Write(want)
		ccA.Close()
	}()

	got, err := io.ReadAll(ccB)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch for %s: got %d bytes, want %d bytes", mode, len(got), len(want))
	}
}

func TestCompressedChannel_CloseIsIdempotentAndClosesUnderlyingChannel(t *testing.T) {
	a, _ := pipeConns()
	conn := NewConnection(a, Config{}, Callbacks{})
	conn.Open()
	defer conn.Close()

	ch, _ := conn.CreateChannel(mustID(1), ChannelData)
	cc, err := NewCompressedChannel(ch, CompressionGzip)
	if err != nil {
		t.Fatalf("NewCompressedChannel: %v", err)
	}

	if err := cc.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := cc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !ch.Closed() {
		t.Fatal("expected the underlying Channel to be closed too")
	}
}
