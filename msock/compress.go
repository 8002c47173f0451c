package msock

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// CompressionMode selects the codec a CompressedChannel uses for its
// outbound data. Compression is applied above the frame codec: a
// compressed channel's payload bytes are themselves a compressed stream,
// so the peer must decompress with the matching mode before use. Mode
// selection is, like channel ids, a local convention agreed out of band;
// nothing on the wire advertises which mode a channel uses.
type CompressionMode int

const (
	// CompressionGzip compresses with a parallel gzip implementation,
	// trading some CPU for throughput on multi-core hosts.
	CompressionGzip CompressionMode = iota
	// CompressionZstd compresses with zstd, generally achieving a better
	// ratio than gzip at comparable speed.
	CompressionZstd
)

func (m CompressionMode) String() string {
	switch m {
	case CompressionZstd:
		return "zstd"
	default:
		return "gzip"
	}
}

// CompressedChannel wraps a Channel so that bytes written to it are
// compressed before entering the channel's send buffer, and bytes read
// from it are decompressed after leaving the channel's receive buffer.
// Send/Recv (the raw byte-oriented methods) bypass compression entirely;
// only Write/Read go through the codec, mirroring how Channel itself
// layers Write/Read atop Send/Recv.
type CompressedChannel struct {
	*Channel
	mode      CompressionMode
	pw        io.WriteCloser
	pr        io.ReadCloser
	closeOnce bool
}

// NewCompressedChannel wraps ch with the given compression mode.
func NewCompressedChannel(ch *Channel, mode CompressionMode) (*CompressedChannel, error) {
	cc := &CompressedChannel{Channel: ch, mode: mode}

	w, err := newCompressWriter(mode, channelWriter{ch})
	if err != nil {
		return nil, err
	}
	cc.pw = w

	r, err := newDecompressReader(mode, channelReader{ch})
	if err != nil {
		return nil, err
	}
	cc.pr = r

	return cc, nil
}

// channelReader adapts Channel.Read to a plain io.Reader for embedding
// behind a decompressor.
type channelReader struct{ ch *Channel }

func (c channelReader) Read(p []byte) (int, error) { return c.ch.Read(p) }

func newCompressWriter(mode CompressionMode, dst io.Writer) (io.WriteCloser, error) {
	switch mode {
	case CompressionZstd:
		return zstd.NewWriter(dst)
	default:
		return pgzip.NewWriter(dst), nil
	}
}

func newDecompressReader(mode CompressionMode, src io.Reader) (io.ReadCloser, error) {
	switch mode {
	case CompressionZstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return pgzip.NewReader(src)
	}
}

// Write compresses p and writes the result to the underlying Channel.
// It returns len(p) on success, matching Channel.Write's contract, since
// the compressor may buffer input without yet emitting output.
func (cc *CompressedChannel) Write(p []byte) (int, error) {
	if _, err := cc.pw.Write(p); err != nil {
		return 0, fmt.Errorf("msock: compressing write: %w", err)
	}
	return len(p), nil
}

// Read decompresses bytes from the underlying Channel into p.
func (cc *CompressedChannel) Read(p []byte) (int, error) {
	return cc.pr.Read(p)
}

// Close flushes and closes the compressor, closes the decompressor, and
// closes the underlying Channel. It is safe to call once; subsequent
// calls are forwarded to Channel.Close, which is itself idempotent.
func (cc *CompressedChannel) Close() error {
	if !cc.closeOnce {
		cc.closeOnce = true
		if err := cc.pw.Close(); err != nil {
			return err
		}
		cc.pr.Close()
	}
	return cc.Channel.Close()
}
