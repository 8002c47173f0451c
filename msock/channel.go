package msock

import (
	"io"
	"log/slog"
	"sync"

	"github.com/jceel/msock/internal/logging"
)

// ChannelType distinguishes a data channel from a reserved control channel.
// This core only implements DATA semantics; CONTROL exists so a host can
// mark a channel id as reserved for its own framing (see spec §9's
// control-channel open question) without this package needing to know
// anything about what rides on it.
type ChannelType int

const (
	ChannelData ChannelType = iota
	ChannelControl
)

func (t ChannelType) String() string {
	if t == ChannelControl {
		return "control"
	}
	return "data"
}

// defaultChannelBufferSize is the default capacity, in bytes, of a
// channel's send and receive ring buffers.
const defaultChannelBufferSize = 4096

// sendChunkSize is how many bytes the send worker reads from the send
// ring buffer per iteration before handing them to Connection.send. This
// is a policy, not a wire guarantee: any chunk size >= 1 preserves the
// per-channel ordering and framing contract.
const sendChunkSize = 1024

// Channel is one logical ordered byte-stream multiplexed over a
// Connection. At most one Channel exists per id on a given Connection.
// Channel satisfies io.ReadWriteCloser.
type Channel struct {
	id   uint32
	typ  ChannelType
	conn *Connection

	recv *RingBuffer
	send *RingBuffer

	mu     sync.Mutex
	closed bool

	logger *slog.Logger
}

// newChannel constructs a Channel bound to conn and starts its send
// worker. defaultChannelFactory, which Connection.CreateChannel invokes
// unless Config.ChannelFactory overrides it, is the only caller; channels are never
// constructed directly by users of this package, mirroring the spec's
// channel_factory contract.
func newChannel(conn *Connection, id uint32, typ ChannelType, bufferSize int) *Channel {
	if bufferSize <= 0 {
		bufferSize = defaultChannelBufferSize
	}
	ch := &Channel{
		id:     id,
		typ:    typ,
		conn:   conn,
		recv:   NewRingBuffer(bufferSize),
		send:   NewRingBuffer(bufferSize),
		logger: logging.ForChannel(conn.logger, id, typ.String()),
	}
	go ch.sendWorker()
	return ch
}

// ID returns the channel's numeric identifier.
func (ch *Channel) ID() uint32 { return ch.id }

// Type returns the channel's type (DATA or CONTROL).
func (ch *Channel) Type() ChannelType { return ch.typ }

// Send enqueues bytes into the send buffer and returns how many bytes were
// accepted by a single ring-buffer write; under backpressure this may be
// fewer than len(buffer).
func (ch *Channel) Send(buffer []byte) int {
	return ch.send.Write(buffer)
}

// Write enqueues all of buffer, blocking until every byte has been
// accepted or the channel closes. It satisfies io.Writer.
func (ch *Channel) Write(buffer []byte) (int, error) {
	ch.send.WriteAll(buffer)
	return len(buffer), nil
}

// Recv dequeues up to n bytes from the receive buffer, blocking until at
// least one byte is available or the remote side's EOF has been observed
// and drained, in which case it returns an empty slice.
func (ch *Channel) Recv(n int) []byte {
	return ch.recv.Read(n)
}

// Read fills p from the receive buffer, blocking until len(p) bytes have
// arrived or EOF is observed. A read cut short by EOF returns the bytes
// collected so far with a nil error; once the receive buffer is closed and
// drained, Read returns 0, io.EOF. It satisfies io.Reader.
func (ch *Channel) Read(p []byte) (int, error) {
	got := ch.recv.ReadAll(len(p))
	n := copy(p, got)
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close closes the channel's send half, which causes the send worker to
// emit the in-band zero-length EOF frame and then close the receive
// buffer. Close is idempotent; after the first call, subsequent Recv/Read
// calls drain any remaining received bytes and then return EOF.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ch.mu.Unlock()

	ch.send.Close()
	return nil
}

// Closed reports whether Close has been called locally. It does not by
// itself mean both halves are closed; see onData for the remote half.
func (ch *Channel) Closed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// onData is called only by the Connection's receive goroutine. An empty
// payload closes the receive buffer (remote EOF); otherwise the payload
// is appended with WriteAll semantics, which blocks the Connection's
// receive goroutine under backpressure, stalling delivery to every other
// channel of the Connection until this receive buffer has room.
func (ch *Channel) onData(payload []byte) {
	if len(payload) == 0 {
		ch.recv.Close()
		return
	}
	ch.recv.WriteAll(payload)
}

// sendWorker drains the send ring buffer into frames, one Connection.send
// call per chunk, until the send buffer closes and drains, at which point
// it emits the in-band EOF frame and closes the receive buffer.
func (ch *Channel) sendWorker() {
	for {
		data := ch.send.Read(sendChunkSize)
		if len(data) == 0 {
			// send buffer closed and drained: emit in-band EOF and stop.
			if err := ch.conn.send(ch.id, nil); err != nil {
				ch.logger.Debug("send worker: EOF frame not delivered", "error", err)
			}
			ch.recv.Close()
			return
		}
		if err := ch.conn.send(ch.id, data); err != nil {
			ch.logger.Debug("send worker: frame not delivered", "error", err)
		}
	}
}
