// Package msock is a stream-multiplexing transport: a single reliable
// byte-stream connection (TCP or a Unix domain socket) is partitioned into
// many independent, ordered byte channels identified by a numeric id. The
// package provides the wire framing, per-channel flow-controlled
// buffering, connection lifecycle, and the threaded demultiplexer that
// dispatches inbound frames to channel receive buffers and drains channel
// send buffers onto the wire.
//
// Channel ids are agreed on by the two peers out of band, by local
// convention — this core carries only data frames and does not negotiate
// channel creation over the wire. A host wanting a negotiated control
// plane can reserve a channel id for that purpose and layer its own
// framing on top of Channel's byte-stream contract.
package msock

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"github.com/jceel/msock/internal/logging"
)

// connState is the Connection lifecycle state machine: NEW -> OPEN ->
// CLOSED. CLOSED is terminal.
type connState int

const (
	connNew connState = iota
	connOpen
	connClosed
)

// ChannelFactory constructs a Channel for a given id and type, allowing a
// host to subclass channel behavior (for example, to recognize a
// reserved control channel id). Connection.CreateChannel calls this to
// obtain the Channel it registers.
type ChannelFactory func(conn *Connection, id uint32, typ ChannelType) *Channel

// defaultChannelFactory builds a plain data-carrying Channel with the
// Connection's configured buffer size.
func defaultChannelFactory(bufferSize int) ChannelFactory {
	return func(conn *Connection, id uint32, typ ChannelType) *Channel {
		return newChannel(conn, id, typ, bufferSize)
	}
}

// Callbacks is the capability interface a host supplies at Connection
// construction. Any method may be left nil; Connection treats a nil
// callback as a no-op.
type Callbacks struct {
	// OnChannelCreated is invoked after a channel has been registered via
	// CreateChannel. An inbound frame for an unregistered id is discarded
	// and does not create a channel.
	OnChannelCreated func(ch *Channel)

	// OnChannelDestroyed is invoked after a channel has been removed
	// from the registry, either via DestroyChannel or during shutdown.
	OnChannelDestroyed func(ch *Channel)

	// OnClosed is invoked exactly once, after the Connection has fully
	// shut down: every channel closed, the registry cleared, the socket
	// closed.
	OnClosed func()
}

// Config configures a Connection at construction time. The zero Config is
// valid and selects the package defaults.
type Config struct {
	// ChannelBufferSize is the capacity, in bytes, of each channel's send
	// and receive ring buffers. Defaults to 4096 if <= 0.
	ChannelBufferSize int

	// MaxFrameLength caps the payload length a frame may declare.
	// Defaults to DefaultMaxFrameLength if <= 0.
	MaxFrameLength uint32

	// ChannelFactory overrides how channels are constructed. Defaults to
	// a plain Channel using ChannelBufferSize.
	ChannelFactory ChannelFactory

	// Logger receives lifecycle and soft-error log lines. Defaults to
	// slog.Default() if nil.
	Logger *slog.Logger
}

// Connection owns a stream socket, demultiplexes inbound frames to
// per-channel receive buffers, and serializes outbound frames from every
// channel's send worker onto the wire.
type Connection struct {
	conn net.Conn

	maxFrameLength uint32
	factory        ChannelFactory
	callbacks      Callbacks
	logger         *slog.Logger

	registryMu sync.Mutex
	channels   map[uint32]*Channel

	sendMu sync.Mutex

	stateMu sync.Mutex
	state   connState

	recvDone chan struct{}
}

// NewConnection wraps an already-established stream socket (as returned
// by a Dialer or accepted by a Listener) in a Connection. The Connection
// does not start reading until Open is called.
func NewConnection(conn net.Conn, cfg Config, callbacks Callbacks) *Connection {
	maxLen := cfg.MaxFrameLength
	if maxLen == 0 {
		maxLen = DefaultMaxFrameLength
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.ForConnection(logger, remoteAddrString(conn))
	factory := cfg.ChannelFactory
	if factory == nil {
		factory = defaultChannelFactory(cfg.ChannelBufferSize)
	}

	return &Connection{
		conn:           conn,
		maxFrameLength: maxLen,
		factory:        factory,
		callbacks:      callbacks,
		logger:         logger,
		channels:       make(map[uint32]*Channel),
		recvDone:       make(chan struct{}),
	}
}

// Open transitions the Connection from NEW to OPEN and starts its
// receive goroutine, the sole reader of the underlying socket.
func (c *Connection) Open() {
	c.stateMu.Lock()
	if c.state != connNew {
		c.stateMu.Unlock()
		return
	}
	c.state = connOpen
	c.stateMu.Unlock()

	go c.recvLoop()
}

// CreateChannel registers a new channel. If id is nil, the next id is
// chosen as one greater than the highest existing id (or 0 if the
// registry is empty). It returns ErrDuplicateChannel if id is already
// registered.
func (c *Connection) CreateChannel(id *uint32, typ ChannelType) (*Channel, error) {
	c.stateMu.Lock()
	closed := c.state == connClosed
	c.stateMu.Unlock()
	if closed {
		return nil, ErrConnectionClosed
	}

	c.registryMu.Lock()
	defer c.registryMu.Unlock()

	var chosen uint32
	if id != nil {
		chosen = *id
		if _, exists := c.channels[chosen]; exists {
			return nil, ErrDuplicateChannel
		}
	} else {
		chosen = nextChannelID(c.channels)
	}

	ch := c.factory(c, chosen, typ)
	c.channels[chosen] = ch

	if c.callbacks.OnChannelCreated != nil {
		c.callbacks.OnChannelCreated(ch)
	}
	return ch, nil
}

// remoteAddrString returns conn's remote address as a string, or "unknown"
// if the net.Conn implementation doesn't report one (some test doubles
// leave RemoteAddr nil).
func remoteAddrString(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// nextChannelID returns one greater than the highest key in channels, or
// 0 if channels is empty. Caller must hold registryMu.
func nextChannelID(channels map[uint32]*Channel) uint32 {
	if len(channels) == 0 {
		return 0
	}
	var max uint32
	first := true
	for id := range channels {
		if first || id > max {
			max = id
			first = false
		}
	}
	return max + 1
}

// Channel looks up a registered channel by id.
func (c *Connection) Channel(id uint32) (*Channel, bool) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	ch, ok := c.channels[id]
	return ch, ok
}

// DestroyChannel removes a channel from the registry without closing it.
// Most callers want Channel.Close followed by DestroyChannel, or simply
// to let Connection.Close sweep it up during shutdown.
func (c *Connection) DestroyChannel(id uint32) {
	c.registryMu.Lock()
	ch, ok := c.channels[id]
	if ok {
		delete(c.channels, id)
	}
	c.registryMu.Unlock()

	if ok && c.callbacks.OnChannelDestroyed != nil {
		c.callbacks.OnChannelDestroyed(ch)
	}
}

// send frames (channelID, data) and writes header-then-payload under the
// send mutex so frames from concurrent channels never interleave on the
// wire. A broken-pipe write failure is swallowed: the receive goroutine
// will independently observe the peer's disappearance and drive
// shutdown. Any other write failure is returned to the caller (normally a
// channel's send worker, which only logs it).
func (c *Connection) send(channelID uint32, data []byte) error {
	c.stateMu.Lock()
	closed := c.state == connClosed
	c.stateMu.Unlock()
	if closed {
		return nil
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	err := writeFrame(c.conn, channelID, data)
	if err != nil && isBrokenPipe(err) {
		return nil
	}
	return err
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE)
}

// recvLoop is the Connection's sole reader of the socket. It decodes one
// frame at a time, dispatches its payload to the target channel, and
// drives connection shutdown on any fatal condition: remote EOF, a magic
// mismatch, an overlarge frame, or any other transport read error.
func (c *Connection) recvLoop() {
	defer close(c.recvDone)

	for {
		f, err := readFrame(c.conn, c.maxFrameLength)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("connection: receive loop stopping", "error", err)
			}
			c.shutdown()
			return
		}

		ch, ok := c.Channel(f.channelID)
		if !ok {
			c.logger.Warn("connection: data for unknown channel, discarding", "channel", f.channelID)
			continue
		}

		ch.onData(f.payload)
	}
}

// Close shuts the connection down if it is not already closed, then
// blocks until the receive goroutine has exited.
func (c *Connection) Close() error {
	c.stateMu.Lock()
	if c.state == connClosed {
		c.stateMu.Unlock()
		return nil
	}
	c.stateMu.Unlock()

	// Unblock the receive goroutine's pending read; it will observe the
	// error and call shutdown itself, so close is single-entry either
	// way. Errors from an already-torn-down socket are expected.
	_ = c.conn.Close()
	<-c.recvDone
	return nil
}

// shutdown is the single-entry, idempotent teardown path: it closes every
// registered channel, clears the registry, closes the socket under the
// send mutex, and fires OnClosed exactly once.
func (c *Connection) shutdown() {
	c.stateMu.Lock()
	if c.state == connClosed {
		c.stateMu.Unlock()
		return
	}
	c.state = connClosed
	c.stateMu.Unlock()

	c.registryMu.Lock()
	channels := c.channels
	c.channels = make(map[uint32]*Channel)
	c.registryMu.Unlock()

	for _, ch := range channels {
		ch.Close()
		if c.callbacks.OnChannelDestroyed != nil {
			c.callbacks.OnChannelDestroyed(ch)
		}
	}

	c.sendMu.Lock()
	_ = c.conn.Close()
	c.sendMu.Unlock()

	if c.callbacks.OnClosed != nil {
		c.callbacks.OnClosed()
	}
}
