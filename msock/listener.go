package msock

import (
	"log/slog"
	"net"
)

// Listener is a thin wrapper around net.Listener: it accepts incoming
// streams and instantiates a Connection per accept. The accept loop, the
// acquisition of the listening socket, and anything past "construct a
// Connection and hand it to the caller" are out of the core's scope; this
// type exists only to translate a "tcp://" / "unix://" URI into the right
// net.Listen call.
type Listener struct {
	ln     net.Listener
	cfg    Config
	logger *slog.Logger
}

// Listen binds a listening socket for uri ("tcp://host:port" or
// "unix:///path").
func Listen(uri string, cfg Config) (*Listener, error) {
	network, address, err := parseAddress(uri)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{ln: ln, cfg: cfg, logger: logger}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Accept blocks until a peer connects, wraps the resulting stream in a
// fresh, opened Connection, and returns it. callbacks are attached to the
// new Connection; the acceptor (the caller's loop) is responsible for
// doing whatever it wants with the returned Connection, per the
// connection-acceptor contract this core leaves external.
func (l *Listener) Accept(callbacks Callbacks) (*Connection, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}

	c := NewConnection(conn, l.cfg, callbacks)
	c.Open()
	return c, nil
}
