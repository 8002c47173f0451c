package msock

import "net"

// Dial opens an outbound stream to uri ("tcp://host:port" or
// "unix:///path"), wraps it in a Connection using cfg and callbacks, opens
// the connection, and returns it. The caller is responsible for creating
// channels once connected; this core does not negotiate channel creation
// over the wire (see package docs).
func Dial(uri string, cfg Config, callbacks Callbacks) (*Connection, error) {
	network, address, err := parseAddress(uri)
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}

	c := NewConnection(conn, cfg, callbacks)
	c.Open()
	return c, nil
}
