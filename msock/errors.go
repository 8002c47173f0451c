package msock

import "errors"

// Sentinel errors returned by Connection and the dial/listen helpers.
// ErrProtocolMagic and ErrFrameTooLarge (frame.go) are also part of this
// taxonomy; they live next to the codec they guard.
var (
	// ErrDuplicateChannel is returned by Connection.CreateChannel when the
	// requested id is already registered.
	ErrDuplicateChannel = errors.New("msock: channel id already exists")

	// ErrConnectionClosed is returned by Connection.CreateChannel once the
	// Connection has transitioned to CLOSED. Frames sent on a closed
	// Connection are dropped without an error.
	ErrConnectionClosed = errors.New("msock: connection is closed")

	// ErrUnsupportedScheme is returned by Dial and Listen for any URI
	// scheme other than "tcp" or "unix".
	ErrUnsupportedScheme = errors.New("msock: unsupported scheme")
)
