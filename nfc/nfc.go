// Package nfc defines the card reader contracts and the get UID command. The backends that need no system service
// and the card label registry live here too.
package nfc

import (
	"io"
)

type ShareMode int
type Protocol int
type Disposition int

const (
	ShareShared    ShareMode = 0
	ShareExclusive ShareMode = 1

	ProtocolAny Protocol = 0

	// LeaveCard leaves the card powered and untouched when disconnecting.
	LeaveCard   Disposition = 0
	ResetCard   Disposition = 1
	UnpowerCard Disposition = 2
)

// Directory lists the readers that are currently attached to the host.
type Directory interface {
	ListReaders() ([]string, error)
}

// Transmitter sends a single APDU to a connected card and writes the answer into resp.
type Transmitter interface {
	Transmit(cmd, resp []byte) (int, error)
}

// Conn is a connection context that is scoped to a single card interaction. Disconnect must be a no-op when the
// context never connected, and Release must always be called once the context is no longer needed.
type Conn interface {
	Transmitter
	Connect(reader string, mode ShareMode, proto Protocol) error
	// Reader is the name of the reader as resolved by the connect call. It may differ from the requested name.
	Reader() string
	Disconnect(d Disposition) error
	Release() error
}

type ContextFactory interface {
	Establish() (Conn, error)
}

// Watcher delivers card insertion notifications. onInsert may be called concurrently for different readers.
type Watcher interface {
	io.Closer
	Watch(readers []string, onInsert func(reader string)) error
	Cancel() error
}

// Backend is everything the monitor needs from the hardware layer.
type Backend interface {
	Directory
	ContextFactory
	Watcher
}
