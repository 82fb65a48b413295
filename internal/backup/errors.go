package backup

import (
	"errors"
	"fmt"
)

// Error kinds reported by sessions and backup operations. A returned error matches
// its kind with errors.Is and still unwraps to the underlying cause.
var (
	// ErrConnection indicates that a port is unavailable or the radio did not answer the handshake.
	ErrConnection = errors.New("connection error")
	// ErrCommunication indicates a timeout, rejection or transport fault during a request.
	ErrCommunication = errors.New("communication error")
	// ErrFormat indicates that file contents are not a serialized configuration.
	ErrFormat = errors.New("format error")
	// ErrIO indicates a filesystem failure.
	ErrIO = errors.New("i/o error")
	// ErrNotConnected is returned when an operation needs a session and there is none.
	ErrNotConnected = errors.New("not connected")
)

// Wrap attaches an error kind to err. It returns nil for a nil err.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}
