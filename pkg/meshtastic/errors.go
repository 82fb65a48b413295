package meshtastic

import (
	"errors"
	"fmt"

	pb "github.com/meshtastic/go/generated"
)

var (
	// ErrInvalidPacketFormat indicates a problem in structure of received packet.
	ErrInvalidPacketFormat = errors.New("invalid packet data format")
	// ErrPacketTooLong is returned when an encoded packet does not fit into a single frame.
	ErrPacketTooLong = errors.New("packet too long")
	// ErrRejected indicates that the radio answered a request with a routing error.
	ErrRejected = errors.New("request rejected by radio")
)

// RoutingError carries the reason reported by the radio in a negative acknowledgement.
type RoutingError struct {
	RequestID uint32
	Reason    pb.Routing_Error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("request %08x rejected: %s", e.RequestID, e.Reason)
}

// Unwrap makes errors.Is(err, ErrRejected) report true.
func (e *RoutingError) Unwrap() error {
	return ErrRejected
}
