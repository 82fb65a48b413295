package meshtastic

import (
	"context"

	pb "github.com/meshtastic/go/generated"
)

// HardwareTransport defines methods for sending and receiving packets directly to and from the radio hardware.
type HardwareTransport interface {
	// SendToRadio sends a packet to the radio hardware.
	SendToRadio(ctx context.Context, packet *pb.ToRadio) error
	// ReceiveFromRadio receives a packet from the radio hardware.
	// It blocks until a packet arrives or ctx is done.
	ReceiveFromRadio(ctx context.Context) (*pb.FromRadio, error)
}

// MeshTransport defines methods for sending and receiving mesh packets over the network,
// abstracting the underlying radio communication.
type MeshTransport interface {
	// SendToMesh sends a mesh packet to the network.
	SendToMesh(ctx context.Context, packet *pb.MeshPacket) error
	// ReceiveFromMesh receives a mesh packet from the network.
	ReceiveFromMesh(ctx context.Context) (*pb.MeshPacket, error)
}
