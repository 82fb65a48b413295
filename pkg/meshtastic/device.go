package meshtastic

import (
	"context"
	"fmt"
	"sync"

	"github.com/exepirit/meshtastic-backup/internal/log"
	pb "github.com/meshtastic/go/generated"
)

var _ MeshTransport = &Device{}

// Device represents a device, encapsulating the transport used to communicate with the hardware.
type Device struct {
	Transport HardwareTransport
	Logger    log.Logger

	mu      sync.Mutex
	passkey []byte
}

// NewConfiguredDevice wraps the transport and performs the initial configuration exchange,
// so the returned state describes the node the transport is attached to.
func NewConfiguredDevice(ctx context.Context, transport HardwareTransport) (*Device, DeviceState, error) {
	device := &Device{Transport: transport}
	state, err := device.Config().GetState(ctx)
	if err != nil {
		return nil, DeviceState{}, fmt.Errorf("configuration handshake failed: %w", err)
	}
	return device, state, nil
}

// SendToMesh sends a mesh packet over the device's transport.
// It converts the provided MeshPacket into a ToRadio message with the appropriate payload variant.
func (d *Device) SendToMesh(ctx context.Context, packet *pb.MeshPacket) error {
	return d.Transport.SendToRadio(ctx, &pb.ToRadio{
		PayloadVariant: &pb.ToRadio_Packet{
			Packet: packet,
		},
	})
}

// ReceiveFromMesh blocks until a mesh packet is received from the device's transport.
// It continuously listens for incoming frames and returns the first MeshPacket found.
// Other packets will be ignored.
func (d *Device) ReceiveFromMesh(ctx context.Context) (*pb.MeshPacket, error) {
	for {
		frame, err := d.Transport.ReceiveFromRadio(ctx)
		if err != nil {
			return nil, err
		}

		if packet := frame.GetPacket(); packet != nil {
			return packet, nil
		}
	}
}

// Config returns a configuration module for the device.
func (d *Device) Config() *DeviceModuleConfig {
	return &DeviceModuleConfig{transport: d.Transport, logger: d.logger()}
}

// Admin returns an administration module addressing the node with the given number.
// Usually it is the node the transport is attached to (see DeviceState.MyInfo).
func (d *Device) Admin(nodeNum uint32) *DeviceModuleAdmin {
	return &DeviceModuleAdmin{device: d, nodeNum: nodeNum, logger: d.logger()}
}

func (d *Device) logger() log.Logger {
	if d.Logger == nil {
		return log.NOOPLogger{}
	}
	return d.Logger
}

func (d *Device) sessionPasskey() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.passkey
}

func (d *Device) setSessionPasskey(key []byte) {
	d.mu.Lock()
	d.passkey = key
	d.mu.Unlock()
}
