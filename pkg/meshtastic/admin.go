package meshtastic

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/exepirit/meshtastic-backup/internal/log"
	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

// DeviceModuleAdmin sends administrative requests to a node and waits for their outcome.
type DeviceModuleAdmin struct {
	// Timeout bounds every single request, including each step of an edit
	// transaction. Only ctx applies when zero.
	Timeout time.Duration

	device  *Device
	nodeNum uint32
	logger  log.Logger
}

// GetDeviceMetadata asks the node for its firmware and hardware metadata.
func (m *DeviceModuleAdmin) GetDeviceMetadata(ctx context.Context) (*pb.DeviceMetadata, error) {
	resp, err := m.Request(ctx, &pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_GetDeviceMetadataRequest{GetDeviceMetadataRequest: true},
	})
	if err != nil {
		return nil, err
	}

	metadata := resp.GetGetDeviceMetadataResponse()
	if metadata == nil {
		return nil, fmt.Errorf("%w: no device metadata in response", ErrInvalidPacketFormat)
	}
	return metadata, nil
}

// SetConfig writes every present section of cfg inside a single edit transaction.
// The node applies the sections once the transaction is committed.
func (m *DeviceModuleAdmin) SetConfig(ctx context.Context, cfg *pb.LocalConfig) error {
	err := m.Send(ctx, &pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_BeginEditSettings{BeginEditSettings: true},
	})
	if err != nil {
		return fmt.Errorf("failed to begin edit transaction: %w", err)
	}

	for _, section := range ConfigSections(cfg) {
		err := m.Send(ctx, &pb.AdminMessage{
			PayloadVariant: &pb.AdminMessage_SetConfig{SetConfig: section},
		})
		if err != nil {
			return fmt.Errorf("failed to set %T: %w", section.GetPayloadVariant(), err)
		}
	}

	err = m.Send(ctx, &pb.AdminMessage{
		PayloadVariant: &pb.AdminMessage_CommitEditSettings{CommitEditSettings: true},
	})
	if err != nil {
		return fmt.Errorf("failed to commit edit transaction: %w", err)
	}
	return nil
}

// Request sends an admin message and blocks until the node replies with an admin message.
func (m *DeviceModuleAdmin) Request(ctx context.Context, msg *pb.AdminMessage) (*pb.AdminMessage, error) {
	return m.exchange(ctx, msg, true)
}

// Send sends an admin message and blocks until the node acknowledges it.
func (m *DeviceModuleAdmin) Send(ctx context.Context, msg *pb.AdminMessage) error {
	_, err := m.exchange(ctx, msg, false)
	return err
}

func (m *DeviceModuleAdmin) exchange(ctx context.Context, msg *pb.AdminMessage, wantResponse bool) (*pb.AdminMessage, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	if key := m.device.sessionPasskey(); len(key) > 0 {
		msg.SessionPasskey = key
	}
	payload, err := protobuf.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshalling error: %w", err)
	}

	id := newPacketID()
	err = m.device.SendToMesh(ctx, &pb.MeshPacket{
		To:       m.nodeNum,
		Id:       id,
		WantAck:  true,
		Priority: pb.MeshPacket_RELIABLE,
		PayloadVariant: &pb.MeshPacket_Decoded{
			Decoded: &pb.Data{
				Portnum:      pb.PortNum_ADMIN_APP,
				Payload:      payload,
				WantResponse: wantResponse,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send admin packet: %w", err)
	}
	m.logger.Debug("Admin packet is sent", "id", fmt.Sprintf("%08x", id), "wantResponse", wantResponse)

	for {
		packet, err := m.device.ReceiveFromMesh(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		data := packet.GetDecoded()
		if data == nil || data.GetRequestId() != id {
			continue
		}

		switch data.GetPortnum() {
		case pb.PortNum_ROUTING_APP:
			routing := new(pb.Routing)
			if err := protobuf.Unmarshal(data.GetPayload(), routing); err != nil {
				return nil, ErrInvalidPacketFormat
			}
			if reason := routing.GetErrorReason(); reason != pb.Routing_NONE {
				return nil, &RoutingError{RequestID: id, Reason: reason}
			}
			if !wantResponse {
				return nil, nil
			}
		case pb.PortNum_ADMIN_APP:
			resp := new(pb.AdminMessage)
			if err := protobuf.Unmarshal(data.GetPayload(), resp); err != nil {
				return nil, ErrInvalidPacketFormat
			}
			if key := resp.GetSessionPasskey(); len(key) > 0 {
				m.device.setSessionPasskey(key)
			}
			if wantResponse {
				return resp, nil
			}
		}
	}
}

// newPacketID returns a random non-zero packet identifier.
func newPacketID() uint32 {
	for {
		if id := rand.Uint32(); id != 0 {
			return id
		}
	}
}
