// Package meshtastictest provides an in-memory radio for testing code built on
// meshtastic.HardwareTransport.
package meshtastictest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/exepirit/meshtastic-backup/pkg/meshtastic"
	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

// ErrClosed is returned by a closed Radio.
var ErrClosed = errors.New("radio is closed")

var _ meshtastic.HardwareTransport = &Radio{}

// Radio emulates the phone API of a single node: it answers configuration requests,
// device metadata and config edit transactions.
type Radio struct {
	NodeNum         uint32
	LongName        string
	FirmwareVersion string

	// IgnoreAdmin drops every admin request without an answer, emulating a timeout.
	IgnoreAdmin bool
	// RejectWrites answers set_config requests with a routing error.
	RejectWrites bool
	// AdminDelay holds back the answer to every admin request.
	AdminDelay time.Duration
	// SendError is returned by SendToRadio when set.
	SendError error

	mu       sync.Mutex
	config   *pb.LocalConfig
	pending  *pb.LocalConfig
	frames   chan *pb.FromRadio
	requests []*pb.AdminMessage
	commits  int
	closed   bool
	done     chan struct{}
}

// NewRadio creates a radio holding a copy of cfg.
func NewRadio(nodeNum uint32, longName, firmware string, cfg *pb.LocalConfig) *Radio {
	if cfg == nil {
		cfg = new(pb.LocalConfig)
	}
	return &Radio{
		NodeNum:         nodeNum,
		LongName:        longName,
		FirmwareVersion: firmware,
		config:          protobuf.Clone(cfg).(*pb.LocalConfig),
		frames:          make(chan *pb.FromRadio, 256),
		done:            make(chan struct{}),
	}
}

// Config returns a copy of the configuration currently applied to the radio.
func (r *Radio) Config() *pb.LocalConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return protobuf.Clone(r.config).(*pb.LocalConfig)
}

// AdminRequests returns the admin messages received so far.
func (r *Radio) AdminRequests() []*pb.AdminMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*pb.AdminMessage(nil), r.requests...)
}

// Commits returns the number of committed edit transactions.
func (r *Radio) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

// Closed reports whether Close was called.
func (r *Radio) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close makes subsequent calls fail with ErrClosed.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
	return nil
}

// SendToRadio handles a packet the way the firmware would and queues the replies.
func (r *Radio) SendToRadio(ctx context.Context, packet *pb.ToRadio) error {
	if r.SendError != nil {
		return r.SendError
	}
	if _, ok := packet.GetPayloadVariant().(*pb.ToRadio_Packet); ok && r.AdminDelay > 0 {
		time.Sleep(r.AdminDelay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	switch payload := packet.GetPayloadVariant().(type) {
	case *pb.ToRadio_WantConfigId:
		r.dumpConfig(payload.WantConfigId)
	case *pb.ToRadio_Packet:
		r.handlePacket(payload.Packet)
	}
	return nil
}

// ReceiveFromRadio returns the next queued reply.
func (r *Radio) ReceiveFromRadio(ctx context.Context) (*pb.FromRadio, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrClosed
	case frame := <-r.frames:
		return frame, nil
	}
}

func (r *Radio) dumpConfig(id uint32) {
	r.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_MyInfo{
		MyInfo: &pb.MyNodeInfo{MyNodeNum: r.NodeNum},
	}})
	r.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_NodeInfo{
		NodeInfo: &pb.NodeInfo{Num: r.NodeNum, User: &pb.User{LongName: r.LongName}},
	}})
	r.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_NodeInfo{
		NodeInfo: &pb.NodeInfo{Num: r.NodeNum + 1, User: &pb.User{LongName: "Neighbour"}},
	}})
	r.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_Metadata{
		Metadata: &pb.DeviceMetadata{FirmwareVersion: r.FirmwareVersion},
	}})
	for _, section := range meshtastic.ConfigSections(r.config) {
		r.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_Config{
			Config: protobuf.Clone(section).(*pb.Config),
		}})
	}
	// completion of a foreign request must be ignored by the reader
	r.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_ConfigCompleteId{ConfigCompleteId: id + 1}})
	r.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_ConfigCompleteId{ConfigCompleteId: id}})
}

func (r *Radio) handlePacket(packet *pb.MeshPacket) {
	data := packet.GetDecoded()
	if data == nil || data.GetPortnum() != pb.PortNum_ADMIN_APP {
		return
	}
	msg := new(pb.AdminMessage)
	if err := protobuf.Unmarshal(data.GetPayload(), msg); err != nil {
		r.routing(packet.GetId(), pb.Routing_BAD_REQUEST)
		return
	}
	r.requests = append(r.requests, msg)
	if r.IgnoreAdmin {
		return
	}

	switch v := msg.GetPayloadVariant().(type) {
	case *pb.AdminMessage_GetDeviceMetadataRequest:
		r.routing(packet.GetId(), pb.Routing_NONE)
		r.adminResponse(packet.GetId(), &pb.AdminMessage{
			PayloadVariant: &pb.AdminMessage_GetDeviceMetadataResponse{
				GetDeviceMetadataResponse: &pb.DeviceMetadata{FirmwareVersion: r.FirmwareVersion},
			},
			SessionPasskey: []byte{0x01, 0x02},
		})
	case *pb.AdminMessage_BeginEditSettings:
		r.pending = protobuf.Clone(r.config).(*pb.LocalConfig)
		r.routing(packet.GetId(), pb.Routing_NONE)
	case *pb.AdminMessage_SetConfig:
		if r.RejectWrites {
			r.routing(packet.GetId(), pb.Routing_NOT_AUTHORIZED)
			return
		}
		target := r.pending
		if target == nil {
			target = r.config
		}
		meshtastic.MergeConfigSection(target, v.SetConfig)
		r.routing(packet.GetId(), pb.Routing_NONE)
	case *pb.AdminMessage_CommitEditSettings:
		if r.pending != nil {
			r.config = r.pending
			r.pending = nil
		}
		r.commits++
		r.routing(packet.GetId(), pb.Routing_NONE)
	default:
		r.routing(packet.GetId(), pb.Routing_NONE)
	}
}

func (r *Radio) routing(requestID uint32, reason pb.Routing_Error) {
	payload, _ := protobuf.Marshal(&pb.Routing{
		Variant: &pb.Routing_ErrorReason{ErrorReason: reason},
	})
	r.reply(requestID, pb.PortNum_ROUTING_APP, payload)
}

func (r *Radio) adminResponse(requestID uint32, msg *pb.AdminMessage) {
	payload, _ := protobuf.Marshal(msg)
	r.reply(requestID, pb.PortNum_ADMIN_APP, payload)
}

func (r *Radio) reply(requestID uint32, port pb.PortNum, payload []byte) {
	r.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_Packet{
		Packet: &pb.MeshPacket{
			From: r.NodeNum,
			To:   r.NodeNum,
			PayloadVariant: &pb.MeshPacket_Decoded{Decoded: &pb.Data{
				Portnum:   port,
				Payload:   payload,
				RequestId: requestID,
			}},
		},
	}})
}

func (r *Radio) push(frame *pb.FromRadio) {
	r.frames <- frame
}
