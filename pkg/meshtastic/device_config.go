package meshtastic

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/exepirit/meshtastic-backup/internal/log"
	pb "github.com/meshtastic/go/generated"
)

// DeviceModuleConfig provides actions for device configuration.
type DeviceModuleConfig struct {
	transport HardwareTransport
	logger    log.Logger
}

// GetState sends a request for the current configuration to the radio and retrieves the state of the device.
// It reads frames until the radio reports the end of the configuration dump for this request.
func (m *DeviceModuleConfig) GetState(ctx context.Context) (DeviceState, error) {
	configId := uint32(rand.Int())
	err := m.transport.SendToRadio(ctx, &pb.ToRadio{
		PayloadVariant: &pb.ToRadio_WantConfigId{
			WantConfigId: configId,
		},
	})
	if err != nil {
		return DeviceState{}, fmt.Errorf("failed to request configuration: %w", err)
	}

	m.logger.Debug("Configuration request is sent", "configId", configId)

	state := DeviceState{Config: new(pb.LocalConfig)}
	for {
		packet, err := m.transport.ReceiveFromRadio(ctx)
		if err != nil {
			return state, fmt.Errorf("failed to read response: %w", err)
		}

		switch payload := packet.PayloadVariant.(type) {
		case *pb.FromRadio_MyInfo:
			state.MyInfo = payload.MyInfo
		case *pb.FromRadio_NodeInfo:
			state.Nodes = append(state.Nodes, payload.NodeInfo)
		case *pb.FromRadio_Channel:
			state.Channels = append(state.Channels, payload.Channel)
		case *pb.FromRadio_Metadata:
			state.Device = payload.Metadata
		case *pb.FromRadio_Config:
			MergeConfigSection(state.Config, payload.Config)
		case *pb.FromRadio_ConfigCompleteId:
			if payload.ConfigCompleteId == configId {
				m.logger.Debug("Configuration received",
					"nodes", len(state.Nodes), "channels", len(state.Channels))
				return state, nil
			}
		default:
			continue // unexpected payload. ignore it
		}
	}
}

// MergeConfigSection stores a single config section, sent by the radio as a separate frame,
// into the aggregated local configuration. The section replaces the previous value as a whole.
func MergeConfigSection(dst *pb.LocalConfig, section *pb.Config) {
	switch v := section.GetPayloadVariant().(type) {
	case *pb.Config_Device:
		dst.Device = v.Device
	case *pb.Config_Position:
		dst.Position = v.Position
	case *pb.Config_Power:
		dst.Power = v.Power
	case *pb.Config_Network:
		dst.Network = v.Network
	case *pb.Config_Display:
		dst.Display = v.Display
	case *pb.Config_Lora:
		dst.Lora = v.Lora
	case *pb.Config_Bluetooth:
		dst.Bluetooth = v.Bluetooth
	case *pb.Config_Security:
		dst.Security = v.Security
	}
}

// ConfigSections splits a local configuration into the sections accepted by the set_config
// admin request. Absent sections are skipped.
func ConfigSections(cfg *pb.LocalConfig) []*pb.Config {
	var sections []*pb.Config
	if v := cfg.GetDevice(); v != nil {
		sections = append(sections, &pb.Config{PayloadVariant: &pb.Config_Device{Device: v}})
	}
	if v := cfg.GetPosition(); v != nil {
		sections = append(sections, &pb.Config{PayloadVariant: &pb.Config_Position{Position: v}})
	}
	if v := cfg.GetPower(); v != nil {
		sections = append(sections, &pb.Config{PayloadVariant: &pb.Config_Power{Power: v}})
	}
	if v := cfg.GetNetwork(); v != nil {
		sections = append(sections, &pb.Config{PayloadVariant: &pb.Config_Network{Network: v}})
	}
	if v := cfg.GetDisplay(); v != nil {
		sections = append(sections, &pb.Config{PayloadVariant: &pb.Config_Display{Display: v}})
	}
	if v := cfg.GetLora(); v != nil {
		sections = append(sections, &pb.Config{PayloadVariant: &pb.Config_Lora{Lora: v}})
	}
	if v := cfg.GetBluetooth(); v != nil {
		sections = append(sections, &pb.Config{PayloadVariant: &pb.Config_Bluetooth{Bluetooth: v}})
	}
	if v := cfg.GetSecurity(); v != nil {
		sections = append(sections, &pb.Config{PayloadVariant: &pb.Config_Security{Security: v}})
	}
	return sections
}

// DeviceState represents the current state of a device.
type DeviceState struct {
	MyInfo   *pb.MyNodeInfo
	Nodes    []*pb.NodeInfo
	Channels []*pb.Channel
	Device   *pb.DeviceMetadata
	Config   *pb.LocalConfig
}

// CurrentNodeInfo returns the current node info if available.
func (s DeviceState) CurrentNodeInfo() (*pb.NodeInfo, bool) {
	if s.MyInfo == nil {
		return nil, false
	}
	for _, node := range s.Nodes {
		if node.Num == s.MyInfo.MyNodeNum {
			return node, true
		}
	}
	return nil, false
}
