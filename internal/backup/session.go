package backup

import (
	"context"

	pb "github.com/meshtastic/go/generated"
)

// Session is an open connection to one radio.
type Session interface {
	// LongName returns the human-readable node name, if the radio reported one.
	LongName(ctx context.Context) (string, bool)
	// FirmwareVersion returns the firmware version, if the radio answered the metadata request.
	FirmwareVersion(ctx context.Context) (string, bool)
	// Config fetches the current configuration.
	Config(ctx context.Context) (*pb.LocalConfig, error)
	// WriteConfig pushes a configuration to the radio.
	WriteConfig(ctx context.Context, cfg *pb.LocalConfig) error
}
