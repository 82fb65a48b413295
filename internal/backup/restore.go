package backup

import (
	"context"
	"errors"
	"os"

	"github.com/exepirit/meshtastic-backup/pkg/meshtastic"
	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

var errNoSections = errors.New("file holds no configuration sections")

// Restore reads a backup file and writes its configuration to the radio.
// The radio is not touched when the file cannot be read or parsed.
func (s *Service) Restore(ctx context.Context, session Session, path string) error {
	if session == nil {
		return ErrNotConnected
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Wrap(ErrIO, err)
	}
	cfg, err := Unmarshal(data)
	if err != nil {
		return err
	}

	if err := session.WriteConfig(ctx, cfg); err != nil {
		return err
	}
	s.logger().Info("Configuration restored", "path", path)
	return nil
}

// Unmarshal parses a serialized configuration. It rejects input that does not
// decode or that carries no section at all, such as an empty file.
func Unmarshal(data []byte) (*pb.LocalConfig, error) {
	cfg := new(pb.LocalConfig)
	if err := protobuf.Unmarshal(data, cfg); err != nil {
		return nil, Wrap(ErrFormat, err)
	}
	if len(meshtastic.ConfigSections(cfg)) == 0 {
		return nil, Wrap(ErrFormat, errNoSections)
	}
	return cfg, nil
}
