// Package backup saves radio configurations to files and restores them.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/exepirit/meshtastic-backup/internal/log"
	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

// Service performs backup and restore operations on sessions.
type Service struct {
	// Dir is the root directory for per-node backup directories.
	Dir string
	// Now returns the time used in file names. time.Now is used when nil.
	Now func() time.Time
	// Logger receives progress records. Nothing is logged when nil.
	Logger log.Logger
}

// Backup stores the current configuration of the radio under
// Dir/<node>/<node>_<firmware>_<timestamp>.bin and returns the path of the file.
func (s *Service) Backup(ctx context.Context, session Session) (string, error) {
	if session == nil {
		return "", ErrNotConnected
	}

	name, ok := session.LongName(ctx)
	if !ok {
		name = defaultNodeName
	}
	firmware, ok := session.FirmwareVersion(ctx)
	if !ok {
		s.logger().Info("Firmware version is unknown, using placeholder", "placeholder", defaultFirmware)
		firmware = defaultFirmware
	}

	dir := filepath.Join(s.Dir, NodeDir(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", Wrap(ErrIO, err)
	}

	path := filepath.Join(dir, FileName(name, firmware, s.now()))
	if err := s.BackupTo(ctx, session, path); err != nil {
		return "", err
	}
	return path, nil
}

// BackupTo stores the current configuration of the radio in the file at path.
func (s *Service) BackupTo(ctx context.Context, session Session, path string) error {
	if session == nil {
		return ErrNotConnected
	}

	cfg, err := session.Config(ctx)
	if err != nil {
		return err
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Wrap(ErrIO, err)
	}
	s.logger().Info("Configuration saved", "path", path, "bytes", len(data))
	return nil
}

// Marshal serializes a configuration. The encoding is deterministic, so equal
// configurations produce equal files.
func Marshal(cfg *pb.LocalConfig) ([]byte, error) {
	data, err := protobuf.MarshalOptions{Deterministic: true}.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize configuration: %w", err)
	}
	return data, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) logger() log.Logger {
	if s.Logger == nil {
		return log.NOOPLogger{}
	}
	return s.Logger
}
