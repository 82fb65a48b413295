package backup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

// fakeSession keeps a configuration in memory.
type fakeSession struct {
	name      string
	firmware  string
	config    *pb.LocalConfig
	configErr error
	writeErr  error
	writes    int
}

func (s *fakeSession) LongName(ctx context.Context) (string, bool) {
	return s.name, s.name != ""
}

func (s *fakeSession) FirmwareVersion(ctx context.Context) (string, bool) {
	return s.firmware, s.firmware != ""
}

func (s *fakeSession) Config(ctx context.Context) (*pb.LocalConfig, error) {
	if s.configErr != nil {
		return nil, s.configErr
	}
	return protobuf.Clone(s.config).(*pb.LocalConfig), nil
}

func (s *fakeSession) WriteConfig(ctx context.Context, cfg *pb.LocalConfig) error {
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.config = protobuf.Clone(cfg).(*pb.LocalConfig)
	return nil
}

func sampleConfig() *pb.LocalConfig {
	return &pb.LocalConfig{
		Network: &pb.Config_NetworkConfig{WifiSsid: "mesh-network"},
		Display: &pb.Config_DisplayConfig{ScreenOnSecs: 300},
		Lora:    &pb.Config_LoRaConfig{HopLimit: 5},
	}
}

var fixedTime = time.Date(2026, 10, 14, 9, 5, 7, 0, time.UTC)

func newService(t *testing.T) *Service {
	return &Service{Dir: t.TempDir(), Now: func() time.Time { return fixedTime }}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Node #1", "Node_1"},
		{"2.1.0-beta", "2_1_0_beta"},
		{"plain", "plain"},
		{"keep_underscore", "keep_underscore"},
		{"  spaced  out  ", "_spaced_out_"},
		{"a/b\\c:d*e?f", "a_b_c_d_e_f"},
		{"Узел 5", "_5"},
		{"", ""},
	}

	valid := regexp.MustCompile(`^[0-9A-Za-z_]*$`)
	for _, tt := range tests {
		got := Sanitize(tt.input)
		if got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if !valid.MatchString(got) {
			t.Errorf("Sanitize(%q) = %q contains unsafe characters", tt.input, got)
		}
	}
}

func TestFileName(t *testing.T) {
	name := FileName("Node #1", "2.1.0-beta", time.Now())
	if !regexp.MustCompile(`^Node_1_2_1_0_beta_\d{8}_\d{6}\.bin$`).MatchString(name) {
		t.Errorf("FileName() = %q", name)
	}

	if got := FileName("", "", fixedTime); got != "node_fw_20261014_090507.bin" {
		t.Errorf("FileName() with placeholders = %q", got)
	}
}

func TestBackup(t *testing.T) {
	svc := newService(t)
	session := &fakeSession{name: "Node #1", firmware: "2.1.0-beta", config: sampleConfig()}

	path, err := svc.Backup(context.Background(), session)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	want := filepath.Join(svc.Dir, "Node_1", "Node_1_2_1_0_beta_20261014_090507.bin")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	expected, _ := Marshal(sampleConfig())
	if !bytes.Equal(data, expected) {
		t.Error("file contents differ from the serialized configuration")
	}
}

func TestBackup_FirmwareUnknown(t *testing.T) {
	svc := newService(t)
	session := &fakeSession{name: "Base", config: sampleConfig()}

	path, err := svc.Backup(context.Background(), session)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if filepath.Base(path) != "Base_fw_20261014_090507.bin" {
		t.Errorf("file name = %q", filepath.Base(path))
	}
}

func TestBackup_NameUnknown(t *testing.T) {
	svc := newService(t)
	session := &fakeSession{firmware: "2.5.0", config: sampleConfig()}

	path, err := svc.Backup(context.Background(), session)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != "node" {
		t.Errorf("directory = %q, want node", filepath.Dir(path))
	}
}

func TestBackup_ConfigError(t *testing.T) {
	svc := newService(t)
	session := &fakeSession{name: "Base", configErr: Wrap(ErrCommunication, context.DeadlineExceeded)}

	_, err := svc.Backup(context.Background(), session)
	if !errors.Is(err, ErrCommunication) {
		t.Fatalf("Backup() error = %v, want ErrCommunication", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Backup() error = %v should keep its cause", err)
	}

	entries, _ := os.ReadDir(filepath.Join(svc.Dir, "Base"))
	if len(entries) != 0 {
		t.Errorf("no backup file expected, found %d", len(entries))
	}
}

func TestBackup_DirectoryError(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	svc := &Service{Dir: blocker}
	_, err := svc.Backup(context.Background(), &fakeSession{name: "Base", config: sampleConfig()})
	if !errors.Is(err, ErrIO) {
		t.Errorf("Backup() error = %v, want ErrIO", err)
	}
}

func TestBackup_NotConnected(t *testing.T) {
	svc := newService(t)

	if _, err := svc.Backup(context.Background(), nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Backup() error = %v, want ErrNotConnected", err)
	}
	if err := svc.BackupTo(context.Background(), nil, filepath.Join(svc.Dir, "x.bin")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("BackupTo() error = %v, want ErrNotConnected", err)
	}

	entries, _ := os.ReadDir(svc.Dir)
	if len(entries) != 0 {
		t.Errorf("no filesystem changes expected, found %d entries", len(entries))
	}
}

func TestBackupTo(t *testing.T) {
	svc := newService(t)
	path := filepath.Join(svc.Dir, "explicit.bin")

	if err := svc.BackupTo(context.Background(), &fakeSession{config: sampleConfig()}, path); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not written: %v", err)
	}

	err := svc.BackupTo(context.Background(), &fakeSession{config: sampleConfig()}, filepath.Join(svc.Dir, "missing", "x.bin"))
	if !errors.Is(err, ErrIO) {
		t.Errorf("BackupTo() into missing directory error = %v, want ErrIO", err)
	}
}
