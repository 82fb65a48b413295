package backup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backup.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRestore(t *testing.T) {
	data, _ := Marshal(sampleConfig())
	path := writeFile(t, data)
	session := &fakeSession{config: &pb.LocalConfig{}}

	if err := newService(t).Restore(context.Background(), session, path); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !protobuf.Equal(session.config, sampleConfig()) {
		t.Errorf("session config = %v, want %v", session.config, sampleConfig())
	}
}

func TestRestore_InvalidFile(t *testing.T) {
	valid, _ := Marshal(sampleConfig())

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", valid[:len(valid)-1]},
		{"garbage", []byte{0x0a, 0x05, 0x01}},
		{"invalid wire type", []byte{0xff, 0xff}},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{}
			err := newService(t).Restore(context.Background(), session, writeFile(t, tt.data))
			if !errors.Is(err, ErrFormat) {
				t.Errorf("Restore() error = %v, want ErrFormat", err)
			}
			if session.writes != 0 {
				t.Errorf("WriteConfig called %d times, want 0", session.writes)
			}
		})
	}
}

func TestRestore_MissingFile(t *testing.T) {
	session := &fakeSession{}
	err := newService(t).Restore(context.Background(), session, filepath.Join(t.TempDir(), "none.bin"))
	if !errors.Is(err, ErrIO) {
		t.Errorf("Restore() error = %v, want ErrIO", err)
	}
	if session.writes != 0 {
		t.Error("WriteConfig should not be called")
	}
}

func TestRestore_WriteRejected(t *testing.T) {
	data, _ := Marshal(sampleConfig())
	session := &fakeSession{writeErr: Wrap(ErrCommunication, errors.New("nak"))}

	err := newService(t).Restore(context.Background(), session, writeFile(t, data))
	if !errors.Is(err, ErrCommunication) {
		t.Errorf("Restore() error = %v, want ErrCommunication", err)
	}
	if session.writes != 1 {
		t.Errorf("WriteConfig called %d times, want exactly 1", session.writes)
	}
}

func TestRestore_NotConnected(t *testing.T) {
	err := newService(t).Restore(context.Background(), nil, "does-not-matter.bin")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Restore() error = %v, want ErrNotConnected", err)
	}
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	configs := []*pb.LocalConfig{
		sampleConfig(),
		{Bluetooth: &pb.Config_BluetoothConfig{Enabled: true, FixedPin: 654321}},
		{Position: &pb.Config_PositionConfig{PositionBroadcastSecs: 900}, Lora: &pb.Config_LoRaConfig{HopLimit: 7}},
	}

	for i, cfg := range configs {
		svc := newService(t)
		session := &fakeSession{name: "Node", config: cfg}

		path, err := svc.Backup(context.Background(), session)
		if err != nil {
			t.Fatalf("[%d] Backup() error = %v", i, err)
		}
		written, _ := os.ReadFile(path)

		if err := svc.Restore(context.Background(), session, path); err != nil {
			t.Fatalf("[%d] Restore() error = %v", i, err)
		}
		current, err := session.Config(context.Background())
		if err != nil {
			t.Fatalf("[%d] Config() error = %v", i, err)
		}
		blob, _ := Marshal(current)
		if !bytes.Equal(blob, written) {
			t.Errorf("[%d] configuration changed after restore", i)
		}
	}
}
