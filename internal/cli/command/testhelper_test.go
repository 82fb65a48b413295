package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/exepirit/meshtastic-backup/internal/session"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic/meshtastictest"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic/serial"
	pb "github.com/meshtastic/go/generated"
)

// harness runs the CLI against a fake radio.
type harness struct {
	radio  *meshtastictest.Radio
	opened []string
	opts   []session.Options
	stdin  *strings.Reader
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return &harness{
		radio: meshtastictest.NewRadio(0x1234abcd, "Node #1", "2.1.0-beta", &pb.LocalConfig{
			Lora:    &pb.Config_LoRaConfig{HopLimit: 3, Region: pb.Config_LoRaConfig_EU_868},
			Display: &pb.Config_DisplayConfig{ScreenOnSecs: 60},
		}),
		stdin:  strings.NewReader(""),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Open: func(ctx context.Context, port string, opts session.Options) (Device, error) {
			h.opened = append(h.opened, port)
			h.opts = append(h.opts, opts)
			if port == "/dev/missing" {
				return nil, errors.New("connection error: no such port")
			}
			return session.Attach(ctx, port, h.radio, h.radio, opts)
		},
		ListPorts: func() ([]string, error) {
			return []string{"/dev/ttyUSB0", "/dev/ttyACM0"}, nil
		},
		ListDetailedPorts: func() ([]serial.PortInfo, error) {
			return []serial.PortInfo{
				{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4", PID: "EA60", SerialNumber: "0001", Product: "CP2102"},
				{Name: "/dev/ttyS0"},
			}, nil
		},
		Stdin:  h.stdin,
		Stdout: h.stdout,
		Stderr: h.stderr,
	}
}

// run executes the CLI with args, as main would.
func (h *harness) run(args ...string) error {
	return NewApp(h.deps()).RunContext(context.Background(), append([]string{"meshbackup"}, args...))
}
