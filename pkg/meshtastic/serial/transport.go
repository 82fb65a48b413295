package serial

import (
	"fmt"
	"time"

	"github.com/exepirit/meshtastic-backup/pkg/meshtastic/stream"
	"go.bug.st/serial"
)

// DefaultBaudRate is the speed of the firmware serial API.
const DefaultBaudRate = 115200

// readTimeout bounds a single blocking read so that readers can observe their context.
const readTimeout = 100 * time.Millisecond

// NewTransport creates a new stream transport for the given serial port.
// It opens the specified serial port at baudRate (DefaultBaudRate when zero) with 8N1 framing.
func NewTransport(port string, baudRate int) (*stream.Transport, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	// drop whatever the firmware printed before we attached
	_ = p.ResetInputBuffer()

	return &stream.Transport{Stream: p}, nil
}
