package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/exepirit/meshtastic-backup/pkg/meshtastic"
	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

// DefaultPollInterval is the delay between reads of an empty fromradio queue.
const DefaultPollInterval = 200 * time.Millisecond

var _ meshtastic.HardwareTransport = &Transport{}

// Transport represents a transport mechanism over HTTP for communicating with a Meshtastic device.
type Transport struct {
	// URL is the base URL of the meshtastic API endpoint.
	URL string
	// Client is an HTTP client used to send requests.
	Client http.Client
	// PollInterval is the delay between polls while the device has nothing to send.
	// DefaultPollInterval is used when zero.
	PollInterval time.Duration
}

// SendToRadio sends a protobuf message to the radio through the Meshtastic API.
func (ht *Transport) SendToRadio(ctx context.Context, packet *pb.ToRadio) error {
	body, err := protobuf.Marshal(packet)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ht.URL+"/api/v1/toradio", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Content-Type", "application/x-protobuf")

	response, err := ht.Client.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status code %d", response.StatusCode)
	}
	return nil
}

// ReceiveFromRadio retrieves a protobuf message from the radio through the Meshtastic API.
// The device answers with an empty body while its queue is empty, so the endpoint
// is polled until a packet arrives or ctx is done.
func (ht *Transport) ReceiveFromRadio(ctx context.Context) (*pb.FromRadio, error) {
	interval := ht.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		body, err := ht.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if len(body) > 0 {
			packet := new(pb.FromRadio)
			if err := protobuf.Unmarshal(body, packet); err != nil {
				return nil, meshtastic.ErrInvalidPacketFormat
			}
			return packet, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (ht *Transport) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ht.URL+"/api/v1/fromradio?all=false", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Connection", "keep-alive")

	response, err := ht.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status code %d", response.StatusCode)
	}
	return io.ReadAll(response.Body)
}
