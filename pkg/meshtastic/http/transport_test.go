package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/exepirit/meshtastic-backup/pkg/meshtastic"
	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

// fakeDevice serves the phone API of a radio with a queue of outgoing packets.
type fakeDevice struct {
	mu       sync.Mutex
	received [][]byte
	queue    [][]byte
	polls    int

	// idlePolls is the number of polls answered with an empty body first.
	idlePolls int
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case r.Method == http.MethodPut && r.URL.Path == "/api/v1/toradio":
		body, _ := io.ReadAll(r.Body)
		d.received = append(d.received, body)
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/fromradio":
		d.polls++
		if d.polls <= d.idlePolls || len(d.queue) == 0 {
			return
		}
		_, _ = w.Write(d.queue[0])
		d.queue = d.queue[1:]
	default:
		http.NotFound(w, r)
	}
}

func TestSendToRadio(t *testing.T) {
	device := &fakeDevice{}
	server := httptest.NewServer(device)
	defer server.Close()

	transport := &Transport{URL: server.URL}
	err := transport.SendToRadio(context.Background(), &pb.ToRadio{
		PayloadVariant: &pb.ToRadio_WantConfigId{WantConfigId: 11},
	})
	if err != nil {
		t.Fatalf("SendToRadio() error = %v", err)
	}

	if len(device.received) != 1 {
		t.Fatalf("device received %d packets, want 1", len(device.received))
	}
	packet := new(pb.ToRadio)
	if err := protobuf.Unmarshal(device.received[0], packet); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if packet.GetWantConfigId() != 11 {
		t.Errorf("WantConfigId = %d, want 11", packet.GetWantConfigId())
	}
}

func TestSendToRadio_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	transport := &Transport{URL: server.URL}
	if err := transport.SendToRadio(context.Background(), &pb.ToRadio{}); err == nil {
		t.Error("SendToRadio() should fail on 404")
	}
}

func TestReceiveFromRadio_PollsEmptyQueue(t *testing.T) {
	payload, _ := protobuf.Marshal(&pb.FromRadio{
		PayloadVariant: &pb.FromRadio_ConfigCompleteId{ConfigCompleteId: 5},
	})
	device := &fakeDevice{queue: [][]byte{payload}, idlePolls: 1}
	server := httptest.NewServer(device)
	defer server.Close()

	transport := &Transport{URL: server.URL, PollInterval: time.Millisecond}
	packet, err := transport.ReceiveFromRadio(context.Background())
	if err != nil {
		t.Fatalf("ReceiveFromRadio() error = %v", err)
	}
	if packet.GetConfigCompleteId() != 5 {
		t.Errorf("ConfigCompleteId = %d, want 5", packet.GetConfigCompleteId())
	}
	if device.polls != 2 {
		t.Errorf("polls = %d, want 2", device.polls)
	}
}

func TestReceiveFromRadio_InvalidPayload(t *testing.T) {
	device := &fakeDevice{queue: [][]byte{{0xff}}}
	server := httptest.NewServer(device)
	defer server.Close()

	transport := &Transport{URL: server.URL}
	_, err := transport.ReceiveFromRadio(context.Background())
	if !errors.Is(err, meshtastic.ErrInvalidPacketFormat) {
		t.Errorf("ReceiveFromRadio() error = %v, want ErrInvalidPacketFormat", err)
	}
}

func TestReceiveFromRadio_ContextDone(t *testing.T) {
	server := httptest.NewServer(&fakeDevice{})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	transport := &Transport{URL: server.URL, PollInterval: 5 * time.Millisecond}
	_, err := transport.ReceiveFromRadio(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReceiveFromRadio() error = %v, want deadline exceeded", err)
	}
}
