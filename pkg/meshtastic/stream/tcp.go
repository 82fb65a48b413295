package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// DefaultTCPPort is the port of the firmware TCP API.
const DefaultTCPPort = "4403"

// pollInterval bounds a single blocking read so that readers can observe their context.
const pollInterval = 100 * time.Millisecond

// DialTCP connects to the radio TCP API. The address may omit the port.
func DialTCP(ctx context.Context, address string) (*Transport, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultTCPPort)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", address, err)
	}
	return &Transport{Stream: &pollingConn{Conn: conn}}, nil
}

// pollingConn turns read deadline expiry into an empty read.
type pollingConn struct {
	net.Conn
}

func (c *pollingConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, err
	}
	n, err := c.Conn.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}
