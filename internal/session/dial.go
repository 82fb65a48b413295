package session

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/exepirit/meshtastic-backup/pkg/meshtastic"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic/http"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic/serial"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic/stream"
)

// Dial opens the transport named by port:
//
//	tcp://host[:port]   firmware TCP API (default port 4403)
//	http://host         firmware HTTP API, https is accepted too
//	anything else       serial port name, e.g. /dev/ttyUSB0 or COM4
//
// The returned closer is nil for transports without a persistent connection.
func Dial(ctx context.Context, port string, opts Options) (meshtastic.HardwareTransport, io.Closer, error) {
	if port == "" {
		return nil, nil, fmt.Errorf("no port given")
	}

	scheme, rest, found := strings.Cut(port, "://")
	if !found {
		t, err := serial.NewTransport(port, opts.BaudRate)
		if err != nil {
			return nil, nil, err
		}
		t.Logger = opts.Logger
		if err := t.Wake(ctx); err != nil {
			_ = t.Close()
			return nil, nil, err
		}
		return t, t, nil
	}

	switch strings.ToLower(scheme) {
	case "tcp":
		t, err := stream.DialTCP(ctx, strings.TrimSuffix(rest, "/"))
		if err != nil {
			return nil, nil, err
		}
		t.Logger = opts.Logger
		if err := t.Wake(ctx); err != nil {
			_ = t.Close()
			return nil, nil, err
		}
		return t, t, nil
	case "http", "https":
		u, err := url.Parse(port)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid device URL: %w", err)
		}
		return &http.Transport{URL: strings.TrimSuffix(u.String(), "/")}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported URL scheme %q", scheme)
	}
}
