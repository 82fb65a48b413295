// Package session owns the connection to a single radio and exposes the
// operations the backup tool needs.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/exepirit/meshtastic-backup/internal/backup"
	"github.com/exepirit/meshtastic-backup/internal/log"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic"
	pb "github.com/meshtastic/go/generated"
)

// DefaultTimeout bounds the handshake and every request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

var _ backup.Session = &Session{}

// Options configure a session.
type Options struct {
	// BaudRate of serial ports. The serial package default is used when zero.
	BaudRate int
	// Timeout of the handshake and of each request.
	Timeout time.Duration
	// Logger receives protocol records. Nothing is logged when nil.
	Logger log.Logger
}

// Session is an open connection to one radio. It must be closed.
type Session struct {
	port      string
	device    *meshtastic.Device
	transport io.Closer
	state     meshtastic.DeviceState
	timeout   time.Duration
	logger    log.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the radio behind port and performs the configuration handshake.
// See Dial for the accepted port formats. Failures match backup.ErrConnection.
func Open(ctx context.Context, port string, opts Options) (*Session, error) {
	transport, closer, err := Dial(ctx, port, opts)
	if err != nil {
		return nil, backup.Wrap(backup.ErrConnection, err)
	}
	return Attach(ctx, port, transport, closer, opts)
}

// Attach performs the handshake over an already open transport. The session takes
// ownership of closer, which is released when the handshake fails. closer may be nil.
func Attach(ctx context.Context, port string, transport meshtastic.HardwareTransport, closer io.Closer, opts Options) (*Session, error) {
	s := &Session{
		port:      port,
		transport: closer,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.logger == nil {
		s.logger = log.NOOPLogger{}
	}
	s.device = &meshtastic.Device{Transport: transport, Logger: s.logger}

	s.logger.Debug("Connecting to radio", "port", port)
	state, err := s.fetchState(ctx)
	if err != nil {
		_ = s.Close()
		return nil, backup.Wrap(backup.ErrConnection, fmt.Errorf("radio on %s did not answer: %w", port, err))
	}
	if state.MyInfo == nil {
		_ = s.Close()
		return nil, backup.Wrap(backup.ErrConnection, fmt.Errorf("radio on %s did not report its node number", port))
	}
	s.state = state
	s.logger.Info("Connected to radio", "port", port, "node", fmt.Sprintf("!%08x", state.MyInfo.GetMyNodeNum()))
	return s, nil
}

// Port returns the port the session was opened on.
func (s *Session) Port() string {
	return s.port
}

// NodeNum returns the number of the node the session is attached to.
func (s *Session) NodeNum() uint32 {
	return s.state.MyInfo.GetMyNodeNum()
}

// LongName returns the node name reported during the handshake.
func (s *Session) LongName(ctx context.Context) (string, bool) {
	node, ok := s.state.CurrentNodeInfo()
	if !ok {
		return "", false
	}
	name := node.GetUser().GetLongName()
	return name, name != ""
}

// metadataResult is the outcome of a firmware metadata request.
type metadataResult struct {
	version string
	err     error
}

func (r metadataResult) value() (string, bool) {
	if r.err != nil || r.version == "" {
		return "", false
	}
	return r.version, true
}

// FirmwareVersion asks the radio for its metadata. Any failure, including a timeout,
// a malformed answer or an empty version, reports an absent value.
func (s *Session) FirmwareVersion(ctx context.Context) (string, bool) {
	result := s.queryMetadata(ctx)
	if result.err != nil {
		s.logger.Debug("Firmware version is not available", "error", result.err)
	}
	return result.value()
}

func (s *Session) queryMetadata(ctx context.Context) metadataResult {
	metadata, err := s.admin().GetDeviceMetadata(ctx)
	if err != nil {
		return metadataResult{err: err}
	}
	if metadata.GetFirmwareVersion() == "" {
		return metadataResult{err: errors.New("firmware version field is empty")}
	}
	return metadataResult{version: metadata.GetFirmwareVersion()}
}

// Config requests the current configuration from the radio.
// Failures match backup.ErrCommunication.
func (s *Session) Config(ctx context.Context) (*pb.LocalConfig, error) {
	state, err := s.fetchState(ctx)
	if err != nil {
		return nil, backup.Wrap(backup.ErrCommunication, fmt.Errorf("failed to read configuration: %w", err))
	}
	return state.Config, nil
}

// WriteConfig writes every present section of cfg to the radio in one edit transaction.
// The session timeout applies to each request of the transaction.
// Failures match backup.ErrCommunication.
func (s *Session) WriteConfig(ctx context.Context, cfg *pb.LocalConfig) error {
	if err := s.admin().SetConfig(ctx, cfg); err != nil {
		return backup.Wrap(backup.ErrCommunication, fmt.Errorf("failed to write configuration: %w", err))
	}
	s.logger.Info("Configuration written", "port", s.port, "sections", len(meshtastic.ConfigSections(cfg)))
	return nil
}

// Close releases the transport. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		if s.transport != nil {
			s.closeErr = s.transport.Close()
		}
		s.logger.Debug("Disconnected from radio", "port", s.port)
	})
	return s.closeErr
}

func (s *Session) admin() *meshtastic.DeviceModuleAdmin {
	admin := s.device.Admin(s.NodeNum())
	admin.Timeout = s.timeout
	return admin
}

func (s *Session) fetchState(ctx context.Context) (meshtastic.DeviceState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.device.Config().GetState(ctx)
}
