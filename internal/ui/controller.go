// Package ui holds the connection state machine shared by the interactive front-ends.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/exepirit/meshtastic-backup/internal/backup"
	"github.com/exepirit/meshtastic-backup/internal/log"
)

// State of the controller connection.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	errorTitle      = "Error"
	unknownValue    = "Unknown"
	statusOffline   = "Not connected"
	msgSelectPort   = "Select a serial port"
	msgNotConnected = "Not connected"
)

// ErrNoPort is returned by Connect when no port was selected.
var ErrNoPort = errors.New("no port selected")

// Presenter displays the controller output.
type Presenter interface {
	ShowError(title, message string)
	ShowInfo(title, message string)
	SetStatus(text string)
	SetPorts(ports []string)
}

// Connection is an open device session owned by the controller.
type Connection interface {
	backup.Session
	io.Closer
}

// Opener connects to the device behind port.
type Opener func(ctx context.Context, port string) (Connection, error)

// FileChooser asks the user for a file. ok is false when the user cancelled.
type FileChooser func() (path string, ok bool)

// File returns a chooser that always picks path.
func File(path string) FileChooser {
	return func() (string, bool) {
		return path, path != ""
	}
}

// Controller drives the Disconnected and Connected states. Its methods are safe for
// concurrent use; every outcome is reported through the presenter and returned.
type Controller struct {
	Open      Opener
	ListPorts func() ([]string, error)
	Service   *backup.Service
	Presenter Presenter
	Logger    log.Logger

	mu     sync.Mutex
	conn   Connection
	status string
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return Disconnected
	}
	return Connected
}

// Status returns the text of the status line.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == "" {
		return statusOffline
	}
	return c.status
}

// RefreshPorts pushes the current port list to the presenter.
func (c *Controller) RefreshPorts() ([]string, error) {
	ports, err := c.ListPorts()
	if err != nil {
		c.Presenter.ShowError(errorTitle, err.Error())
		return nil, err
	}
	c.Presenter.SetPorts(ports)
	return ports, nil
}

// Connect opens a session on port. A live session is closed first.
func (c *Controller) Connect(ctx context.Context, port string) error {
	if port == "" {
		c.Presenter.ShowError(errorTitle, msgSelectPort)
		return ErrNoPort
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	conn, err := c.Open(ctx, port)
	if err != nil {
		c.logger().Warn("Connection failed", "port", port, "error", err)
		c.Presenter.ShowError(errorTitle, err.Error())
		return err
	}
	c.conn = conn

	name, ok := conn.LongName(ctx)
	if !ok {
		name = unknownValue
	}
	firmware, ok := conn.FirmwareVersion(ctx)
	if !ok {
		firmware = unknownValue
	}
	c.setStatusLocked(fmt.Sprintf("Connected: %s (%s)", name, firmware))
	return nil
}

// Disconnect closes the session, if any. It always ends in the Disconnected state.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Shutdown releases the session when the front-end exits.
func (c *Controller) Shutdown() {
	c.Disconnect()
}

// Backup saves the configuration of the connected device and returns the file path.
func (c *Controller) Backup(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		c.Presenter.ShowError(errorTitle, msgNotConnected)
		return "", backup.ErrNotConnected
	}

	path, err := c.Service.Backup(ctx, c.conn)
	if err != nil {
		c.Presenter.ShowError(errorTitle, err.Error())
		return "", err
	}
	c.Presenter.ShowInfo("Backup", "Saved to "+path)
	return path, nil
}

// Restore writes the file picked by choose to the connected device. The chooser is
// not called while disconnected, and a cancelled choice does nothing.
func (c *Controller) Restore(ctx context.Context, choose FileChooser) error {
	if c.State() != Connected {
		c.Presenter.ShowError(errorTitle, msgNotConnected)
		return backup.ErrNotConnected
	}

	path, ok := choose()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		c.Presenter.ShowError(errorTitle, msgNotConnected)
		return backup.ErrNotConnected
	}
	if err := c.Service.Restore(ctx, c.conn, path); err != nil {
		c.Presenter.ShowError(errorTitle, err.Error())
		return err
	}
	c.Presenter.ShowInfo("Restore", "Restore complete")
	return nil
}

func (c *Controller) closeLocked() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger().Warn("Failed to close session", "error", err)
		}
		c.conn = nil
	}
	c.setStatusLocked(statusOffline)
}

func (c *Controller) setStatusLocked(text string) {
	c.status = text
	c.Presenter.SetStatus(text)
}

func (c *Controller) logger() log.Logger {
	if c.Logger == nil {
		return log.NOOPLogger{}
	}
	return c.Logger
}
