package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/exepirit/meshtastic-backup/internal/backup"
	"github.com/exepirit/meshtastic-backup/internal/config"
	"github.com/exepirit/meshtastic-backup/internal/log"
	"github.com/exepirit/meshtastic-backup/internal/session"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic/serial"
	"github.com/urfave/cli/v2"
)

const runtimeKey = "runtime"

// Device is an open radio session as used by the commands.
type Device interface {
	backup.Session
	io.Closer
	NodeNum() uint32
}

// Deps are the side effects of the commands.
type Deps struct {
	Open              func(ctx context.Context, port string, opts session.Options) (Device, error)
	ListPorts         func() ([]string, error)
	ListDetailedPorts func() ([]serial.PortInfo, error)

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultDeps opens real ports and uses the process standard streams.
func DefaultDeps() Deps {
	return Deps{
		Open: func(ctx context.Context, port string, opts session.Options) (Device, error) {
			s, err := session.Open(ctx, port, opts)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		ListPorts:         serial.ListPorts,
		ListDetailedPorts: serial.ListDetailedPorts,
		Stdin:             os.Stdin,
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	}
}

// runtime is the state shared by the commands of one invocation.
type runtime struct {
	deps    Deps
	cfg     *config.Config
	logger  *slog.Logger
	service *backup.Service
}

func newRuntime(c *cli.Context, deps Deps) (*runtime, error) {
	flags := ParseGlobalFlags(c)
	cfg, err := config.NewLoader(
		config.WithConfigFile(flags.ConfigFile),
		config.WithOverrides(flags.Overrides),
	).Load()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: deps.Stderr,
	})
	return &runtime{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		service: &backup.Service{
			Dir:    cfg.Backup.Dir,
			Logger: logger,
		},
	}, nil
}

func getRuntime(c *cli.Context) (*runtime, error) {
	if rt, ok := c.App.Metadata[runtimeKey].(*runtime); ok {
		return rt, nil
	}
	return nil, errors.New("command runtime is not initialized")
}

func (rt *runtime) sessionOptions() session.Options {
	return session.Options{
		BaudRate: rt.cfg.Device.Baud,
		Timeout:  rt.cfg.Device.Timeout,
		Logger:   rt.logger,
	}
}

// open connects to port, falling back to the configured device port.
func (rt *runtime) open(ctx context.Context, port string) (Device, error) {
	if port == "" {
		port = rt.cfg.Device.Port
	}
	if port == "" {
		return nil, errors.New("missing PORT argument")
	}
	return rt.deps.Open(ctx, port, rt.sessionOptions())
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.deps.Stdout, format, args...)
}
