// Package command provides the CLI command definitions of meshbackup.
//
// It uses urfave/cli/v2 for command parsing. Every device command opens a
// session, runs one operation and releases the session before returning.
package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App creates the CLI application wired to the real devices.
func App() *cli.App {
	return NewApp(DefaultDeps())
}

// NewApp creates the CLI application over deps.
func NewApp(deps Deps) *cli.App {
	app := &cli.App{
		Name:      "meshbackup",
		Usage:     "Back up and restore the configuration of a Meshtastic radio",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:     globalFlags(),
		Reader:    deps.Stdin,
		Writer:    deps.Stdout,
		ErrWriter: deps.Stderr,
		Commands: []*cli.Command{
			BackupCommand(),
			RestoreCommand(),
			PortsCommand(),
			InfoCommand(),
			ShellCommand(),
		},
		Before: func(c *cli.Context) error {
			rt, err := newRuntime(c, deps)
			if err != nil {
				return err
			}
			c.App.Metadata = map[string]any{runtimeKey: rt}
			return nil
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				_ = cli.ShowAppHelp(c)
				return errors.New("missing action")
			}
			return fmt.Errorf("unknown action %q", c.Args().First())
		},
		// errors are reported by main
		ExitErrHandler: func(*cli.Context, error) {},
	}
	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "configuration file (default: $XDG_CONFIG_HOME/meshbackup/config.yaml)",
		},
		&cli.IntFlag{
			Name:  "baud",
			Usage: "serial port speed",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "handshake and request timeout",
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "root directory of backups",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format: text, json",
		},
	}
}

// GlobalFlags holds the explicitly set global flags as configuration overrides.
type GlobalFlags struct {
	ConfigFile string
	Overrides  map[string]any
}

// ParseGlobalFlags extracts global flags from context. Flags left unset do not
// override the configuration.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	flags := &GlobalFlags{
		ConfigFile: c.String("config"),
		Overrides:  map[string]any{},
	}
	set := func(section, key string, value any) {
		m, ok := flags.Overrides[section].(map[string]any)
		if !ok {
			m = map[string]any{}
			flags.Overrides[section] = m
		}
		m[key] = value
	}

	if c.IsSet("baud") {
		set("device", "baud", c.Int("baud"))
	}
	if c.IsSet("timeout") {
		set("device", "timeout", c.Duration("timeout"))
	}
	if c.IsSet("dir") {
		set("backup", "dir", c.String("dir"))
	}
	if c.IsSet("log-level") {
		set("log", "level", c.String("log-level"))
	}
	if c.IsSet("log-format") {
		set("log", "format", c.String("log-format"))
	}
	return flags
}
