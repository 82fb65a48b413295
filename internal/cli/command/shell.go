package command

import (
	"context"

	"github.com/exepirit/meshtastic-backup/internal/cli/repl"
	"github.com/exepirit/meshtastic-backup/internal/ui"
	"github.com/urfave/cli/v2"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:   "shell",
		Usage:  "Start an interactive shell",
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	ctrl := &ui.Controller{
		Open: func(ctx context.Context, port string) (ui.Connection, error) {
			return rt.deps.Open(ctx, port, rt.sessionOptions())
		},
		ListPorts: rt.deps.ListPorts,
		Service:   rt.service,
		Presenter: &repl.Presenter{Output: rt.deps.Stdout},
		Logger:    rt.logger,
	}
	return repl.NewWithIO(ctrl, rt.deps.Stdin, rt.deps.Stdout).Run(c.Context)
}
