package command

import (
	"errors"

	"github.com/urfave/cli/v2"
)

// RestoreCommand returns the restore command.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Write a saved configuration to the radio",
		ArgsUsage: "PORT FILE",
		Description: "PORT may be omitted when device.port is configured. " +
			"The file is validated before the radio is touched.",
		Action: restoreAction,
	}
}

func restoreAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	var port, path string
	switch c.NArg() {
	case 1:
		path = c.Args().Get(0)
	case 2:
		port, path = c.Args().Get(0), c.Args().Get(1)
	default:
		return errors.New("usage: restore PORT FILE")
	}

	device, err := rt.open(c.Context, port)
	if err != nil {
		return err
	}
	defer device.Close()

	if err := rt.service.Restore(c.Context, device, path); err != nil {
		return err
	}
	rt.printf("Restore complete\n")
	return nil
}
