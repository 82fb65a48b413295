package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// BackupCommand returns the backup command.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Usage:     "Save the radio configuration to a file",
		ArgsUsage: "PORT [FILE]",
		Description: "Without FILE the configuration is written to " +
			"<dir>/<node>/<node>_<firmware>_<YYYYMMDD_HHMMSS>.bin.",
		Action: backupAction,
	}
}

func backupAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	if c.NArg() > 2 {
		return fmt.Errorf("too many arguments, usage: backup %s", c.Command.ArgsUsage)
	}

	device, err := rt.open(c.Context, c.Args().Get(0))
	if err != nil {
		return err
	}
	defer device.Close()

	path := c.Args().Get(1)
	if path == "" {
		path, err = rt.service.Backup(c.Context, device)
	} else {
		err = rt.service.BackupTo(c.Context, device, path)
	}
	if err != nil {
		return err
	}
	rt.printf("Saved to %s\n", path)
	return nil
}
