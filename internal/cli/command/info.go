package command

import "github.com/urfave/cli/v2"

// InfoCommand returns the info command.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show the identity of the radio",
		ArgsUsage: "PORT",
		Action:    infoAction,
	}
}

func infoAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	device, err := rt.open(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	defer device.Close()

	name, ok := device.LongName(c.Context)
	if !ok {
		name = "unknown"
	}
	firmware, ok := device.FirmwareVersion(c.Context)
	if !ok {
		firmware = "unknown"
	}
	rt.printf("Node:     !%08x\n", device.NodeNum())
	rt.printf("Name:     %s\n", name)
	rt.printf("Firmware: %s\n", firmware)
	return nil
}
