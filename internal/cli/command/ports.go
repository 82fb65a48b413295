package command

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
)

// PortsCommand returns the ports command.
func PortsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "List serial ports",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "details",
				Usage: "show USB identity of the ports",
			},
		},
		Action: portsAction,
	}
}

func portsAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	if !c.Bool("details") {
		ports, err := rt.deps.ListPorts()
		if err != nil {
			return fmt.Errorf("failed to list ports: %w", err)
		}
		for _, port := range ports {
			rt.printf("%s\n", port)
		}
		return nil
	}

	ports, err := rt.deps.ListDetailedPorts()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	w := tabwriter.NewWriter(rt.deps.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tVID:PID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		id := "-"
		if p.IsUSB {
			id = p.VID + ":" + p.PID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, id, orDash(p.SerialNumber), orDash(p.Product))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
