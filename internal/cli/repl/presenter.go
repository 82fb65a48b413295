package repl

import (
	"fmt"
	"io"

	"github.com/exepirit/meshtastic-backup/internal/ui"
)

var _ ui.Presenter = &Presenter{}

// Presenter prints controller output as plain text lines.
type Presenter struct {
	Output io.Writer
}

func (p *Presenter) ShowError(title, message string) {
	fmt.Fprintf(p.Output, "%s: %s\n", title, message)
}

func (p *Presenter) ShowInfo(title, message string) {
	fmt.Fprintf(p.Output, "%s: %s\n", title, message)
}

func (p *Presenter) SetStatus(text string) {
	fmt.Fprintf(p.Output, "[%s]\n", text)
}

func (p *Presenter) SetPorts(ports []string) {
	if len(ports) == 0 {
		fmt.Fprintln(p.Output, "No serial ports found")
		return
	}
	for _, port := range ports {
		fmt.Fprintln(p.Output, port)
	}
}
