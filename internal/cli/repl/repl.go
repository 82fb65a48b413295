// Package repl provides the interactive shell of meshbackup.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/exepirit/meshtastic-backup/internal/ui"
)

const prompt = "meshbackup> "

// REPL represents the Read-Eval-Print Loop over a controller.
type REPL struct {
	input     io.Reader
	output    io.Writer
	ctrl      *ui.Controller
	completer *Completer
}

// New creates a REPL reading stdin and writing stdout.
func New(ctrl *ui.Controller) *REPL {
	return NewWithIO(ctrl, os.Stdin, os.Stdout)
}

// NewWithIO creates a REPL over the given streams.
func NewWithIO(ctrl *ui.Controller, input io.Reader, output io.Writer) *REPL {
	return &REPL{
		input:     input,
		output:    output,
		ctrl:      ctrl,
		completer: NewCompleter(),
	}
}

// Run starts the loop. It returns on exit, quit, end of input or ctx cancellation,
// and always releases the controller session. On cancellation a pending read of the
// input is abandoned.
func (r *REPL) Run(ctx context.Context) error {
	defer r.ctrl.Shutdown()
	done := make(chan struct{})
	defer close(done)
	lines := r.readLines(done)

	for {
		fmt.Fprint(r.output, prompt)

		var in inputLine
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.output)
			return nil
		case in = <-lines:
		}
		if ctx.Err() != nil {
			return nil
		}

		if in.err == io.EOF && strings.TrimSpace(in.text) == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if in.err != nil && in.err != io.EOF {
			return in.err
		}

		line := strings.TrimSpace(in.text)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		// outcomes are already shown by the presenter
		_ = r.execute(ctx, line)
		if in.err == io.EOF {
			return nil
		}
	}
}

type inputLine struct {
	text string
	err  error
}

// readLines feeds input lines to the returned channel until a read fails or done is closed.
func (r *REPL) readLines(done <-chan struct{}) <-chan inputLine {
	lines := make(chan inputLine)
	go func() {
		reader := bufio.NewReader(r.input)
		for {
			text, err := reader.ReadString('\n')
			select {
			case lines <- inputLine{text: text, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

func (r *REPL) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		r.help()
		return nil
	case "ports":
		_, err := r.ctrl.RefreshPorts()
		return err
	case "connect":
		port := strings.TrimSpace(strings.TrimPrefix(line, cmd))
		return r.ctrl.Connect(ctx, port)
	case "disconnect":
		r.ctrl.Disconnect()
		return nil
	case "status":
		fmt.Fprintln(r.output, r.ctrl.Status())
		return nil
	case "backup":
		_, err := r.ctrl.Backup(ctx)
		return err
	case "restore":
		if r.ctrl.State() == ui.Connected && len(args) == 0 {
			err := fmt.Errorf("usage: restore FILE")
			fmt.Fprintln(r.output, err)
			return err
		}
		path := strings.TrimSpace(strings.TrimPrefix(line, cmd))
		return r.ctrl.Restore(ctx, ui.File(path))
	default:
		err := fmt.Errorf("unknown command %q", cmd)
		if suggestions := r.completer.Complete(cmd[:1]); len(suggestions) > 0 {
			fmt.Fprintf(r.output, "%v, try: %s\n", err, strings.Join(suggestions, ", "))
		} else {
			fmt.Fprintf(r.output, "%v, type help for the command list\n", err)
		}
		return err
	}
}

func (r *REPL) help() {
	fmt.Fprint(r.output, `Commands:
  ports            list serial ports
  connect PORT     connect to the radio on PORT
  disconnect       close the connection
  status           show the connection status
  backup           save the radio configuration
  restore FILE     write a saved configuration to the radio
  help             show this help
  exit, quit       leave the shell
`)
}
