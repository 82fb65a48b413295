// Package main provides the windowed front-end of meshbackup.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lxn/walk"
	d "github.com/lxn/walk/declarative"

	"github.com/exepirit/meshtastic-backup/internal/backup"
	"github.com/exepirit/meshtastic-backup/internal/config"
	"github.com/exepirit/meshtastic-backup/internal/log"
	"github.com/exepirit/meshtastic-backup/internal/session"
	"github.com/exepirit/meshtastic-backup/internal/ui"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic/serial"
)

const backupFilter = "Backup files (*.bin)|*.bin|All files (*.*)|*.*"

// Global state
var (
	mw          *walk.MainWindow
	portCombo   *walk.ComboBox
	statusLabel *walk.Label
	buttons     []*walk.PushButton

	queue *uiQueue

	ctrl *ui.Controller
)

func main() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		walk.MsgBox(nil, "Error", err.Error(), walk.MsgBoxIconError)
		os.Exit(1)
	}
	logger := log.New(log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := session.Options{BaudRate: cfg.Device.Baud, Timeout: cfg.Device.Timeout, Logger: logger}
	ctrl = &ui.Controller{
		Open: func(ctx context.Context, port string) (ui.Connection, error) {
			s, err := session.Open(ctx, port, opts)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		ListPorts: serial.ListPorts,
		Service:   &backup.Service{Dir: cfg.Backup.Dir, Logger: logger},
		Presenter: windowPresenter{},
		Logger:    logger,
	}

	var connectBtn, disconnectBtn, backupBtn, restoreBtn, refreshBtn *walk.PushButton
	err = d.MainWindow{
		AssignTo: &mw,
		Title:    "Meshtastic Backup/Restore",
		MinSize:  d.Size{Width: 380, Height: 160},
		Layout:   d.Grid{Columns: 3, Spacing: 6},
		Children: []d.Widget{
			d.Label{Text: "Serial Port:"},
			d.ComboBox{
				AssignTo: &portCombo,
				Editable: true,
				Value:    cfg.Device.Port,
				MinSize:  d.Size{Width: 180},
			},
			d.PushButton{AssignTo: &refreshBtn, Text: "Refresh", OnClicked: onRefresh},

			d.PushButton{AssignTo: &connectBtn, Text: "Connect", OnClicked: func() { onConnect(ctx) }},
			d.PushButton{AssignTo: &disconnectBtn, Text: "Disconnect", OnClicked: onDisconnect},
			d.HSpacer{},

			d.PushButton{AssignTo: &backupBtn, Text: "Backup", OnClicked: func() { onBackup(ctx) }},
			d.PushButton{AssignTo: &restoreBtn, Text: "Restore", OnClicked: func() { onRestore(ctx) }},
			d.HSpacer{},

			d.Label{AssignTo: &statusLabel, Text: "Not connected", ColumnSpan: 3},
		},
	}.Create()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	queue = &uiQueue{post: mw.Synchronize}
	buttons = []*walk.PushButton{refreshBtn, connectBtn, disconnectBtn, backupBtn, restoreBtn}

	mw.Closing().Attach(func(canceled *bool, reason walk.CloseReason) {
		queue.close()
		cancel()
		ctrl.Shutdown()
	})

	onRefresh()
	mw.Run()
}

// --- UI logic ---

func onRefresh() {
	_, _ = ctrl.RefreshPorts()
}

func onConnect(ctx context.Context) {
	port := portCombo.Text()
	runAsync(func() {
		_ = ctrl.Connect(ctx, port)
	})
}

func onDisconnect() {
	ctrl.Disconnect()
}

func onBackup(ctx context.Context) {
	runAsync(func() {
		_, _ = ctrl.Backup(ctx)
	})
}

func onRestore(ctx context.Context) {
	if ctrl.State() != ui.Connected {
		_ = ctrl.Restore(ctx, ui.File(""))
		return
	}

	dlg := &walk.FileDialog{Title: "Select backup file", Filter: backupFilter}
	ok, err := dlg.ShowOpen(mw)
	if err != nil {
		walk.MsgBox(mw, "Error", err.Error(), walk.MsgBoxIconError)
		return
	}
	if !ok {
		return
	}
	path := dlg.FilePath
	runAsync(func() {
		_ = ctrl.Restore(ctx, ui.File(path))
	})
}

// runAsync runs a device operation off the UI thread with the buttons disabled.
func runAsync(op func()) {
	setButtonsEnabled(false)
	go func() {
		defer queue.do(func() { setButtonsEnabled(true) })
		op()
	}()
}

func setButtonsEnabled(enabled bool) {
	for _, b := range buttons {
		b.SetEnabled(enabled)
	}
}

// windowPresenter forwards controller output to the UI thread.
type windowPresenter struct{}

func (windowPresenter) ShowError(title, message string) {
	queue.do(func() { walk.MsgBox(mw, title, message, walk.MsgBoxIconError) })
}

func (windowPresenter) ShowInfo(title, message string) {
	queue.do(func() { walk.MsgBox(mw, title, message, walk.MsgBoxIconInformation) })
}

func (windowPresenter) SetStatus(text string) {
	queue.do(func() { _ = statusLabel.SetText(text) })
}

func (windowPresenter) SetPorts(ports []string) {
	queue.do(func() {
		current := portCombo.Text()
		_ = portCombo.SetModel(ports)
		_ = portCombo.SetText(current)
	})
}
