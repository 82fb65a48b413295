package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "meshbackup" {
		t.Errorf("Name = %q, want %q", app.Name, "meshbackup")
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, name := range []string{"backup", "restore", "ports", "info", "shell"} {
		if !names[name] {
			t.Errorf("missing command: %s", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, flag := range globalFlags() {
		flagNames[flag.Names()[0]] = true
	}
	for _, name := range []string{"config", "baud", "timeout", "dir", "log-level", "log-format"} {
		if !flagNames[name] {
			t.Errorf("missing global flag: --%s", name)
		}
	}
}

func TestApp_NoAction(t *testing.T) {
	h := newHarness(t)
	err := h.run()
	if err == nil || !strings.Contains(err.Error(), "missing action") {
		t.Errorf("run() error = %v, want missing action", err)
	}
}

func TestApp_UnknownAction(t *testing.T) {
	h := newHarness(t)
	err := h.run("format", "COM4")
	if err == nil || !strings.Contains(err.Error(), `unknown action "format"`) {
		t.Errorf("run() error = %v, want unknown action", err)
	}
	if len(h.opened) != 0 {
		t.Errorf("opened %v, want nothing", h.opened)
	}
}

func TestApp_FlagsOverrideConfig(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "device:\n  baud: 9600\n  timeout: 10s\nbackup:\n  dir: " + dir + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := h.run("--config", path, "--timeout", "2s", "info", "COM4"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(h.opts) != 1 {
		t.Fatalf("opened %d sessions, want 1", len(h.opts))
	}
	if h.opts[0].BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600 from the file", h.opts[0].BaudRate)
	}
	if h.opts[0].Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s from the flag", h.opts[0].Timeout)
	}
}

func TestApp_MissingConfigFile(t *testing.T) {
	h := newHarness(t)
	if err := h.run("--config", "/nonexistent/meshbackup.yaml", "ports"); err == nil {
		t.Error("run() should fail for a missing config file")
	}
}

func TestParseGlobalFlags_Unset(t *testing.T) {
	h := newHarness(t)
	if err := h.run("info", "COM4"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if h.opts[0].BaudRate != 115200 || h.opts[0].Timeout != 30*time.Second {
		t.Errorf("options = %+v, want the defaults", h.opts[0])
	}
	if h.opts[0].Logger == nil {
		t.Error("session should get the CLI logger")
	}
}
