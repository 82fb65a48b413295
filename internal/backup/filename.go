package backup

import (
	"regexp"
	"time"
)

const (
	defaultNodeName = "node"
	defaultFirmware = "fw"

	// TimestampLayout renders as YYYYMMDD_HHMMSS, which sorts chronologically.
	TimestampLayout = "20060102_150405"
	// Extension of backup files.
	Extension = ".bin"
)

var unsafeRun = regexp.MustCompile(`[^0-9A-Za-z_]+`)

// Sanitize replaces every run of characters other than ASCII letters, digits and
// underscores with a single underscore.
func Sanitize(text string) string {
	return unsafeRun.ReplaceAllString(text, "_")
}

// FileName builds the backup file name for a node. Empty name or firmware fall back
// to placeholders.
func FileName(name, firmware string, at time.Time) string {
	if name == "" {
		name = defaultNodeName
	}
	if firmware == "" {
		firmware = defaultFirmware
	}
	return Sanitize(name) + "_" + Sanitize(firmware) + "_" + at.Format(TimestampLayout) + Extension
}

// NodeDir returns the name of the per-node directory holding its backups.
func NodeDir(name string) string {
	if name == "" {
		name = defaultNodeName
	}
	return Sanitize(name)
}
