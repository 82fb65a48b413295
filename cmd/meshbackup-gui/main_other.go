//go:build !windows

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "error: the windowed interface is only available on Windows, use meshbackup shell")
	os.Exit(1)
}
