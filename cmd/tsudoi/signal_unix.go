//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals triggers a graceful shutdown. Process managers such as
// systemd and kubernetes request shutdown with SIGTERM.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
