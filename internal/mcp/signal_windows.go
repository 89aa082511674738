//go:build windows

package mcp

import (
	"os"
	"os/signal"
)

// notifySignals stops the stdio server on Ctrl+C.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
