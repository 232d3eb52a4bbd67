//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/fieldlogger/internal/dutycycle"
)

// notifyToggle flips maintenance mode on every SIGUSR1. The returned func
// stops listening.
func notifyToggle(mode *dutycycle.Mode) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigs:
				mode.Toggle()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
