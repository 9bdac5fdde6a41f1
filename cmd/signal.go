package infostorecmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.lumeweb.com/infostore/core"
	"go.uber.org/zap"
)

// trapSignals cancels the running command on SIGINT or SIGTERM. The returned
// func stops listening.
func trapSignals(cancel context.CancelFunc, logger *core.Logger) func() {
	sigchan := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigchan:
				switch sig {
				case syscall.SIGQUIT:
					logger.Info("quitting process immediately", zap.String("signal", "SIGQUIT"))
					os.Exit(core.ExitCodeForceQuit)

				case syscall.SIGINT, syscall.SIGTERM:
					logger.Info("cancelling running command", zap.String("signal", sig.String()))
					cancel()

				case syscall.SIGHUP:
					// ignore; this signal is sometimes sent outside of the user's control
					logger.Info("not implemented", zap.String("signal", "SIGHUP"))
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigchan)
		close(done)
	}
}
