package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// cancelOnSignal flips the job's cancellation flag on the first
// SIGINT/SIGTERM and force-exits on the second. The engine polls the flag,
// so the first signal lets the in-flight chunk finish and the rollback run;
// the second is for when something hangs.
func cancelOnSignal(job *cliJob, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		sig := <-sigCh
		logger.Info("received signal, cancelling upload",
			slog.String("signal", sig.String()),
		)
		job.Cancel()

		sig = <-sigCh
		logger.Warn("received second signal, forcing exit",
			slog.String("signal", sig.String()),
		)
		os.Exit(1)
	}()
}
