package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"

	"github.com/mirrorkit/drive-go/internal/uploader"
)

// cliJob is the owning job for a CLI-driven upload. It holds the
// cancellation flag the engine polls and records the terminal outcome the
// command turns into an exit status.
type cliJob struct {
	logger    *slog.Logger
	quiet     bool
	tty       bool
	cancelled atomic.Bool

	// Terminal outcome, written once by the orchestrator's single callback.
	errored  bool
	errMsg   string
	complete bool
	link     string
	files    int
	folders  int
	kind     string
	objectID string
}

func newCLIJob(logger *slog.Logger, quiet bool) *cliJob {
	return &cliJob{
		logger: logger,
		quiet:  quiet,
		tty:    isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// Cancel flips the cancellation flag. The engine observes it at its next
// poll point — within one chunk or one directory entry.
func (j *cliJob) Cancel() {
	j.cancelled.Store(true)
}

func (j *cliJob) IsCancelled() bool {
	return j.cancelled.Load()
}

func (j *cliJob) OnUploadError(message string) {
	j.errored = true
	j.errMsg = message
}

func (j *cliJob) OnUploadComplete(link string, files, folders int, kind, objectID string) {
	j.complete = true
	j.link = link
	j.files = files
	j.folders = folders
	j.kind = kind
	j.objectID = objectID
}

// ShowProgress renders one progress sample. On a terminal the line is
// redrawn in place; otherwise samples go to the debug log so plain output
// stays clean.
func (j *cliJob) ShowProgress(s uploader.Snapshot) {
	if j.quiet {
		return
	}

	if j.tty {
		fmt.Fprintf(os.Stderr, "\r\033[Kuploaded %s", s)

		return
	}

	j.logger.Debug("upload progress",
		slog.Int64("bytes", s.Bytes),
		slog.Duration("elapsed", s.Elapsed),
	)
}

// finishProgress terminates the in-place progress line.
func (j *cliJob) finishProgress() {
	if !j.quiet && j.tty {
		fmt.Fprint(os.Stderr, "\n")
	}
}
