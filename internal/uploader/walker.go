package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mirrorkit/drive-go/internal/drive"
)

// Counters aggregates confirmed transfers for one job. Filter-skips never
// count. The accumulator is threaded explicitly through the recursion —
// each call returns its own tally and parents sum them.
type Counters struct {
	Files   int
	Folders int
}

func (c *Counters) add(other Counters) {
	c.Files += other.Files
	c.Folders += other.Folders
}

// WalkOutcome is the tri-state result of walking one directory level,
// keeping "nothing to do" distinct from "stopped by cancellation".
type WalkOutcome int

const (
	// WalkCompleted means every entry was processed.
	WalkCompleted WalkOutcome = iota

	// WalkCancelled means the cancellation flag stopped iteration partway;
	// the counters cover only the entries that finished.
	WalkCancelled

	// WalkEmpty means the directory had no entries. The remote folder the
	// caller pre-created stays as-is.
	WalkEmpty
)

// Walker mirrors a local directory tree into remote folders, transferring
// leaf files through the Transferrer. Entries are processed strictly
// sequentially: one transfer at a time bounds resource use and keeps
// failure accounting simple.
type Walker struct {
	client   *drive.Client
	transfer *Transferrer
	detect   func(path string) string
	excl     ExclusionPolicy
	del      DeletionPolicy
	cancel   CancelFlag
	logger   *slog.Logger
}

// NewWalker creates a Walker. detect maps a local path to its mime type.
func NewWalker(
	client *drive.Client, transfer *Transferrer, detect func(string) string,
	excl ExclusionPolicy, del DeletionPolicy, cancel CancelFlag, logger *slog.Logger,
) *Walker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Walker{
		client:   client,
		transfer: transfer,
		detect:   detect,
		excl:     excl,
		del:      del,
		cancel:   cancel,
		logger:   logger,
	}
}

// UploadDirectory uploads one local directory level into the remote folder
// parentID, recursing depth-first into subdirectories. Directory listing
// order is whatever the platform produces — callers must not rely on it.
// The cancellation flag is checked after every entry.
func (w *Walker) UploadDirectory(ctx context.Context, localDir, parentID string) (WalkOutcome, Counters, error) {
	var tally Counters

	entries, err := os.ReadDir(localDir)
	if err != nil {
		return WalkCompleted, tally, fmt.Errorf("uploader: reading directory %s: %w", localDir, err)
	}

	if len(entries) == 0 {
		return WalkEmpty, tally, nil
	}

	for _, entry := range entries {
		path := filepath.Join(localDir, entry.Name())

		switch {
		case entry.IsDir():
			folder, createErr := w.client.CreateFolder(ctx, entry.Name(), parentID)
			if createErr != nil {
				return WalkCompleted, tally, createErr
			}

			sub, subTally, subErr := w.UploadDirectory(ctx, path, folder.ID)
			tally.add(subTally)

			if subErr != nil {
				return WalkCompleted, tally, subErr
			}

			// The subtree's folder counts are already in; this level's folder
			// counts once its recursion has returned, even when cancellation
			// cut the subtree short.
			tally.Folders++

			if sub == WalkCancelled {
				return WalkCancelled, tally, nil
			}

		case !w.excl.Excludes(path):
			_, _, upErr := w.transfer.UploadFile(ctx, path, entry.Name(), w.detect(path), parentID, w.del, true)
			if errors.Is(upErr, ErrCancelled) {
				return WalkCancelled, tally, nil
			}

			if upErr != nil {
				return WalkCompleted, tally, upErr
			}

			tally.Files++

		default:
			// Filter-skip: a policy decision, not a failure. No transfer, no
			// counter; the deletion policy still applies to the local copy.
			w.logger.Debug("skipping excluded file",
				slog.String("path", path),
			)

			if w.del.ShouldDelete(path) {
				removeLocal(w.logger, path)
			}
		}

		if w.cancel.IsCancelled() {
			return WalkCancelled, tally, nil
		}
	}

	return WalkCompleted, tally, nil
}
