package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mirrorkit/drive-go/internal/creds"
	"github.com/mirrorkit/drive-go/internal/drive"
)

// DefaultChunkSize is the resumable-session chunk size. Large on purpose —
// each chunk is a full HTTP round trip, so big chunks amortize per-request
// overhead on bulk transfers.
const DefaultChunkSize = 100 * 1024 * 1024

// maxChunkRetries bounds in-place retries of transient chunk failures
// within one session.
const maxChunkRetries = 10

// uploadDescription is stamped on every uploaded file's metadata.
const uploadDescription = "Uploaded by drive-go"

// ErrCancelled is the distinct cancelled outcome: not a success, not a
// reportable error. Callers branch on it with errors.Is and must suppress
// both completion and error handling.
var ErrCancelled = errors.New("uploader: upload cancelled")

// CancelFlag is the externally owned cancellation state. It is polled at
// bounded granularity — once per chunk, once per directory entry — never
// pushed, so cancellation latency is bounded by one chunk's transfer time.
type CancelFlag interface {
	IsCancelled() bool
}

// Transferrer drives resumable uploads of single files: the chunk loop,
// in-place retry of transient chunk failures, quota-triggered credential
// rotation with a whole-file restart, and the post-success permission,
// link, and local-deletion steps.
type Transferrer struct {
	client      *drive.Client
	pool        *creds.Pool
	progress    *Progress
	cancel      CancelFlag
	sharedDrive bool
	chunkSize   int64
	logger      *slog.Logger

	// onComplete is invoked once per successfully transferred file, before
	// local deletion. Nil disables it. The orchestrator wires this to the
	// upload ledger.
	onComplete func(localPath, fileID string, size int64)

	// sleepFunc waits between whole-file retry attempts. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// TransferrerConfig carries the per-job tuning for a Transferrer.
type TransferrerConfig struct {
	// SharedDrive suppresses per-file permission grants — a fully shared
	// drive makes read access implicit.
	SharedDrive bool

	// ChunkSize overrides DefaultChunkSize when positive.
	ChunkSize int64

	// OnComplete is invoked once per successfully transferred file.
	OnComplete func(localPath, fileID string, size int64)
}

// NewTransferrer creates a Transferrer. pool is consulted for rotation on
// quota errors; in single-identity mode quota errors escalate instead.
func NewTransferrer(
	client *drive.Client, pool *creds.Pool, progress *Progress,
	cancel CancelFlag, cfg TransferrerConfig, logger *slog.Logger,
) *Transferrer {
	if logger == nil {
		logger = slog.Default()
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Transferrer{
		client:      client,
		pool:        pool,
		progress:    progress,
		cancel:      cancel,
		sharedDrive: cfg.SharedDrive,
		chunkSize:   chunkSize,
		logger:      logger,
		onComplete:  cfg.OnComplete,
		sleepFunc:   sleepContext,
	}
}

// UploadFile uploads one local file, wrapped in the whole-file retry
// policy. Returns the uploaded file's ID and, when the file is not nested
// inside a directory upload, its shareable link. A cancelled upload returns
// ErrCancelled; callers must treat it as neither success nor failure.
func (t *Transferrer) UploadFile(
	ctx context.Context, localPath, name, mimeType, parentID string,
	del DeletionPolicy, nested bool,
) (fileID, link string, err error) {
	err = withRetry(ctx, t.logger, t.sleepFunc, func() error {
		var attemptErr error

		fileID, link, attemptErr = t.uploadFileOnce(ctx, localPath, name, mimeType, parentID, del, nested)

		return attemptErr
	})
	if err != nil {
		return "", "", err
	}

	return fileID, link, nil
}

// uploadFileOnce is one whole-file attempt. It is a small state machine:
//
//	attempting --(quota, pool mode)--> rotating --> attempting (fresh session)
//	attempting --(quota, single mode or pool exhausted)--> escalate
//	attempting --(cancel observed)--> cancelled
//	attempting --(finalized)--> done
//
// The rotation restart is an explicit loop, not recursion, so retry
// accounting stays bounded and inspectable. A restart re-sends the whole
// file: the partial session is bound to the rotated-away identity.
func (t *Transferrer) uploadFileOnce(
	ctx context.Context, localPath, name, mimeType, parentID string,
	del DeletionPolicy, nested bool,
) (string, string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", "", fmt.Errorf("uploader: stat %s: %w", localPath, err)
	}

	size := info.Size()

	meta := drive.FileMeta{
		Name:        name,
		MimeType:    mimeType,
		Description: uploadDescription,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	var file *drive.File

	if size == 0 {
		// Resumable sessions need at least one chunk; a zero-byte body breaks
		// some session implementations. Empty files use a single create call.
		file, err = t.client.CreateEmptyFile(ctx, meta)
		if err != nil {
			return "", "", err
		}
	} else {
		file, err = t.uploadWithRotation(ctx, localPath, meta, size)
		if err != nil {
			return "", "", err
		}
	}

	return t.finalize(ctx, localPath, file, del, nested, size)
}

// uploadWithRotation runs resumable sessions until one finalizes, rotating
// credentials on quota errors while the pool allows it.
func (t *Transferrer) uploadWithRotation(
	ctx context.Context, localPath string, meta drive.FileMeta, size int64,
) (*drive.File, error) {
	for {
		file, err := t.uploadSession(ctx, localPath, meta, size)
		if err == nil {
			return file, nil
		}

		if errors.Is(err, ErrCancelled) {
			return nil, ErrCancelled
		}

		if !drive.IsQuota(err) || !t.pool.CanRotate() {
			return nil, err
		}

		if t.cancel.IsCancelled() {
			return nil, ErrCancelled
		}

		if rotErr := t.pool.Rotate(); rotErr != nil {
			// Exhaustion escalates the original quota error unchanged.
			t.logger.Info("service account rotation exhausted",
				slog.Int("used", t.pool.Used()),
				slog.Int("capacity", t.pool.Capacity()),
			)

			return nil, err
		}

		t.logger.Info("quota exceeded, restarting upload with rotated identity",
			slog.String("path", localPath),
		)
	}
}

// uploadSession opens one resumable session and pushes chunks until the
// service finalizes the file. Transient chunk failures are retried in place
// without advancing the offset, bounded by maxChunkRetries per session.
func (t *Transferrer) uploadSession(
	ctx context.Context, localPath string, meta drive.FileMeta, size int64,
) (*drive.File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("uploader: opening %s: %w", localPath, err)
	}
	defer f.Close()

	session, err := t.client.StartResumableUpload(ctx, meta, size)
	if err != nil {
		return nil, err
	}

	var (
		offset       int64
		chunkRetries int
	)

	for {
		if t.cancel.IsCancelled() {
			t.logger.Info("upload cancelled mid-session",
				slog.String("path", localPath),
				slog.Int64("offset", offset),
			)

			return nil, ErrCancelled
		}

		length := min(t.chunkSize, size-offset)
		chunk := io.NewSectionReader(f, offset, length)

		file, chunkErr := t.client.UploadChunk(ctx, session, chunk, offset, length, size)
		if chunkErr != nil {
			if drive.IsTransient(chunkErr) && chunkRetries < maxChunkRetries {
				chunkRetries++
				t.logger.Warn("transient chunk failure, retrying in place",
					slog.String("path", localPath),
					slog.Int64("offset", offset),
					slog.Int("retry", chunkRetries),
					slog.String("error", chunkErr.Error()),
				)

				continue
			}

			return nil, chunkErr
		}

		t.progress.Add(length)
		offset += length

		if file != nil {
			return file, nil
		}

		if offset >= size {
			return nil, fmt.Errorf("uploader: session for %s consumed %d/%d bytes without finalizing", localPath, offset, size)
		}
	}
}

// finalize runs the post-success steps in order: permission grant, link
// resolution, completion hook, then local deletion. Deletion is last so a
// failure in any earlier step (which re-runs the whole file) still finds
// the local file intact, and it runs exactly once per file because every
// file reaches exactly one outcome path.
func (t *Transferrer) finalize(
	ctx context.Context, localPath string, file *drive.File,
	del DeletionPolicy, nested bool, size int64,
) (string, string, error) {
	if !t.sharedDrive {
		if err := t.client.GrantReadAccess(ctx, file.ID); err != nil {
			return "", "", err
		}
	}

	link := ""

	if !nested {
		got, err := t.client.GetFile(ctx, file.ID)
		if err != nil {
			return "", "", err
		}

		link = drive.FileLink(got.ID)
	}

	if t.onComplete != nil {
		t.onComplete(localPath, file.ID, size)
	}

	if del.ShouldDelete(localPath) {
		removeLocal(t.logger, localPath)
	}

	t.logger.Info("uploaded file",
		slog.String("path", localPath),
		slog.String("file_id", file.ID),
		slog.Int64("size", size),
	)

	return file.ID, link, nil
}
