package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mirrorkit/drive-go/internal/creds"
	"github.com/mirrorkit/drive-go/internal/drive"
)

// DefaultProgressInterval is how often the progress reporter samples the
// byte counter.
const DefaultProgressInterval = 3 * time.Second

// FolderKind is the object-kind string reported for directory uploads.
const FolderKind = "Folder"

// Job is the owning job the orchestrator reports to. It owns the
// cancellation flag; the engine only polls it. Exactly one of
// OnUploadError / OnUploadComplete is invoked per job — neither when the
// job was cancelled.
type Job interface {
	IsCancelled() bool
	OnUploadError(message string)
	OnUploadComplete(link string, files, folders int, kind, objectID string)
}

// Mode selects how the job authorizes against the service.
type Mode int

const (
	// ModePooled rotates through the service-account pool ("sa:" prefix).
	ModePooled Mode = iota

	// ModeSingleToken uses the shared bot token ("tp:" prefix).
	ModeSingleToken

	// ModeUserToken uses the requesting user's own token ("mtp:" prefix).
	ModeUserToken
)

// Authorizer builds the credential pool for a resolved mode. The creds
// package provides the real implementation; tests stub it.
type Authorizer interface {
	Authorize(ctx context.Context, mode Mode) (*creds.Pool, error)
}

// ResolveDestination resolves the credential mode from the destination
// prefix and strips the prefix. Unprefixed destinations use fallback.
func ResolveDestination(dest string, fallback Mode) (Mode, string) {
	switch {
	case strings.HasPrefix(dest, "mtp:"):
		return ModeUserToken, strings.TrimPrefix(dest, "mtp:")
	case strings.HasPrefix(dest, "tp:"):
		return ModeSingleToken, strings.TrimPrefix(dest, "tp:")
	case strings.HasPrefix(dest, "sa:"):
		return ModePooled, strings.TrimPrefix(dest, "sa:")
	default:
		return fallback, dest
	}
}

// Options carries the per-job parameters for an Orchestrator.
type Options struct {
	// Path is the local upload target, a regular file or directory.
	Path string

	// Name is the remote name for the target (file name or top folder name).
	Name string

	// Destination is the remote parent folder ID, optionally carrying a
	// credential-mode prefix. Empty means the drive root.
	Destination string

	// DefaultMode applies when Destination carries no prefix.
	DefaultMode Mode

	// SharedDrive marks the destination as a fully shared drive, making
	// per-file permission grants unnecessary.
	SharedDrive bool

	// ChunkSize overrides the transfer chunk size when positive.
	ChunkSize int64

	// ProgressInterval overrides DefaultProgressInterval when positive.
	ProgressInterval time.Duration

	// OnProgress receives periodic progress samples. Nil disables reporting.
	OnProgress func(Snapshot)

	// OnFileComplete is invoked once per successfully transferred file.
	OnFileComplete func(localPath, fileID string, size int64)
}

// Orchestrator is the top-level entry point for one upload job. It
// classifies the target, drives the Transferrer or Walker, runs the
// progress reporter alongside, and converts every outcome into exactly one
// job notification. Upload never panics and never lets an error escape.
type Orchestrator struct {
	client *drive.Client
	auth   Authorizer
	job    Job
	opts   Options
	detect func(path string) string
	logger *slog.Logger
	jobID  string

	progress *Progress
}

// New creates an Orchestrator. detect maps a local path to its mime type.
func New(client *drive.Client, auth Authorizer, job Job, detect func(string) string, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	jobID := uuid.NewString()

	return &Orchestrator{
		client:   client,
		auth:     auth,
		job:      job,
		opts:     opts,
		detect:   detect,
		logger:   logger.With(slog.String("job_id", jobID)),
		jobID:    jobID,
		progress: NewProgress(),
	}
}

// JobID returns the unique ID assigned to this upload job.
func (o *Orchestrator) JobID() string {
	return o.jobID
}

// outcome is the internal result of a dispatch, carried to the terminal
// reporting step.
type outcome struct {
	link        string
	counters    Counters
	kind        string
	objectID    string
	topFolderID string
	cancelled   bool
}

// Upload runs the job to completion. It reports the terminal state through
// the Job callbacks: OnUploadComplete on success, OnUploadError on failure,
// neither when cancelled (cancellation only triggers best-effort rollback
// of a just-created top-level folder).
func (o *Orchestrator) Upload(ctx context.Context, excl ExclusionPolicy, del DeletionPolicy) {
	o.logger.Info("starting upload",
		slog.String("path", o.opts.Path),
	)

	mode, dest := ResolveDestination(o.opts.Destination, o.opts.DefaultMode)

	pool, err := o.auth.Authorize(ctx, mode)
	if err != nil {
		o.reportError(fmt.Errorf("authorizing: %w", err))

		return
	}

	o.client.SetTokenSource(pool)

	// The reporter runs as an independent periodic task for the duration of
	// the transfer. It is stopped deterministically — cancel then Wait —
	// before any terminal outcome is reported, on every exit path.
	reporterCtx, stopReporter := context.WithCancel(ctx)

	var g errgroup.Group

	g.Go(func() error {
		o.runReporter(reporterCtx)

		return nil
	})

	res, err := o.dispatch(ctx, pool, dest, excl, del)

	stopReporter()
	g.Wait() //nolint:errcheck // reporter never returns an error

	if err != nil {
		o.reportError(err)

		return
	}

	if res.cancelled || o.job.IsCancelled() {
		o.rollback(ctx, res)

		return
	}

	o.logger.Info("upload complete",
		slog.String("link", res.link),
		slog.Int("files", res.counters.Files),
		slog.Int("folders", res.counters.Folders),
	)

	o.job.OnUploadComplete(res.link, res.counters.Files, res.counters.Folders, res.kind, res.objectID)
}

// dispatch classifies the target and runs the matching flow.
func (o *Orchestrator) dispatch(
	ctx context.Context, pool *creds.Pool, dest string,
	excl ExclusionPolicy, del DeletionPolicy,
) (outcome, error) {
	info, err := os.Stat(o.opts.Path)
	if err != nil {
		return outcome{}, fmt.Errorf("stat %s: %w", o.opts.Path, err)
	}

	transfer := NewTransferrer(o.client, pool, o.progress, o.job, TransferrerConfig{
		SharedDrive: o.opts.SharedDrive,
		ChunkSize:   o.opts.ChunkSize,
		OnComplete:  o.opts.OnFileComplete,
	}, o.logger)

	if info.IsDir() {
		return o.uploadDirectory(ctx, transfer, dest, excl, del)
	}

	return o.uploadSingleFile(ctx, transfer, dest, excl, del)
}

// uploadSingleFile handles a regular-file target. A single file matching
// the exclusion policy is a job error — there is nothing left to upload.
func (o *Orchestrator) uploadSingleFile(
	ctx context.Context, transfer *Transferrer, dest string,
	excl ExclusionPolicy, del DeletionPolicy,
) (outcome, error) {
	if excl.Excludes(o.opts.Path) {
		return outcome{}, fmt.Errorf("file is excluded by the extension filter")
	}

	mimeType := o.detect(o.opts.Path)

	fileID, link, err := transfer.UploadFile(ctx, o.opts.Path, o.opts.Name, mimeType, dest, del, false)
	if errors.Is(err, ErrCancelled) {
		return outcome{cancelled: true}, nil
	}

	if err != nil {
		return outcome{}, err
	}

	return outcome{
		link:     link,
		counters: Counters{Files: 1},
		kind:     mimeType,
		objectID: fileID,
	}, nil
}

// uploadDirectory pre-creates the top-level remote folder, then walks the
// tree into it.
func (o *Orchestrator) uploadDirectory(
	ctx context.Context, transfer *Transferrer, dest string,
	excl ExclusionPolicy, del DeletionPolicy,
) (outcome, error) {
	top, err := o.client.CreateFolder(ctx, o.opts.Name, dest)
	if err != nil {
		return outcome{}, err
	}

	walker := NewWalker(o.client, transfer, o.detect, excl, del, o.job, o.logger)

	walk, counters, err := walker.UploadDirectory(ctx, o.opts.Path, top.ID)
	if err != nil {
		return outcome{topFolderID: top.ID}, err
	}

	res := outcome{
		link:        drive.FolderLink(top.ID),
		counters:    counters,
		kind:        FolderKind,
		objectID:    top.ID,
		topFolderID: top.ID,
		cancelled:   walk == WalkCancelled,
	}

	return res, nil
}

// rollback removes the partially populated top-level folder after a
// cancellation. Best effort — a failed rollback is logged, not reported.
func (o *Orchestrator) rollback(ctx context.Context, res outcome) {
	o.logger.Info("upload cancelled")

	if res.topFolderID == "" {
		return
	}

	o.logger.Info("deleting partially uploaded folder",
		slog.String("folder_id", res.topFolderID),
	)

	if err := o.client.DeleteFile(ctx, res.topFolderID); err != nil {
		o.logger.Warn("rollback delete failed",
			slog.String("folder_id", res.topFolderID),
			slog.String("error", err.Error()),
		)
	}
}

// reportError converts a surfaced error into the single job-level error
// notification. The message is sanitized for downstream markup rendering;
// the full error stays in the log only.
func (o *Orchestrator) reportError(err error) {
	o.logger.Error("upload failed",
		slog.String("error", err.Error()),
	)

	o.job.OnUploadError(sanitizeError(err))
}

// sanitizeError strips characters that break downstream markup rendering.
func sanitizeError(err error) string {
	return strings.NewReplacer("<", "", ">", "").Replace(err.Error())
}

// runReporter samples progress on a fixed interval until its context is
// cancelled. It only reads the progress counter; the transfer flow is the
// sole writer.
func (o *Orchestrator) runReporter(ctx context.Context) {
	if o.opts.OnProgress == nil {
		return
	}

	interval := o.opts.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.opts.OnProgress(o.progress.Snapshot())
		}
	}
}
