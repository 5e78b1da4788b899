package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/drive-go/internal/creds"
	"github.com/mirrorkit/drive-go/internal/drive"
	"github.com/mirrorkit/drive-go/internal/ledger"
	"github.com/mirrorkit/drive-go/internal/mimetype"
	"github.com/mirrorkit/drive-go/internal/uploader"
)

// errUploadFailed marks a job-level upload failure whose message has
// already been printed. main() turns it into a non-zero exit without
// printing a second error line.
var errUploadFailed = errors.New("upload failed")

func newUploadCmd() *cobra.Command {
	var p uploadParams

	cmd := &cobra.Command{
		Use:   "upload PATH",
		Short: "Upload a file or directory tree",
		Long: "Uploads a local file or directory tree over resumable sessions.\n" +
			"The destination may carry a credential-mode prefix: \"sa:\" rotates\n" +
			"through the service account pool, \"tp:\" uses the shared token,\n" +
			"\"mtp:\" uses the requesting user's own token.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.path = args[0]

			return runUpload(cmd.Context(), p)
		},
	}

	cmd.Flags().StringVarP(&p.dest, "dest", "d", "", "destination folder ID, optionally prefixed with sa:/tp:/mtp:")
	cmd.Flags().StringVarP(&p.name, "name", "n", "", "remote name (defaults to the local base name)")
	cmd.Flags().BoolVar(&p.seed, "seed", false, "keep local files after upload")
	cmd.Flags().BoolVar(&p.newDir, "new-dir", false, "treat the target as a scratch directory, deleting files even when seeding")
	cmd.Flags().BoolVar(&p.sharedDrive, "shared-drive", false, "destination is a fully shared drive (skip per-file permission grants)")
	cmd.Flags().StringSliceVar(&p.exclude, "exclude", nil, "additional filename suffixes to skip")
	cmd.Flags().StringSliceVar(&p.deleteAfter, "delete-after", nil, "local paths to delete after upload even when seeding")
	cmd.Flags().StringVar(&p.tokenFile, "token-file", "", "OAuth token file (overrides config)")

	return cmd
}

type uploadParams struct {
	path        string
	dest        string
	name        string
	seed        bool
	newDir      bool
	sharedDrive bool
	exclude     []string
	deleteAfter []string
	tokenFile   string
}

func runUpload(ctx context.Context, p uploadParams) error {
	cfg := resolvedCfg
	logger := buildLogger()

	absPath, err := filepath.Abs(p.path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", p.path, err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("upload target: %w", err)
	}

	name := p.name
	if name == "" {
		name = filepath.Base(absPath)
	}

	dest := p.dest
	if dest == "" {
		dest = cfg.Destination
	}

	led, err := ledger.Open(cfg.LedgerPath, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	// Files recorded on an earlier run fold into the exclusion set, so a
	// re-run of the same tree skips what already made it up.
	unwanted, err := led.CompletedPaths(ctx, absPath)
	if err != nil {
		logger.Warn("reading upload ledger failed, not skipping any files",
			slog.String("error", err.Error()),
		)

		unwanted = nil
	}

	excl := uploader.ExclusionPolicy{
		Suffixes: append(append([]string{}, cfg.ExcludedExtensions...), p.exclude...),
		Unwanted: unwanted,
	}

	marked := make(map[string]struct{}, len(p.deleteAfter))

	for _, path := range p.deleteAfter {
		if abs, err := filepath.Abs(path); err == nil {
			marked[abs] = struct{}{}
		}
	}

	del := uploader.DeletionPolicy{
		Seed:         p.seed,
		NewDirectory: p.newDir,
		Marked:       marked,
	}

	// No global timeout on this client: a full chunk PUT on a slow link
	// legitimately outlives any fixed cap. Deadlines come from the context.
	client := drive.NewClient(drive.DefaultBaseURL, drive.DefaultUploadURL, &http.Client{}, nil, logger)

	tokenFile := p.tokenFile
	if tokenFile == "" {
		tokenFile = cfg.TokenFile
	}

	auth := &credAuthorizer{
		tokenFile:      tokenFile,
		credentialsDir: cfg.CredentialsDir,
		logger:         logger,
	}

	job := newCLIJob(logger, flagQuiet)
	cancelOnSignal(job, logger)

	defaultMode := uploader.ModeSingleToken
	if cfg.UseServiceAccounts {
		defaultMode = uploader.ModePooled
	}

	// The per-file hook records into the ledger under the orchestrator's job
	// ID; the orch variable is bound before Upload runs, which is the only
	// time the hook fires.
	var orch *uploader.Orchestrator

	recordFile := func(localPath, fileID string, size int64) {
		entry := ledger.Entry{
			JobID:     orch.JobID(),
			LocalPath: localPath,
			RemoteID:  fileID,
			Link:      drive.FileLink(fileID),
			Size:      size,
		}

		if err := led.Record(ctx, entry); err != nil {
			logger.Warn("recording upload in ledger failed",
				slog.String("path", localPath),
				slog.String("error", err.Error()),
			)
		}
	}

	orch = uploader.New(client, auth, job, mimetype.Detect, uploader.Options{
		Path:             absPath,
		Name:             name,
		Destination:      dest,
		DefaultMode:      defaultMode,
		SharedDrive:      p.sharedDrive || cfg.SharedDrive,
		ChunkSize:        cfg.ChunkSize(),
		ProgressInterval: cfg.ProgressInterval(),
		OnProgress:       job.ShowProgress,
		OnFileComplete:   recordFile,
	}, logger)

	orch.Upload(ctx, excl, del)
	job.finishProgress()

	switch {
	case job.complete:
		fmt.Printf("Uploaded %s: %d files, %d folders\n%s\n", name, job.files, job.folders, job.link)

		return nil
	case job.errored:
		fmt.Fprintf(os.Stderr, "Error: %s\n", job.errMsg)

		return errUploadFailed
	default:
		fmt.Fprintln(os.Stderr, "Upload cancelled")

		return nil
	}
}

// credAuthorizer builds the credential pool for the resolved mode from the
// on-disk material the config points at. Both token modes read the same
// saved-token shape; the pooled mode loads every key in the credentials
// directory.
type credAuthorizer struct {
	tokenFile      string
	credentialsDir string
	logger         *slog.Logger
}

func (a *credAuthorizer) Authorize(ctx context.Context, mode uploader.Mode) (*creds.Pool, error) {
	switch mode {
	case uploader.ModePooled:
		return creds.LoadServiceAccounts(ctx, a.credentialsDir, a.logger)
	case uploader.ModeSingleToken, uploader.ModeUserToken:
		src, err := creds.FromTokenFile(a.tokenFile)
		if err != nil {
			return nil, err
		}

		return creds.NewSingle(src, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown credential mode %d", mode)
	}
}
