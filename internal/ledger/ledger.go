// Package ledger persists a record of completed uploads in an embedded
// SQLite database. Re-running a job consults the ledger to build the
// already-handled file set, so files that were seeded on a previous run are
// filter-skipped instead of re-transferred.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// walJournalSizeLimit caps the WAL journal at 64 MiB.
const walJournalSizeLimit = 67108864

// Entry is one completed upload.
type Entry struct {
	JobID      string
	LocalPath  string
	RemoteID   string
	Link       string
	Size       int64
	UploadedAt time.Time
}

// Ledger is a SQLite-backed upload ledger. A single writer (the upload
// flow) records entries; reads happen at job setup.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger

	recordStmt *sql.Stmt
	pathsStmt  *sql.Stmt
}

// Open opens (or creates) the ledger database at dbPath, applying
// migrations. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("opening upload ledger", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}

	ctx := context.Background()

	if err := setPragmas(ctx, db); err != nil {
		db.Close()

		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	l := &Ledger{db: db, logger: logger}

	if err := l.prepareStatements(ctx); err != nil {
		db.Close()

		return nil, err
	}

	return l, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("ledger: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ledger: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("ledger: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("ledger: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// prepareStatements prepares the repeated queries.
func (l *Ledger) prepareStatements(ctx context.Context) error {
	var err error

	l.recordStmt, err = l.db.PrepareContext(ctx, `
		INSERT INTO uploads (job_id, local_path, remote_id, link, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_path) DO UPDATE SET
			job_id = excluded.job_id,
			remote_id = excluded.remote_id,
			link = excluded.link,
			size = excluded.size,
			uploaded_at = excluded.uploaded_at`)
	if err != nil {
		return fmt.Errorf("ledger: preparing record statement: %w", err)
	}

	l.pathsStmt, err = l.db.PrepareContext(ctx, `
		SELECT local_path FROM uploads WHERE local_path LIKE ? ESCAPE '\'`)
	if err != nil {
		return fmt.Errorf("ledger: preparing paths statement: %w", err)
	}

	return nil
}

// Record upserts one completed upload.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	uploadedAt := e.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	_, err := l.recordStmt.ExecContext(ctx,
		e.JobID, e.LocalPath, e.RemoteID, e.Link, e.Size, uploadedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ledger: recording upload of %s: %w", e.LocalPath, err)
	}

	return nil
}

// CompletedPaths returns every recorded local path under root, as a set
// suitable for the exclusion policy's already-handled list.
func (l *Ledger) CompletedPaths(ctx context.Context, root string) (map[string]struct{}, error) {
	pattern := escapeLike(root) + "%"

	rows, err := l.pathsStmt.QueryContext(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying completed paths under %s: %w", root, err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("ledger: scanning completed path: %w", err)
		}

		paths[p] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating completed paths: %w", err)
	}

	return paths, nil
}

// escapeLike escapes the SQL LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Close releases prepared statements and the database handle.
func (l *Ledger) Close() error {
	if l.recordStmt != nil {
		l.recordStmt.Close()
	}

	if l.pathsStmt != nil {
		l.pathsStmt.Close()
	}

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("ledger: closing database: %w", err)
	}

	return nil
}
