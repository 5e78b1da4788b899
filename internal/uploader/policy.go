// Package uploader implements the upload engine: the chunked transfer
// client with quota-aware credential rotation, the whole-file retry policy,
// the recursive directory walker, and the orchestrator that drives one
// upload job end to end.
package uploader

import (
	"log/slog"
	"os"
	"strings"
)

// ExclusionPolicy decides which local files are never transferred: anything
// whose name ends with one of the suffixes, or whose path is in the
// already-handled set.
type ExclusionPolicy struct {
	// Suffixes are filename endings (".zip", ".part") matched
	// case-insensitively.
	Suffixes []string

	// Unwanted is the set of local paths already handled elsewhere
	// (previously seeded or uploaded files).
	Unwanted map[string]struct{}
}

// Excludes reports whether path must be skipped.
func (p ExclusionPolicy) Excludes(path string) bool {
	if _, ok := p.Unwanted[path]; ok {
		return true
	}

	lower := strings.ToLower(path)
	for _, suffix := range p.Suffixes {
		if suffix != "" && strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}

	return false
}

// DeletionPolicy decides whether a local file is removed after its transfer
// outcome (success or filter-skip) is finalized.
type DeletionPolicy struct {
	// Seed keeps local files in place so they can continue seeding.
	Seed bool

	// NewDirectory marks uploads staged into a scratch directory whose
	// contents are always safe to remove.
	NewDirectory bool

	// Marked is the explicit per-file override set — these are deleted even
	// while seeding.
	Marked map[string]struct{}
}

// ShouldDelete reports whether path may be removed once its outcome is known.
func (p DeletionPolicy) ShouldDelete(path string) bool {
	if !p.Seed || p.NewDirectory {
		return true
	}

	_, marked := p.Marked[path]

	return marked
}

// removeLocal deletes a local file best-effort. Deletion failures are logged
// and swallowed — cleanup is never a transfer error. Each file reaches
// exactly one outcome path, so this runs at most once per file.
func removeLocal(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil {
		logger.Warn("failed to remove local file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
