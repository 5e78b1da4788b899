package creds

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/oauth2/google"
)

// DriveScope is the full-access Drive OAuth scope the upload engine needs
// (create, permission grant, delete for rollback).
const DriveScope = "https://www.googleapis.com/auth/drive"

// LoadServiceAccounts builds a rotating pool from every *.json key file in
// dir, in lexical order so rotation order is stable across runs.
func LoadServiceAccounts(ctx context.Context, dir string, logger *slog.Logger) (*Pool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("creds: reading service account dir %s: %w", dir, err)
	}

	var keyFiles []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}

		keyFiles = append(keyFiles, filepath.Join(dir, e.Name()))
	}

	sort.Strings(keyFiles)

	if len(keyFiles) == 0 {
		return nil, fmt.Errorf("creds: no service account keys found in %s", dir)
	}

	sources := make([]Source, 0, len(keyFiles))

	for _, path := range keyFiles {
		src, err := serviceAccountSource(ctx, path)
		if err != nil {
			return nil, err
		}

		sources = append(sources, src)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("loaded service accounts",
		slog.Int("count", len(sources)),
		slog.String("dir", dir),
	)

	return NewPool(sources, logger)
}

// serviceAccountSource builds a JWT-based token source from one key file.
func serviceAccountSource(ctx context.Context, path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("creds: reading key file %s: %w", path, err)
	}

	cfg, err := google.JWTConfigFromJSON(data, DriveScope)
	if err != nil {
		return nil, fmt.Errorf("creds: parsing key file %s: %w", path, err)
	}

	return oauthSource{ts: cfg.TokenSource(ctx)}, nil
}
