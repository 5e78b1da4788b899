package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// fileFields is the field projection requested on every files call. Keeping
// it fixed means fileResponse always decodes the same shape.
const fileFields = "id,name,mimeType,size,parents"

// CreateFolder creates a folder under the given parent. An empty parentID
// creates the folder at the drive root.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (*File, error) {
	c.logger.Info("creating folder",
		slog.String("name", name),
		slog.String("parent_id", parentID),
	)

	meta := FileMeta{
		Name:     NormalizeName(name),
		MimeType: FolderMimeType,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	return c.createMetadata(ctx, meta)
}

// CreateEmptyFile creates a zero-length file with a single metadata-only
// request. Resumable sessions require at least one chunk, so empty files
// must bypass the chunked path entirely.
func (c *Client) CreateEmptyFile(ctx context.Context, meta FileMeta) (*File, error) {
	c.logger.Info("creating empty file",
		slog.String("name", meta.Name),
		slog.String("mime_type", meta.MimeType),
	)

	meta.Name = NormalizeName(meta.Name)

	return c.createMetadata(ctx, meta)
}

// createMetadata posts a files resource and decodes the created item.
func (c *Client) createMetadata(ctx context.Context, meta FileMeta) (*File, error) {
	bodyBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("drive: marshaling file metadata: %w", err)
	}

	path := fmt.Sprintf("/files?supportsAllDrives=true&fields=%s", url.QueryEscape(fileFields))

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var fr fileResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&fr); decErr != nil {
		return nil, fmt.Errorf("drive: decoding create response: %w", decErr)
	}

	file := fr.toFile()

	return &file, nil
}

// GetFile retrieves a single file's metadata by ID.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	c.logger.Info("getting file",
		slog.String("file_id", fileID),
	)

	path := fmt.Sprintf("/files/%s?supportsAllDrives=true&fields=%s",
		url.PathEscape(fileID), url.QueryEscape(fileFields))

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var fr fileResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&fr); decErr != nil {
		return nil, fmt.Errorf("drive: decoding file response: %w", decErr)
	}

	file := fr.toFile()

	return &file, nil
}

// DeleteFile permanently deletes a file or folder. Folder deletion is
// recursive on the server side. Returns nil on success (HTTP 204).
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	c.logger.Info("deleting file",
		slog.String("file_id", fileID),
	)

	path := fmt.Sprintf("/files/%s?supportsAllDrives=true", url.PathEscape(fileID))

	resp, err := c.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 204 No Content — drain to reuse the connection.
	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("drive: draining delete response body: %w", copyErr)
	}

	return nil
}
