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

// statusResumeIncomplete is returned for intermediate chunks of a resumable
// upload. It is not a registered net/http constant.
const statusResumeIncomplete = 308

// StartResumableUpload opens a resumable upload session for a file of the
// given size. The returned session URI accepts chunk PUTs without an
// Authorization header and is bound to the identity that created it.
func (c *Client) StartResumableUpload(ctx context.Context, meta FileMeta, size int64) (*UploadSession, error) {
	c.logger.Info("starting resumable upload",
		slog.String("name", meta.Name),
		slog.String("mime_type", meta.MimeType),
		slog.Int64("size", size),
	)

	meta.Name = NormalizeName(meta.Name)

	bodyBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("drive: marshaling upload metadata: %w", err)
	}

	uploadURL := c.uploadURL + "/files?uploadType=resumable&supportsAllDrives=true&fields=" + url.QueryEscape(fileFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("drive: creating session request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("drive: obtaining token for upload session: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Upload-Content-Type", meta.MimeType)
	req.Header.Set("X-Upload-Content-Length", fmt.Sprintf("%d", size))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("upload session request failed",
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("drive: upload session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		return nil, decodeAPIError(resp.StatusCode, body)
	}

	// Drain body to reuse the connection; the session URI is in the header.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return nil, fmt.Errorf("drive: draining session response body: %w", drainErr)
	}

	sessionURI := resp.Header.Get("Location")
	if sessionURI == "" {
		return nil, fmt.Errorf("drive: upload session response missing Location header")
	}

	c.logger.Debug("upload session created")

	return &UploadSession{URI: sessionURI}, nil
}

// UploadChunk uploads one chunk of data to a resumable session. Returns the
// finalized File on the last chunk (200/201), nil for intermediate chunks
// (308 Resume Incomplete). offset is the byte offset, length is the chunk
// size, total is the full file size.
//
// UploadChunk performs exactly one request — the transfer engine owns chunk
// retry so it can interleave it with quota detection and rotation.
func (c *Client) UploadChunk(
	ctx context.Context, session *UploadSession, chunk io.Reader,
	offset, length, total int64,
) (*File, error) {
	c.logger.Debug("uploading chunk",
		slog.Int64("offset", offset),
		slog.Int64("length", length),
		slog.Int64("total", total),
	)

	contentRange := fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, total)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session.URI, chunk)
	if err != nil {
		return nil, fmt.Errorf("drive: creating chunk upload request: %w", err)
	}

	req.Header.Set("Content-Range", contentRange)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = length

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("chunk upload request failed",
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("drive: chunk upload request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleChunkResponse(resp)
}

// handleChunkResponse processes the HTTP response from a chunk request.
// 308 means intermediate chunk; 200/201 means upload complete with the
// finalized file in the body.
func (c *Client) handleChunkResponse(resp *http.Response) (*File, error) {
	switch resp.StatusCode {
	case statusResumeIncomplete:
		// Intermediate chunk accepted. Drain body to reuse connection.
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return nil, fmt.Errorf("drive: draining chunk response body: %w", drainErr)
		}

		c.logger.Debug("intermediate chunk accepted")

		return nil, nil

	case http.StatusOK, http.StatusCreated:
		// Upload complete — response contains the finalized file.
		var fr fileResponse
		if decErr := json.NewDecoder(resp.Body).Decode(&fr); decErr != nil {
			return nil, fmt.Errorf("drive: decoding final chunk response: %w", decErr)
		}

		file := fr.toFile()

		c.logger.Debug("upload complete",
			slog.String("file_id", file.ID),
			slog.String("file_name", file.Name),
		)

		return &file, nil

	default:
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message
		c.logger.Error("chunk upload failed",
			slog.Int("status", resp.StatusCode),
		)

		return nil, decodeAPIError(resp.StatusCode, body)
	}
}
