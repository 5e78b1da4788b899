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

type permissionRequest struct {
	Role string `json:"role"`
	Type string `json:"type"`
}

// GrantReadAccess inserts an anyone/reader permission on the given file so
// its link is publicly readable. Destinations on a fully shared drive don't
// need this — permission is implicit — so callers skip it there.
func (c *Client) GrantReadAccess(ctx context.Context, fileID string) error {
	c.logger.Info("granting read access",
		slog.String("file_id", fileID),
	)

	reqBody := permissionRequest{
		Role: "reader",
		Type: "anyone",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("drive: marshaling permission request: %w", err)
	}

	path := fmt.Sprintf("/files/%s/permissions?supportsAllDrives=true", url.PathEscape(fileID))

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return fmt.Errorf("drive: draining permission response body: %w", drainErr)
	}

	return nil
}
