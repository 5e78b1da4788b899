package creds

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// oauthSource adapts an oauth2.TokenSource to the pool's Source interface,
// surfacing only the bearer string.
type oauthSource struct {
	ts oauth2.TokenSource
}

func (s oauthSource) Token() (string, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return "", fmt.Errorf("creds: obtaining token: %w", err)
	}

	return tok.AccessToken, nil
}

// FromTokenFile loads an OAuth2 token saved as JSON at path and returns a
// Source backed by it. The file holds a serialized oauth2.Token; tokens with
// refresh material are reused via oauth2's caching source.
func FromTokenFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("creds: reading token file %s: %w", path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("creds: decoding token file %s: %w", path, err)
	}

	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("creds: token file %s holds no usable token", path)
	}

	return oauthSource{ts: oauth2.ReuseTokenSource(&tok, oauth2.StaticTokenSource(&tok))}, nil
}
