package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultGistAPI = "https://api.github.com"

// GistBackend anchors hashes by rewriting a single file inside a publicly
// readable GitHub gist. GitHub keeps every revision retrievable, so the
// gist's history forms an externally dated trail of chain heads.
type GistBackend struct {
	apiBase    string
	gistID     string
	token      string
	filename   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGistBackend creates a GistBackend for the given gist and API token.
func NewGistBackend(gistID, token string, logger *zap.Logger) *GistBackend {
	return &GistBackend{
		apiBase:    defaultGistAPI,
		gistID:     gistID,
		token:      token,
		filename:   "ledger-head.txt",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// SetAPIBase overrides the GitHub API base URL. Used in tests.
func (b *GistBackend) SetAPIBase(base string) { b.apiBase = base }

// Method implements Backend.
func (b *GistBackend) Method() Method { return MethodGist }

// Publish implements Backend.
func (b *GistBackend) Publish(ctx context.Context, hash string, sequence int64) (*Record, error) {
	now := time.Now().UTC()
	content := fmt.Sprintf("sequence: %d\nhash: %s\nanchored_at: %s\n",
		sequence, hash, now.Format(time.RFC3339))

	body, err := json.Marshal(map[string]any{
		"description": fmt.Sprintf("audit ledger head, sequence %d", sequence),
		"files": map[string]any{
			b.filename: map[string]string{"content": content},
		},
	})
	if err != nil {
		return nil, &BackendError{Method: MethodGist, Err: err}
	}

	url := fmt.Sprintf("%s/gists/%s", b.apiBase, b.gistID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return nil, &BackendError{Method: MethodGist, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &BackendError{Method: MethodGist, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &BackendError{
			Method: MethodGist,
			Err:    fmt.Errorf("gist update returned %d: %s", resp.StatusCode, snippet),
		}
	}

	var gist struct {
		HTMLURL string `json:"html_url"`
		History []struct {
			Version string `json:"version"`
		} `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&gist); err != nil {
		return nil, &BackendError{Method: MethodGist, Err: fmt.Errorf("decode gist response: %w", err)}
	}

	ref := gist.HTMLURL
	if ref == "" {
		ref = fmt.Sprintf("https://gist.github.com/%s", b.gistID)
	}
	// Pin the reference to the revision created by this update, so the
	// anchor stays checkable after later updates rewrite the file.
	if len(gist.History) > 0 && gist.History[0].Version != "" {
		ref = ref + "/" + gist.History[0].Version
	}

	b.logger.Debug("gist anchor published",
		zap.Int64("sequence", sequence),
		zap.String("reference", ref),
	)

	return &Record{
		AnchorID:          uuid.New(),
		Timestamp:         now,
		Method:            MethodGist,
		ExternalReference: ref,
		AnchoredHash:      hash,
		AnchoredSequence:  sequence,
	}, nil
}
