package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// CatalogEntry is one node of a project's remote catalog, as listed by the
// backend. Folders carry no size or mime.
type CatalogEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Mime      string `json:"mime"`
	IsDir     bool   `json:"is_dir"`
	Folder    string `json:"folder,omitempty"`
}

type catalogListOut struct {
	Entries []CatalogEntry `json:"entries"`
}

// ListCatalog returns the direct children of parentID inside the project's
// remote catalog. An empty parentID lists the catalog root.
func (c *Client) ListCatalog(ctx context.Context, projectID, parentID string) ([]CatalogEntry, error) {
	u := fmt.Sprintf("%s/v1/projects/%s/catalog", c.baseURL, projectID)
	if parentID != "" {
		u += "?parent=" + url.QueryEscape(parentID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog listing failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog listing responded with status %d: %s", resp.StatusCode, readErrorDetail(resp.Body))
	}

	var out catalogListOut
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("malformed catalog response: %w", err)
	}
	return out.Entries, nil
}

// FetchCatalogFile opens a streaming read of a remote catalog file. The caller
// owns the returned body and must close it.
func (c *Client) FetchCatalogFile(ctx context.Context, fileID string) (io.ReadCloser, int64, error) {
	u := fmt.Sprintf("%s/v1/catalog/files/%s", c.baseURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create catalog fetch request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog fetch failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, 0, fmt.Errorf("catalog fetch responded with status %d: %s", resp.StatusCode, readErrorDetail(resp.Body))
	}

	return resp.Body, resp.ContentLength, nil
}
