// Package catalog implements the remote-catalog selection collaborator: it
// browses a project's server-side catalog and turns chosen entries into
// pending items whose bytes stream through the backend.
package catalog

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/arciva/importer/api"
	"github.com/arciva/importer/pkg/pending"
	"github.com/google/uuid"
)

// ErrSessionClosed is returned for operations on a closed browsing session.
var ErrSessionClosed = errors.New("catalog browsing session is closed")

// lister is the slice of the api client the browser needs.
type lister interface {
	ListCatalog(ctx context.Context, projectID, parentID string) ([]api.CatalogEntry, error)
	FetchCatalogFile(ctx context.Context, fileID string) (io.ReadCloser, int64, error)
}

// Browser browses one project's remote catalog for the duration of a single
// browsing session. Listings are cached read-through per node id; the cache
// dies with the session, it is never shared across sessions.
type Browser struct {
	client    lister
	projectID string

	mu     sync.Mutex
	cache  map[string][]api.CatalogEntry
	closed bool
}

// NewBrowser starts a browsing session against the given project.
func NewBrowser(client lister, projectID string) *Browser {
	return &Browser{
		client:    client,
		projectID: projectID,
		cache:     make(map[string][]api.CatalogEntry),
	}
}

// List returns the children of parentID, hitting the backend only on the
// first request for each node within this session.
func (b *Browser) List(ctx context.Context, parentID string) ([]api.CatalogEntry, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if entries, ok := b.cache[parentID]; ok {
		b.mu.Unlock()
		return entries, nil
	}
	b.mu.Unlock()

	entries, err := b.client.ListCatalog(ctx, b.projectID, parentID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if !b.closed {
		b.cache[parentID] = entries
	}
	b.mu.Unlock()

	return entries, nil
}

// Invalidate drops all cached listings so the next List hits the backend.
func (b *Browser) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = make(map[string][]api.CatalogEntry)
}

// Close ends the browsing session and releases the cache.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cache = nil
}

// Select converts file entries into pending items sourced from the remote
// catalog. Directory entries are rejected; expand them via List first.
func (b *Browser) Select(entries []api.CatalogEntry) ([]pending.Item, error) {
	items := make([]pending.Item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir {
			return nil, errors.New("cannot select a directory entry: " + entry.Name)
		}
		items = append(items, pending.Item{
			ID:        uuid.New().String(),
			Name:      entry.Name,
			SizeBytes: entry.SizeBytes,
			MimeType:  entry.Mime,
			Kind:      pending.SourceRemoteCatalog,
			Folder:    entry.Folder,
			Source:    &remoteSource{client: b.client, fileID: entry.ID, size: entry.SizeBytes},
		})
	}
	return items, nil
}

// remoteSource streams a catalog file's bytes through the backend.
type remoteSource struct {
	client lister
	fileID string
	size   int64
}

func (s *remoteSource) Open(ctx context.Context) (io.ReadCloser, error) {
	body, _, err := s.client.FetchCatalogFile(ctx, s.fileID)
	return body, err
}

func (s *remoteSource) Size() int64 { return s.size }
