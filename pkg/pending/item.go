package pending

import (
	"context"
	"fmt"
	"io"
	"os"
)

// SourceKind tells where an item's bytes come from.
type SourceKind string

const (
	SourceLocal         SourceKind = "local"
	SourceRemoteCatalog SourceKind = "remote-catalog"
)

// Source is the opaque handle to an item's byte stream. It must be resolvable
// before the item is scheduled; Open is called once per upload attempt.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Size() int64
}

// Item is an immutable description of one file candidate produced by a
// selection collaborator (local picker or remote catalog browser). It is
// read-only input to the upload pipeline and never mutated.
type Item struct {
	ID        string
	Name      string
	SizeBytes int64
	MimeType  string
	Kind      SourceKind
	// Folder is an optional destination grouping hint, derived from the
	// item's directory relative to the selection root.
	Folder string
	Source Source
}

// LocalFileSource reads an item's bytes from the local filesystem.
type LocalFileSource struct {
	Path string
	size int64
}

// NewLocalFileSource stats the path up front so an unresolvable file is
// caught at selection time rather than mid-transfer.
func NewLocalFileSource(path string) (*LocalFileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &LocalFileSource{Path: path, size: info.Size()}, nil
}

func (s *LocalFileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(s.Path)
}

func (s *LocalFileSource) Size() int64 { return s.size }
