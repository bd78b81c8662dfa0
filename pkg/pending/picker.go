package pending

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrMissingSource marks a selection entry whose bytes could not be resolved.
// Such entries are surfaced as batch-level warnings and never become tasks.
var ErrMissingSource = errors.New("source cannot be resolved to bytes")

// Warning reports a selection entry that was skipped.
type Warning struct {
	Path string
	Err  error
}

// Scan walks the given files and directories and flattens them into pending
// items. Directories are traversed recursively; each file's Folder hint is its
// directory relative to the scanned root, so the backend can preserve grouping.
// Unreadable entries are skipped with a Warning rather than failing the scan.
func Scan(paths []string) ([]Item, []Warning, error) {
	var items []Item
	var warnings []Warning

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			warnings = append(warnings, Warning{Path: root, Err: errors.Join(ErrMissingSource, err)})
			continue
		}

		if !info.IsDir() {
			item, err := itemFromFile(root, "")
			if err != nil {
				warnings = append(warnings, Warning{Path: root, Err: err})
				continue
			}
			items = append(items, item)
			continue
		}

		base := filepath.Dir(root)
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				warnings = append(warnings, Warning{Path: path, Err: errors.Join(ErrMissingSource, err)})
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			rel, relErr := filepath.Rel(base, filepath.Dir(path))
			if relErr != nil || rel == "." {
				rel = ""
			}
			item, itemErr := itemFromFile(path, filepath.ToSlash(rel))
			if itemErr != nil {
				warnings = append(warnings, Warning{Path: path, Err: itemErr})
				return nil
			}
			items = append(items, item)
			return nil
		})
		if err != nil {
			return nil, warnings, err
		}
	}

	for _, w := range warnings {
		slog.Warn("skipping selection entry", "path", w.Path, "error", w.Err)
	}

	return items, warnings, nil
}

func itemFromFile(path, folder string) (Item, error) {
	src, err := NewLocalFileSource(path)
	if err != nil {
		return Item{}, errors.Join(ErrMissingSource, err)
	}

	mimeType := "application/octet-stream"
	if mime, err := mimetype.DetectFile(path); err == nil {
		mimeType = mime.String()
	}

	return Item{
		ID:        uuid.New().String(),
		Name:      filepath.Base(path),
		SizeBytes: src.Size(),
		MimeType:  mimeType,
		Kind:      SourceLocal,
		Folder:    folder,
		Source:    src,
	}, nil
}
