package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	tests := []struct {
		name   string
		path   string
		exists bool
		isDir  bool
	}{
		{"existing directory", dir, true, true},
		{"existing file", file, true, false},
		{"missing path", filepath.Join(dir, "nope"), false, false},
		{"current directory", ".", true, true},
		{"empty path", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, isDir, err := CheckDirectory(tt.path)
			if err != nil {
				t.Fatalf("CheckDirectory(%q): %v", tt.path, err)
			}
			if exists != tt.exists || isDir != tt.isDir {
				t.Errorf("CheckDirectory(%q) = (%v, %v), want (%v, %v)",
					tt.path, exists, isDir, tt.exists, tt.isDir)
			}
		})
	}
}

func TestCheckDirectoryFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	exists, isDir, err := CheckDirectory(link)
	if err != nil {
		t.Fatalf("CheckDirectory(%q): %v", link, err)
	}
	if !exists || !isDir {
		t.Errorf("symlink to directory reported as (exists=%v, isDir=%v)", exists, isDir)
	}
}
