package handler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/activity-import/internal/core"
)

// ReadFile loads a spreadsheet from disk. At most maxSize+1 bytes are read so
// the workflow's size check still rejects an oversized file without holding
// all of it; maxSize 0 reads the whole file.
func ReadFile(path string, maxSize int64) (core.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return core.File{}, &core.ValidationError{Reason: "no file provided"}
	}

	f, err := os.Open(path)
	if err != nil {
		return core.File{}, &core.ValidationError{Reason: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return core.File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return core.File{}, &core.ValidationError{Reason: fmt.Sprintf("%s is a directory", path)}
	}

	var r io.Reader = f
	if maxSize > 0 {
		r = io.LimitReader(f, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.File{}, fmt.Errorf("read %s: %w", path, err)
	}

	return core.File{Name: filepath.Base(path), Data: data}, nil
}

// SaveArtifact writes a to dir, creating dir if needed, and returns the
// written path. Only the base of the artifact's file name is used.
func SaveArtifact(dir string, a *core.Artifact) (string, error) {
	if a == nil {
		return "", fmt.Errorf("nothing to save")
	}
	name := filepath.Base(a.FileName)
	if name == "." || name == string(filepath.Separator) {
		name = "export.csv"
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
