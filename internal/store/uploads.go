package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrBadFilename rejects filenames that could escape the upload tree.
var ErrBadFilename = errors.New("invalid filename")

// SaveUpload stores an image in the room's upload directory under a
// fresh UUID-based name and returns that name. The room directory is
// created on first use. The caller has already validated content and
// size; ext includes the leading dot.
func (s *Store) SaveUpload(room, ext string, r io.Reader) (string, error) {
	dir := filepath.Join(s.uploadsDir, room)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create upload dir %s: %w", room, err)
	}
	filename := uuid.NewString() + ext
	tmp, err := os.CreateTemp(dir, "upload.*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp upload: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Chmod(tmp.Name(), snapshotPerm); err != nil {
		return "", fmt.Errorf("chmod upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, filename)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return filename, nil
}

// UploadPath resolves a stored file for serving. The filename must be a
// bare name; anything with separators or dot-dot is refused before the
// path join.
func (s *Store) UploadPath(room, filename string) (string, error) {
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return "", ErrBadFilename
	}
	return filepath.Join(s.uploadsDir, room, filename), nil
}
