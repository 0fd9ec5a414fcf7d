// Package store persists room snapshots as one JSON file per room and
// manages the per-room upload directories. Writes are atomic: content
// goes to a temp file in the same directory and is renamed into place,
// so a reader never observes a partial snapshot.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"canvaslab/internal/canvas"
	"canvaslab/internal/logging"
)

const (
	snapshotExt  = ".json"
	corruptExt   = ".corrupt"
	dirPerm      = 0o755
	snapshotPerm = 0o644
)

// Store owns the data root (snapshots) and the uploads root (images).
type Store struct {
	dataDir    string
	uploadsDir string
	log        *zap.Logger
}

// New creates both roots if missing.
func New(dataDir, uploadsDir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = logging.L()
	}
	if err := os.MkdirAll(dataDir, dirPerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(uploadsDir, dirPerm); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Store{dataDir: dataDir, uploadsDir: uploadsDir, log: log}, nil
}

func (s *Store) snapshotPath(name string) string {
	return filepath.Join(s.dataDir, name+snapshotExt)
}

// Load reads a room snapshot. A missing file returns (nil, nil). A file
// that does not parse is quarantined with a .corrupt suffix and also
// reported as missing, so the caller starts the room fresh instead of
// failing.
func (s *Store) Load(name string) (*canvas.Snapshot, error) {
	path := s.snapshotPath(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	var snap canvas.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.quarantine(name, path, err)
		return nil, nil
	}
	return &snap, nil
}

func (s *Store) quarantine(name, path string, cause error) {
	aside := path + corruptExt
	if err := os.Rename(path, aside); err != nil {
		s.log.Error("quarantine failed",
			zap.String("room", name), zap.Error(err))
		return
	}
	s.log.Warn("quarantined corrupt snapshot",
		zap.String("room", name),
		zap.String("movedTo", aside),
		zap.Error(cause))
}

// Save writes a snapshot atomically.
func (s *Store) Save(snap *canvas.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.Room, err)
	}
	path := s.snapshotPath(snap.Room)
	tmp, err := os.CreateTemp(s.dataDir, snap.Room+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot %s: %w", snap.Room, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot %s: %w", snap.Room, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot %s: %w", snap.Room, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot %s: %w", snap.Room, err)
	}
	if err := os.Chmod(tmp.Name(), snapshotPerm); err != nil {
		return fmt.Errorf("chmod snapshot %s: %w", snap.Room, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot %s: %w", snap.Room, err)
	}
	return nil
}

// Exists reports whether a snapshot file is on disk.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.snapshotPath(name))
	return err == nil
}

// Delete removes a room's snapshot and its whole upload directory.
func (s *Store) Delete(name string) error {
	var firstErr error
	if err := os.Remove(s.snapshotPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		firstErr = err
	}
	if err := os.RemoveAll(filepath.Join(s.uploadsDir, name)); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Entry describes one snapshot on disk for the retention sweep.
type Entry struct {
	Name           string
	LastModifiedAt time.Time
}

// List returns every room snapshot on disk with its recorded last
// modification. Unreadable files are skipped with a log entry; temp and
// quarantined files are ignored.
func (s *Store) List() ([]Entry, error) {
	dirents, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var entries []Entry
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), snapshotExt) {
			continue
		}
		name := strings.TrimSuffix(de.Name(), snapshotExt)
		data, err := os.ReadFile(filepath.Join(s.dataDir, de.Name()))
		if err != nil {
			s.log.Warn("skipping unreadable snapshot", zap.String("file", de.Name()), zap.Error(err))
			continue
		}
		var meta struct {
			LastModifiedAt time.Time `json:"lastModifiedAt"`
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			s.log.Warn("skipping undecodable snapshot", zap.String("file", de.Name()), zap.Error(err))
			continue
		}
		entries = append(entries, Entry{Name: name, LastModifiedAt: meta.LastModifiedAt})
	}
	return entries, nil
}
