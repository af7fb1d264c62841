// Package file stores each canvas snapshot as one JSON file.
//
// Files live in <dataDir>/canvas and are named after the SHA-256 of the
// project id, so any id is a safe file name. The project id is kept in a
// sidecar index so List can report it.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
	"github.com/custodia-labs/nexus-canvas/internal/logger"
)

const (
	canvasDir     = "canvas"
	snapshotExt   = ".json"
	indexFileName = "index.json"
)

// Ensure Store implements the interface.
var _ driven.ProjectStore = (*Store)(nil)

// Store is a directory of snapshot files.
type Store struct {
	dir string

	reads singleflight.Group

	// mu guards the id index and orders writers to it.
	mu    sync.Mutex
	index map[string]string // file name -> project id
}

// NewStore opens (creating if needed) the store under dataDir.
// If dataDir is empty, defaults to ~/.nexus/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".nexus", "data")
	}

	dir := filepath.Join(dataDir, canvasDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating canvas directory: %w", err)
	}

	s := &Store{dir: dir, index: make(map[string]string)}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the directory holding the snapshot files.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the snapshot file name for a project id.
func FileName(projectID string) string {
	sum := sha256.Sum256([]byte(projectID))
	return hex.EncodeToString(sum[:]) + snapshotExt
}

func (s *Store) path(projectID string) string {
	return filepath.Join(s.dir, FileName(projectID))
}

// readFile is replaced in tests to hold a read open.
var readFile = os.ReadFile

// Get reads a snapshot. Concurrent reads of the same project share one
// file read. An empty project id is treated as absent.
func (s *Store) Get(_ context.Context, projectID string) ([]byte, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, domain.ErrNotFound
	}

	v, err, _ := s.reads.Do(projectID, func() (any, error) {
		data, err := readFile(s.path(projectID))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("reading canvas %s: %w", projectID, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing a read must not share the buffer.
	return append([]byte(nil), v.([]byte)...), nil
}

// Put writes a snapshot atomically: readers see either the old or the new
// file, never a partial one.
func (s *Store) Put(_ context.Context, projectID string, snapshot []byte) error {
	if strings.TrimSpace(projectID) == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}

	target := s.path(projectID)
	if err := writeAtomic(s.dir, target, snapshot); err != nil {
		return fmt.Errorf("writing canvas %s: %w", projectID, err)
	}
	// A read already in flight saw the old file.
	s.reads.Forget(projectID)

	s.mu.Lock()
	defer s.mu.Unlock()
	name := filepath.Base(target)
	if s.index[name] == projectID {
		return nil
	}
	s.index[name] = projectID
	return s.saveIndexLocked()
}

// Delete removes a snapshot. Missing projects and empty ids are ignored.
func (s *Store) Delete(_ context.Context, projectID string) error {
	if strings.TrimSpace(projectID) == "" {
		return nil
	}

	target := s.path(projectID)
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting canvas %s: %w", projectID, err)
	}
	s.reads.Forget(projectID)

	s.mu.Lock()
	defer s.mu.Unlock()
	name := filepath.Base(target)
	if _, ok := s.index[name]; !ok {
		return nil
	}
	delete(s.index, name)
	return s.saveIndexLocked()
}

// List returns every snapshot file, most recently written first.
// Files written by another process without an index entry are listed
// under their file name.
func (s *Store) List(_ context.Context) ([]domain.ProjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing canvases: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ProjectInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == indexFileName || filepath.Ext(name) != snapshotExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed while listing
		}
		id, ok := s.index[name]
		if !ok {
			id = strings.TrimSuffix(name, snapshotExt)
		}
		out = append(out, domain.ProjectInfo{
			ID:        id,
			UpdatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Watch calls fn with the project id whenever a snapshot file is written,
// created or removed, by this process or another one. It blocks until ctx
// is cancelled.
func (s *Store) Watch(ctx context.Context, fn func(projectID string, op fsnotify.Op)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if filepath.Ext(name) != snapshotExt || name == indexFileName {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			fn(s.projectIDFor(name), event.Op)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("canvas watcher: %v", err)
		}
	}
}

func (s *Store) projectIDFor(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.index[name]; ok {
		return id
	}
	return strings.TrimSuffix(name, snapshotExt)
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading canvas index: %w", err)
	}
	if err := json.Unmarshal(data, &s.index); err != nil {
		// The index only maps names back to ids; a damaged one is rebuilt
		// as projects are saved.
		logger.Warn("ignoring damaged canvas index: %v", err)
		s.index = make(map[string]string)
	}
	return nil
}

func (s *Store) saveIndexLocked() error {
	data, err := json.Marshal(s.index)
	if err != nil {
		return fmt.Errorf("encoding canvas index: %w", err)
	}
	if err := writeAtomic(s.dir, filepath.Join(s.dir, indexFileName), data); err != nil {
		return fmt.Errorf("writing canvas index: %w", err)
	}
	return nil
}

// writeAtomic writes data to a temp file in dir and renames it over target.
func writeAtomic(dir, target string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return err
	}
	return nil
}
