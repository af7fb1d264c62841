package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/nexus-canvas/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
)

const dbFileName = "canvas.db"

// Store is a SQLite database holding canvas snapshots.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.nexus/data/canvas.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".nexus", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ProjectStore returns a ProjectStore interface backed by this store.
func (s *Store) ProjectStore() driven.ProjectStore {
	return &projectStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_canvases.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("starting migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Project Store ====================

// projectStore implements driven.ProjectStore.
type projectStore struct {
	store *Store
}

var _ driven.ProjectStore = (*projectStore)(nil)

// Get retrieves the snapshot bytes of a project.
func (p *projectStore) Get(ctx context.Context, projectID string) ([]byte, error) {
	var data []byte
	err := p.store.db.QueryRowContext(ctx,
		"SELECT snapshot FROM canvases WHERE project_id = ?", projectID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying canvas %s: %w", projectID, err)
	}
	return data, nil
}

// Put stores or replaces the snapshot bytes of a project.
func (p *projectStore) Put(ctx context.Context, projectID string, snapshot []byte) error {
	if strings.TrimSpace(projectID) == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}
	if snapshot == nil {
		snapshot = []byte{}
	}

	_, err := p.store.db.ExecContext(ctx, `
		INSERT INTO canvases (project_id, snapshot, size, revision, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			size = excluded.size,
			revision = canvases.revision + 1,
			updated_at = excluded.updated_at
	`, projectID, snapshot, len(snapshot), p.store.now().UnixNano())
	if err != nil {
		return fmt.Errorf("saving canvas %s: %w", projectID, err)
	}
	return nil
}

// Delete removes a project.
func (p *projectStore) Delete(ctx context.Context, projectID string) error {
	_, err := p.store.db.ExecContext(ctx, "DELETE FROM canvases WHERE project_id = ?", projectID)
	if err != nil {
		return fmt.Errorf("deleting canvas %s: %w", projectID, err)
	}
	return nil
}

// List returns all projects, most recently updated first.
func (p *projectStore) List(ctx context.Context) ([]domain.ProjectInfo, error) {
	rows, err := p.store.db.QueryContext(ctx,
		"SELECT project_id, size, updated_at FROM canvases ORDER BY updated_at DESC, project_id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing canvases: %w", err)
	}
	defer rows.Close()

	var out []domain.ProjectInfo
	for rows.Next() {
		var (
			info    domain.ProjectInfo
			updated int64
		)
		if err := rows.Scan(&info.ID, &info.Size, &updated); err != nil {
			return nil, fmt.Errorf("scanning canvas row: %w", err)
		}
		info.UpdatedAt = time.Unix(0, updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Revision returns how many times a project has been written.
func (p *projectStore) Revision(ctx context.Context, projectID string) (int, error) {
	var rev int
	err := p.store.db.QueryRowContext(ctx,
		"SELECT revision FROM canvases WHERE project_id = ?", projectID,
	).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("querying revision of %s: %w", projectID, err)
	}
	return rev, nil
}
