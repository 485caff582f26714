// Package registry records projects and the uploads that contributed to them
// in SQLite.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"projectcas/pkg/models"

	_ "modernc.org/sqlite"
)

// Store manages project metadata in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (or creates) the registry database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	ctx := context.Background()

	if _, err := database.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable foreign keys: %w", ErrDatabaseError, err)
	}

	if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrDatabaseError, err)
	}

	store := &Store{db: database}
	if err := store.Initialize(); err != nil {
		_ = database.Close()
		return nil, err
	}

	return store, nil
}

// Initialize creates the database schema.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(context.Background(), Schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NameKey folds a project name for case-insensitive lookups. SQLite's LOWER
// only folds ASCII, so keys are computed here and stored alongside the name.
func NameKey(name string) string {
	return strings.ToLower(name)
}

// CreateProject registers a detected project.
func (s *Store) CreateProject(detected models.DetectedProject) (*models.Project, error) {
	if strings.TrimSpace(detected.Name) == "" {
		return nil, ErrInvalidProjectName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	result, err := s.db.ExecContext(context.Background(),
		`INSERT INTO projects (name, name_key, rel_path, has_git_repo, file_count, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		detected.Name, NameKey(detected.Name), detected.RelPath, detected.HasGitRepo, detected.FileCount, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	projectID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return &models.Project{
		ID:         projectID,
		Name:       detected.Name,
		RelPath:    detected.RelPath,
		HasGitRepo: detected.HasGitRepo,
		FileCount:  int64(detected.FileCount),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// GetProject retrieves a project and its upload ids.
func (s *Store) GetProject(projectID int64) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project := &models.Project{}
	err := s.db.QueryRowContext(context.Background(),
		`SELECT id, name, rel_path, has_git_repo, file_count, created_at, updated_at FROM projects WHERE id = ?`,
		projectID,
	).Scan(&project.ID, &project.Name, &project.RelPath, &project.HasGitRepo, &project.FileCount, &project.CreatedAt, &project.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	project.UploadIDs, err = s.uploadIDs(projectID)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// FindByNames looks up existing projects by case-insensitive name. The result
// is keyed by NameKey; when several projects share a name the oldest wins.
func (s *Store) FindByNames(names []string) (map[string]int64, error) {
	found := make(map[string]int64)
	if len(names) == 0 {
		return found, nil
	}

	placeholders := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names))
	for _, name := range names {
		placeholders = append(placeholders, "?")
		args = append(args, NameKey(name))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT name_key, MIN(id) FROM projects
		 WHERE name_key IN (`+strings.Join(placeholders, ", ")+`)
		 GROUP BY name_key`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			name      string
			projectID int64
		)
		if scanErr := rows.Scan(&name, &projectID); scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		found[name] = projectID
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return found, nil
}

// AddUpload associates an upload with a project. Repeated associations are
// ignored.
func (s *Store) AddUpload(projectID, uploadID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	if err := s.requireProject(ctx, projectID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_uploads (project_id, upload_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id, upload_id) DO NOTHING`,
		projectID, uploadID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// IncrementFileCount adds delta to the project's raw file counter.
func (s *Store) IncrementFileCount(projectID int64, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE projects SET file_count = file_count + ?, updated_at = ? WHERE id = ?`,
		delta, time.Now().UTC(), projectID,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if rowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// UploadIDs returns the project's upload ids in association order.
func (s *Store) UploadIDs(projectID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireProject(context.Background(), projectID); err != nil {
		return nil, err
	}
	return s.uploadIDs(projectID)
}

// ListProjects lists every project ordered by id.
func (s *Store) ListProjects() ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, name, rel_path, has_git_repo, file_count, created_at, updated_at FROM projects ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	projects := []models.Project{}
	for rows.Next() {
		var project models.Project
		scanErr := rows.Scan(&project.ID, &project.Name, &project.RelPath, &project.HasGitRepo,
			&project.FileCount, &project.CreatedAt, &project.UpdatedAt)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		projects = append(projects, project)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return projects, nil
}

func (s *Store) requireProject(ctx context.Context, projectID int64) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = ?)`, projectID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if !exists {
		return ErrProjectNotFound
	}
	return nil
}

// uploadIDs must be called with s.mu held.
func (s *Store) uploadIDs(projectID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT upload_id FROM project_uploads WHERE project_id = ? ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	uploadIDs := []int64{}
	for rows.Next() {
		var uploadID int64
		if scanErr := rows.Scan(&uploadID); scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		uploadIDs = append(uploadIDs, uploadID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return uploadIDs, nil
}
