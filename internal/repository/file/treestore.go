// Package file provides a JSON-document TreeStore for single-machine
// deployments. The whole collection is written as one document with
// temp-file + rename atomicity, and every save rotates the previous
// document into a backup used by disaster recovery.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"notarium/internal/domain"
	"notarium/internal/domain/models"
	"notarium/internal/domain/repositories"
)

const documentVersion = 1

// document is the on-disk layout.
type document struct {
	Version    int             `json:"version"`
	LastBackup *time.Time      `json:"last_backup,omitempty"`
	Folders    []models.Folder `json:"folders"`
}

// TreeStore persists the folder collection as a single JSON document.
type TreeStore struct {
	path   string
	logger *slog.Logger
}

var _ repositories.TreeStore = (*TreeStore)(nil)

// NewTreeStore creates a file-backed tree store at path, creating the
// parent directory if needed.
func NewTreeStore(path string, logger *slog.Logger) (*TreeStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &TreeStore{path: path, logger: logger}, nil
}

// LoadFolders reads the full collection. A missing file is an empty store
// (fresh install); a file that exists but cannot be parsed is corruption
// and fails with ErrInvalidData rather than masking data loss with an
// empty collection.
func (s *TreeStore) LoadFolders(ctx context.Context) ([]models.Folder, error) {
	return s.read(ctx, s.path)
}

// SaveFolders atomically replaces the stored collection and returns it with
// the backup timestamp the store assigned.
func (s *TreeStore) SaveFolders(ctx context.Context, collection []models.Folder) ([]models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Rotate the current document into the backup before overwriting.
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.backupPath()); err != nil {
			return nil, fmt.Errorf("rotate backup: %w", err)
		}
	}

	now := time.Now()
	doc := document{
		Version:    documentVersion,
		LastBackup: &now,
		Folders:    collection,
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode folder document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write folder document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("replace folder document: %w", err)
	}

	s.logger.Debug("folder collection saved", "count", len(collection), "path", s.path)
	return collection, nil
}

// RestoreFolders returns the previously backed-up collection.
func (s *TreeStore) RestoreFolders(ctx context.Context) ([]models.Folder, error) {
	collection, err := s.read(ctx, s.backupPath())
	if err != nil {
		return nil, err
	}
	s.logger.Info("folder collection restored from backup", "count", len(collection))
	return collection, nil
}

func (s *TreeStore) read(ctx context.Context, path string) ([]models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Folder{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read folder document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: folder document is not valid JSON: %v", domain.ErrInvalidData, err)
	}
	if doc.Folders == nil {
		return nil, fmt.Errorf("%w: folder document has no folders array", domain.ErrInvalidData)
	}
	return doc.Folders, nil
}

func (s *TreeStore) backupPath() string {
	return s.path + ".bak"
}

func copyFile(src, dst string) error {
	payload, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, payload, 0o644)
}
