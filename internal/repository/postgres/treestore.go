// Package postgres provides a Postgres-backed TreeStore for deployments
// where the folder tree is shared across machines.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"notarium/internal/domain/models"
	"notarium/internal/domain/repositories"
)

// TreeStore persists the folder collection in a pair of tables: the live
// collection and a backup rotated on every save.
type TreeStore struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

var _ repositories.TreeStore = (*TreeStore)(nil)

// NewTreeStore creates a Postgres tree store.
func NewTreeStore(pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) *TreeStore {
	return &TreeStore{pool: pool, tables: tables, logger: logger}
}

// LoadFolders returns the full current collection, oldest first.
func (s *TreeStore) LoadFolders(ctx context.Context) ([]models.Folder, error) {
	return s.readAll(ctx, s.tables.Folders)
}

// SaveFolders replaces the stored collection in a single transaction. The
// previous collection rotates into the backup table first, so a failed save
// leaves both tables untouched.
func (s *TreeStore) SaveFolders(ctx context.Context, collection []models.Folder) ([]models.Folder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.tables.FoldersBackup)); err != nil {
		return nil, fmt.Errorf("clear backup: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s SELECT * FROM %s`, s.tables.FoldersBackup, s.tables.Folders)); err != nil {
		return nil, fmt.Errorf("rotate backup: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.tables.Folders)); err != nil {
		return nil, fmt.Errorf("clear folders: %w", err)
	}

	rows := make([][]interface{}, 0, len(collection))
	for i := range collection {
		f := &collection[i]
		rows = append(rows, []interface{}{f.ID, f.ParentID, f.Name, f.CreatedAt, f.ModifiedAt})
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{s.tables.Folders},
			[]string{"id", "parent_id", "name", "created_at", "modified_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return nil, fmt.Errorf("insert folders: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit save: %w", err)
	}

	s.logger.Debug("folder collection saved", "count", len(collection))
	return collection, nil
}

// RestoreFolders returns the collection as of the last completed save.
func (s *TreeStore) RestoreFolders(ctx context.Context) ([]models.Folder, error) {
	collection, err := s.readAll(ctx, s.tables.FoldersBackup)
	if err != nil {
		return nil, err
	}
	s.logger.Info("folder collection restored from backup", "count", len(collection))
	return collection, nil
}

func (s *TreeStore) readAll(ctx context.Context, table string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT id, parent_id, name, created_at, modified_at
		FROM %s
		ORDER BY created_at ASC
	`, table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load folders: %w", err)
	}
	defer rows.Close()

	collection := make([]models.Folder, 0)
	for rows.Next() {
		var folder models.Folder
		err := rows.Scan(
			&folder.ID,
			&folder.ParentID,
			&folder.Name,
			&folder.CreatedAt,
			&folder.ModifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		collection = append(collection, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return collection, nil
}
