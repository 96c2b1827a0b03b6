package repositories

import (
	"context"

	"notarium/internal/domain/models"
)

// TreeStore is the persistence collaborator for the folder tree. It owns
// durable storage and is the sole source of truth across restarts; the
// in-memory collection held by the state manager is a cache kept consistent
// with it on every successful mutation.
type TreeStore interface {
	// LoadFolders returns the full current collection. An unreadable or
	// corrupt store must surface an error (domain.ErrInvalidData for
	// structural corruption) rather than silently returning an empty set.
	LoadFolders(ctx context.Context) ([]models.Folder, error)

	// SaveFolders persists the full replacement collection atomically and
	// returns the persisted collection, allowing the store to normalize
	// (e.g. reassign a backup timestamp). Must not partially apply on failure.
	SaveFolders(ctx context.Context, folders []models.Folder) ([]models.Folder, error)

	// RestoreFolders returns a previously backed-up collection. Used by
	// disaster-recovery flows, not by normal operation.
	RestoreFolders(ctx context.Context) ([]models.Folder, error)
}
