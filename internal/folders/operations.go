package folders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"notarium/internal/domain"
	"notarium/internal/domain/models"
	"notarium/internal/domain/repositories"
)

// Operations applies validated, atomic mutations to a folder collection and
// persists every successful mutation through the tree store before
// reporting success. Validation failures are returned as typed domain
// errors and never persist partial state; only storage faults surface as
// wrapped ErrStorage errors.
//
// Each method takes the current collection and returns the replacement
// collection. Callers (the state manager, via the operation queue) own the
// collection and swap it in on success.
type Operations struct {
	store  repositories.TreeStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option customizes an Operations instance.
type Option func(*Operations)

// WithClock injects the time source. Tests use a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(o *Operations) { o.now = now }
}

// WithIDGenerator injects the id source for newly created folders.
func WithIDGenerator(newID func() string) Option {
	return func(o *Operations) { o.newID = newID }
}

// NewOperations creates folder operations backed by the given tree store.
func NewOperations(store repositories.TreeStore, logger *slog.Logger, opts ...Option) *Operations {
	o := &Operations{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create synthesizes a new folder under parentID and appends it to the
// collection. The name is trimmed; a sibling collision returns a name
// conflict carrying a suggested alternative.
func (o *Operations) Create(ctx context.Context, collection []models.Folder, name string, parentID *string) ([]models.Folder, *models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return collection, nil, fmt.Errorf("%w: folder name cannot be blank", domain.ErrValidation)
	}
	if conflict := DetectNameConflict(name, parentID, collection, ""); conflict != nil {
		return collection, nil, conflict
	}

	now := o.now()
	folder := models.Folder{
		ID:         o.newID(),
		ParentID:   parentID,
		Name:       name,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	updated := make([]models.Folder, 0, len(collection)+1)
	updated = append(updated, collection...)
	updated = append(updated, folder)

	persisted, err := o.persist(ctx, updated)
	if err != nil {
		return collection, nil, err
	}
	o.logger.Debug("folder created", "id", folder.ID, "name", folder.Name, "parent_id", parentID)
	return persisted, &folder, nil
}

// Rename updates a folder's name in place. The folder's own current name
// never conflicts with itself.
func (o *Operations) Rename(ctx context.Context, collection []models.Folder, id, newName string) ([]models.Folder, *models.Folder, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return collection, nil, fmt.Errorf("%w: folder name cannot be blank", domain.ErrValidation)
	}

	idx := indexOf(collection, id)
	if idx < 0 {
		return collection, nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	if conflict := DetectNameConflict(newName, collection[idx].ParentID, collection, id); conflict != nil {
		return collection, nil, conflict
	}

	updated := clone(collection)
	updated[idx].Name = newName
	updated[idx].ModifiedAt = o.now()

	persisted, err := o.persist(ctx, updated)
	if err != nil {
		return collection, nil, err
	}
	folder := persistedByID(persisted, updated, idx, id)
	o.logger.Debug("folder renamed", "id", id, "name", newName)
	return persisted, folder, nil
}

// Move reparents a folder under targetID (nil = root). It rejects moves
// that would create a cycle but deliberately does not check name conflicts
// at the destination: the state manager runs that check before enqueueing
// so conflict-resolution UX can intervene first.
func (o *Operations) Move(ctx context.Context, collection []models.Folder, sourceID string, targetID *string) ([]models.Folder, *models.Folder, error) {
	idx := indexOf(collection, sourceID)
	if idx < 0 {
		return collection, nil, fmt.Errorf("folder %s: %w", sourceID, domain.ErrNotFound)
	}
	if targetID != nil && indexOf(collection, *targetID) < 0 {
		return collection, nil, fmt.Errorf("folder %s: %w", *targetID, domain.ErrNotFound)
	}
	if conflict := DetectCircularConflict(sourceID, targetID, collection); conflict != nil {
		return collection, nil, conflict
	}

	updated := clone(collection)
	updated[idx].ParentID = targetID
	updated[idx].ModifiedAt = o.now()

	persisted, err := o.persist(ctx, updated)
	if err != nil {
		return collection, nil, err
	}
	folder := persistedByID(persisted, updated, idx, sourceID)
	o.logger.Debug("folder moved", "id", sourceID, "target_id", targetID)
	return persisted, folder, nil
}

// Delete removes a folder and its entire descendant closure. The returned
// set holds the ids that were removed.
func (o *Operations) Delete(ctx context.Context, collection []models.Folder, id string) ([]models.Folder, map[string]struct{}, error) {
	if indexOf(collection, id) < 0 {
		return collection, nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}

	closure := FoldersToDelete(collection, id)
	updated := make([]models.Folder, 0, len(collection)-len(closure))
	for i := range collection {
		if _, gone := closure[collection[i].ID]; !gone {
			updated = append(updated, collection[i])
		}
	}

	persisted, err := o.persist(ctx, updated)
	if err != nil {
		return collection, nil, err
	}
	o.logger.Debug("folder deleted", "id", id, "cascade_count", len(closure))
	return persisted, closure, nil
}

// Replace is the overwrite resolution for a move conflict: folders under
// targetID whose name matches the source's are destroyed (with their
// subtrees) and the source moves into their place. Like Move, it rejects a
// target inside the source's own subtree; a conflicting folder that is an
// ancestor of the source would likewise have the replace consume the
// source's own subtree, so both cases surface as circular references.
// The returned set holds the removed ids.
func (o *Operations) Replace(ctx context.Context, collection []models.Folder, sourceID string, targetID *string) ([]models.Folder, map[string]struct{}, error) {
	idx := indexOf(collection, sourceID)
	if idx < 0 {
		return collection, nil, fmt.Errorf("folder %s: %w", sourceID, domain.ErrNotFound)
	}
	if targetID != nil && indexOf(collection, *targetID) < 0 {
		return collection, nil, fmt.Errorf("folder %s: %w", *targetID, domain.ErrNotFound)
	}
	if conflict := DetectCircularConflict(sourceID, targetID, collection); conflict != nil {
		return collection, nil, conflict
	}
	source := collection[idx]
	sourceClosure := FoldersToDelete(collection, sourceID)

	removed := make(map[string]struct{})
	lower := strings.ToLower(source.Name)
	for i := range collection {
		f := &collection[i]
		if f.ID == sourceID || !SameParent(f.ParentID, targetID) || strings.ToLower(f.Name) != lower {
			continue
		}
		conflictClosure := FoldersToDelete(collection, f.ID)
		if _, contains := conflictClosure[sourceID]; contains {
			// The conflicting folder is an ancestor of the source.
			return collection, nil, &domain.CircularReferenceError{SourceID: sourceID, TargetID: f.ID}
		}
		for cid := range conflictClosure {
			if _, own := sourceClosure[cid]; own {
				continue // never remove the source's own descendants
			}
			removed[cid] = struct{}{}
		}
	}

	updated := make([]models.Folder, 0, len(collection)-len(removed))
	for i := range collection {
		if _, gone := removed[collection[i].ID]; gone {
			continue
		}
		f := collection[i]
		if f.ID == sourceID {
			f.ParentID = targetID
			f.ModifiedAt = o.now()
		}
		updated = append(updated, f)
	}

	persisted, err := o.persist(ctx, updated)
	if err != nil {
		return collection, nil, err
	}
	o.logger.Debug("folder replaced into target", "id", sourceID, "target_id", targetID, "removed_count", len(removed))
	return persisted, removed, nil
}

// RenameAndMove updates name and parent together. It is the rename
// resolution for a move conflict, so the new name is validated against the
// target's siblings rather than the source's current siblings.
func (o *Operations) RenameAndMove(ctx context.Context, collection []models.Folder, id, newName string, targetID *string) ([]models.Folder, *models.Folder, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return collection, nil, fmt.Errorf("%w: folder name cannot be blank", domain.ErrValidation)
	}

	idx := indexOf(collection, id)
	if idx < 0 {
		return collection, nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	if targetID != nil && indexOf(collection, *targetID) < 0 {
		return collection, nil, fmt.Errorf("folder %s: %w", *targetID, domain.ErrNotFound)
	}
	if conflict := DetectCircularConflict(id, targetID, collection); conflict != nil {
		return collection, nil, conflict
	}
	if conflict := DetectNameConflict(newName, targetID, collection, id); conflict != nil {
		return collection, nil, conflict
	}

	updated := clone(collection)
	updated[idx].Name = newName
	updated[idx].ParentID = targetID
	updated[idx].ModifiedAt = o.now()

	persisted, err := o.persist(ctx, updated)
	if err != nil {
		return collection, nil, err
	}
	folder := persistedByID(persisted, updated, idx, id)
	o.logger.Debug("folder renamed and moved", "id", id, "name", newName, "target_id", targetID)
	return persisted, folder, nil
}

func (o *Operations) persist(ctx context.Context, collection []models.Folder) ([]models.Folder, error) {
	persisted, err := o.store.SaveFolders(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return persisted, nil
}

func indexOf(collection []models.Folder, id string) int {
	for i := range collection {
		if collection[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(collection []models.Folder) []models.Folder {
	out := make([]models.Folder, len(collection))
	copy(out, collection)
	return out
}

// persistedByID returns the mutated folder from the persisted collection,
// falling back to the local copy if the store reordered or normalized rows.
func persistedByID(persisted, updated []models.Folder, idx int, id string) *models.Folder {
	if i := indexOf(persisted, id); i >= 0 {
		f := persisted[i]
		return &f
	}
	f := updated[idx]
	return &f
}
