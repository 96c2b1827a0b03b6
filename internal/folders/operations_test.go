package folders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"notarium/internal/domain"
	"notarium/internal/domain/models"
)

// stubStore is an in-memory TreeStore recording every save.
type stubStore struct {
	mu       sync.Mutex
	folders  []models.Folder
	saves    int
	saveErr  error
	loadErr  error
	saveHook func() // runs inside SaveFolders, before recording
}

func (s *stubStore) LoadFolders(ctx context.Context) ([]models.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]models.Folder(nil), s.folders...), nil
}

func (s *stubStore) SaveFolders(ctx context.Context, collection []models.Folder) ([]models.Folder, error) {
	if hook := s.saveHook; hook != nil {
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.folders = append([]models.Folder(nil), collection...)
	s.saves++
	return collection, nil
}

func (s *stubStore) RestoreFolders(ctx context.Context) ([]models.Folder, error) {
	return s.LoadFolders(ctx)
}

func (s *stubStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOperations(store *stubStore) *Operations {
	ids := 0
	return NewOperations(store, testLogger(),
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { ids++; return fmt.Sprintf("id-%d", ids) }),
	)
}

func TestCreateFolder(t *testing.T) {
	store := &stubStore{}
	ops := testOperations(store)
	ctx := context.Background()

	collection, created, err := ops.Create(ctx, nil, "Notes", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.Name != "Notes" || created.ParentID != nil {
		t.Fatalf("unexpected folder %+v", created)
	}
	if len(collection) != 1 {
		t.Fatalf("collection size = %d, want 1", len(collection))
	}
	if store.saveCount() != 1 {
		t.Fatalf("saves = %d, want 1", store.saveCount())
	}

	t.Run("blank name is a validation error", func(t *testing.T) {
		_, _, err := ops.Create(ctx, collection, "   ", nil)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("sibling collision carries suggestion", func(t *testing.T) {
		_, _, err := ops.Create(ctx, collection, "notes", nil)
		var conflict *domain.NameConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected NameConflictError, got %v", err)
		}
		if conflict.SuggestedName != "notes (copy)" {
			t.Errorf("SuggestedName = %q, want %q", conflict.SuggestedName, "notes (copy)")
		}
		if store.saveCount() != 1 {
			t.Error("a failed create must not persist")
		}
	})
}

func TestRenameFolder(t *testing.T) {
	store := &stubStore{}
	ops := testOperations(store)
	ctx := context.Background()
	collection := []models.Folder{
		folder("a", nil, "Notes"),
		folder("b", nil, "Archive"),
	}

	t.Run("not found", func(t *testing.T) {
		_, _, err := ops.Rename(ctx, collection, "missing", "X")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("collision with sibling", func(t *testing.T) {
		_, _, err := ops.Rename(ctx, collection, "a", "ARCHIVE")
		if !domain.IsConflict(err) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("rename to own name succeeds", func(t *testing.T) {
		_, renamed, err := ops.Rename(ctx, collection, "a", "Notes")
		if err != nil {
			t.Fatalf("Rename: %v", err)
		}
		if renamed.Name != "Notes" {
			t.Errorf("Name = %q", renamed.Name)
		}
	})

	t.Run("success updates name and modifiedAt", func(t *testing.T) {
		updated, renamed, err := ops.Rename(ctx, collection, "a", "Journal")
		if err != nil {
			t.Fatalf("Rename: %v", err)
		}
		if renamed.Name != "Journal" {
			t.Errorf("Name = %q, want Journal", renamed.Name)
		}
		if !renamed.ModifiedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
			t.Errorf("ModifiedAt = %v", renamed.ModifiedAt)
		}
		// the input collection is never mutated in place
		if collection[0].Name != "Notes" {
			t.Error("input collection was mutated")
		}
		if updated[0].Name != "Journal" {
			t.Error("updated collection missing rename")
		}
	})
}

func TestMoveFolder(t *testing.T) {
	store := &stubStore{}
	ops := testOperations(store)
	ctx := context.Background()
	collection := []models.Folder{
		folder("a", nil, "A"),
		folder("b", ptr("a"), "B"),
		folder("x", nil, "X"),
	}

	t.Run("not found", func(t *testing.T) {
		_, _, err := ops.Move(ctx, collection, "missing", nil)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("circular rejected", func(t *testing.T) {
		_, _, err := ops.Move(ctx, collection, "a", ptr("b"))
		var circular *domain.CircularReferenceError
		if !errors.As(err, &circular) {
			t.Fatalf("expected CircularReferenceError, got %v", err)
		}
	})

	t.Run("success reparents", func(t *testing.T) {
		updated, moved, err := ops.Move(ctx, collection, "b", ptr("x"))
		if err != nil {
			t.Fatalf("Move: %v", err)
		}
		if moved.ParentID == nil || *moved.ParentID != "x" {
			t.Errorf("ParentID = %v, want x", moved.ParentID)
		}
		// acyclicity: every folder's parent chain reaches root
		for _, f := range updated {
			steps := 0
			current := f.ParentID
			for current != nil {
				if steps++; steps > len(updated) {
					t.Fatalf("parent chain from %s does not terminate", f.ID)
				}
				idx := indexOf(updated, *current)
				if idx < 0 {
					break
				}
				current = updated[idx].ParentID
			}
		}
	})
}

func TestDeleteFolderCascade(t *testing.T) {
	store := &stubStore{}
	ops := testOperations(store)
	ctx := context.Background()
	// A with children B and C; C has child D; E unrelated.
	collection := []models.Folder{
		folder("a", nil, "A"),
		folder("b", ptr("a"), "B"),
		folder("c", ptr("a"), "C"),
		folder("d", ptr("c"), "D"),
		folder("e", nil, "E"),
	}

	updated, removed, err := ops.Delete(ctx, collection, "a")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, ok := removed[id]; !ok {
			t.Errorf("removed set missing %q", id)
		}
	}
	if len(updated) != 1 || updated[0].ID != "e" {
		t.Fatalf("remaining collection = %+v, want only e", updated)
	}

	if _, _, err := ops.Delete(ctx, collection, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceFolder(t *testing.T) {
	store := &stubStore{}
	ops := testOperations(store)
	ctx := context.Background()

	t.Run("overwrites conflicting destination subtree", func(t *testing.T) {
		// target has "Reports" (z) with child z1; source "Reports" (s) moves in.
		collection := []models.Folder{
			folder("t", nil, "Target"),
			folder("z", ptr("t"), "Reports"),
			folder("z1", ptr("z"), "Old"),
			folder("s", nil, "reports"),
			folder("s1", ptr("s"), "New"),
		}

		updated, removed, err := ops.Replace(ctx, collection, "s", ptr("t"))
		if err != nil {
			t.Fatalf("Replace: %v", err)
		}
		for _, id := range []string{"z", "z1"} {
			if _, ok := removed[id]; !ok {
				t.Errorf("removed set missing %q", id)
			}
		}
		idx := indexOf(updated, "s")
		if idx < 0 {
			t.Fatal("source vanished")
		}
		if updated[idx].ParentID == nil || *updated[idx].ParentID != "t" {
			t.Errorf("source ParentID = %v, want t", updated[idx].ParentID)
		}
		if indexOf(updated, "s1") < 0 {
			t.Error("source child s1 must survive")
		}
	})

	t.Run("conflicting ancestor of source is rejected", func(t *testing.T) {
		// z is the conflicting folder at the target AND an ancestor of the
		// source: a partial replace would consume the source's own subtree,
		// so the operation is rejected outright and y survives.
		collection := []models.Folder{
			folder("t", nil, "Target"),
			folder("z", ptr("t"), "Reports"),
			folder("x", ptr("z"), "Reports"),
			folder("y", ptr("x"), "Keep"),
		}

		_, _, err := ops.Replace(ctx, collection, "x", ptr("t"))
		var circular *domain.CircularReferenceError
		if !errors.As(err, &circular) {
			t.Fatalf("expected CircularReferenceError, got %v", err)
		}
		if indexOf(collection, "y") < 0 {
			t.Fatal("descendant y must survive a rejected replace")
		}
	})

	t.Run("target inside own subtree is rejected", func(t *testing.T) {
		// No name conflict exists at the target, so nothing would be
		// removed; the reparent alone would make a and b each other's
		// ancestor. The walk from the target must catch it before any save.
		collection := []models.Folder{
			folder("a", nil, "Reports"),
			folder("b", ptr("a"), "Archive"),
		}
		saves := store.saveCount()

		_, removed, err := ops.Replace(ctx, collection, "a", ptr("b"))
		var circular *domain.CircularReferenceError
		if !errors.As(err, &circular) {
			t.Fatalf("expected CircularReferenceError, got %v", err)
		}
		if removed != nil {
			t.Fatalf("removed = %v, want nil on rejection", removed)
		}
		if store.saveCount() != saves {
			t.Fatal("rejected replace must not persist")
		}
		for _, f := range collection {
			steps := 0
			current := f.ParentID
			for current != nil {
				if steps++; steps > len(collection) {
					t.Fatalf("parent chain from %s does not terminate", f.ID)
				}
				idx := indexOf(collection, *current)
				if idx < 0 {
					break
				}
				current = collection[idx].ParentID
			}
		}
	})

	t.Run("replace into self is rejected", func(t *testing.T) {
		collection := []models.Folder{folder("a", nil, "Reports")}

		_, _, err := ops.Replace(ctx, collection, "a", ptr("a"))
		var circular *domain.CircularReferenceError
		if !errors.As(err, &circular) {
			t.Fatalf("expected CircularReferenceError, got %v", err)
		}
	})

	t.Run("source not found", func(t *testing.T) {
		_, _, err := ops.Replace(ctx, nil, "missing", nil)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMissingTargetRejected(t *testing.T) {
	store := &stubStore{}
	ops := testOperations(store)
	ctx := context.Background()
	collection := []models.Folder{folder("a", nil, "Reports")}

	// A dangling target would orphan the subtree under a parent id that
	// resolves to nothing, so every reparenting operation rejects it.
	if _, _, err := ops.Move(ctx, collection, "a", ptr("ghost")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Move: expected ErrNotFound, got %v", err)
	}
	if _, _, err := ops.Replace(ctx, collection, "a", ptr("ghost")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Replace: expected ErrNotFound, got %v", err)
	}
	if _, _, err := ops.RenameAndMove(ctx, collection, "a", "Files", ptr("ghost")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("RenameAndMove: expected ErrNotFound, got %v", err)
	}
	if store.saveCount() != 0 {
		t.Fatalf("saves = %d, want 0", store.saveCount())
	}
}

func TestRenameAndMoveFolder(t *testing.T) {
	store := &stubStore{}
	ops := testOperations(store)
	ctx := context.Background()
	collection := []models.Folder{
		folder("t", nil, "Target"),
		folder("z", ptr("t"), "Reports"),
		folder("s", nil, "Reports"),
	}

	t.Run("validates against target siblings", func(t *testing.T) {
		_, _, err := ops.RenameAndMove(ctx, collection, "s", "reports", ptr("t"))
		if !domain.IsConflict(err) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("success updates both fields", func(t *testing.T) {
		_, moved, err := ops.RenameAndMove(ctx, collection, "s", "Reports 2024", ptr("t"))
		if err != nil {
			t.Fatalf("RenameAndMove: %v", err)
		}
		if moved.Name != "Reports 2024" {
			t.Errorf("Name = %q", moved.Name)
		}
		if moved.ParentID == nil || *moved.ParentID != "t" {
			t.Errorf("ParentID = %v, want t", moved.ParentID)
		}
	})
}

func TestStorageFailureDoesNotPersist(t *testing.T) {
	store := &stubStore{saveErr: errors.New("disk full")}
	ops := testOperations(store)

	original := []models.Folder{folder("a", nil, "A")}
	collection, _, err := ops.Create(context.Background(), original, "B", nil)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if len(collection) != 1 {
		t.Fatalf("failed create must return the original collection, got %d folders", len(collection))
	}
	if store.saveCount() != 0 {
		t.Error("failed save must not record a persisted state")
	}
}
