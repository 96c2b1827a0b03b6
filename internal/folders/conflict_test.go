package folders

import (
	"errors"
	"testing"

	"notarium/internal/domain"
	"notarium/internal/domain/models"
)

func ptr(s string) *string { return &s }

func folder(id string, parentID *string, name string) models.Folder {
	return models.Folder{ID: id, ParentID: parentID, Name: name}
}

func TestDetectNameConflict(t *testing.T) {
	collection := []models.Folder{
		folder("root-1", nil, "Notes"),
		folder("root-2", nil, "Archive"),
		folder("child-1", ptr("root-1"), "Drafts"),
	}

	tests := []struct {
		name          string
		candidate     string
		parentID      *string
		excludeID     string
		wantConflict  bool
		wantExisting  string
		wantSuggested string
	}{
		{
			name:          "exact match at root",
			candidate:     "Notes",
			parentID:      nil,
			wantConflict:  true,
			wantExisting:  "root-1",
			wantSuggested: "Notes (copy)",
		},
		{
			name:          "case-insensitive match",
			candidate:     "notes",
			parentID:      nil,
			wantConflict:  true,
			wantExisting:  "root-1",
			wantSuggested: "notes (copy)",
		},
		{
			name:         "same name under different parent",
			candidate:    "Notes",
			parentID:     ptr("root-1"),
			wantConflict: false,
		},
		{
			name:         "no siblings never conflicts",
			candidate:    "Drafts",
			parentID:     ptr("root-2"),
			wantConflict: false,
		},
		{
			name:         "renaming to own name excludes self",
			candidate:    "Notes",
			parentID:     nil,
			excludeID:    "root-1",
			wantConflict: false,
		},
		{
			name:         "fresh name",
			candidate:    "Journal",
			parentID:     nil,
			wantConflict: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict := DetectNameConflict(tt.candidate, tt.parentID, collection, tt.excludeID)
			if !tt.wantConflict {
				if conflict != nil {
					t.Fatalf("expected no conflict, got %v", conflict)
				}
				return
			}
			if conflict == nil {
				t.Fatal("expected a conflict, got none")
			}
			if conflict.ConflictingID != tt.wantExisting {
				t.Errorf("ConflictingID = %q, want %q", conflict.ConflictingID, tt.wantExisting)
			}
			if conflict.RequestedName != tt.candidate {
				t.Errorf("RequestedName = %q, want %q", conflict.RequestedName, tt.candidate)
			}
			if conflict.SuggestedName != tt.wantSuggested {
				t.Errorf("SuggestedName = %q, want %q", conflict.SuggestedName, tt.wantSuggested)
			}
		})
	}
}

func TestSuggestedNameFreshness(t *testing.T) {
	// "Report" and "Report (copy)" taken: suggestion must be "Report (copy 1)";
	// after adding that, the next suggestion must be "Report (copy 2)".
	collection := []models.Folder{
		folder("a", nil, "Report"),
		folder("b", nil, "Report (copy)"),
	}

	conflict := DetectNameConflict("Report", nil, collection, "")
	if conflict == nil {
		t.Fatal("expected a conflict")
	}
	if conflict.SuggestedName != "Report (copy 1)" {
		t.Fatalf("SuggestedName = %q, want %q", conflict.SuggestedName, "Report (copy 1)")
	}

	collection = append(collection, folder("c", nil, conflict.SuggestedName))
	conflict = DetectNameConflict("Report", nil, collection, "")
	if conflict == nil {
		t.Fatal("expected a conflict")
	}
	if conflict.SuggestedName != "Report (copy 2)" {
		t.Fatalf("SuggestedName = %q, want %q", conflict.SuggestedName, "Report (copy 2)")
	}
}

func TestSuggestedNameNumericScan(t *testing.T) {
	// Numeric gaps are filled with the smallest free N, scanning numerically
	// rather than lexicographically.
	collection := []models.Folder{
		folder("a", nil, "Report"),
		folder("b", nil, "Report (copy)"),
		folder("c", nil, "Report (copy 1)"),
		folder("d", nil, "Report (copy 10)"),
	}

	conflict := DetectNameConflict("Report", nil, collection, "")
	if conflict == nil {
		t.Fatal("expected a conflict")
	}
	if conflict.SuggestedName != "Report (copy 2)" {
		t.Fatalf("SuggestedName = %q, want %q", conflict.SuggestedName, "Report (copy 2)")
	}
}

func TestDetectCircularConflict(t *testing.T) {
	// root -> a -> b -> c
	collection := []models.Folder{
		folder("a", nil, "A"),
		folder("b", ptr("a"), "B"),
		folder("c", ptr("b"), "C"),
		folder("x", nil, "X"),
	}

	tests := []struct {
		name     string
		sourceID string
		targetID *string
		want     bool
	}{
		{"move to root never conflicts", "a", nil, false},
		{"move into own descendant", "a", ptr("c"), true},
		{"move into own child", "a", ptr("b"), true},
		{"move into self", "a", ptr("a"), true},
		{"move into unrelated folder", "a", ptr("x"), false},
		{"move leaf up", "c", ptr("a"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectCircularConflict(tt.sourceID, tt.targetID, collection)
			if (got != nil) != tt.want {
				t.Errorf("DetectCircularConflict(%s, %v) = %v, want conflict=%v", tt.sourceID, tt.targetID, got, tt.want)
			}
		})
	}
}

func TestDetectCircularConflictCycleGuard(t *testing.T) {
	// A corrupted parent chain (b <-> c cycle) must terminate and report a
	// conflict rather than walking forever.
	collection := []models.Folder{
		folder("a", nil, "A"),
		folder("b", ptr("c"), "B"),
		folder("c", ptr("b"), "C"),
	}

	if got := DetectCircularConflict("a", ptr("b"), collection); got == nil {
		t.Fatal("expected the cycle guard to fire")
	}
}

func TestDetectMoveConflict(t *testing.T) {
	collection := []models.Folder{
		folder("a", nil, "Reports"),
		folder("b", ptr("a"), "Q1"),
		folder("x", nil, "Inbox"),
		folder("y", ptr("x"), "reports"),
	}

	t.Run("circular takes priority over name", func(t *testing.T) {
		// Moving "a" into its own child "b" is circular; even if a name
		// collision also existed the structural impossibility wins.
		err := DetectMoveConflict("a", ptr("b"), collection)
		var circular *domain.CircularReferenceError
		if !errors.As(err, &circular) {
			t.Fatalf("expected CircularReferenceError, got %v", err)
		}
	})

	t.Run("name conflict at destination", func(t *testing.T) {
		err := DetectMoveConflict("a", ptr("x"), collection)
		var nameConflict *domain.NameConflictError
		if !errors.As(err, &nameConflict) {
			t.Fatalf("expected NameConflictError, got %v", err)
		}
		if nameConflict.ConflictingID != "y" {
			t.Errorf("ConflictingID = %q, want %q", nameConflict.ConflictingID, "y")
		}
		if nameConflict.SuggestedName == "" {
			t.Error("name conflict must carry a suggested alternative")
		}
	})

	t.Run("clean move", func(t *testing.T) {
		if err := DetectMoveConflict("b", ptr("x"), collection); err != nil {
			t.Fatalf("expected no conflict, got %v", err)
		}
	})
}

func TestFoldersToDelete(t *testing.T) {
	// a -> b, a -> c, c -> d, plus unrelated e
	collection := []models.Folder{
		folder("a", nil, "A"),
		folder("b", ptr("a"), "B"),
		folder("c", ptr("a"), "C"),
		folder("d", ptr("c"), "D"),
		folder("e", nil, "E"),
	}

	closure := FoldersToDelete(collection, "a")
	want := []string{"a", "b", "c", "d"}
	if len(closure) != len(want) {
		t.Fatalf("closure size = %d, want %d", len(closure), len(want))
	}
	for _, id := range want {
		if _, ok := closure[id]; !ok {
			t.Errorf("closure missing %q", id)
		}
	}
	if _, ok := closure["e"]; ok {
		t.Error("closure must not include unrelated folder e")
	}
}
