// Package folders implements the folder tree engine: pure conflict
// detection, validated atomic operations over the in-memory collection,
// and the state manager that orchestrates them through the operation queue.
package folders

import (
	"fmt"
	"strings"

	"notarium/internal/domain"
	"notarium/internal/domain/models"
)

// SameParent reports whether two parent references point at the same level
// of the tree (both root, or the same folder id).
func SameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DetectNameConflict scans the siblings under parentID for a case-insensitive
// match of name, skipping excludeID (used when renaming a folder in place so
// it does not conflict with itself). On a match it returns a conflict carrying
// a suggested unique alternative; nil means no conflict.
func DetectNameConflict(name string, parentID *string, collection []models.Folder, excludeID string) *domain.NameConflictError {
	lower := strings.ToLower(name)
	for i := range collection {
		f := &collection[i]
		if f.ID == excludeID || !SameParent(f.ParentID, parentID) {
			continue
		}
		if strings.ToLower(f.Name) == lower {
			return &domain.NameConflictError{
				ConflictingID: f.ID,
				RequestedName: name,
				SuggestedName: suggestUniqueName(name, parentID, collection),
			}
		}
	}
	return nil
}

// suggestUniqueName appends " (copy)" to name, or " (copy N)" with the
// smallest N >= 1 not already taken among siblings. The numeric scan keeps
// the suggestion deterministic and terminates within sibling count + 1
// iterations.
func suggestUniqueName(name string, parentID *string, collection []models.Folder) string {
	taken := make(map[string]struct{})
	for i := range collection {
		if SameParent(collection[i].ParentID, parentID) {
			taken[strings.ToLower(collection[i].Name)] = struct{}{}
		}
	}

	candidate := name + " (copy)"
	if _, ok := taken[strings.ToLower(candidate)]; !ok {
		return candidate
	}
	for n := 1; ; n++ {
		candidate = fmt.Sprintf("%s (copy %d)", name, n)
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}

// DetectCircularConflict walks the ancestor chain starting at targetID. If
// the walk reaches sourceID, or revisits an already-seen id (cycle guard;
// should not occur while invariants hold), the move would make a folder its
// own ancestor. A nil target (root) never conflicts.
func DetectCircularConflict(sourceID string, targetID *string, collection []models.Folder) *domain.CircularReferenceError {
	if targetID == nil {
		return nil
	}
	byID := make(map[string]*models.Folder, len(collection))
	for i := range collection {
		byID[collection[i].ID] = &collection[i]
	}

	visited := make(map[string]struct{})
	current := targetID
	for current != nil {
		if *current == sourceID {
			return &domain.CircularReferenceError{SourceID: sourceID, TargetID: *targetID}
		}
		if _, seen := visited[*current]; seen {
			return &domain.CircularReferenceError{SourceID: sourceID, TargetID: *targetID}
		}
		visited[*current] = struct{}{}

		folder, ok := byID[*current]
		if !ok {
			break
		}
		current = folder.ParentID
	}
	return nil
}

// DetectMoveConflict combines the two checks for a move of sourceID under
// targetID. The circular check runs first: a circular reference is a
// structural impossibility, while a name collision is resolvable, so it
// takes priority when both would fire. Returns nil when the move is clean.
func DetectMoveConflict(sourceID string, targetID *string, collection []models.Folder) error {
	if conflict := DetectCircularConflict(sourceID, targetID, collection); conflict != nil {
		return conflict
	}

	var source *models.Folder
	for i := range collection {
		if collection[i].ID == sourceID {
			source = &collection[i]
			break
		}
	}
	if source == nil {
		return nil
	}

	if conflict := DetectNameConflict(source.Name, targetID, collection, sourceID); conflict != nil {
		return conflict
	}
	return nil
}

// FoldersToDelete computes the full descendant closure of folderID: the
// folder itself plus all transitive children. Delete and replace use it to
// determine cascade scope. Traversal is id-based over a parent->children
// multimap so a collection mutated elsewhere is never aliased mid-walk.
func FoldersToDelete(collection []models.Folder, folderID string) map[string]struct{} {
	children := make(map[string][]string)
	for i := range collection {
		if collection[i].ParentID != nil {
			children[*collection[i].ParentID] = append(children[*collection[i].ParentID], collection[i].ID)
		}
	}

	closure := make(map[string]struct{})
	stack := []string{folderID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := closure[id]; seen {
			continue
		}
		closure[id] = struct{}{}
		stack = append(stack, children[id]...)
	}
	return closure
}
