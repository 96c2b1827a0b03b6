package models

import (
	"time"
)

// Folder is a node in a strict tree. Names are unique among siblings under
// case-insensitive comparison; the parent chain from any folder terminates
// at root (nil ParentID) without revisiting an id.
type Folder struct {
	ID         string    `json:"id" db:"id"`
	ParentID   *string   `json:"parent_id" db:"parent_id"` // NULL = root level
	Name       string    `json:"name" db:"name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
}

// Root reports whether the folder sits at the top level.
func (f *Folder) Root() bool {
	return f.ParentID == nil
}

type CreateFolderRequest struct {
	ParentID *string `json:"parent_id,omitempty"`
	Name     string  `json:"name"`
}

type RenameFolderRequest struct {
	NewName string `json:"new_name"`
}

type MoveFolderRequest struct {
	TargetID *string `json:"target_id,omitempty"` // nil = move to root
}

// RenameAndMoveFolderRequest resolves a move conflict by renaming: the new
// name is validated against the target's siblings, then name and parent are
// updated together.
type RenameAndMoveFolderRequest struct {
	NewName  string  `json:"new_name"`
	TargetID *string `json:"target_id,omitempty"`
}
