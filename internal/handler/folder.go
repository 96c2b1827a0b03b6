// Package handler exposes the folder engine and review workflow over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"notarium/internal/domain/models"
	"notarium/internal/folders"
	"notarium/internal/httputil"
)

// FolderHandler handles folder HTTP requests against the state manager.
type FolderHandler struct {
	manager *folders.Manager
	logger  *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(manager *folders.Manager, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{manager: manager, logger: logger}
}

type stateResponse struct {
	Loading         bool            `json:"loading"`
	Folders         []models.Folder `json:"folders"`
	CurrentFolderID *string         `json:"current_folder_id"`
}

// GetState returns the current folder tree snapshot.
// GET /api/folders
func (h *FolderHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state := h.manager.State()
	httputil.RespondJSON(w, http.StatusOK, stateResponse{
		Loading:         state.Loading,
		Folders:         state.Folders,
		CurrentFolderID: state.CurrentFolderID,
	})
}

// CreateFolder creates a new folder.
// POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := h.manager.CreateFolder(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// RenameFolder renames a folder in place.
// POST /api/folders/{id}/rename
func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.RenameFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := h.manager.RenameFolder(r.Context(), id, req.NewName)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folder)
}

// MoveFolder reparents a folder (null target = root).
// POST /api/folders/{id}/move
func (h *FolderHandler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.MoveFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := h.manager.MoveFolder(r.Context(), id, req.TargetID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folder)
}

// RenameAndMoveFolder resolves a move conflict by renaming.
// POST /api/folders/{id}/rename-move
func (h *FolderHandler) RenameAndMoveFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.RenameAndMoveFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	folder, err := h.manager.RenameAndMoveFolder(r.Context(), id, req.NewName, req.TargetID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folder)
}

// ReplaceFolder resolves a move conflict by overwriting the destination.
// POST /api/folders/{id}/replace
func (h *FolderHandler) ReplaceFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.MoveFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.ReplaceFolder(r.Context(), id, req.TargetID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFolder deletes a folder and its entire subtree.
// DELETE /api/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.manager.DeleteFolder(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setCurrentFolderRequest struct {
	FolderID *string `json:"folder_id"` // null = root
}

// SetCurrentFolder moves the navigation cursor. Not queued: navigation is
// not a tree mutation.
// PUT /api/current-folder
func (h *FolderHandler) SetCurrentFolder(w http.ResponseWriter, r *http.Request) {
	var req setCurrentFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.manager.SetCurrentFolder(req.FolderID)
	w.WriteHeader(http.StatusNoContent)
}

// ResumeQueue discards a conflicted head operation and resumes draining.
// POST /api/operation-queue/resume
func (h *FolderHandler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.manager.ResumeOperationQueue()
	httputil.RespondJSON(w, http.StatusOK, map[string]int{"pending": h.manager.QueueLength()})
}

// ClearQueue abandons all queued operations.
// DELETE /api/operation-queue
func (h *FolderHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	h.manager.ClearOperationQueue()
	w.WriteHeader(http.StatusNoContent)
}
