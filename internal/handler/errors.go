package handler

import (
	"errors"
	"net/http"

	"notarium/internal/domain"
	"notarium/internal/httputil"
)

// respondDomainError maps domain errors to HTTP responses. A name conflict
// always carries its suggested alternative; a circular reference is a hard
// rejection with no suggestion.
func respondDomainError(w http.ResponseWriter, err error) {
	var nameConflict *domain.NameConflictError
	if errors.As(err, &nameConflict) {
		httputil.RespondErrorWithExtras(w, http.StatusConflict, err.Error(), map[string]interface{}{
			"conflict_kind":  "name",
			"conflicting_id": nameConflict.ConflictingID,
			"requested_name": nameConflict.RequestedName,
			"suggested_name": nameConflict.SuggestedName,
		})
		return
	}

	var circular *domain.CircularReferenceError
	if errors.As(err, &circular) {
		httputil.RespondErrorWithExtras(w, http.StatusConflict, err.Error(), map[string]interface{}{
			"conflict_kind": "circular",
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQueueCleared):
		httputil.RespondError(w, http.StatusServiceUnavailable, "operation abandoned: queue cleared")
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
