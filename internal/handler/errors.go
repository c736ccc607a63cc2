package handler

import (
	"errors"
	"net/http"

	"github.com/emiller/starjar/internal/points"
)

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeWorkflowError translates points workflow failures into HTTP statuses.
func writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, points.ErrTaskNotFound):
		writeErr(w, http.StatusNotFound, "task not found")
	case errors.Is(err, points.ErrRewardNotFound):
		writeErr(w, http.StatusNotFound, "reward not found")
	case errors.Is(err, points.ErrChildNotFound):
		writeErr(w, http.StatusNotFound, "child profile not found")
	case errors.Is(err, points.ErrStateConflict):
		writeErr(w, http.StatusConflict, "task was updated by someone else")
	case errors.Is(err, points.ErrNotAssignee):
		writeErr(w, http.StatusForbidden, "task is not assigned to you")
	case errors.Is(err, points.ErrNotOwner):
		writeErr(w, http.StatusForbidden, "task belongs to another family")
	case errors.Is(err, points.ErrInsufficientPoints):
		writeErr(w, http.StatusBadRequest, "not enough points")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
