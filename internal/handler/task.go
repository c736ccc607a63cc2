package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/points"
	"github.com/emiller/starjar/internal/store"
	"github.com/emiller/starjar/internal/websocket"
)

type TaskHandler struct {
	taskStore  *store.TaskStore
	childStore *store.ChildStore
	workflow   *points.Workflow
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, cs *store.ChildStore, wf *points.Workflow, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskStore:  ts,
		childStore: cs,
		workflow:   wf,
		hub:        hub,
		logger:     logger,
	}
}

type createTaskRequest struct {
	Description string  `json:"description"`
	Points      int     `json:"points"`
	AssigneeIDs []int64 `json:"assignee_ids"`
}

// Create adds a task owned by the calling parent. Every assignee must be one
// of the parent's own children.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		writeErr(w, http.StatusBadRequest, "description is required")
		return
	}
	if req.Points <= 0 {
		writeErr(w, http.StatusBadRequest, "points must be positive")
		return
	}
	if len(req.AssigneeIDs) == 0 {
		writeErr(w, http.StatusBadRequest, "at least one assignee is required")
		return
	}

	for _, id := range req.AssigneeIDs {
		child, err := h.childStore.GetByProfileID(id)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "failed to look up assignee")
			return
		}
		if child == nil || child.ParentID != parentID {
			writeErr(w, http.StatusBadRequest, "assignee is not one of your children")
			return
		}
	}

	task, err := h.taskStore.Create(parentID, req.Description, req.Points, req.AssigneeIDs)
	if err != nil {
		h.logger.Error("failed to create task", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.hub.Broadcast(parentID, websocket.NewMessage("task", "created", task.ID, nil))
	writeJSON(w, http.StatusCreated, task)
}

// List returns the caller's tasks: all family tasks for a parent, assigned
// tasks for a child.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		tasks any
		err   error
	)
	if auth.IsParent(ctx) {
		tasks, err = h.taskStore.ListByParent(auth.ProfileID(ctx))
	} else {
		tasks, err = h.taskStore.ListByAssignee(auth.ProfileID(ctx))
	}
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Get returns a single task, visible to its owning parent and its assignees.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := h.taskStore.GetByID(id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if task == nil || !h.visible(r, task.ParentID, task.AssigneeIDs) {
		writeErr(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) visible(r *http.Request, parentID int64, assigneeIDs []int64) bool {
	ctx := r.Context()
	if auth.IsParent(ctx) {
		return parentID == auth.ProfileID(ctx)
	}
	for _, id := range assigneeIDs {
		if id == auth.ProfileID(ctx) {
			return true
		}
	}
	return false
}

// Delete removes a task owned by the calling parent.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := h.taskStore.GetByID(id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if task == nil || task.ParentID != parentID {
		writeErr(w, http.StatusNotFound, "task not found")
		return
	}

	if err := h.taskStore.Delete(id); err != nil {
		h.logger.Error("failed to delete task", "task_id", id, "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.hub.Broadcast(parentID, websocket.NewMessage("task", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type submitTaskRequest struct {
	Notes string `json:"notes"`
}

// Submit marks a pending task as completed by the calling child.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	childID := auth.ProfileID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var req submitTaskRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	task, err := h.workflow.Submit(r.Context(), id, childID, strings.TrimSpace(req.Notes))
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	h.hub.Broadcast(task.ParentID, websocket.NewMessage("task", "updated", task.ID, map[string]any{
		"status": task.Status,
	}))
	writeJSON(w, http.StatusOK, task)
}

type verifyTaskRequest struct {
	Decision string `json:"decision"`
	Feedback string `json:"feedback"`
}

// Verify approves or rejects a completed task. Approval credits every
// assignee; rejection returns the task to pending with feedback.
func (h *TaskHandler) Verify(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var req verifyTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	decision := points.Decision(req.Decision)
	if decision != points.DecisionApprove && decision != points.DecisionReject {
		writeErr(w, http.StatusBadRequest, "decision must be approve or reject")
		return
	}

	task, err := h.workflow.Verify(r.Context(), id, parentID, decision, strings.TrimSpace(req.Feedback))
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	h.hub.Broadcast(parentID, websocket.NewMessage("task", "updated", task.ID, map[string]any{
		"status": task.Status,
	}))
	if decision == points.DecisionApprove {
		for _, assigneeID := range task.AssigneeIDs {
			h.hub.Broadcast(parentID, websocket.NewMessage("profile", "points_changed", assigneeID, map[string]any{
				"delta": task.Points,
			}))
		}
	}
	writeJSON(w, http.StatusOK, task)
}
