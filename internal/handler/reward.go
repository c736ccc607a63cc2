package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/points"
	"github.com/emiller/starjar/internal/store"
	"github.com/emiller/starjar/internal/websocket"
)

// IdempotencyKeyHeader carries the client-generated key that makes reward
// redemption safe to retry.
const IdempotencyKeyHeader = "X-Idempotency-Key"

type RewardHandler struct {
	rewardStore *store.RewardStore
	workflow    *points.Workflow
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, wf *points.Workflow, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{
		rewardStore: rs,
		workflow:    wf,
		hub:         hub,
		logger:      logger,
	}
}

type createRewardRequest struct {
	Description string `json:"description"`
	PointCost   int    `json:"point_cost"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	var req createRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		writeErr(w, http.StatusBadRequest, "description is required")
		return
	}
	if req.PointCost <= 0 {
		writeErr(w, http.StatusBadRequest, "point_cost must be positive")
		return
	}

	reward, err := h.rewardStore.Create(parentID, req.Description, req.PointCost)
	if err != nil {
		h.logger.Error("failed to create reward", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.hub.Broadcast(parentID, websocket.NewMessage("reward", "created", reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

// List returns the family's reward catalog, cheapest first.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.ListByParent(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("failed to list rewards", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	parentID := auth.ProfileID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid reward id")
		return
	}

	reward, err := h.rewardStore.GetByID(id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to load reward")
		return
	}
	if reward == nil || reward.ParentID != parentID {
		writeErr(w, http.StatusNotFound, "reward not found")
		return
	}

	if err := h.rewardStore.Delete(id); err != nil {
		h.logger.Error("failed to delete reward", "reward_id", id, "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}

	h.hub.Broadcast(parentID, websocket.NewMessage("reward", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Redeem claims a reward for the calling child. The X-Idempotency-Key header
// must carry a client-generated UUID; repeating a request with the same key
// returns the original redemption without charging again.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	childID := auth.ProfileID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid reward id")
		return
	}

	// Clients that cannot persist a key across retries may omit the header
	// and forfeit replay protection.
	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		key = uuid.NewString()
	} else if _, err := uuid.Parse(key); err != nil {
		writeErr(w, http.StatusBadRequest, "X-Idempotency-Key must be a valid UUID")
		return
	}

	rec, applied, err := h.workflow.Redeem(r.Context(), id, childID, key)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	if applied {
		h.hub.Broadcast(rec.ParentID, websocket.NewMessage("redemption", "created", rec.ID, nil))
		h.hub.Broadcast(rec.ParentID, websocket.NewMessage("profile", "points_changed", childID, map[string]any{
			"delta": -rec.PointCost,
		}))
		writeJSON(w, http.StatusCreated, rec)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Redemptions returns the caller's redemption history: the whole family for a
// parent, own claims for a child.
func (h *RewardHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		recs any
		err  error
	)
	if auth.IsParent(ctx) {
		recs, err = h.rewardStore.ListRedemptionsByParent(auth.ProfileID(ctx))
	} else {
		recs, err = h.rewardStore.ListRedemptionsByChild(auth.ProfileID(ctx))
	}
	if err != nil {
		h.logger.Error("failed to list redemptions", "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to list redemptions")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
