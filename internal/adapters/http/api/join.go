package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type joinRequest struct {
	Owner string `json:"owner"`
}

type ackResponse struct {
	Status string `json:"status"`
}

// JoinHandler handles join requests.
type JoinHandler struct {
	deps Dependencies
}

// NewJoinHandler creates a new join handler.
func NewJoinHandler(deps Dependencies) *JoinHandler {
	return &JoinHandler{deps: deps}
}

// HandleJoin handles POST /leaderboards/{id}/join. Registration runs in
// the background, so a success only means the request was queued.
func (h *JoinHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Owner) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing owner", ErrBadRequest))
		return
	}
	if err := h.deps.Join(r.Context(), r.PathValue("id"), req.Owner); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
