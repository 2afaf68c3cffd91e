package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// LeaderboardHandler handles leaderboard reads.
type LeaderboardHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleList handles GET /leaderboards.
func (h *LeaderboardHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Leaderboards())
}

// HandleGet handles GET /leaderboards/{id}?limit=N.
func (h *LeaderboardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	board, err := h.deps.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, truncate(board, limit))
}

// HandleTeams handles GET /leaderboards/{id}/teams.
func (h *LeaderboardHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.Teams(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// HandleMerged handles GET /leaderboards/{id}/merged?owner=X.
func (h *LeaderboardHandler) HandleMerged(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing owner", ErrBadRequest))
		return
	}
	board, err := h.deps.MergedLeaderboard(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, truncate(board, limit))
}

// HandleFast handles GET /leaderboards/{id}/fast.
func (h *LeaderboardHandler) HandleFast(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	board, err := h.deps.FastLeaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, truncate(board, limit))
}

// limit parses the optional limit parameter. Zero means everything.
func (h *LeaderboardHandler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
		return 0, false
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: max %d", ErrLimit, h.maxLimit))
		return 0, false
	}
	return n, true
}

func truncate(b Board, limit int) Board {
	if limit > 0 && len(b.Entries) > limit {
		b.Entries = b.Entries[:limit]
	}
	return b
}
