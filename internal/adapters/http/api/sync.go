package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/evalboard/internal/domain/syncer"
)

// SyncDependencies defines the interface for sync operations.
type SyncDependencies interface {
	Keys() []string
	Sync(ctx context.Context, key string, force bool) (syncer.Report, error)
	SyncAll(ctx context.Context, force bool) (map[string]syncer.Report, error)
}

// SyncHandler handles sync requests.
type SyncHandler struct {
	deps SyncDependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps SyncDependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

type syncResponse struct {
	Updated int                      `json:"updated"`
	Total   int                      `json:"total"`
	Reports map[string]syncer.Report `json:"reports"`
	Error   string                   `json:"error,omitempty"`
}

// HandlePostSync handles POST /sync?source=<key>|all&force= requests.
//
// A single source answers with the mapped error status when the run fails.
// With source=all every source is attempted and the response is 200 with
// per-source outcomes; Error carries the first failure.
func (h *SyncHandler) HandlePostSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_sync"
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	force, err := boolParam(r.URL.Query(), "force")
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	key := sourceParam(r, h.deps.Keys())
	if !strings.EqualFold(key, allSources) {
		rep, err := h.deps.Sync(r.Context(), key, force)
		if err != nil {
			writeFailure(w, WrapKind(op, ErrSyncFailed, err))
			return
		}
		writeJSON(w, http.StatusOK, newSyncResponse(map[string]syncer.Report{key: rep}, nil))
		return
	}

	reports, err := h.deps.SyncAll(r.Context(), force)
	writeJSON(w, http.StatusOK, newSyncResponse(reports, err))
}

func newSyncResponse(reports map[string]syncer.Report, err error) syncResponse {
	resp := syncResponse{Total: len(reports), Reports: reports}
	for _, rep := range reports {
		if rep.Outcome == syncer.OutcomeUpdated || rep.Outcome == syncer.OutcomeNoNewData {
			resp.Updated++
		}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
