package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okian/evalboard/internal/domain/leaderboard"
	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/normalize"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Keys() []string
	Leaderboard(ctx context.Context, key string) (View, error)
}

// LeaderboardHandler handles leaderboard and summary requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

type leaderboardResponse struct {
	Source        string          `json:"source"`
	Name          string          `json:"name"`
	HighWaterMark int             `json:"high_water_mark"`
	LastUpdate    model.Timestamp `json:"last_update"`
	FromMirror    bool            `json:"from_mirror,omitempty"`
	Benchmarks    []string        `json:"benchmarks"`
	Rows          []model.Row     `json:"rows"`
	Total         int             `json:"total"`
	Dropped       int             `json:"dropped,omitempty"`
}

type summaryResponse struct {
	Source  string                     `json:"source"`
	Summary []leaderboard.SummaryEntry `json:"summary"`
}

// HandleGetLeaderboard handles
// GET /leaderboard?source=&sort=&asc=&complete=&min_score=&max_score= requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	arr, err := parseArrangement(r.URL.Query())
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	v, err := h.deps.Leaderboard(r.Context(), sourceParam(r, h.deps.Keys()))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	rows := leaderboard.Arrange(v.Table.Rows, arr)
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Source:        v.Source,
		Name:          v.Name,
		HighWaterMark: v.HighWaterMark,
		LastUpdate:    v.LastUpdate,
		FromMirror:    v.FromMirror,
		Benchmarks:    normalize.Benchmarks(),
		Rows:          rows,
		Total:         len(v.Table.Rows),
		Dropped:       v.Table.Dropped,
	})
}

// HandleGetSummary handles GET /summary?source= requests. The summary always
// covers the full table regardless of any arrangement.
func (h *LeaderboardHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	v, err := h.deps.Leaderboard(r.Context(), sourceParam(r, h.deps.Keys()))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	summary := v.Summary
	if summary == nil {
		summary = []leaderboard.SummaryEntry{}
	}
	writeJSON(w, http.StatusOK, summaryResponse{Source: v.Source, Summary: summary})
}

func parseArrangement(q url.Values) (leaderboard.Arrangement, error) {
	var a leaderboard.Arrangement
	key, err := leaderboard.ParseSortKey(q.Get("sort"))
	if err != nil {
		return a, err
	}
	a.Sort = key

	if a.Ascending, err = boolParam(q, "asc"); err != nil {
		return a, err
	}
	if a.CompleteOnly, err = boolParam(q, "complete"); err != nil {
		return a, err
	}
	if a.MinScore, err = floatParam(q, "min_score"); err != nil {
		return a, err
	}
	if a.MaxScore, err = floatParam(q, "max_score"); err != nil {
		return a, err
	}
	if a.MinScore != nil && a.MaxScore != nil && *a.MinScore > *a.MaxScore {
		return a, fmt.Errorf("min_score %g exceeds max_score %g", *a.MinScore, *a.MaxScore)
	}
	return a, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	s := q.Get(name)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, s)
	}
	return b, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	return &f, nil
}
