package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/evalboard/internal/adapters/http/api"
	service "github.com/okian/evalboard/internal/app"
	"github.com/okian/evalboard/internal/domain/leaderboard"
	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/syncer"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies serves fixed views and records sync calls.
type mockDependencies struct {
	views    map[string]api.View
	stats    []api.SourceStats
	statsErr error
	reports  map[string]syncer.Report
	syncErr  error
	synced   []string
	forced   bool
}

func (m *mockDependencies) Keys() []string { return []string{"db1", "db2"} }

func (m *mockDependencies) Leaderboard(_ context.Context, key string) (api.View, error) {
	v, ok := m.views[key]
	if !ok {
		return api.View{}, fmt.Errorf("%w: %q", service.ErrUnknownSource, key)
	}
	return v, nil
}

func (m *mockDependencies) GetStats(context.Context) ([]api.SourceStats, error) {
	return m.stats, m.statsErr
}

func (m *mockDependencies) Sync(_ context.Context, key string, force bool) (syncer.Report, error) {
	m.synced = append(m.synced, key)
	m.forced = force
	if _, ok := m.reports[key]; !ok {
		return syncer.Report{}, fmt.Errorf("%w: %q", service.ErrUnknownSource, key)
	}
	return m.reports[key], m.syncErr
}

func (m *mockDependencies) SyncAll(ctx context.Context, force bool) (map[string]syncer.Report, error) {
	m.synced = append(m.synced, "all")
	m.forced = force
	return m.reports, m.syncErr
}

func ptr(v float64) *float64 { return &v }

func newMock() *mockDependencies {
	rows := []model.Row{
		{Name: "gated_delta_net", Role: model.RoleSOTA, Loss: ptr(4.377)},
		{Index: 1, Name: "a", Score: ptr(0.2), Loss: ptr(5.1)},
		{Index: 2, Name: "b", Score: ptr(0.7), Loss: ptr(4.9)},
		{Index: 3, Name: "c", Loss: ptr(4.8)},
	}
	return &mockDependencies{
		views: map[string]api.View{
			"db1": {
				Source:        "db1",
				Name:          "Database 1",
				HighWaterMark: 3,
				Table:         leaderboard.Table{Rows: rows},
				Summary:       leaderboard.Summarize(rows),
			},
		},
		stats: []api.SourceStats{{Source: "db1", HighWaterMark: 3}},
		reports: map[string]syncer.Report{
			"db1": {Outcome: syncer.OutcomeUpdated, Fetched: 2},
			"db2": {Outcome: syncer.OutcomeSourceUnreachable},
		},
	}
}

type leaderboardBody struct {
	Source     string      `json:"source"`
	Benchmarks []string    `json:"benchmarks"`
	Rows       []model.Row `json:"rows"`
	Total      int         `json:"total"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func serve(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func names(rows []model.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMock()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(context.Background(), mux)

		Convey("When requesting the leaderboard without a source", func() {
			w := serve(mux, http.MethodGet, "/leaderboard")

			Convey("Then the first source is served in table order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				var body leaderboardBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Source, ShouldEqual, "db1")
				So(body.Benchmarks, ShouldHaveLength, 12)
				So(body.Total, ShouldEqual, 4)
				So(names(body.Rows), ShouldResemble, []string{"gated_delta_net", "a", "b", "c"})
			})
		})

		Convey("When sorting by score descending", func() {
			w := serve(mux, http.MethodGet, "/leaderboard?source=db1&sort=score")

			Convey("Then pinned rows stay first and absent scores go last", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body leaderboardBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(names(body.Rows), ShouldResemble, []string{"gated_delta_net", "b", "a", "c"})
			})
		})

		Convey("When filtering by a score range", func() {
			w := serve(mux, http.MethodGet, "/leaderboard?min_score=0.5&max_score=1")

			Convey("Then only matching ordinary rows remain", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body leaderboardBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(names(body.Rows), ShouldResemble, []string{"gated_delta_net", "b"})
				So(body.Total, ShouldEqual, 4)
			})
		})

		Convey("When the query is malformed", func() {
			for _, target := range []string{
				"/leaderboard?sort=params",
				"/leaderboard?asc=maybe",
				"/leaderboard?complete=2x",
				"/leaderboard?min_score=high",
				"/leaderboard?min_score=0.9&max_score=0.1",
			} {
				w := serve(mux, http.MethodGet, target)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var body errorBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, "bad_request")
				So(body.Message, ShouldStartWith, "api.get_leaderboard")
			}
		})

		Convey("When the source is unknown", func() {
			w := serve(mux, http.MethodGet, "/leaderboard?source=db9")

			Convey("Then it is a 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				var body errorBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, "unknown_source")
			})
		})

		Convey("When using the wrong method", func() {
			w := serve(mux, http.MethodPost, "/leaderboard")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When requesting the summary", func() {
			w := serve(mux, http.MethodGet, "/summary?source=db1")

			Convey("Then every populated column has a winner", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Source  string                     `json:"source"`
					Summary []leaderboard.SummaryEntry `json:"summary"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Source, ShouldEqual, "db1")
				So(body.Summary, ShouldHaveLength, 2)
				So(body.Summary[0].Metric, ShouldEqual, leaderboard.MetricScore)
				So(body.Summary[0].Model, ShouldEqual, "b")
				So(body.Summary[0].Formatted, ShouldEqual, "0.700000")
				So(body.Summary[1].Metric, ShouldEqual, leaderboard.MetricLoss)
				So(body.Summary[1].Model, ShouldEqual, "gated_delta_net")
				So(body.Summary[1].Formatted, ShouldEqual, "4.3770")
			})
		})
	})
}

func TestSyncHandler(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMock()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(context.Background(), mux)

		Convey("When syncing one source", func() {
			w := serve(mux, http.MethodPost, "/sync?source=db1")

			Convey("Then only that source runs", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.synced, ShouldResemble, []string{"db1"})
				So(deps.forced, ShouldBeFalse)
				var body struct {
					Updated int                      `json:"updated"`
					Total   int                      `json:"total"`
					Reports map[string]syncer.Report `json:"reports"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Updated, ShouldEqual, 1)
				So(body.Total, ShouldEqual, 1)
				So(body.Reports["db1"].Fetched, ShouldEqual, 2)
			})
		})

		Convey("When forcing a sync of all sources", func() {
			deps.syncErr = fmt.Errorf("db2: %w", syncer.ErrSourceUnreachable)
			w := serve(mux, http.MethodPost, "/sync?source=all&force=true")

			Convey("Then the tally counts the successful sources", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.synced, ShouldResemble, []string{"all"})
				So(deps.forced, ShouldBeTrue)
				var body struct {
					Updated int    `json:"updated"`
					Total   int    `json:"total"`
					Error   string `json:"error"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Updated, ShouldEqual, 1)
				So(body.Total, ShouldEqual, 2)
				So(body.Error, ShouldContainSubstring, "source unreachable")
			})
		})

		Convey("When the all keyword is upper-cased", func() {
			w := serve(mux, http.MethodPost, "/sync?source=ALL")

			Convey("Then every source is synced", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.synced, ShouldResemble, []string{"all"})
			})
		})

		Convey("When a single-source sync fails", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{syncer.ErrBusy, http.StatusConflict, "busy"},
				{syncer.ErrSourceUnreachable, http.StatusBadGateway, "source_unreachable"},
				{syncer.ErrPersistFailure, http.StatusInternalServerError, "persist_failed"},
				{syncer.ErrLoadFailure, http.StatusInternalServerError, "load_failed"},
				{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			}
			for _, c := range cases {
				deps.syncErr = fmt.Errorf("db1: %w", c.err)
				w := serve(mux, http.MethodPost, "/sync?source=db1")
				So(w.Code, ShouldEqual, c.status)
				var body errorBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, c.code)
			}
		})

		Convey("When using GET", func() {
			w := serve(mux, http.MethodGet, "/sync")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)
			So(deps.synced, ShouldBeEmpty)
		})

		Convey("When force is malformed", func() {
			w := serve(mux, http.MethodPost, "/sync?force=sometimes")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.synced, ShouldBeEmpty)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMock()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(context.Background(), mux)

		Convey("When requesting stats", func() {
			w := serve(mux, http.MethodGet, "/stats")

			Convey("Then every source is listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Sources []api.SourceStats `json:"sources"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Sources, ShouldHaveLength, 1)
				So(body.Sources[0].HighWaterMark, ShouldEqual, 3)
			})
		})

		Convey("When stats are unavailable", func() {
			deps.statsErr = service.ErrNotStarted
			w := serve(mux, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When requesting health after some traffic", func() {
			serve(mux, http.MethodGet, "/leaderboard")
			w := serve(mux, http.MethodGet, "/healthz")

			Convey("Then Prometheus metrics are served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "evalboard_http_requests_total")
			})
		})
	})
}

func TestError(t *testing.T) {
	Convey("Given op-tagged errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes are both reachable", func() {
			err := api.WrapKind("api.op", api.ErrSyncFailed, cause)
			So(errors.Is(err, api.ErrSyncFailed), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: sync failed: boom")
		})

		Convey("Then the message names the op", func() {
			So(api.NewKind("api.op", api.ErrBadRequest).Error(), ShouldEqual, "api.op: bad request")
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
		})
	})
}
