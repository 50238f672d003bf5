package leaderboard

import (
	"sort"

	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/normalize"
)

// Stats are headline figures for a table.
type Stats struct {
	Models   int      `json:"models"`   // ordinary rows
	Complete int      `json:"complete"` // ordinary rows with every benchmark
	MaxScore *float64 `json:"max_score"`
	SOTAMean *float64 `json:"sota_mean"`
}

// Summary computes Stats over rows.
func Summary(rows []model.Row) Stats {
	var st Stats
	benchmarks := normalize.Benchmarks()
	for _, r := range rows {
		if r.Role == model.RoleSOTA && st.SOTAMean == nil {
			st.SOTAMean = r.Mean
		}
		if r.Pinned() {
			continue
		}
		st.Models++
		if r.Complete(benchmarks) {
			st.Complete++
		}
		if r.Score != nil && (st.MaxScore == nil || *r.Score > *st.MaxScore) {
			s := *r.Score
			st.MaxScore = &s
		}
	}
	return st
}

// TopByScore returns up to n ordinary rows with the highest score. Rows
// without a score are left out; ties keep table order.
func TopByScore(rows []model.Row, n int) []model.Row {
	if n <= 0 {
		return nil
	}
	scored := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		if !r.Pinned() && r.Score != nil {
			scored = append(scored, r)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].Score > *scored[j].Score
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}
