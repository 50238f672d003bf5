package leaderboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/normalize"
)

// SortKey selects the column ordinary rows are sorted by.
type SortKey string

// Sort keys. SortNone keeps source order.
const (
	SortNone  SortKey = ""
	SortName  SortKey = "name"
	SortScore SortKey = "score"
	SortLoss  SortKey = "loss"
	SortMean  SortKey = "mean"
)

// ParseSortKey validates a user-supplied sort key.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortName, SortScore, SortLoss, SortMean:
		return k, nil
	default:
		return SortNone, fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
	}
}

// Arrangement describes a view over a table. Pinned rows are never sorted or
// filtered away.
type Arrangement struct {
	Sort      SortKey
	Ascending bool
	// CompleteOnly keeps rows that have every benchmark.
	CompleteOnly bool
	// MinScore and MaxScore bound the score when set. Rows without a score
	// fail any bound.
	MinScore *float64
	MaxScore *float64
}

// Arrange returns a new row slice for the view a. The input is not modified.
func Arrange(rows []model.Row, a Arrangement) []model.Row {
	var pinned, rest []model.Row
	benchmarks := normalize.Benchmarks()
	for _, r := range rows {
		if r.Pinned() {
			pinned = append(pinned, r)
			continue
		}
		if a.CompleteOnly && !r.Complete(benchmarks) {
			continue
		}
		if !inRange(r.Score, a.MinScore, a.MaxScore) {
			continue
		}
		rest = append(rest, r)
	}

	if a.Sort != SortNone {
		sort.SliceStable(rest, func(i, j int) bool {
			return less(rest[i], rest[j], a.Sort, a.Ascending)
		})
	}
	return append(pinned, rest...)
}

func inRange(score, lo, hi *float64) bool {
	if lo == nil && hi == nil {
		return true
	}
	if score == nil {
		return false
	}
	if lo != nil && *score < *lo {
		return false
	}
	if hi != nil && *score > *hi {
		return false
	}
	return true
}

// less orders a before b. Absent values sort last in either direction.
func less(a, b model.Row, key SortKey, asc bool) bool {
	if key == SortName {
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if asc {
			return an < bn
		}
		return an > bn
	}

	var av, bv *float64
	switch key {
	case SortScore:
		av, bv = a.Score, b.Score
	case SortLoss:
		av, bv = a.Loss, b.Loss
	case SortMean:
		av, bv = a.Mean, b.Mean
	}
	switch {
	case av == nil:
		return false
	case bv == nil:
		return true
	case asc:
		return *av < *bv
	default:
		return *av > *bv
	}
}
