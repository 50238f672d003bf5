// Package leaderboard turns merged benchmark records into an ordered table
// with pinned reference rows and a per-column summary of winners.
//
// Everything here is a pure transform. Callers may cache or parallelize
// freely.
package leaderboard

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/normalize"
	"github.com/okian/evalboard/internal/domain/parse"
)

// Non-benchmark metric columns, in display order.
const (
	MetricScore = "Score"
	MetricLoss  = "Loss"
	MetricMean  = "Mean"
)

// Direction states which end of a column wins.
type Direction string

// Directions.
const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

// precision per column when formatting summary values.
const (
	scorePrecision   = 6
	defaultPrecision = 4
)

// Table is the ordered leaderboard: pinned rows in definition order, then
// ordinary rows in source order.
type Table struct {
	Rows []model.Row `json:"rows"`
	// Dropped counts source records that shared a pinned name with an
	// earlier record or a fixed definition and were left out.
	Dropped int `json:"dropped,omitempty"`
}

// SummaryEntry names the winning cell of one metric column.
type SummaryEntry struct {
	Metric    string    `json:"metric"`
	Direction Direction `json:"direction"`
	Best      float64   `json:"best"`
	Formatted string    `json:"formatted"`
	Model     string    `json:"model"`
	Row       int       `json:"row"` // position in Table.Rows
}

// Columns returns the metric columns in summary order.
func Columns() []string {
	return append([]string{MetricScore, MetricLoss, MetricMean}, normalize.Benchmarks()...)
}

// DirectionOf reports how metric is ranked. Loss is the only column where
// lower wins.
func DirectionOf(metric string) Direction {
	if metric == MetricLoss {
		return LowerIsBetter
	}
	return HigherIsBetter
}

// Format renders v at the precision used for metric.
func Format(metric string, v float64) string {
	prec := defaultPrecision
	if metric == MetricScore {
		prec = scorePrecision
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// Canonicalize derives the leaderboard row for one record.
func Canonicalize(rec model.RawRecord, mode parse.LossMode) model.Row {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = model.DefaultName(rec.Index)
	}
	row := model.Row{
		Index:      rec.Index,
		Name:       name,
		Parent:     rec.ParentName(),
		Benchmarks: make(map[string]model.Value),
	}
	if rec.Score != nil {
		row.Score = model.Number(*rec.Score).Ptr()
	}
	if loss, ok := parse.Loss(rec.Train, mode); ok {
		row.Loss = &loss
	}

	for label, v := range parse.Benchmarks(rec.Test) {
		if normalize.IsBenchmark(label) {
			row.Benchmarks[label] = v
			continue
		}
		if row.Extra == nil {
			row.Extra = make(map[string]model.Value)
		}
		row.Extra[label] = v
	}
	row.Mean = benchmarkMean(row)
	return row
}

// benchmarkMean averages the numeric benchmark cells, falling back to a
// parsed Average column.
func benchmarkMean(row model.Row) *float64 {
	xs := make([]float64, 0, len(row.Benchmarks))
	for _, label := range normalize.Benchmarks() {
		if f, ok := row.Benchmarks[label].Float(); ok {
			xs = append(xs, f)
		}
	}
	if len(xs) > 0 {
		m := stats.Mean(xs)
		return &m
	}
	return row.Extra[normalize.Average].Ptr()
}

// fixedRow materializes a pinned definition that carries its own values.
func fixedRow(p model.Pinned) model.Row {
	row := model.Row{
		Name:       p.Name,
		Role:       p.Role,
		Benchmarks: make(map[string]model.Value),
	}
	if p.Fixed.Score != nil {
		row.Score = model.Number(*p.Fixed.Score).Ptr()
	}
	if p.Fixed.Loss != nil {
		row.Loss = model.Number(*p.Fixed.Loss).Ptr()
	}
	for label, f := range p.Fixed.Benchmarks {
		label = normalize.Label(label)
		if v := model.Number(f); !v.IsAbsent() {
			if normalize.IsBenchmark(label) {
				row.Benchmarks[label] = v
			} else {
				if row.Extra == nil {
					row.Extra = make(map[string]model.Value)
				}
				row.Extra[label] = v
			}
		}
	}
	row.Mean = benchmarkMean(row)
	return row
}

// Build assembles the table and its summary. Pinned rows come first, SOTA
// rows ahead of baselines and definition order within a role.
//
// A record whose name matches a pinned definition is pinned at most once: a
// definition with fixed values ignores source records of that name, and one
// without takes the first matching record. Later records of a pinned name are
// dropped and counted in Table.Dropped.
func Build(records []model.RawRecord, pinned []model.Pinned, mode parse.LossMode) (Table, []SummaryEntry) {
	defs := uniquePinned(pinned)
	slots := make([]*model.Row, len(defs))
	for i, p := range defs {
		if p.Fixed != nil {
			r := fixedRow(p)
			slots[i] = &r
		}
	}

	var (
		table    Table
		ordinary = make([]model.Row, 0, len(records))
	)
	for _, rec := range records {
		row := Canonicalize(rec, mode)
		slot := matchPinned(defs, row.Name)
		if slot < 0 {
			ordinary = append(ordinary, row)
			continue
		}
		if slots[slot] != nil {
			table.Dropped++
			continue
		}
		row.Role = defs[slot].Role
		slots[slot] = &row
	}

	table.Rows = make([]model.Row, 0, len(defs)+len(ordinary))
	for _, r := range slots {
		if r != nil {
			table.Rows = append(table.Rows, *r)
		}
	}
	// SOTA before baseline whatever order the definitions were listed in.
	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].Role.Rank() < table.Rows[j].Role.Rank()
	})
	table.Rows = append(table.Rows, ordinary...)
	return table, Summarize(table.Rows)
}

// uniquePinned drops definitions with an empty name or one already defined.
func uniquePinned(pinned []model.Pinned) []model.Pinned {
	out := make([]model.Pinned, 0, len(pinned))
	for _, p := range pinned {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" || matchPinned(out, p.Name) >= 0 {
			continue
		}
		if p.Role == model.RoleOrdinary {
			p.Role = model.RoleBaseline
		}
		out = append(out, p)
	}
	return out
}

func matchPinned(defs []model.Pinned, name string) int {
	for i, p := range defs {
		if p.Matches(name) {
			return i
		}
	}
	return -1
}

// Summarize picks the best row of every metric column that has at least one
// numeric value. Ties go to the earliest row.
func Summarize(rows []model.Row) []SummaryEntry {
	columns := Columns()
	out := make([]SummaryEntry, 0, len(columns))
	for _, metric := range columns {
		dir := DirectionOf(metric)
		best := -1
		var bestVal float64
		for i, row := range rows {
			v, ok := MetricValue(row, metric)
			if !ok {
				continue
			}
			if best < 0 || better(dir, v, bestVal) {
				best, bestVal = i, v
			}
		}
		if best < 0 {
			continue
		}
		out = append(out, SummaryEntry{
			Metric:    metric,
			Direction: dir,
			Best:      bestVal,
			Formatted: Format(metric, bestVal),
			Model:     rows[best].Name,
			Row:       best,
		})
	}
	return out
}

func better(dir Direction, v, cur float64) bool {
	if dir == LowerIsBetter {
		return v < cur
	}
	return v > cur
}

// MetricValue returns the numeric value of metric in row.
func MetricValue(row model.Row, metric string) (float64, bool) {
	switch metric {
	case MetricScore:
		return deref(row.Score)
	case MetricLoss:
		return deref(row.Loss)
	case MetricMean:
		return deref(row.Mean)
	default:
		return row.Benchmarks[metric].Float()
	}
}

func deref(f *float64) (float64, bool) {
	if f == nil {
		return 0, false
	}
	return *f, true
}
