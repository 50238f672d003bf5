package model

import "strings"

// Role places a row in the leaderboard.
type Role string

// Row roles. Pinned roles sort ahead of ordinary rows in the order listed here.
const (
	RoleOrdinary Role = ""
	RoleSOTA     Role = "sota"
	RoleBaseline Role = "baseline"
)

// Rank orders pinned roles: SOTA rows first, then baselines. Ordinary rows
// rank last.
func (r Role) Rank() int {
	switch r {
	case RoleSOTA:
		return 0
	case RoleBaseline:
		return 1
	default:
		return 2
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOrdinary, RoleSOTA, RoleBaseline:
		return true
	}
	return false
}

// Row is the canonical, derived view of one record. Rows are recomputed on
// every pipeline run and never persisted.
type Row struct {
	Index      int              `json:"index,omitempty"`
	Name       string           `json:"name"`
	Parent     string           `json:"parent,omitempty"`
	Role       Role             `json:"role,omitempty"`
	Score      *float64         `json:"score"`
	Loss       *float64         `json:"loss"`
	Mean       *float64         `json:"mean"`
	Benchmarks map[string]Value `json:"benchmarks"`
	Extra      map[string]Value `json:"extra,omitempty"` // parsed columns outside the benchmark set
}

// Pinned reports whether the row holds a reserved position.
func (r Row) Pinned() bool { return r.Role != RoleOrdinary }

// Complete reports whether every benchmark in names has a value.
func (r Row) Complete(names []string) bool {
	for _, name := range names {
		if r.Benchmarks[name].IsAbsent() {
			return false
		}
	}
	return true
}

// Pinned describes a reserved leaderboard position. A definition with Fixed
// metrics is injected as-is; one without takes its values from the first
// source record whose name matches.
type Pinned struct {
	Name  string        `koanf:"name" json:"name"`
	Role  Role          `koanf:"role" json:"role"`
	Fixed *FixedMetrics `koanf:"fixed" json:"fixed,omitempty"`
}

// Matches reports whether name refers to this definition, ignoring case.
func (p Pinned) Matches(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), p.Name)
}

// FixedMetrics are hard-coded values for a pinned row that has no source record.
type FixedMetrics struct {
	Score      *float64           `koanf:"score" json:"score,omitempty"`
	Loss       *float64           `koanf:"loss" json:"loss,omitempty"`
	Benchmarks map[string]float64 `koanf:"benchmarks" json:"benchmarks,omitempty"`
}
