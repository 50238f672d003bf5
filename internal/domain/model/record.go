// Package model contains the domain types passed between layers: records as
// fetched from a source, the persisted snapshot, and canonical leaderboard rows.
package model

import "fmt"

// RawRecord is one benchmark run as returned by the remote source. It is
// immutable once fetched.
type RawRecord struct {
	Index     int       `json:"index"`              // 1-based, assigned by the source
	Name      string    `json:"name"`               // model identifier
	Parent    *string   `json:"parent"`             // name of the record this run derives from
	Test      string    `json:"test"`               // embedded benchmark rows
	Train     string    `json:"train"`              // embedded step/loss series
	Score     *float64  `json:"score,omitempty"`    // optional source-side score
	FetchedAt Timestamp `json:"timestamp,omitzero"` // when the record was merged
}

// DefaultName is the name given to a record the source returned without one.
func DefaultName(index int) string {
	return fmt.Sprintf("model_%d", index)
}

// ParentName returns the parent reference or "" when there is none.
func (r RawRecord) ParentName() string {
	if r.Parent == nil {
		return ""
	}
	return *r.Parent
}
