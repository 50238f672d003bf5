package model

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the durable local copy of a remote record set.
//
// HighWaterMark counts the remote indices already swept. Every swept index
// is either in Records or in Skipped, so after every successful save
// HighWaterMark == len(Records) + len(Skipped). With no skipped records this
// is the plain HighWaterMark == len(Records).
type Snapshot struct {
	HighWaterMark int
	Records       []RawRecord // fetch order
	Skipped       []int       // indices swept without a usable record, ascending
	LastUpdate    Timestamp
}

// snapshotJSON is the on-disk shape. The legacy keys are read but never written.
type snapshotJSON struct {
	HighWaterMark *int        `json:"high_water_mark,omitempty"`
	LastUpdate    Timestamp   `json:"last_update"`
	Records       []RawRecord `json:"records"`
	Skipped       []int       `json:"skipped,omitempty"`

	LegacyTotal   *int        `json:"total_records_at_last_run,omitempty"`
	LegacyResults []RawRecord `json:"results,omitempty"`
}

// Empty reports whether nothing has been merged yet.
func (s Snapshot) Empty() bool {
	return s.HighWaterMark == 0 && len(s.Records) == 0
}

// Validate checks the high-water-mark invariant and index ordering.
func (s Snapshot) Validate() error {
	if s.HighWaterMark < 0 {
		return fmt.Errorf("negative high water mark %d", s.HighWaterMark)
	}
	if got := len(s.Records) + len(s.Skipped); got != s.HighWaterMark {
		return fmt.Errorf("high water mark %d but %d records and %d skipped", s.HighWaterMark, len(s.Records), len(s.Skipped))
	}
	for _, r := range s.Records {
		if r.Index < 1 || r.Index > s.HighWaterMark {
			return fmt.Errorf("record index %d outside 1..%d", r.Index, s.HighWaterMark)
		}
	}
	return nil
}

// Clone returns a deep enough copy that appending to either side never
// affects the other.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{HighWaterMark: s.HighWaterMark, LastUpdate: s.LastUpdate}
	if s.Records != nil {
		out.Records = append(make([]RawRecord, 0, len(s.Records)), s.Records...)
	}
	if s.Skipped != nil {
		out.Skipped = append(make([]int, 0, len(s.Skipped)), s.Skipped...)
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	mark := s.HighWaterMark
	records := s.Records
	if records == nil {
		records = []RawRecord{}
	}
	return json.Marshal(snapshotJSON{
		HighWaterMark: &mark,
		LastUpdate:    s.LastUpdate,
		Records:       records,
		Skipped:       s.Skipped,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Files written by the older
// tooling carry total_records_at_last_run/results and no skipped list; the
// missing indices are reconstructed so the invariant holds after loading.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Snapshot{LastUpdate: raw.LastUpdate, Records: raw.Records, Skipped: raw.Skipped}
	switch {
	case raw.HighWaterMark != nil:
		out.HighWaterMark = *raw.HighWaterMark
	case raw.LegacyTotal != nil:
		out.HighWaterMark = *raw.LegacyTotal
		if out.Records == nil {
			out.Records = raw.LegacyResults
		}
	default:
		out.HighWaterMark = len(out.Records)
	}

	if raw.HighWaterMark == nil && out.Skipped == nil {
		out.Skipped = missingIndices(out.HighWaterMark, out.Records)
	}
	*s = out
	return nil
}

// missingIndices lists the indices in 1..mark that no record carries.
func missingIndices(mark int, records []RawRecord) []int {
	present := make(map[int]struct{}, len(records))
	for _, r := range records {
		present[r.Index] = struct{}{}
	}
	var missing []int
	for i := 1; i <= mark; i++ {
		if _, ok := present[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
