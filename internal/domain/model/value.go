package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

// Value kinds.
const (
	KindAbsent ValueKind = iota
	KindNumber
	KindText
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "absent"
	}
}

// Value is a parsed metric cell: a finite number, the original text when the
// cell did not coerce, or nothing. The zero Value is absent.
type Value struct {
	kind ValueKind
	num  float64
	text string
}

// Number returns a numeric Value. Non-finite input yields an absent Value.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a textual Value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Absent returns the absent Value.
func Absent() Value { return Value{} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether v holds nothing.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Float returns the number held by v, if any.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Str returns the text held by v, if any.
func (v Value) Str() (string, bool) {
	return v.text, v.kind == KindText
}

// Ptr returns a pointer to the number held by v or nil.
func (v Value) Ptr() *float64 {
	if v.kind != KindNumber {
		return nil
	}
	f := v.num
	return &f
}

// String renders v for logs and text output.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and absent as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}
