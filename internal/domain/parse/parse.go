// Package parse extracts metric values from the CSV-like text embedded in
// benchmark records. Every function here is total: malformed input yields an
// empty or absent result, never an error or a panic.
package parse

import (
	"strconv"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/normalize"
)

// labelColumn is the header that marks the row-label column in benchmark text.
const labelColumn = "model"

// Benchmarks parses a two-line header/value block into canonical labels.
//
// The first column is the row label and is skipped, as is any column whose
// header is empty or "model". Values that do not coerce to a finite number
// are kept as text; empty values are left out. When two headers normalize to
// the same label the later column wins.
func Benchmarks(text string) map[string]model.Value {
	out := make(map[string]model.Value)
	lines, ok := splitLines(text)
	if !ok {
		return out
	}

	headers := splitFields(lines[0])
	values := splitFields(lines[1])
	n := min(len(headers), len(values))
	for i := 1; i < n; i++ {
		header := headers[i]
		if header == "" || strings.EqualFold(header, labelColumn) {
			continue
		}
		v := coerce(values[i])
		if v.IsAbsent() {
			continue
		}
		out[normalize.Label(header)] = v
	}
	return out
}

// Loss derives a single loss figure from a two-line step/loss series using
// mode. The first column of each line is a label and is skipped.
func Loss(text string, mode LossMode) (float64, bool) {
	lines, ok := splitLines(text)
	if !ok {
		return 0, false
	}
	losses := splitFields(lines[1])[1:]

	switch mode.kind {
	case lossAtStep:
		steps := splitFields(lines[0])[1:]
		n := min(len(steps), len(losses))
		for i := 0; i < n; i++ {
			step, err := strconv.Atoi(steps[i])
			if err != nil || step != mode.step {
				continue
			}
			if f, ok := finite(losses[i]); ok {
				return f, true
			}
		}
		return 0, false
	case lossMinimum:
		xs := make([]float64, 0, len(losses))
		for _, l := range losses {
			if f, ok := finite(l); ok {
				xs = append(xs, f)
			}
		}
		if len(xs) == 0 {
			return 0, false
		}
		lo, _ := stats.Bounds(xs)
		return lo, true
	default:
		return 0, false
	}
}

// splitLines unifies line endings, trims the block and returns its lines,
// reporting false when fewer than two remain.
func splitLines(text string) ([]string, bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return nil, false
	}
	return lines, true
}

// splitFields splits a line on commas and trims each field. The result always
// has at least one element.
func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// coerce turns a trimmed cell into a Value.
func coerce(s string) model.Value {
	if s == "" {
		return model.Absent()
	}
	if f, ok := finite(s); ok {
		return model.Number(f)
	}
	return model.Text(s)
}

// finite parses s as a finite float.
func finite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if v := model.Number(f); !v.IsAbsent() {
		return f, true
	}
	return 0, false
}
