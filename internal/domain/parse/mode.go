package parse

import (
	"fmt"
	"strings"
)

// Loss mode names accepted by ParseLossMode.
const (
	ModeAtStep  = "at_step"
	ModeMinimum = "minimum"
)

type lossKind uint8

const (
	lossNone lossKind = iota
	lossAtStep
	lossMinimum
)

// LossMode selects how Loss reduces a training series to one number.
// The zero LossMode never yields a value.
type LossMode struct {
	kind lossKind
	step int
}

// AtStep picks the loss recorded at exactly step.
func AtStep(step int) LossMode { return LossMode{kind: lossAtStep, step: step} }

// Minimum picks the lowest loss in the series.
func Minimum() LossMode { return LossMode{kind: lossMinimum} }

// ParseLossMode builds a LossMode from its configuration name.
func ParseLossMode(name string, step int) (LossMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ModeAtStep:
		if step <= 0 {
			return LossMode{}, fmt.Errorf("%w: step must be positive, got %d", ErrUnknownLossMode, step)
		}
		return AtStep(step), nil
	case ModeMinimum:
		return Minimum(), nil
	default:
		return LossMode{}, fmt.Errorf("%w: %q", ErrUnknownLossMode, name)
	}
}

// Step returns the target step for AtStep modes.
func (m LossMode) Step() (int, bool) { return m.step, m.kind == lossAtStep }

// String returns the configuration name of m, with the step for AtStep.
func (m LossMode) String() string {
	switch m.kind {
	case lossAtStep:
		return fmt.Sprintf("%s(%d)", ModeAtStep, m.step)
	case lossMinimum:
		return ModeMinimum
	default:
		return "none"
	}
}
