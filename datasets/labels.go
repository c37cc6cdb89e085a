// Package datasets prepares the synthetic training corpus: it carries the
// physical-parameter labels alongside field tensors, expands the base corpus
// by shuffle-and-replicate augmentation with structured fringe noise, splits
// it into train/validation/test partitions, and exposes the result through a
// gomlx-compatible dataset for the training loop.
package datasets

import (
	"fmt"
)

// Labels is the six-element label tuple attached to a field dataset. Each
// value slice holds one entry per sample; the Count fields record how many
// distinct discretized levels the parameter takes across the full synthetic
// grid; they are bookkeeping only and augmentation never changes them.
type Labels struct {
	CountN2    int
	N2         []float64
	CountIsat  int
	Isat       []float64
	CountAlpha int
	Alpha      []float64
}

// Len returns the number of labeled samples.
func (l Labels) Len() int { return len(l.N2) }

// validate checks the core alignment invariant: all three label slices must
// have exactly one entry per dataset sample.
func (l Labels) validate(samples int) error {
	if len(l.N2) != samples || len(l.Isat) != samples || len(l.Alpha) != samples {
		return fmt.Errorf("label lengths (n2=%d, isat=%d, alpha=%d) do not match %d samples",
			len(l.N2), len(l.Isat), len(l.Alpha), samples)
	}
	return nil
}
