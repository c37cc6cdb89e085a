package field

import (
	"fmt"
)

// normalizePlane rescales one flat plane into [0, 1] in place. It returns an
// error when the plane has zero range, since dividing by it would flood the
// pipeline with non-finite values.
func normalizePlane(plane []float32) error {
	lo, hi := plane[0], plane[0]
	for _, v := range plane[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return fmt.Errorf("degenerate plane: min == max == %g", lo)
	}
	// Divide rather than multiply by a reciprocal so the extremes land on
	// exactly 0 and 1 and a second pass is a strict no-op.
	span := hi - lo
	for i := range plane {
		plane[i] = (plane[i] - lo) / span
	}
	return nil
}

// NormalizeGrid returns a copy of g min-max rescaled to [0, 1]. Applying it
// twice is a no-op. A zero-range grid is rejected.
func NormalizeGrid(g *Grid) (*Grid, error) {
	out := g.Clone()
	if err := normalizePlane(out.Data); err != nil {
		return nil, err
	}
	return out, nil
}

// Normalize returns a copy of t in which every (sample, channel) plane is
// independently min-max rescaled to [0, 1]. The input is not modified; the
// caller owns the returned tensor. Any plane with zero range is an error,
// reported with its indices.
func Normalize(t *Tensor) (*Tensor, error) {
	out := t.Clone()
	for n := 0; n < out.N; n++ {
		for c := 0; c < out.C; c++ {
			if err := normalizePlane(out.slice(n, c)); err != nil {
				return nil, fmt.Errorf("normalize sample %d channel %d: %w", n, c, err)
			}
		}
	}
	return out, nil
}

// CanonicalizePhaseSign resolves the sign ambiguity the upstream phase
// unwrapping leaves behind. When the center value exceeds the corner value
// the whole grid is shifted down by its maximum; when the center is negative
// it is shifted up by its minimum; either way the result is the absolute
// value. An exact center/corner tie skips the shift and keeps only the
// absolute value.
func CanonicalizePhaseSign(g *Grid) *Grid {
	out := g.Clone()
	center := out.At(out.H/2, out.W/2)
	corner := out.At(0, 0)

	switch {
	case center > corner:
		max := out.Data[0]
		for _, v := range out.Data[1:] {
			if v > max {
				max = v
			}
		}
		for i := range out.Data {
			out.Data[i] -= max
		}
	case center < 0:
		min := out.Data[0]
		for _, v := range out.Data[1:] {
			if v < min {
				min = v
			}
		}
		for i := range out.Data {
			out.Data[i] -= min
		}
	}
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = -v
		}
	}
	return out
}
