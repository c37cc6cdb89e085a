package field

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// Resample rescales g to h by w using separable natural cubic splines, the
// high-order interpolation the network's fixed training resolution calls for.
// Rows are resampled first, then columns.
func Resample(g *Grid, h, w int) (*Grid, error) {
	if h < 2 || w < 2 {
		return nil, fmt.Errorf("target resolution %dx%d too small", h, w)
	}
	if g.H < 2 || g.W < 2 {
		return nil, fmt.Errorf("source grid %dx%d too small to interpolate", g.H, g.W)
	}

	// Horizontal pass: g.H rows of length g.W -> length w.
	horiz := NewGrid(g.H, w)
	xs := coords(g.W)
	ys := make([]float64, g.W)
	var spline interp.NaturalCubic
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			ys[x] = float64(g.At(y, x))
		}
		if err := spline.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("fit row %d: %w", y, err)
		}
		scale := float64(g.W-1) / float64(w-1)
		for x := 0; x < w; x++ {
			horiz.Set(y, x, float32(spline.Predict(float64(x)*scale)))
		}
	}

	// Vertical pass: w columns of length g.H -> length h.
	out := NewGrid(h, w)
	xs = coords(g.H)
	ys = make([]float64, g.H)
	for x := 0; x < w; x++ {
		for y := 0; y < g.H; y++ {
			ys[y] = float64(horiz.At(y, x))
		}
		if err := spline.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("fit column %d: %w", x, err)
		}
		scale := float64(g.H-1) / float64(h-1)
		for y := 0; y < h; y++ {
			out.Set(y, x, float32(spline.Predict(float64(y)*scale)))
		}
	}
	return out, nil
}

func coords(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}
