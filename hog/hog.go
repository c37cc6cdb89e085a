// Package hog computes a dense gradient-orientation histogram descriptor
// image for a single-channel grid. The rendered image has the same spatial
// size as the input and is stacked as an extra channel next to the raw
// density and phase channels. The computation is fully deterministic.
package hog

import (
	"fmt"
	"math"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
)

// Options control the descriptor geometry. The training corpus uses the
// defaults: 8 unsigned orientation bins, 6x6 pixel cells, 2x2 cell blocks.
type Options struct {
	Orientations int
	CellSize     int
	BlockSize    int
}

// DefaultOptions returns the geometry the network was trained with.
func DefaultOptions() Options {
	return Options{Orientations: 8, CellSize: 6, BlockSize: 2}
}

// Descriptor renders the gradient-orientation histogram image of g. Each
// cell accumulates the average gradient magnitude per orientation bin, and
// the bin weights are drawn as oriented lines through the cell center. The
// block size only affects the flattened feature vector, not the rendered
// image, and is validated here for configuration sanity.
func Descriptor(g *field.Grid, opts Options) (*field.Grid, error) {
	if opts.Orientations <= 0 || opts.CellSize <= 0 || opts.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid hog options %+v", opts)
	}
	cellsY := g.H / opts.CellSize
	cellsX := g.W / opts.CellSize
	if cellsY < opts.BlockSize || cellsX < opts.BlockSize {
		return nil, fmt.Errorf("grid %dx%d too small for %dx%d cells in %dx%d blocks",
			g.H, g.W, opts.CellSize, opts.CellSize, opts.BlockSize, opts.BlockSize)
	}

	hist := cellHistograms(g, opts, cellsY, cellsX)
	return render(hist, g.H, g.W, opts, cellsY, cellsX), nil
}

// cellHistograms bins central-difference gradients into per-cell orientation
// histograms. Orientations are unsigned, folded onto [0, 180) degrees, and
// each cell's votes are averaged over its pixel count.
func cellHistograms(g *field.Grid, opts Options, cellsY, cellsX int) []float64 {
	gy := make([]float64, g.H*g.W)
	gx := make([]float64, g.H*g.W)
	for y := 1; y < g.H-1; y++ {
		for x := 0; x < g.W; x++ {
			gy[y*g.W+x] = float64(g.At(y+1, x)) - float64(g.At(y-1, x))
		}
	}
	for y := 0; y < g.H; y++ {
		for x := 1; x < g.W-1; x++ {
			gx[y*g.W+x] = float64(g.At(y, x+1)) - float64(g.At(y, x-1))
		}
	}

	binWidth := 180.0 / float64(opts.Orientations)
	cellArea := float64(opts.CellSize * opts.CellSize)
	hist := make([]float64, cellsY*cellsX*opts.Orientations)

	for cy := 0; cy < cellsY; cy++ {
		for cx := 0; cx < cellsX; cx++ {
			base := (cy*cellsX + cx) * opts.Orientations
			for dy := 0; dy < opts.CellSize; dy++ {
				for dx := 0; dx < opts.CellSize; dx++ {
					i := (cy*opts.CellSize+dy)*g.W + cx*opts.CellSize + dx
					mag := math.Hypot(gy[i], gx[i])
					if mag == 0 {
						continue
					}
					deg := math.Atan2(gy[i], gx[i]) * 180 / math.Pi
					deg = math.Mod(deg, 180)
					if deg < 0 {
						deg += 180
					}
					bin := int(deg / binWidth)
					if bin >= opts.Orientations {
						bin = opts.Orientations - 1
					}
					hist[base+bin] += mag / cellArea
				}
			}
		}
	}
	return hist
}

// render draws each cell's histogram as lines through the cell center, one
// per orientation bin, with intensity equal to the bin weight.
func render(hist []float64, h, w int, opts Options, cellsY, cellsX int) *field.Grid {
	out := field.NewGrid(h, w)
	radius := float64(opts.CellSize/2 - 1)

	// Precompute line direction per bin midpoint.
	dr := make([]float64, opts.Orientations)
	dc := make([]float64, opts.Orientations)
	for o := 0; o < opts.Orientations; o++ {
		mid := math.Pi * (float64(o) + 0.5) / float64(opts.Orientations)
		dr[o] = radius * math.Sin(mid)
		dc[o] = radius * math.Cos(mid)
	}

	for cy := 0; cy < cellsY; cy++ {
		for cx := 0; cx < cellsX; cx++ {
			centreY := cy*opts.CellSize + opts.CellSize/2
			centreX := cx*opts.CellSize + opts.CellSize/2
			base := (cy*cellsX + cx) * opts.Orientations
			for o := 0; o < opts.Orientations; o++ {
				weight := hist[base+o]
				if weight == 0 {
					continue
				}
				drawLine(out,
					centreY-int(dc[o]), centreX+int(dr[o]),
					centreY+int(dc[o]), centreX-int(dr[o]),
					float32(weight))
			}
		}
	}
	return out
}

// drawLine adds v along the Bresenham line between the two endpoints,
// inclusive, skipping out-of-bounds pixels.
func drawLine(g *field.Grid, y0, x0, y1, x1 int, v float32) {
	dy := abs(y1 - y0)
	dx := abs(x1 - x0)
	sy, sx := 1, 1
	if y0 > y1 {
		sy = -1
	}
	if x0 > x1 {
		sx = -1
	}
	err := dx - dy
	y, x := y0, x0
	for {
		if y >= 0 && y < g.H && x >= 0 && x < g.W {
			g.Data[y*g.W+x] += v
		}
		if y == y1 && x == x1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
