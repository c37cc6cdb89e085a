// Package noise synthesizes the measurement artifacts that clean simulated
// fields lack: detector shot and electronic noise, optical-setup fringing,
// and randomized elastic/impulse corruption for augmentation.
//
// Every randomized function takes the shared rng.Source; calls must happen in
// a fixed order for a given seed to stay reproducible.
package noise

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/rng"
)

// ComplexField adds detector noise to a complex beam: per-pixel Poisson draws
// scaled by 0.75*lambda (shot noise) plus zero-mean Gaussian draws with the
// given sigma (electronic noise), both added to the real part only. The
// imaginary part is left untouched because only the amplitude/intensity
// channel is photon-noise-limited in the measurement model.
//
// Draw order is row-major, the full Poisson grid first, then the Gaussian
// grid.
func ComplexField(beam *field.ComplexGrid, poissonLambda, normalSigma float64, src *rng.Source) *field.ComplexGrid {
	poisson := distuv.Poisson{Lambda: poissonLambda, Src: src}
	normal := distuv.Normal{Mu: 0, Sigma: normalSigma, Src: src}

	total := make([]float64, len(beam.Data))
	for i := range total {
		total[i] = poisson.Rand() * poissonLambda * 0.75
	}
	for i := range total {
		total[i] += normal.Rand()
	}

	out := field.NewComplexGrid(beam.H, beam.W)
	for i, v := range beam.Data {
		out.Data[i] = complex(real(v)+float32(total[i]), imag(v))
	}
	return out
}

// LineFringes overlays a sinusoidal interference pattern on img: the pixel
// coordinate grid is rotated by angleDeg and modulated by a sine whose
// spatial frequency puts exactly numLines full periods across the image
// diagonal. Returns a new grid.
func LineFringes(img *field.Grid, numLines int, amplitude, angleDeg float64) *field.Grid {
	angle := angleDeg * math.Pi / 180
	cos, sin := math.Cos(angle), math.Sin(angle)
	diagonal := math.Sqrt(float64(img.W*img.W + img.H*img.H))
	freq := float64(numLines) * 2 * math.Pi / diagonal

	out := img.Clone()
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			rotated := float64(x)*cos + float64(y)*sin
			out.Data[y*img.W+x] += float32(amplitude * math.Sin(rotated*freq))
		}
	}
	return out
}
