package noise

import (
	"math"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/rng"
)

// Elastic warp and salt-and-pepper defaults. The sigma range and impulse
// density bounds follow the augmentation recipe the training corpus was
// built with.
const (
	elasticKernelSize = 51
	elasticSigmaLo    = 35
	elasticSigmaHi    = 42
	elasticSigmaStep  = 2
	elasticAlpha      = 1.0
	elasticProb       = 0.5

	saltPepperLo   = 0.01
	saltPepperHi   = 0.11
	saltRatio      = 0.5
	saltPepperProb = 0.2
)

// Pipeline is one randomized parameterization of the elastic-warp plus
// salt-and-pepper transform. Build a fresh one per augmented copy with
// WarpSpeckle; a Pipeline is not safe for concurrent use.
type Pipeline struct {
	KernelSize     int
	SigmaY, SigmaX float64
	AlphaY, AlphaX float64
	Amount         float64

	elasticProb float64
	saltProb    float64
}

// WarpSpeckle draws a new transform parameterization: elastic warp sigma per
// axis from {35, 37, 39, 41} and impulse density uniform in [0.01, 0.11).
// Each call consumes three draws from src and diversifies repeated copies.
func WarpSpeckle(src *rng.Source) *Pipeline {
	return &Pipeline{
		KernelSize:  elasticKernelSize,
		SigmaY:      float64(src.Step(elasticSigmaLo, elasticSigmaHi, elasticSigmaStep)),
		SigmaX:      float64(src.Step(elasticSigmaLo, elasticSigmaHi, elasticSigmaStep)),
		AlphaY:      elasticAlpha,
		AlphaX:      elasticAlpha,
		Amount:      src.Uniform(saltPepperLo, saltPepperHi),
		elasticProb: elasticProb,
		saltProb:    saltPepperProb,
	}
}

// Apply runs the pipeline on g: the elastic warp fires with probability 0.5,
// the salt-and-pepper stage with probability 0.2. Two probability draws are
// always consumed, so the stream stays aligned whether or not a stage fires.
func (p *Pipeline) Apply(g *field.Grid, src *rng.Source) *field.Grid {
	out := g
	warp := src.Float64() < p.elasticProb
	if warp {
		out = p.elasticWarp(out, src)
	}
	speckle := src.Float64() < p.saltProb
	if speckle {
		out = p.saltAndPepper(out, src)
	} else if out == g {
		out = g.Clone()
	}
	return out
}

// elasticWarp displaces each pixel by a smoothed random field expressed in
// normalized [-1, 1] coordinates, then resamples bilinearly with edge clamp.
func (p *Pipeline) elasticWarp(g *field.Grid, src *rng.Source) *field.Grid {
	dispY := randomField(g.H, g.W, src)
	dispX := randomField(g.H, g.W, src)
	gaussianBlur(dispY, g.H, g.W, p.KernelSize, p.SigmaY)
	gaussianBlur(dispX, g.H, g.W, p.KernelSize, p.SigmaX)

	out := field.NewGrid(g.H, g.W)
	halfH := float64(g.H-1) / 2
	halfW := float64(g.W-1) / 2
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			i := y*g.W + x
			// Normalized coordinates plus displacement, mapped back to pixels.
			ny := (float64(y)-halfH)/halfH + dispY[i]*p.AlphaY
			nx := (float64(x)-halfW)/halfW + dispX[i]*p.AlphaX
			sy := ny*halfH + halfH
			sx := nx*halfW + halfW
			out.Data[i] = bilinear(g, sy, sx)
		}
	}
	return out
}

func (p *Pipeline) saltAndPepper(g *field.Grid, src *rng.Source) *field.Grid {
	out := g.Clone()
	for i := range out.Data {
		if src.Float64() >= p.Amount {
			continue
		}
		if src.Float64() < saltRatio {
			out.Data[i] = 1
		} else {
			out.Data[i] = 0
		}
	}
	return out
}

func randomField(h, w int, src *rng.Source) []float64 {
	f := make([]float64, h*w)
	for i := range f {
		f[i] = src.Uniform(-1, 1)
	}
	return f
}

// gaussianBlur smooths f in place with a separable kernel.
func gaussianBlur(f []float64, h, w, size int, sigma float64) {
	kernel := gaussianKernel(size, sigma)
	radius := size / 2

	tmp := make([]float64, len(f))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				xx := clampInt(x+k, 0, w-1)
				sum += f[y*w+xx] * kernel[k+radius]
			}
			tmp[y*w+x] = sum
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				yy := clampInt(y+k, 0, h-1)
				sum += tmp[yy*w+x] * kernel[k+radius]
			}
			f[y*w+x] = sum
		}
	}
}

func gaussianKernel(size int, sigma float64) []float64 {
	kernel := make([]float64, size)
	radius := size / 2
	var sum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func bilinear(g *field.Grid, y, x float64) float32 {
	y = clampFloat(y, 0, float64(g.H-1))
	x = clampFloat(x, 0, float64(g.W-1))
	y0, x0 := int(y), int(x)
	y1, x1 := clampInt(y0+1, 0, g.H-1), clampInt(x0+1, 0, g.W-1)
	fy, fx := float32(y-float64(y0)), float32(x-float64(x0))

	top := g.At(y0, x0)*(1-fx) + g.At(y0, x1)*fx
	bottom := g.At(y1, x0)*(1-fx) + g.At(y1, x1)*fx
	return top*(1-fy) + bottom*fy
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
