package datasets

import (
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/noise"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/rng"
)

// AugmentationFactor is the fixed per-sample replication multiplier applied
// uniformly by the augmentation stage.
const AugmentationFactor = 16

// Fringe overlays use the fixed line counts of the corpus recipe with a
// bounded random amplitude.
var fringeLineCounts = []int{50, 100}

const (
	fringeAmplitudeLo = 0.01
	fringeAmplitudeHi = 0.1
)

// Augment performs one joint random permutation of the samples and all three
// label slices, keeping each field aligned with its physical labels, then
// replicates every sample and label value contiguously by
// AugmentationFactor. Count fields pass through unchanged. The input tensor
// and labels are not modified.
//
// Augment guarantees only the shuffle-and-replicate contract; per-copy noise
// injection is AugmentWithFringes.
func Augment(t *field.Tensor, labels Labels, src *rng.Source) (*field.Tensor, Labels, error) {
	if err := labels.validate(t.N); err != nil {
		return nil, Labels{}, err
	}

	perm := src.Perm(t.N)

	out, err := field.NewTensor(t.N*AugmentationFactor, t.C, t.H, t.W, t.Channels...)
	if err != nil {
		return nil, Labels{}, err
	}
	expanded := Labels{
		CountN2:    labels.CountN2,
		N2:         make([]float64, t.N*AugmentationFactor),
		CountIsat:  labels.CountIsat,
		Isat:       make([]float64, t.N*AugmentationFactor),
		CountAlpha: labels.CountAlpha,
		Alpha:      make([]float64, t.N*AugmentationFactor),
	}

	stride := t.C * t.H * t.W
	for i, p := range perm {
		sample := t.Data[p*stride : (p+1)*stride]
		for k := 0; k < AugmentationFactor; k++ {
			j := i*AugmentationFactor + k
			copy(out.Data[j*stride:(j+1)*stride], sample)
			expanded.N2[j] = labels.N2[p]
			expanded.Isat[j] = labels.Isat[p]
			expanded.Alpha[j] = labels.Alpha[p]
		}
	}
	return out, expanded, nil
}

// AugmentWithFringes is Augment followed by per-copy noise injection: every
// replicated copy after the first gets a sinusoidal fringe overlay at one of
// the fixed line counts (50 or 100), a uniform random angle in [0, 180)
// degrees and a bounded random amplitude, applied to every channel of the
// tensor, then a freshly parameterized elastic-warp/salt-pepper pipeline per
// copy. Augmentation runs before descriptor channels are stacked.
//
// Randomized draws happen in a fixed order (permutation, then per copy:
// line count, angle, amplitude, pipeline parameters, per-channel
// application), so a given seed reproduces the corpus bit for bit.
func AugmentWithFringes(t *field.Tensor, labels Labels, src *rng.Source) (*field.Tensor, Labels, error) {
	out, expanded, err := Augment(t, labels, src)
	if err != nil {
		return nil, Labels{}, err
	}

	for i := 0; i < t.N; i++ {
		for k := 1; k < AugmentationFactor; k++ {
			j := i*AugmentationFactor + k
			lines := fringeLineCounts[src.Intn(len(fringeLineCounts))]
			angle := src.Angle()
			amplitude := src.Uniform(fringeAmplitudeLo, fringeAmplitudeHi)
			pipeline := noise.WarpSpeckle(src)

			for c := 0; c < out.C; c++ {
				g := out.Grid(j, c)
				g = noise.LineFringes(g, lines, amplitude, angle)
				g = pipeline.Apply(g, src)
				if err := out.SetGrid(j, c, g); err != nil {
					return nil, Labels{}, err
				}
			}
		}
	}
	return out, expanded, nil
}
