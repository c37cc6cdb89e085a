package datasets

import (
	"fmt"
	"math"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
)

// ratioTolerance absorbs float addition error when checking that the split
// ratios sum to one; (0.8, 0.1, 0.1) passes, (0.8, 0.1, 0.2) fails.
const ratioTolerance = 1e-9

// Subset is one partition of a labeled dataset.
type Subset struct {
	Data  *field.Tensor
	N2    []float64
	Isat  []float64
	Alpha []float64
}

// Split partitions the dataset into three contiguous, non-overlapping,
// order-preserving ranges along the sample axis: [0, floor(N*train)),
// [floor(N*train), floor(N*(train+val))) and the remainder. No shuffling
// happens here; callers wanting an unbiased split must randomize order first
// (Augment already does). The ratios must sum exactly to one.
func Split(t *field.Tensor, n2, isat, alpha []float64, trainRatio, valRatio, testRatio float64) (train, val, test Subset, err error) {
	if math.Abs(trainRatio+valRatio+testRatio-1) > ratioTolerance {
		err = fmt.Errorf("split ratios (%g, %g, %g) must sum to 1", trainRatio, valRatio, testRatio)
		return
	}
	labels := Labels{N2: n2, Isat: isat, Alpha: alpha}
	if err = labels.validate(t.N); err != nil {
		return
	}

	trainIndex := int(float64(t.N) * trainRatio)
	valIndex := int(float64(t.N) * (trainRatio + valRatio))

	if train, err = subset(t, n2, isat, alpha, 0, trainIndex); err != nil {
		return
	}
	if val, err = subset(t, n2, isat, alpha, trainIndex, valIndex); err != nil {
		return
	}
	test, err = subset(t, n2, isat, alpha, valIndex, t.N)
	return
}

func subset(t *field.Tensor, n2, isat, alpha []float64, lo, hi int) (Subset, error) {
	data, err := t.SliceSamples(lo, hi)
	if err != nil {
		return Subset{}, err
	}
	return Subset{
		Data:  data,
		N2:    append([]float64(nil), n2[lo:hi]...),
		Isat:  append([]float64(nil), isat[lo:hi]...),
		Alpha: append([]float64(nil), alpha[lo:hi]...),
	}, nil
}
