package datasets

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/rng"
)

// FieldDataset presents an augmented field tensor and its labels as a
// dataset the gomlx training loop can consume: Yield walks the samples in
// batches as (N, C, H, W) input tensors and (N, 3) label tensors holding the
// (n2, isat, alpha) triplet per sample.
type FieldDataset struct {
	// BatchSize for yielding batches.
	BatchSize int

	tensor *field.Tensor
	labels Labels

	// order maps dataset position to sample index; identity until Shuffle.
	order  []int
	cursor int
}

// NewFieldDataset wraps a tensor and its labels. Label lengths must match
// the tensor's sample count.
func NewFieldDataset(t *field.Tensor, labels Labels) (*FieldDataset, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	if err := labels.validate(t.N); err != nil {
		return nil, err
	}
	order := make([]int, t.N)
	for i := range order {
		order[i] = i
	}
	return &FieldDataset{
		BatchSize: 32,
		tensor:    t,
		labels:    labels,
		order:     order,
	}, nil
}

// Len returns the number of samples.
func (d *FieldDataset) Len() int { return d.tensor.N }

// Example returns the flattened (C*H*W) input and the (n2, isat, alpha)
// label triplet for the example at position i.
func (d *FieldDataset) Example(i int) (inputs []float32, labels []float32, err error) {
	if i < 0 || i >= d.Len() {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", i, d.Len())
	}
	s := d.order[i]
	stride := d.tensor.C * d.tensor.H * d.tensor.W
	inputs = make([]float32, stride)
	copy(inputs, d.tensor.Data[s*stride:(s+1)*stride])
	labels = []float32{
		float32(d.labels.N2[s]),
		float32(d.labels.Isat[s]),
		float32(d.labels.Alpha[s]),
	}
	return inputs, labels, nil
}

// Batch returns inputs and labels for the provided positions.
func (d *FieldDataset) Batch(indices []int) (inputs [][]float32, labels [][]float32, err error) {
	inputs = make([][]float32, len(indices))
	labels = make([][]float32, len(indices))
	for pos, idx := range indices {
		inputs[pos], labels[pos], err = d.Example(idx)
		if err != nil {
			return nil, nil, err
		}
	}
	return inputs, labels, nil
}

// Shuffle permutes the iteration order. Labels follow their samples.
func (d *FieldDataset) Shuffle(src *rng.Source) {
	src.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
	d.cursor = 0
}

// Tensors converts the examples at the given positions into a pair of gomlx
// tensors shaped (batch, C, H, W) and (batch, 3).
func (d *FieldDataset) Tensors(indices []int) (inputs, labels *tensors.Tensor, err error) {
	stride := d.tensor.C * d.tensor.H * d.tensor.W
	flatInputs := make([]float32, len(indices)*stride)
	flatLabels := make([]float32, len(indices)*3)
	for pos, idx := range indices {
		in, lab, err := d.Example(idx)
		if err != nil {
			return nil, nil, err
		}
		copy(flatInputs[pos*stride:], in)
		copy(flatLabels[pos*3:], lab)
	}
	inputs = tensors.FromFlatDataAndDimensions(flatInputs, len(indices), d.tensor.C, d.tensor.H, d.tensor.W)
	labels = tensors.FromFlatDataAndDimensions(flatLabels, len(indices), 3)
	return inputs, labels, nil
}

// Name returns the dataset name for gomlx reporting.
func (d *FieldDataset) Name() string { return "FieldDataset" }

// Yield returns the next batch for the gomlx Dataset interface, io.EOF once
// the epoch is exhausted. Restart begins a new epoch.
func (d *FieldDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= d.Len() {
		return nil, nil, nil, io.EOF
	}
	end := d.cursor + d.BatchSize
	if end > d.Len() {
		end = d.Len()
	}
	indices := make([]int, end-d.cursor)
	for i := range indices {
		indices[i] = d.cursor + i
	}
	d.cursor = end

	in, lab, err := d.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{lab}, nil
}

// Restart resets the epoch cursor.
func (d *FieldDataset) Restart() error {
	d.cursor = 0
	return nil
}
