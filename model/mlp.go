package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
)

func init() {
	Register("mlp", func(cfg Config) (Predictor, error) { return NewMLP(cfg) })
}

// TrainingSource is the minimal view of a dataset the MLP trainer needs.
// datasets.FieldDataset satisfies it.
type TrainingSource interface {
	Len() int
	// Example returns the flattened (C*H*W) input and the
	// (n2, isat, alpha) label triplet at position i.
	Example(i int) (inputs []float32, labels []float32, err error)
}

// MLP is a reference predictor: each input channel is mean-pooled onto a
// PoolCells x PoolCells grid and the pooled features feed a small
// fully-connected network with three linear outputs. It exists so the
// pipeline can be exercised end to end without an accelerator; heavier
// convolutional variants register themselves under their own names.
type MLP struct {
	Config Config

	// layerSizes is input size, hidden sizes, then the three outputs.
	layerSizes []int

	// weights[l] has shape [out][in] for layer l -> l+1.
	weights [][][]float32
	biases  [][]float32

	rng *rand.Rand
}

const outputDim = 3

// NewMLP builds an untrained MLP from cfg, filling in defaults: one hidden
// layer of 64, learning rate 1e-3, 10 epochs, batch size 8, 8x8 pooling.
func NewMLP(cfg Config) (*MLP, error) {
	if cfg.Resolution <= 0 || cfg.InChannels <= 0 {
		return nil, fmt.Errorf("mlp needs a positive resolution and channel count, got %dx%d",
			cfg.Resolution, cfg.InChannels)
	}
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 8
	}
	if cfg.PoolCells == 0 {
		cfg.PoolCells = 8
	}
	if cfg.PoolCells > cfg.Resolution {
		return nil, fmt.Errorf("pool grid %d exceeds resolution %d", cfg.PoolCells, cfg.Resolution)
	}

	m := &MLP{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	inputDim := cfg.InChannels * cfg.PoolCells * cfg.PoolCells
	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, inputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, outputDim)
	m.layerSizes = sizes

	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in, out := sizes[l], sizes[l+1]
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		mat := make([][]float32, out)
		for j := range mat {
			row := make([]float32, in)
			for i := range row {
				row[i] = (m.rng.Float32()*2 - 1) * limit * 0.5
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}
	return m, nil
}

// pool mean-pools one flattened (C, H, W) sample onto the feature vector the
// dense layers expect.
func (m *MLP) pool(flat []float32) []float32 {
	c, res, cells := m.Config.InChannels, m.Config.Resolution, m.Config.PoolCells
	features := make([]float32, c*cells*cells)
	plane := res * res
	for ch := 0; ch < c; ch++ {
		for py := 0; py < cells; py++ {
			y0, y1 := py*res/cells, (py+1)*res/cells
			for px := 0; px < cells; px++ {
				x0, x1 := px*res/cells, (px+1)*res/cells
				var sum float32
				for y := y0; y < y1; y++ {
					base := ch*plane + y*res
					for x := x0; x < x1; x++ {
						sum += flat[base+x]
					}
				}
				features[(ch*cells+py)*cells+px] = sum / float32((y1-y0)*(x1-x0))
			}
		}
	}
	return features
}

// forward runs one pooled feature vector through the layers, returning the
// pre-activations and activations per layer for backprop.
func (m *MLP) forward(input []float32) (preActs, acts [][]float32) {
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = input
	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		in := acts[l]
		out := make([]float32, len(m.biases[l]))
		for j := range out {
			sum := m.biases[l][j]
			row := m.weights[l][j]
			for i, v := range in {
				sum += row[i] * v
			}
			out[j] = sum
		}
		preActs[l] = out
		act := make([]float32, len(out))
		copy(act, out)
		if l < L-1 {
			for i := range act {
				if act[i] < 0 {
					act[i] = 0
				}
			}
		}
		acts[l+1] = act
	}
	return preActs, acts
}

// Predict runs inference over every sample in t. The tensor's spatial size
// and channel count must match the configuration.
func (m *MLP) Predict(t *field.Tensor) ([]Output, error) {
	if t.C != m.Config.InChannels || t.H != m.Config.Resolution || t.W != m.Config.Resolution {
		return nil, fmt.Errorf("tensor (%d, %d, %d, %d) does not match model input (%d, %d, %d)",
			t.N, t.C, t.H, t.W, m.Config.InChannels, m.Config.Resolution, m.Config.Resolution)
	}
	stride := t.C * t.H * t.W
	out := make([]Output, t.N)
	for n := 0; n < t.N; n++ {
		_, acts := m.forward(m.pool(t.Data[n*stride : (n+1)*stride]))
		last := acts[len(acts)-1]
		out[n] = Output{N2: float64(last[0]), Isat: float64(last[1]), Alpha: float64(last[2])}
	}
	return out, nil
}

// Train fits the MLP with mini-batch SGD on a mean-squared-error loss over
// the three outputs. Sample order is reshuffled each epoch from the model's
// seeded generator.
func (m *MLP) Train(src TrainingSource) error {
	if src == nil {
		return errors.New("training source is nil")
	}
	n := src.Len()
	if n == 0 {
		return errors.New("training source has no examples")
	}

	lr := float32(m.Config.LearningRate)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for ep := 0; ep < m.Config.Epochs; ep++ {
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		for start := 0; start < n; start += m.Config.BatchSize {
			end := start + m.Config.BatchSize
			if end > n {
				end = n
			}
			batch := indices[start:end]

			L := len(m.weights)
			gradW := make([][][]float32, L)
			gradB := make([][]float32, L)
			for l := 0; l < L; l++ {
				gradW[l] = make([][]float32, len(m.biases[l]))
				for j := range gradW[l] {
					gradW[l][j] = make([]float32, len(m.weights[l][j]))
				}
				gradB[l] = make([]float32, len(m.biases[l]))
			}

			for _, idx := range batch {
				input, label, err := src.Example(idx)
				if err != nil {
					return err
				}
				preActs, acts := m.forward(m.pool(input))

				last := acts[len(acts)-1]
				delta := make([]float32, len(last))
				for j := range delta {
					delta[j] = 2 * (last[j] - label[j])
				}

				for l := L - 1; l >= 0; l-- {
					inAct := acts[l]
					for j, dj := range delta {
						gradB[l][j] += dj
						row := gradW[l][j]
						for i, v := range inAct {
							row[i] += dj * v
						}
					}
					if l > 0 {
						prev := make([]float32, len(inAct))
						for i := range prev {
							var sum float32
							for j, dj := range delta {
								sum += m.weights[l][j][i] * dj
							}
							if preActs[l-1][i] <= 0 {
								sum = 0
							}
							prev[i] = sum
						}
						delta = prev
					}
				}
			}

			scale := lr / float32(len(batch))
			for l := 0; l < L; l++ {
				for j := range m.biases[l] {
					m.biases[l][j] -= scale * gradB[l][j]
					row := m.weights[l][j]
					for i := range row {
						row[i] -= scale * gradW[l][j][i]
					}
				}
			}
		}
	}
	return nil
}

// mlpArtifact is the on-disk weights layout.
type mlpArtifact struct {
	LayerSizes []int
	Weights    [][][]float32
	Biases     [][]float32
	InChannels int
	Resolution int
	PoolCells  int
}

// Save writes the trained weights to the artifact path for ext "gob",
// creating the training directory if needed.
func (m *MLP) Save() error {
	path := WeightsPath(m.Config, "gob")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(mlpArtifact{
		LayerSizes: m.layerSizes,
		Weights:    m.weights,
		Biases:     m.biases,
		InChannels: m.Config.InChannels,
		Resolution: m.Config.Resolution,
		PoolCells:  m.Config.PoolCells,
	})
}

// Load replaces the model's weights with the artifact for its configuration.
// A missing or mismatched artifact is a fatal error.
func (m *MLP) Load() error {
	path := WeightsPath(m.Config, "gob")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load weights %s: %w", path, err)
	}
	defer f.Close()

	var art mlpArtifact
	if err := gob.NewDecoder(f).Decode(&art); err != nil {
		return fmt.Errorf("decode weights %s: %w", path, err)
	}
	if art.InChannels != m.Config.InChannels || art.Resolution != m.Config.Resolution {
		return fmt.Errorf("weights %s were trained for (%d channels, %d px), model wants (%d, %d)",
			path, art.InChannels, art.Resolution, m.Config.InChannels, m.Config.Resolution)
	}
	m.layerSizes = art.LayerSizes
	m.weights = art.Weights
	m.biases = art.Biases
	m.Config.PoolCells = art.PoolCells
	return nil
}
