// Package model defines the contract between the data pipeline and the
// parameter-estimation network: a Predictor consumes a (N, C, H, W) tensor
// and produces one normalized (n2, isat, alpha) output triplet per sample.
// Network variants are registered by name and resolved once at startup.
package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
)

// Output is one sample's network output in normalized output space. The
// network is trained against ratios to the training grid's extrema, so each
// component is denormalized by the inference driver, not here.
type Output struct {
	N2    float64
	Isat  float64
	Alpha float64
}

// Predictor runs the network in inference mode. Implementations must not
// retain the input tensor.
type Predictor interface {
	Predict(t *field.Tensor) ([]Output, error)
}

// Config carries everything a network variant needs to build itself and
// locate its weights artifact.
type Config struct {
	// Resolution is the square spatial size of the training tensors.
	Resolution int

	// InChannels is the number of input channels (4 for the full
	// density/descriptor/phase/descriptor stack).
	InChannels int

	// Grid cardinalities and pump power, used in the weights filename.
	CountN2    int
	CountIsat  int
	CountAlpha int
	Power      float64

	// WeightsDir is the directory holding the trained weights artifact.
	WeightsDir string

	// Seed for weight initialization and shuffling during training.
	Seed uint64

	// Training hyperparameters (MLP variant). Zero values pick defaults.
	HiddenSizes  []int
	LearningRate float64
	Epochs       int
	BatchSize    int

	// PoolCells is the per-axis pooling grid each channel is reduced to
	// before the dense layers (MLP variant). Default 8.
	PoolCells int
}

// WeightsPath builds the artifact path for a configuration:
// {dir}/training_n2{n}_isat{i}_alpha{a}_power{p}/n2_net_w{res}_n2{n}_isat{i}_alpha{a}_power{p}.{ext}
func WeightsPath(cfg Config, ext string) string {
	stamp := fmt.Sprintf("n2%d_isat%d_alpha%d_power%.2f",
		cfg.CountN2, cfg.CountIsat, cfg.CountAlpha, cfg.Power)
	name := fmt.Sprintf("n2_net_w%d_%s.%s", cfg.Resolution, stamp, ext)
	return filepath.Join(cfg.WeightsDir, "training_"+stamp, name)
}

// Builder constructs a network variant from a configuration.
type Builder func(cfg Config) (Predictor, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

// Register makes a network variant available under name. Registering the
// same name twice panics: variants are wired once at startup.
func Register(name string, b Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("model: variant %q registered twice", name))
	}
	registry[name] = b
}

// New builds the named variant.
func New(name string, cfg Config) (Predictor, error) {
	registryMu.RLock()
	b, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model variant %q (known: %v)", name, Variants())
	}
	return b(cfg)
}

// Variants lists the registered variant names, sorted.
func Variants() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
