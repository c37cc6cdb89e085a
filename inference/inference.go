// Package inference converts a raw measured optical field into the exact
// tensor layout the network was trained on, runs the network, and rescales
// its normalized outputs back to physical units.
package inference

import (
	"fmt"
	"io"
	"os"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/hog"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/model"
)

// Fixed channel order of the training tensors.
const (
	ChannelDensity    = "density"
	ChannelDensityHOG = "density_hog"
	ChannelPhase      = "phase"
	ChannelPhaseHOG   = "phase_hog"
)

// InputChannels is the full training channel stack, in order.
var InputChannels = []string{ChannelDensity, ChannelDensityHOG, ChannelPhase, ChannelPhaseHOG}

// Extrema holds the training grid's extremal parameter values. The network
// is trained against ratios to these specific extrema, so denormalization
// multiplies each output by its extremum: n2 by the grid minimum, isat and
// alpha by their maxima. This is a fixed convention of the trained weights,
// not something inferred at inference time.
type Extrema struct {
	MinN2    float64
	MaxIsat  float64
	MaxAlpha float64
}

// Result is one field's estimated physical parameters: n2 in m^2/W, Isat in
// W/m^2, alpha in 1/m.
type Result struct {
	N2    float64
	Isat  float64
	Alpha float64
}

// Settings are the fixed physical-configuration values of the measurement.
// Together with a Result they make up the full parameter tuple handed to the
// comparison hook, so the caller can regenerate a synthetic field at the
// estimated parameters without closing over the configuration.
type Settings struct {
	// Power is the pump power in W.
	Power float64

	// Waist is the beam waist in m.
	Waist float64

	// NonlinearLength, StepSize and Length describe the propagation used
	// when regenerating a field for comparison, in m.
	NonlinearLength float64
	StepSize        float64
	Length          float64
}

// BuildInput converts a measured complex field into the 4-channel input
// tensor: field amplitude |E| and phase are separately resampled to the
// training resolution with cubic interpolation, min-max normalized, and
// paired with their gradient-orientation descriptor channels. The first
// channel keeps the capture convention's "density" name but carries |E|,
// the quantity the network was trained on.
func BuildInput(f *field.ComplexGrid, resolution int) (*field.Tensor, error) {
	amp, err := prepareChannel(f.Amplitude(), resolution)
	if err != nil {
		return nil, fmt.Errorf("amplitude channel: %w", err)
	}
	phase, err := prepareChannel(f.Phase(), resolution)
	if err != nil {
		return nil, fmt.Errorf("phase channel: %w", err)
	}

	opts := hog.DefaultOptions()
	ampHOG, err := hog.Descriptor(amp, opts)
	if err != nil {
		return nil, fmt.Errorf("amplitude descriptor: %w", err)
	}
	phaseHOG, err := hog.Descriptor(phase, opts)
	if err != nil {
		return nil, fmt.Errorf("phase descriptor: %w", err)
	}

	t, err := field.NewTensor(1, len(InputChannels), resolution, resolution, InputChannels...)
	if err != nil {
		return nil, err
	}
	for i, g := range []*field.Grid{amp, ampHOG, phase, phaseHOG} {
		if err := t.SetGrid(0, i, g); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func prepareChannel(g *field.Grid, resolution int) (*field.Grid, error) {
	resampled, err := field.Resample(g, resolution, resolution)
	if err != nil {
		return nil, err
	}
	return field.NormalizeGrid(resampled)
}

// Driver estimates physical parameters from experimental fields.
type Driver struct {
	// Predictor is the loaded network.
	Predictor model.Predictor

	// Resolution is the network's training resolution.
	Resolution int

	// Extrema denormalize the network outputs.
	Extrema Extrema

	// Settings are forwarded to the comparison hook.
	Settings Settings

	// Out receives the printed parameter report. Defaults to stdout.
	Out io.Writer

	// Compare, when set, is invoked with the assembled input tensor, the
	// estimate and the measurement settings so the caller can regenerate a
	// synthetic field at the estimated parameters and plot the comparison.
	// Regeneration and plotting live outside this package.
	Compare func(input *field.Tensor, r Result, s Settings) error
}

// Estimate runs the full experimental-inference pipeline on a measured
// field and prints the three estimated parameters in physical units.
func (d *Driver) Estimate(f *field.ComplexGrid) (Result, error) {
	if d.Predictor == nil {
		return Result{}, fmt.Errorf("driver has no predictor")
	}

	input, err := BuildInput(f, d.Resolution)
	if err != nil {
		return Result{}, err
	}

	outputs, err := d.Predictor.Predict(input)
	if err != nil {
		return Result{}, err
	}
	if len(outputs) != 1 {
		return Result{}, fmt.Errorf("predictor returned %d outputs for 1 sample", len(outputs))
	}

	r := Result{
		N2:    outputs[0].N2 * d.Extrema.MinN2,
		Isat:  outputs[0].Isat * d.Extrema.MaxIsat,
		Alpha: outputs[0].Alpha * d.Extrema.MaxAlpha,
	}

	out := d.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "n2 = %g m^2/W\n", r.N2)
	fmt.Fprintf(out, "Isat = %g W/m^2\n", r.Isat)
	fmt.Fprintf(out, "alpha = %g m^-1\n", r.Alpha)

	if d.Compare != nil {
		if err := d.Compare(input, r, d.Settings); err != nil {
			return r, fmt.Errorf("comparison hook: %w", err)
		}
	}
	return r, nil
}

// EstimateFile loads a measured field from an npy file and estimates its
// parameters.
func (d *Driver) EstimateFile(path string) (Result, error) {
	f, err := field.ReadComplexGrid(path)
	if err != nil {
		return Result{}, err
	}
	return d.Estimate(f)
}
