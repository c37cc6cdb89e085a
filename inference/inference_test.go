package inference

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/model"
)

// gaussianBeam builds a synthetic measured field: Gaussian envelope with a
// quadratic phase front, so both the amplitude and phase channels have
// nonzero range everywhere the pipeline needs it.
func gaussianBeam(size int) *field.ComplexGrid {
	g := field.NewComplexGrid(size, size)
	waist := float64(size) / 4
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dy := float64(y - size/2)
			dx := float64(x - size/2)
			r2 := dx*dx + dy*dy
			amp := math.Exp(-r2 / (waist * waist))
			phase := 2 * math.Pi * r2 / float64(size*size)
			g.Set(y, x, complex(float32(amp*math.Cos(phase)), float32(amp*math.Sin(phase))))
		}
	}
	return g
}

// passthrough is a predictor test double returning a fixed normalized output
// for every sample.
type passthrough struct {
	out model.Output
}

func (p passthrough) Predict(t *field.Tensor) ([]model.Output, error) {
	outs := make([]model.Output, t.N)
	for i := range outs {
		outs[i] = p.out
	}
	return outs, nil
}

func TestBuildInputLayout(t *testing.T) {
	input, err := BuildInput(gaussianBeam(128), 64)
	if err != nil {
		t.Fatalf("BuildInput failed: %v", err)
	}
	if input.N != 1 || input.C != 4 || input.H != 64 || input.W != 64 {
		t.Fatalf("tensor shape (%d, %d, %d, %d), want (1, 4, 64, 64)",
			input.N, input.C, input.H, input.W)
	}
	for i, want := range InputChannels {
		if input.Channels[i] != want {
			t.Fatalf("channel %d is %q, want %q", i, input.Channels[i], want)
		}
	}

	// Raw channels are normalized to [0, 1].
	for _, name := range []string{ChannelDensity, ChannelPhase} {
		c, err := input.ChannelIndex(name)
		if err != nil {
			t.Fatalf("ChannelIndex(%s): %v", name, err)
		}
		lo, hi := input.At(0, c, 0, 0), input.At(0, c, 0, 0)
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				v := input.At(0, c, y, x)
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
		}
		if lo != 0 || hi != 1 {
			t.Errorf("channel %s range [%v, %v], want [0, 1]", name, lo, hi)
		}
	}
}

// TestBuildInputFirstChannelIsAmplitude pins the quantity behind the first
// channel: normalized |E|, not normalized |E|^2. A linear amplitude ramp
// separates the two cleanly because squaring is nonlinear and survives
// min-max normalization.
func TestBuildInputFirstChannelIsAmplitude(t *testing.T) {
	const size = 16
	f := field.NewComplexGrid(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			a := float64(y*size+x) + 1
			phi := 0.01 * float64(x-y)
			f.Set(y, x, complex(float32(a*math.Cos(phi)), float32(a*math.Sin(phi))))
		}
	}

	input, err := BuildInput(f, size)
	if err != nil {
		t.Fatalf("BuildInput failed: %v", err)
	}
	wantAmp, err := field.NormalizeGrid(f.Amplitude())
	if err != nil {
		t.Fatalf("NormalizeGrid(amplitude): %v", err)
	}
	notDensity, err := field.NormalizeGrid(f.Density())
	if err != nil {
		t.Fatalf("NormalizeGrid(density): %v", err)
	}

	var devAmp, devDensity float64
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := float64(input.At(0, 0, y, x))
			if d := math.Abs(v - float64(wantAmp.At(y, x))); d > devAmp {
				devAmp = d
			}
			if d := math.Abs(v - float64(notDensity.At(y, x))); d > devDensity {
				devDensity = d
			}
		}
	}
	if devAmp > 1e-4 {
		t.Fatalf("channel 0 deviates from normalized amplitude by %v", devAmp)
	}
	if devDensity < 1e-2 {
		t.Fatalf("channel 0 indistinguishable from normalized intensity (max dev %v)", devDensity)
	}
}

func TestBuildInputDeterministic(t *testing.T) {
	beam := gaussianBeam(96)
	a, err := BuildInput(beam, 48)
	if err != nil {
		t.Fatalf("BuildInput failed: %v", err)
	}
	b, err := BuildInput(beam, 48)
	if err != nil {
		t.Fatalf("BuildInput failed: %v", err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("element %d differs between runs", i)
		}
	}
}

// TestEstimateScalesByExtrema is the end-to-end contract: with a passthrough
// network the estimates are exactly the normalized outputs scaled by the
// training grid extrema.
func TestEstimateScalesByExtrema(t *testing.T) {
	extrema := Extrema{MinN2: -5e-10, MaxIsat: 5e5, MaxAlpha: 10}
	var buf bytes.Buffer
	d := &Driver{
		Predictor:  passthrough{out: model.Output{N2: 1, Isat: 1, Alpha: 1}},
		Resolution: 256,
		Extrema:    extrema,
		Out:        &buf,
	}

	r, err := d.Estimate(gaussianBeam(256))
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	const tol = 1e-12
	if math.Abs(r.N2-extrema.MinN2) > tol*math.Abs(extrema.MinN2) {
		t.Errorf("n2 = %v, want %v", r.N2, extrema.MinN2)
	}
	if math.Abs(r.Isat-extrema.MaxIsat) > tol*extrema.MaxIsat {
		t.Errorf("isat = %v, want %v", r.Isat, extrema.MaxIsat)
	}
	if math.Abs(r.Alpha-extrema.MaxAlpha) > tol*extrema.MaxAlpha {
		t.Errorf("alpha = %v, want %v", r.Alpha, extrema.MaxAlpha)
	}

	report := buf.String()
	for _, want := range []string{"n2 =", "Isat =", "alpha ="} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestEstimateFractionalOutputs(t *testing.T) {
	d := &Driver{
		Predictor:  passthrough{out: model.Output{N2: 0.5, Isat: 0.2, Alpha: 0.1}},
		Resolution: 64,
		Extrema:    Extrema{MinN2: -1e-9, MaxIsat: 1e6, MaxAlpha: 100},
		Out:        &bytes.Buffer{},
	}
	r, err := d.Estimate(gaussianBeam(64))
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if r.N2 != 0.5*-1e-9 || r.Isat != 0.2*1e6 || r.Alpha != 0.1*100 {
		t.Fatalf("result %+v not scaled by extrema", r)
	}
}

func TestEstimateFileRoundTrip(t *testing.T) {
	beam := gaussianBeam(64)
	path := filepath.Join(t.TempDir(), "field.npy")
	if err := field.WriteComplexGrid(path, beam); err != nil {
		t.Fatalf("WriteComplexGrid failed: %v", err)
	}

	d := &Driver{
		Predictor:  passthrough{out: model.Output{N2: 1, Isat: 1, Alpha: 1}},
		Resolution: 64,
		Extrema:    Extrema{MinN2: -2e-10, MaxIsat: 3e5, MaxAlpha: 7},
		Out:        &bytes.Buffer{},
	}
	fromFile, err := d.EstimateFile(path)
	if err != nil {
		t.Fatalf("EstimateFile failed: %v", err)
	}
	direct, err := d.Estimate(beam)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if fromFile != direct {
		t.Fatalf("file path gave %+v, direct gave %+v", fromFile, direct)
	}
}

func TestEstimateMissingFile(t *testing.T) {
	d := &Driver{
		Predictor:  passthrough{},
		Resolution: 64,
		Out:        &bytes.Buffer{},
	}
	if _, err := d.EstimateFile(filepath.Join(t.TempDir(), "nope.npy")); err == nil {
		t.Fatal("expected error for missing field file")
	}
}

func TestCompareHook(t *testing.T) {
	settings := Settings{Power: 0.5, Waist: 2e-3, NonlinearLength: 0.1, StepSize: 1e-4, Length: 0.2}
	called := false
	d := &Driver{
		Predictor:  passthrough{out: model.Output{N2: 1, Isat: 1, Alpha: 1}},
		Resolution: 64,
		Extrema:    Extrema{MinN2: -1e-10, MaxIsat: 1e5, MaxAlpha: 1},
		Settings:   settings,
		Out:        &bytes.Buffer{},
		Compare: func(input *field.Tensor, r Result, s Settings) error {
			called = true
			if input.C != 4 {
				return fmt.Errorf("hook got %d channels", input.C)
			}
			if s != settings {
				return fmt.Errorf("hook got settings %+v, want %+v", s, settings)
			}
			return nil
		},
	}
	if _, err := d.Estimate(gaussianBeam(64)); err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if !called {
		t.Fatal("comparison hook not invoked")
	}

	d.Compare = func(*field.Tensor, Result, Settings) error { return fmt.Errorf("boom") }
	if _, err := d.Estimate(gaussianBeam(64)); err == nil {
		t.Fatal("expected comparison hook error to propagate")
	}
}
