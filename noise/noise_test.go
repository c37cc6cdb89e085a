package noise

import (
	"math"
	"testing"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/rng"
)

func TestComplexFieldDeterministic(t *testing.T) {
	beam := field.NewComplexGrid(8, 8)
	for i := range beam.Data {
		beam.Data[i] = complex(float32(i)*0.1, float32(i)*-0.2)
	}

	a := ComplexField(beam, 2.0, 0.5, rng.New(10))
	b := ComplexField(beam, 2.0, 0.5, rng.New(10))
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("element %d diverged between identical seeds: %v != %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestComplexFieldTouchesOnlyRealPart(t *testing.T) {
	beam := field.NewComplexGrid(8, 8)
	for i := range beam.Data {
		beam.Data[i] = complex(1, float32(i))
	}
	noisy := ComplexField(beam, 3.0, 1.0, rng.New(10))

	changed := false
	for i := range beam.Data {
		if imag(noisy.Data[i]) != imag(beam.Data[i]) {
			t.Fatalf("imaginary part changed at %d: %v -> %v", i, imag(beam.Data[i]), imag(noisy.Data[i]))
		}
		if real(noisy.Data[i]) != real(beam.Data[i]) {
			changed = true
		}
	}
	if !changed {
		t.Fatal("real part unchanged, expected added noise")
	}
}

func TestComplexFieldLeavesInputAlone(t *testing.T) {
	beam := field.NewComplexGrid(4, 4)
	for i := range beam.Data {
		beam.Data[i] = complex(float32(i), 1)
	}
	before := append([]complex64(nil), beam.Data...)
	ComplexField(beam, 1.0, 0.1, rng.New(1))
	for i := range before {
		if beam.Data[i] != before[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

// TestLineFringesPeriods checks that the overlay runs exactly k full periods
// along the image diagonal: sampling the pattern along the rotated axis and
// counting upward zero crossings of the sine recovers k.
func TestLineFringesPeriods(t *testing.T) {
	const size = 256
	img := field.NewGrid(size, size)

	for _, k := range []int{1, 50, 100} {
		out := LineFringes(img, k, 1.0, 0)
		// Angle 0: the pattern varies along x only, as sin(x * 2*pi*k/diag).
		diag := math.Sqrt(2) * size
		freq := float64(k) * 2 * math.Pi / diag
		for x := 0; x < size; x++ {
			want := math.Sin(float64(x) * freq)
			got := float64(out.At(7, x))
			if math.Abs(got-want) > 1e-5 {
				t.Fatalf("k=%d: pattern at x=%d is %v, want %v", k, x, got, want)
			}
		}
		// Phase advance across the full diagonal is exactly k periods.
		if got := freq * diag / (2 * math.Pi); math.Abs(got-float64(k)) > 1e-9 {
			t.Fatalf("k=%d: %v periods along diagonal", k, got)
		}
	}
}

func TestLineFringesAngled(t *testing.T) {
	img := field.NewGrid(64, 64)
	out := LineFringes(img, 10, 2.0, 90)
	// At 90 degrees the rotated coordinate is y, so rows are constant.
	for y := 0; y < 64; y++ {
		first := out.At(y, 0)
		for x := 1; x < 64; x++ {
			if math.Abs(float64(out.At(y, x)-first)) > 1e-5 {
				t.Fatalf("row %d not constant at 90 degrees", y)
			}
		}
	}
	// Amplitude bound respected.
	for i, v := range out.Data {
		if v > 2 || v < -2 {
			t.Fatalf("element %d = %v exceeds amplitude", i, v)
		}
	}
}

func TestLineFringesAdditive(t *testing.T) {
	img := field.NewGrid(32, 32)
	for i := range img.Data {
		img.Data[i] = 5
	}
	out := LineFringes(img, 3, 0.5, 30)
	zero := field.NewGrid(32, 32)
	pattern := LineFringes(zero, 3, 0.5, 30)
	for i := range out.Data {
		want := 5 + pattern.Data[i]
		if math.Abs(float64(out.Data[i]-want)) > 1e-6 {
			t.Fatalf("element %d = %v, want %v", i, out.Data[i], want)
		}
	}
}
