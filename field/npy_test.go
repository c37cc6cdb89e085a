package field

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestComplexGridRoundTrip(t *testing.T) {
	g := NewComplexGrid(5, 7)
	for i := range g.Data {
		g.Data[i] = complex(float32(i)*0.25, -float32(i))
	}

	path := filepath.Join(t.TempDir(), "field.npy")
	if err := WriteComplexGrid(path, g); err != nil {
		t.Fatalf("WriteComplexGrid failed: %v", err)
	}
	got, err := ReadComplexGrid(path)
	if err != nil {
		t.Fatalf("ReadComplexGrid failed: %v", err)
	}
	if got.H != g.H || got.W != g.W {
		t.Fatalf("shape (%d, %d), want (%d, %d)", got.H, got.W, g.H, g.W)
	}
	for i := range g.Data {
		if got.Data[i] != g.Data[i] {
			t.Fatalf("element %d = %v, want %v", i, got.Data[i], g.Data[i])
		}
	}
}

func TestTensorRoundTrip(t *testing.T) {
	tensor, err := NewTensor(3, 2, 4, 5)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}
	for i := range tensor.Data {
		tensor.Data[i] = float32(math.Sin(float64(i)))
	}

	path := filepath.Join(t.TempDir(), "batch.npy")
	if err := WriteTensor(path, tensor); err != nil {
		t.Fatalf("WriteTensor failed: %v", err)
	}
	got, err := ReadTensor(path)
	if err != nil {
		t.Fatalf("ReadTensor failed: %v", err)
	}
	if got.N != 3 || got.C != 2 || got.H != 4 || got.W != 5 {
		t.Fatalf("shape (%d, %d, %d, %d), want (3, 2, 4, 5)", got.N, got.C, got.H, got.W)
	}
	for i := range tensor.Data {
		if got.Data[i] != tensor.Data[i] {
			t.Fatalf("element %d = %v, want %v", i, got.Data[i], tensor.Data[i])
		}
	}
}

func TestReadRealFieldPromotesToComplex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "real.npy")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	if err := writeNPYHeader(f, "<f4", []int{2, 3}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	values := []float32{0, 1, 2, 3, 4, 5}
	buf := make([]byte, 4)
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := f.Write(buf); err != nil {
			t.Fatalf("write data: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}

	got, err := ReadComplexGrid(path)
	if err != nil {
		t.Fatalf("ReadComplexGrid failed: %v", err)
	}
	if got.H != 2 || got.W != 3 {
		t.Fatalf("shape (%d, %d), want (2, 3)", got.H, got.W)
	}
	for i, want := range values {
		if real(got.Data[i]) != want || imag(got.Data[i]) != 0 {
			t.Fatalf("element %d = %v, want (%v+0i)", i, got.Data[i], want)
		}
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.npy")
	if err := os.WriteFile(path, []byte("definitely not numpy data"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := ReadComplexGrid(path); err == nil {
		t.Fatal("expected error for non-npy file")
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := ReadComplexGrid(filepath.Join(t.TempDir(), "missing.npy")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
