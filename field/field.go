// Package field holds the array types the pipeline moves around: 2D real and
// complex field grids and the 4D (batch, channel, height, width) tensors fed
// to the network, together with the normalization and resampling steps that
// convert a raw measurement into network units.
package field

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Grid is a 2D real-valued field stored as a flat row-major float32 buffer.
type Grid struct {
	Data []float32
	H, W int
}

// NewGrid allocates a zeroed H by W grid.
func NewGrid(h, w int) *Grid {
	return &Grid{Data: make([]float32, h*w), H: h, W: w}
}

// At returns the value at row y, column x.
func (g *Grid) At(y, x int) float32 { return g.Data[y*g.W+x] }

// Set stores v at row y, column x.
func (g *Grid) Set(y, x int, v float32) { g.Data[y*g.W+x] = v }

// Clone returns a copy of g with its own buffer.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.H, g.W)
	copy(out.Data, g.Data)
	return out
}

// ComplexGrid is a 2D complex-valued optical field stored row-major.
type ComplexGrid struct {
	Data []complex64
	H, W int
}

// NewComplexGrid allocates a zeroed H by W complex grid.
func NewComplexGrid(h, w int) *ComplexGrid {
	return &ComplexGrid{Data: make([]complex64, h*w), H: h, W: w}
}

// At returns the value at row y, column x.
func (g *ComplexGrid) At(y, x int) complex64 { return g.Data[y*g.W+x] }

// Set stores v at row y, column x.
func (g *ComplexGrid) Set(y, x int, v complex64) { g.Data[y*g.W+x] = v }

// Amplitude returns |E| as a real grid.
func (g *ComplexGrid) Amplitude() *Grid {
	out := NewGrid(g.H, g.W)
	for i, v := range g.Data {
		out.Data[i] = float32(cmplx.Abs(complex128(v)))
	}
	return out
}

// Density returns |E|^2, the intensity channel.
func (g *ComplexGrid) Density() *Grid {
	out := NewGrid(g.H, g.W)
	for i, v := range g.Data {
		re, im := real(v), imag(v)
		out.Data[i] = re*re + im*im
	}
	return out
}

// Phase returns arg(E) in radians, in (-pi, pi].
func (g *ComplexGrid) Phase() *Grid {
	out := NewGrid(g.H, g.W)
	for i, v := range g.Data {
		out.Data[i] = float32(math.Atan2(float64(imag(v)), float64(real(v))))
	}
	return out
}

// Tensor is a 4D (N, C, H, W) array in a flat row-major float32 buffer.
// Channels optionally carries one label per channel so downstream consumers
// can select channels by name instead of by position.
type Tensor struct {
	Data       []float32
	N, C, H, W int
	Channels   []string
}

// NewTensor allocates a zeroed (n, c, h, w) tensor. Channel names are
// optional; when given there must be exactly c of them.
func NewTensor(n, c, h, w int, channels ...string) (*Tensor, error) {
	if n < 0 || c <= 0 || h <= 0 || w <= 0 {
		return nil, fmt.Errorf("invalid tensor dimensions (%d, %d, %d, %d)", n, c, h, w)
	}
	if len(channels) > 0 && len(channels) != c {
		return nil, fmt.Errorf("got %d channel names for %d channels", len(channels), c)
	}
	return &Tensor{
		Data:     make([]float32, n*c*h*w),
		N:        n,
		C:        c,
		H:        h,
		W:        w,
		Channels: channels,
	}, nil
}

// At returns the value at sample n, channel c, row y, column x.
func (t *Tensor) At(n, c, y, x int) float32 {
	return t.Data[((n*t.C+c)*t.H+y)*t.W+x]
}

// Set stores v at sample n, channel c, row y, column x.
func (t *Tensor) Set(n, c, y, x int, v float32) {
	t.Data[((n*t.C+c)*t.H+y)*t.W+x] = v
}

// slice returns the flat sub-buffer of one (sample, channel) plane. The
// returned slice aliases the tensor's buffer.
func (t *Tensor) slice(n, c int) []float32 {
	off := (n*t.C + c) * t.H * t.W
	return t.Data[off : off+t.H*t.W]
}

// Grid copies the plane at sample n, channel c out into a new Grid.
func (t *Tensor) Grid(n, c int) *Grid {
	g := NewGrid(t.H, t.W)
	copy(g.Data, t.slice(n, c))
	return g
}

// SetGrid copies g into the plane at sample n, channel c.
func (t *Tensor) SetGrid(n, c int, g *Grid) error {
	if g.H != t.H || g.W != t.W {
		return fmt.Errorf("grid is %dx%d, tensor planes are %dx%d", g.H, g.W, t.H, t.W)
	}
	copy(t.slice(n, c), g.Data)
	return nil
}

// ChannelIndex returns the position of the named channel.
func (t *Tensor) ChannelIndex(name string) (int, error) {
	for i, ch := range t.Channels {
		if ch == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("tensor has no channel named %q (channels: %v)", name, t.Channels)
}

// Select builds a new tensor containing only the named channels, in the order
// given. It is how partial-feature experiments (amplitude-only, phase-only)
// pick their inputs without relying on positional slicing.
func (t *Tensor) Select(names ...string) (*Tensor, error) {
	if len(t.Channels) == 0 {
		return nil, fmt.Errorf("tensor carries no channel names")
	}
	out, err := NewTensor(t.N, len(names), t.H, t.W, names...)
	if err != nil {
		return nil, err
	}
	for dst, name := range names {
		src, err := t.ChannelIndex(name)
		if err != nil {
			return nil, err
		}
		for n := 0; n < t.N; n++ {
			copy(out.slice(n, dst), t.slice(n, src))
		}
	}
	return out, nil
}

// SliceSamples copies samples [lo, hi) into a new tensor. Channel names are
// shared with the source tensor.
func (t *Tensor) SliceSamples(lo, hi int) (*Tensor, error) {
	if lo < 0 || hi > t.N || lo > hi {
		return nil, fmt.Errorf("sample range [%d, %d) out of bounds for %d samples", lo, hi, t.N)
	}
	out := &Tensor{
		Data:     make([]float32, (hi-lo)*t.C*t.H*t.W),
		N:        hi - lo,
		C:        t.C,
		H:        t.H,
		W:        t.W,
		Channels: t.Channels,
	}
	stride := t.C * t.H * t.W
	copy(out.Data, t.Data[lo*stride:hi*stride])
	return out, nil
}

// Clone returns a deep copy of t.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{
		Data: make([]float32, len(t.Data)),
		N:    t.N, C: t.C, H: t.H, W: t.W,
	}
	copy(out.Data, t.Data)
	if t.Channels != nil {
		out.Channels = append([]string(nil), t.Channels...)
	}
	return out
}
