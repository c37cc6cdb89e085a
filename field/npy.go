package field

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Minimal NumPy .npy v1.0 codec. Experimental fields are captured in Python
// and saved with np.save, so the inference driver reads them straight from
// disk. Only little-endian <f4, <f8, <c8 and <c16 payloads in C order are
// supported; anything else is a format error.

var npyMagic = []byte("\x93NUMPY")

type npyHeader struct {
	descr string
	shape []int
}

func readNPYHeader(r *bufio.Reader) (npyHeader, error) {
	var h npyHeader
	preamble := make([]byte, 10)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return h, fmt.Errorf("read npy preamble: %w", err)
	}
	if string(preamble[:6]) != string(npyMagic) {
		return h, fmt.Errorf("not an npy file (bad magic)")
	}
	if preamble[6] != 1 {
		return h, fmt.Errorf("unsupported npy version %d.%d", preamble[6], preamble[7])
	}
	headerLen := binary.LittleEndian.Uint16(preamble[8:10])
	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return h, fmt.Errorf("read npy header: %w", err)
	}
	header := string(raw)

	descr, err := headerValue(header, "'descr'")
	if err != nil {
		return h, err
	}
	h.descr = strings.Trim(descr, "' ")

	order, err := headerValue(header, "'fortran_order'")
	if err != nil {
		return h, err
	}
	if strings.TrimSpace(order) != "False" {
		return h, fmt.Errorf("fortran-ordered npy arrays are not supported")
	}

	shapeStr, err := headerValue(header, "'shape'")
	if err != nil {
		return h, err
	}
	shapeStr = strings.Trim(strings.TrimSpace(shapeStr), "()")
	for _, part := range strings.Split(shapeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return h, fmt.Errorf("bad shape entry %q: %w", part, err)
		}
		h.shape = append(h.shape, d)
	}
	if len(h.shape) == 0 {
		return h, fmt.Errorf("scalar npy arrays are not supported")
	}
	return h, nil
}

// headerValue extracts the value following `key:` in the header dict, up to
// the next top-level comma.
func headerValue(header, key string) (string, error) {
	i := strings.Index(header, key)
	if i < 0 {
		return "", fmt.Errorf("npy header missing %s", key)
	}
	rest := header[i+len(key):]
	j := strings.Index(rest, ":")
	if j < 0 {
		return "", fmt.Errorf("malformed npy header near %s", key)
	}
	rest = rest[j+1:]
	depth := 0
	for k, c := range rest {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return rest[:k], nil
			}
		case '}':
			if depth == 0 {
				return rest[:k], nil
			}
		}
	}
	return rest, nil
}

func writeNPYHeader(w io.Writer, descr string, shape []int) error {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, shapeStr)
	// Pad so the data section starts on a 64-byte boundary, ending in \n.
	total := 10 + len(header) + 1
	pad := (64 - total%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	buf := make([]byte, 0, 10+len(header))
	buf = append(buf, npyMagic...)
	buf = append(buf, 1, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)
	_, err := w.Write(buf)
	return err
}

func elemCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// readFloats decodes the data section into float64s, one per scalar element;
// complex dtypes yield interleaved (real, imag) pairs and report pairwise.
func readFloats(r *bufio.Reader, descr string, count int) ([]float64, bool, error) {
	var width int
	var cplx bool
	switch descr {
	case "<f4":
		width = 4
	case "<f8":
		width = 8
	case "<c8":
		width, cplx = 4, true
	case "<c16":
		width, cplx = 8, true
	default:
		return nil, false, fmt.Errorf("unsupported npy dtype %q", descr)
	}
	scalars := count
	if cplx {
		scalars *= 2
	}
	raw := make([]byte, scalars*width)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, false, fmt.Errorf("read npy data: %w", err)
	}
	out := make([]float64, scalars)
	for i := range out {
		off := i * width
		if width == 4 {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off:])))
		} else {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
		}
	}
	return out, cplx, nil
}

// ReadComplexGrid loads a 2D complex field from an npy file. Real-valued
// files are accepted and promoted with a zero imaginary part.
func ReadComplexGrid(path string) (*ComplexGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	h, err := readNPYHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(h.shape) != 2 {
		return nil, fmt.Errorf("%s: expected a 2D field, got shape %v", path, h.shape)
	}
	vals, cplx, err := readFloats(r, h.descr, elemCount(h.shape))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	g := NewComplexGrid(h.shape[0], h.shape[1])
	if cplx {
		for i := range g.Data {
			g.Data[i] = complex(float32(vals[2*i]), float32(vals[2*i+1]))
		}
	} else {
		for i := range g.Data {
			g.Data[i] = complex(float32(vals[i]), 0)
		}
	}
	return g, nil
}

// ReadTensor loads a 4D (N, C, H, W) real tensor from an npy file. A 3D
// (N, H, W) file is accepted as a single-channel batch.
func ReadTensor(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	h, err := readNPYHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	shape := h.shape
	if len(shape) == 3 {
		shape = []int{shape[0], 1, shape[1], shape[2]}
	}
	if len(shape) != 4 {
		return nil, fmt.Errorf("%s: expected a 3D or 4D batch, got shape %v", path, h.shape)
	}
	vals, cplx, err := readFloats(r, h.descr, elemCount(shape))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cplx {
		return nil, fmt.Errorf("%s: complex batches are not supported, split channels first", path)
	}

	t, err := NewTensor(shape[0], shape[1], shape[2], shape[3])
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = float32(vals[i])
	}
	return t, nil
}

// WriteComplexGrid saves g as a <c8 npy file.
func WriteComplexGrid(path string, g *ComplexGrid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := writeNPYHeader(w, "<c8", []int{g.H, g.W}); err != nil {
		return err
	}
	buf := make([]byte, 8)
	for _, v := range g.Data {
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(imag(v)))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteTensor saves t as a <f4 npy file with shape (N, C, H, W).
func WriteTensor(path string, t *Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := writeNPYHeader(w, "<f4", []int{t.N, t.C, t.H, t.W}); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, v := range t.Data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}
