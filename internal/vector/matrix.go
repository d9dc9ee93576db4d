package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Matrix is an immutable, row-aligned set of fixed-width vectors.
// Row i belongs to catalog row i; nothing may reorder one without the other.
type Matrix struct {
	dims  int
	rows  [][]float32
	norms []float64
}

// NewMatrix copies rows into a matrix. All rows must share the same positive width.
func NewMatrix(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return &Matrix{}, nil
	}
	dims := len(rows[0])
	if dims == 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m := &Matrix{
		dims:  dims,
		rows:  make([][]float32, len(rows)),
		norms: make([]float64, len(rows)),
	}
	for i, r := range rows {
		if len(r) != dims {
			return nil, fmt.Errorf("row %d dimension mismatch: got %d, expected %d", i, len(r), dims)
		}
		vec := make([]float32, dims)
		copy(vec, r)
		m.rows[i] = vec
		m.norms[i] = L2Norm(vec)
	}
	return m, nil
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.rows)
}

// Dims returns the vector width (0 for an empty matrix).
func (m *Matrix) Dims() int {
	return m.dims
}

// Row returns row i. The slice must not be modified.
func (m *Matrix) Row(i int) []float32 {
	return m.rows[i]
}

// Mean averages the given rows. Out-of-range indices are skipped.
func (m *Matrix) Mean(indices []int) []float32 {
	out := make([]float32, m.dims)
	n := 0
	for _, i := range indices {
		if i < 0 || i >= len(m.rows) {
			continue
		}
		for j, v := range m.rows[i] {
			out[j] += v
		}
		n++
	}
	if n == 0 {
		return out
	}
	for j := range out {
		out[j] /= float32(n)
	}
	return out
}

// CosineAll scores query against every row by cosine similarity (brute force).
func (m *Matrix) CosineAll(query []float32) ([]float64, error) {
	if len(m.rows) > 0 && len(query) != m.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dims)
	}
	scores := make([]float64, len(m.rows))
	qn := L2Norm(query)
	if qn == 0 {
		return scores, nil
	}
	for i, vec := range m.rows {
		if m.norms[i] == 0 {
			continue
		}
		scores[i] = clamp(InnerProduct(query, vec) / (qn * m.norms[i]))
	}
	return scores, nil
}

// ReadBinary reads the binary matrix format: dimension (4), n (4), then
// n*dimension little-endian float32.
func ReadBinary(r io.Reader) (*Matrix, error) {
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if n > 0 && dim == 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	if _, err := elementCount(int(n), int(dim), 4, len(data)); err != nil {
		return nil, fmt.Errorf("matrix of %d x %d: %w", n, dim, err)
	}
	rowBytes := int(dim) * 4
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = bytesToFloat32Slice(data[i*rowBytes : (i+1)*rowBytes])
	}
	return NewMatrix(rows)
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
