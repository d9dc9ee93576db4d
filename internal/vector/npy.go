package vector

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const npyMagic = "\x93NUMPY"

var (
	npyDescr   = regexp.MustCompile(`'descr'\s*:\s*'([<>|=]?)([fi])(\d)'`)
	npyFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape'\s*:\s*\(\s*(\d+)\s*,\s*(\d+)\s*,?\s*\)`)
)

// ReadNPY reads a two-dimensional float32/float64 NumPy array (format versions 1-3).
func ReadNPY(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read npy magic: %w", err)
	}
	if string(magic[:len(npyMagic)]) != npyMagic {
		return nil, errors.New("not a npy file")
	}
	var headerLen int
	switch major := magic[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}

	descr := npyDescr.FindStringSubmatch(string(header))
	if descr == nil || descr[2] != "f" || (descr[3] != "4" && descr[3] != "8") {
		return nil, fmt.Errorf("unsupported npy dtype in header %q", strings.TrimSpace(string(header)))
	}
	var order binary.ByteOrder = binary.LittleEndian
	if descr[1] == ">" {
		order = binary.BigEndian
	}
	width := 4
	if descr[3] == "8" {
		width = 8
	}

	shape := npyShape.FindStringSubmatch(string(header))
	if shape == nil {
		return nil, fmt.Errorf("npy array must be two-dimensional")
	}
	n, err := strconv.Atoi(shape[1])
	if err != nil {
		return nil, fmt.Errorf("npy shape rows: %w", err)
	}
	d, err := strconv.Atoi(shape[2])
	if err != nil {
		return nil, fmt.Errorf("npy shape columns: %w", err)
	}
	fortran := false
	if m := npyFortran.FindStringSubmatch(string(header)); m != nil {
		fortran = m[1] == "True"
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read npy data: %w", err)
	}
	count, err := elementCount(n, d, width, len(data))
	if err != nil {
		return nil, fmt.Errorf("npy shape (%d, %d): %w", n, d, err)
	}

	flat := make([]float32, count)
	for k := range flat {
		b := data[k*width : (k+1)*width]
		if width == 4 {
			flat[k] = math.Float32frombits(order.Uint32(b))
		} else {
			flat[k] = float32(math.Float64frombits(order.Uint64(b)))
		}
	}

	rows := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := make([]float32, d)
		for j := 0; j < d; j++ {
			if fortran {
				row[j] = flat[j*n+i]
			} else {
				row[j] = flat[i*d+j]
			}
		}
		rows[i] = row
	}
	return NewMatrix(rows)
}

// elementCount returns n*d after checking that n*d elements of width bytes fit in
// the available data.
func elementCount(n, d, width, available int) (int, error) {
	if n < 0 || d < 0 {
		return 0, errors.New("negative shape")
	}
	if n == 0 {
		return 0, nil
	}
	if d == 0 {
		return 0, errors.New("rows must have at least one element")
	}
	if uint64(d) > uint64(available)/uint64(width) {
		return 0, fmt.Errorf("row of %d elements exceeds the %d bytes present", d, available)
	}
	perRow := uint64(d) * uint64(width)
	if uint64(n) > uint64(available)/perRow {
		return 0, fmt.Errorf("needs %d rows of %d bytes, only %d bytes present", n, perRow, available)
	}
	return n * d, nil
}

// ReadCSV reads one vector per line of comma-separated floats. A first line that
// does not parse as numbers is treated as a header and skipped.
func ReadCSV(r io.Reader) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var rows [][]float32
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read embeddings csv: %w", err)
		}
		line++
		vec, perr := parseFloats(rec)
		if perr != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("embeddings csv line %d: %w", line, perr)
		}
		rows = append(rows, vec)
	}
	return NewMatrix(rows)
}

func parseFloats(fields []string) ([]float32, error) {
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}
