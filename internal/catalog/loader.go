package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/vector"
	"github.com/hyperjump/cursobot/pkg/utils"
)

// ErrMissingColumns is returned when the course table lacks required columns.
var ErrMissingColumns = errors.New("missing required catalog columns")

// Required columns with accepted header aliases. Headers are compared after
// folding case and accents and dropping spaces, dashes and underscores.
var columnAliases = map[string][]string{
	"offering_id":    {"offering_id", "id_oferta", "codigo_oferta", "id"},
	"name":           {"name", "nombre_oferta", "nombre"},
	"modality":       {"modality", "modalidad"},
	"offer_type":     {"offer_type", "tipo_oferta", "tipo"},
	"description":    {"description", "descripcion_general", "descripcion"},
	"area":           {"area"},
	"unit":           {"unit", "unidad_adscrita", "unidad"},
	"department":     {"department", "dependencia_principal", "dependencia"},
	"portfolio_code": {"portfolio_code", "codigo_portafolio", "portafolio"},
	"category_label": {"category_label", "linea", "categoria"},
}

// Load reads the course table and embedding matrix and checks their alignment.
// sheet selects the worksheet for spreadsheet tables; empty means the first sheet.
func Load(coursesPath, embeddingsPath, sheet string) (*Catalog, error) {
	courseData, err := os.ReadFile(coursesPath)
	if err != nil {
		return nil, fmt.Errorf("read courses: %w", err)
	}
	embData, err := os.ReadFile(embeddingsPath)
	if err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}

	courses, err := ParseCourses(courseData, filepath.Ext(coursesPath), sheet)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(coursesPath), err)
	}
	emb, err := ParseEmbeddings(embData, filepath.Ext(embeddingsPath))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(embeddingsPath), err)
	}
	cat, err := New(courses, emb)
	if err != nil {
		return nil, err
	}
	return cat.withVersion(contentVersion(courseData, embData)), nil
}

// ParseCourses parses a course table. ext selects the format (.csv, .tsv, .xlsx, .xlsm).
func ParseCourses(data []byte, ext, sheet string) ([]models.Course, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(ext) {
	case ".csv":
		rows, err = readDelimited(data, ',')
	case ".tsv":
		rows, err = readDelimited(data, '\t')
	case ".xlsx", ".xlsm":
		rows, err = readSpreadsheet(data, sheet)
	default:
		return nil, fmt.Errorf("unsupported course table format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return coursesFromRows(rows)
}

// ParseEmbeddings parses an embedding matrix. ext selects the format (.npy, .csv, .vec).
func ParseEmbeddings(data []byte, ext string) (*vector.Matrix, error) {
	r := bytes.NewReader(data)
	switch strings.ToLower(ext) {
	case ".npy":
		return vector.ReadNPY(r)
	case ".csv":
		return vector.ReadCSV(r)
	case ".vec", ".bin":
		return vector.ReadBinary(r)
	default:
		return nil, fmt.Errorf("unsupported embedding format %q", ext)
	}
}

func readDelimited(data []byte, comma rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readSpreadsheet(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func coursesFromRows(rows [][]string) ([]models.Course, error) {
	if len(rows) == 0 {
		return nil, errors.New("course table is empty")
	}
	index := headerIndex(rows[0])
	var missing []string
	for col := range columnAliases {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	cell := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return utils.NormalizeSpace(row[i])
	}
	courses := make([]models.Course, 0, len(rows)-1)
	for _, row := range rows[1:] {
		courses = append(courses, models.Course{
			OfferingID:    cell(row, "offering_id"),
			Name:          cell(row, "name"),
			Modality:      cell(row, "modality"),
			OfferType:     cell(row, "offer_type"),
			Description:   cell(row, "description"),
			Area:          cell(row, "area"),
			Unit:          cell(row, "unit"),
			Department:    cell(row, "department"),
			PortfolioCode: cell(row, "portfolio_code"),
			CategoryLabel: cell(row, "category_label"),
		})
	}
	return courses, nil
}

// headerIndex maps canonical column names to their position in header.
// The first matching header wins.
func headerIndex(header []string) map[string]int {
	byKey := make(map[string]int, len(header))
	for i, h := range header {
		k := headerKey(h)
		if _, dup := byKey[k]; !dup {
			byKey[k] = i
		}
	}
	index := make(map[string]int, len(columnAliases))
	for col, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := byKey[headerKey(a)]; ok {
				index[col] = i
				break
			}
		}
	}
	return index
}

func headerKey(h string) string {
	h = utils.Fold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

func contentVersion(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
