package catalog

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/cursobot/internal/vector"
)

const spanishCSV = "\ufeffID_OFERTA,NOMBRE_OFERTA,MODALIDAD,TIPO_OFERTA,DESCRIPCION_GENERAL,AREA,UNIDAD_ADSCRITA,DEPENDENCIA_PRINCIPAL,CODIGO_PORTAFOLIO,LINEA\n" +
	"1,Programación en Python,Virtual,Curso,Fundamentos de  programación,Ingeniería,Facultad de Ingeniería,Ingeniería,EXT,Educación Continua\n" +
	"2,Excel avanzado,Presencial,Diplomado,Tablas dinámicas,Ciencias económicas,Facultad,Economía,REG,Pregrado\n"

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

// writeMatrix writes rows in the binary .vec layout: dimension, count, then float32 data.
func writeMatrix(t *testing.T, dir string, rows [][]float32) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(rows[0]))))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(rows))))
	for _, r := range rows {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, r))
	}
	p := filepath.Join(dir, "embeddings.vec")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0644))
	return p
}

func TestLoad_CSVWithSpanishHeaders(t *testing.T) {
	dir := t.TempDir()
	courses := writeFixture(t, dir, "cursos.csv", spanishCSV)
	emb := writeMatrix(t, dir, [][]float32{{1, 0}, {0, 1}})

	cat, err := Load(courses, emb, "")
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	c := cat.Course(0)
	assert.Equal(t, "1", c.OfferingID)
	assert.Equal(t, "Programación en Python", c.Name)
	assert.Equal(t, "Virtual", c.Modality)
	assert.Equal(t, "Fundamentos de programación", c.Description, "inner whitespace is collapsed")
	assert.Equal(t, "EXT", c.PortfolioCode)
	assert.Equal(t, "Educación Continua", c.CategoryLabel)
	assert.Len(t, cat.Version(), 12)
	assert.Equal(t, []string{"Programación en Python", "Excel avanzado"}, cat.Names())
}

func TestLoad_Misaligned(t *testing.T) {
	dir := t.TempDir()
	courses := writeFixture(t, dir, "cursos.csv", spanishCSV)
	emb := writeMatrix(t, dir, [][]float32{{1, 0}})

	_, err := Load(courses, emb, "")
	require.ErrorIs(t, err, ErrMisaligned)
}

func TestParseCourses_MissingColumns(t *testing.T) {
	_, err := ParseCourses([]byte("name,modality\nExcel,Virtual\n"), ".csv", "")
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "portfolio_code")
}

func TestParseCourses_ShortRowsAndTSV(t *testing.T) {
	data := "offering_id\tname\tmodality\toffer_type\tdescription\tarea\tunit\tdepartment\tportfolio_code\tcategory_label\n" +
		"9\tRedes\tMixta\n"
	courses, err := ParseCourses([]byte(data), ".tsv", "")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Mixta", courses[0].Modality)
	assert.Empty(t, courses[0].CategoryLabel)
}

func TestParseCourses_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	header := []interface{}{"offering_id", "name", "modality", "offer_type", "description", "area", "unit", "department", "portfolio_code", "category_label"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	row := []interface{}{"7", "Inglés conversacional", "Virtual", "Curso", "Idiomas", "Idiomas", "Escuela", "Idiomas", "EC", "Extensión"}
	require.NoError(t, f.SetSheetRow(sheet, "A2", &row))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	courses, err := ParseCourses(buf.Bytes(), ".xlsx", "")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Inglés conversacional", courses[0].Name)

	_, err = ParseCourses(buf.Bytes(), ".xlsx", "NoSuchSheet")
	assert.Error(t, err)
}

func TestParseEmbeddings_Formats(t *testing.T) {
	m, err := ParseEmbeddings([]byte("0.1,0.2\n0.3,0.4\n"), ".csv")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	_, err = ParseEmbeddings([]byte("x"), ".parquet")
	assert.Error(t, err)
}

func TestProvider_ReloadKeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	courses := writeFixture(t, dir, "cursos.csv", spanishCSV)
	emb := writeMatrix(t, dir, [][]float32{{1, 0}, {0, 1}})

	p := NewProvider(Source{CoursesPath: courses, EmbeddingsPath: emb}, nil)
	_, err := p.Get()
	require.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, p.Status().Loaded)

	first, err := p.Reload()
	require.NoError(t, err)
	got, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, first, got)

	require.NoError(t, os.WriteFile(courses, []byte("name\nbroken\n"), 0644))
	_, err = p.Reload()
	require.Error(t, err)
	got, err = p.Get()
	require.NoError(t, err)
	assert.Same(t, first, got, "failed reload must keep the previous snapshot")

	st := p.Status()
	assert.True(t, st.Loaded)
	assert.Equal(t, 2, st.Rows)
	assert.NotEmpty(t, st.LastError)
}

func TestProvider_ReloadRejectsCorruptEmbeddings(t *testing.T) {
	dir := t.TempDir()
	courses := writeFixture(t, dir, "cursos.csv", spanishCSV)
	emb := writeMatrix(t, dir, [][]float32{{1, 0}, {0, 1}})

	p := NewProvider(Source{CoursesPath: courses, EmbeddingsPath: emb}, nil)
	first, err := p.Reload()
	require.NoError(t, err)

	// Header claims 2^32-1 rows of width 2 over 16 bytes of data.
	corrupt := []byte{2, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}
	corrupt = append(corrupt, make([]byte, 16)...)
	require.NoError(t, os.WriteFile(emb, corrupt, 0644))

	_, err = p.Reload()
	require.Error(t, err)
	got, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestStaticProvider(t *testing.T) {
	m, _ := vector.NewMatrix(nil)
	cat, err := New(nil, m)
	require.NoError(t, err)
	p := NewStaticProvider(cat)
	got, err := p.Reload()
	require.NoError(t, err)
	assert.Same(t, cat, got)
}
