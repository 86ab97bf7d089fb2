package tables

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/pdfsource"
)

type glyphPage struct {
	glyphs []pdfsource.Glyph
	err    error
}

func (p *glyphPage) Number() int                        { return 1 }
func (p *glyphPage) PlainText() (string, error)         { return "", nil }
func (p *glyphPage) Glyphs() ([]pdfsource.Glyph, error) { return p.glyphs, p.err }
func (p *glyphPage) SinglePagePDF() ([]byte, error)     { return nil, nil }

func word(x, y float64, s string) pdfsource.Glyph {
	return pdfsource.Glyph{X: x, Y: y, W: float64(len(s)) * 5, Size: 10, S: s}
}

func holdingsPage() *glyphPage {
	return &glyphPage{glyphs: []pdfsource.Glyph{
		word(50, 760, "Quarterly"), word(100, 760, "report"),
		word(50, 700, "ISIN"), word(200, 700, "Value"),
		word(50, 686, "US0378331005"), word(200, 686, "1,000.00"),
		word(50, 672, "DE0007164600"), word(200, 672, "2,500.00"),
		word(50, 600, "Notes"),
	}}
}

func TestLayoutDetector_FindsConsistentTable(t *testing.T) {
	d := NewLayoutDetector()
	candidates, err := d.Detect(context.Background(), holdingsPage())

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	c := candidates[0]
	assert.InDelta(t, 0.925, c.Confidence, 0.001)
	assert.Equal(t, 50.0, c.BBox[0])
	assert.Equal(t, 672.0, c.BBox[1])
	assert.Equal(t, 240.0, c.BBox[2])
	assert.Equal(t, 710.0, c.BBox[3])
}

func TestLayoutDetector_ExtractGrid(t *testing.T) {
	d := NewLayoutDetector()
	page := holdingsPage()
	candidates, err := d.Detect(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	grid, err := d.ExtractGrid(context.Background(), page, candidates[0].BBox)

	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ISIN", "Value"},
		{"US0378331005", "1,000.00"},
		{"DE0007164600", "2,500.00"},
	}, grid)
}

func TestLayoutDetector_MergesCharacterGlyphs(t *testing.T) {
	d := NewLayoutDetector()
	line := d.toLine([]pdfsource.Glyph{
		{X: 50, Y: 500, W: 5, Size: 10, S: "A"},
		{X: 55, Y: 500, W: 5, Size: 10, S: "B"},
		{X: 63, Y: 500, W: 5, Size: 10, S: "C"},
		{X: 150, Y: 500, W: 5, Size: 10, S: "D"},
	})

	require.Len(t, line.cells, 2)
	assert.Equal(t, "AB C", line.cells[0].text)
	assert.Equal(t, "D", line.cells[1].text)
}

func TestLayoutDetector_SingleColumnTextIsNotATable(t *testing.T) {
	page := &glyphPage{glyphs: []pdfsource.Glyph{
		word(50, 700, "First"),
		word(50, 686, "Second"),
		word(50, 672, "Third"),
	}}
	candidates, err := NewLayoutDetector().Detect(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestLayoutDetector_GridOutsideTextFails(t *testing.T) {
	_, err := NewLayoutDetector().ExtractGrid(context.Background(), holdingsPage(), [4]float64{0, 0, 10, 10})
	assert.ErrorIs(t, err, documentModel.ErrTableDetectionFailure)
}

func TestService_FiltersBelowThreshold(t *testing.T) {
	page := &glyphPage{glyphs: []pdfsource.Glyph{
		word(50, 700, "a"), word(200, 700, "b"),
		word(50, 686, "c"), word(100, 686, "d"), word(200, 686, "e"), word(300, 686, "f"),
	}}
	d := NewLayoutDetector()
	candidates, err := d.Detect(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.5, candidates[0].Confidence, 0.001)

	tables, err := NewService(d, d, 0.7).ExtractTables(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

type fixedDetector struct {
	candidates []Candidate
	err        error
}

func (f fixedDetector) Detect(context.Context, pdfsource.Page) ([]Candidate, error) {
	return f.candidates, f.err
}

type failingGrid struct{}

func (failingGrid) ExtractGrid(context.Context, pdfsource.Page, [4]float64) ([][]string, error) {
	return nil, errors.New("ruling lines unreadable")
}

func TestService_GridFailureKeepsRegion(t *testing.T) {
	bbox := [4]float64{10, 20, 300, 400}
	svc := NewService(fixedDetector{candidates: []Candidate{{BBox: bbox, Confidence: 0.9}}}, failingGrid{}, 0)

	tables, err := svc.ExtractTables(context.Background(), &glyphPage{})

	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, bbox, tables[0].Coordinates)
	assert.Equal(t, 0.9, tables[0].Confidence)
	assert.NotNil(t, tables[0].Grid)
	assert.Empty(t, tables[0].Grid)
	assert.Contains(t, tables[0].GridError, "ruling lines")
}

func TestService_DetectionFailureYieldsNoTables(t *testing.T) {
	svc := NewService(fixedDetector{err: documentModel.ErrTableDetectionFailure}, failingGrid{}, 0)

	tables, err := svc.ExtractTables(context.Background(), &glyphPage{})

	assert.ErrorIs(t, err, documentModel.ErrTableDetectionFailure)
	assert.NotNil(t, tables)
	assert.Empty(t, tables)
}

func TestService_ThresholdIsInclusive(t *testing.T) {
	d := fixedDetector{candidates: []Candidate{
		{BBox: [4]float64{0, 0, 1, 1}, Confidence: 0.7},
		{BBox: [4]float64{0, 2, 1, 3}, Confidence: 0.69},
	}}
	tables, err := NewService(d, NewLayoutDetector(), 0.7).ExtractTables(context.Background(), &glyphPage{})

	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, 0.7, tables[0].Confidence)
	assert.NotEmpty(t, tables[0].GridError)
}
