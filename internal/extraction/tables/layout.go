package tables

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/pdfsource"
)

// LayoutDetector finds tables from glyph positions alone: text is grouped into lines by
// baseline, lines are split into cells on wide horizontal gaps, and runs of consecutive
// multi-cell lines become candidate regions.
type LayoutDetector struct {
	// CellGapFactor times the font size is the gap that separates two cells.
	CellGapFactor float64
	// MinRows is the shortest run of multi-cell lines reported as a table.
	MinRows int
}

func NewLayoutDetector() *LayoutDetector {
	return &LayoutDetector{CellGapFactor: 1.2, MinRows: 2}
}

type cell struct {
	text string
	x1   float64
	x2   float64
}

type line struct {
	y      float64
	height float64
	cells  []cell
}

func (d *LayoutDetector) Detect(ctx context.Context, page pdfsource.Page) ([]Candidate, error) {
	glyphs, err := page.Glyphs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", documentModel.ErrTableDetectionFailure, err)
	}
	lines := d.buildLines(glyphs)

	var candidates []Candidate
	var run []line
	flush := func() {
		if len(run) >= d.minRows() {
			candidates = append(candidates, newCandidate(run))
		}
		run = nil
	}
	for _, ln := range lines {
		if len(ln.cells) < 2 {
			flush()
			continue
		}
		if len(run) > 0 {
			prev := run[len(run)-1]
			if prev.y-ln.y > 2.5*math.Max(prev.height, ln.height) {
				flush()
			}
		}
		run = append(run, ln)
	}
	flush()
	return candidates, nil
}

// ExtractGrid rebuilds the cell grid from the glyphs inside bbox. Rows keep their own
// length; the grid is ragged when rows have different cell counts.
func (d *LayoutDetector) ExtractGrid(ctx context.Context, page pdfsource.Page, bbox [4]float64) ([][]string, error) {
	glyphs, err := page.Glyphs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", documentModel.ErrTableDetectionFailure, err)
	}
	var inside []pdfsource.Glyph
	for _, g := range glyphs {
		if g.X >= bbox[0]-0.5 && g.X+g.W <= bbox[2]+0.5 && g.Y >= bbox[1]-0.5 && g.Y <= bbox[3]+0.5 {
			inside = append(inside, g)
		}
	}
	if len(inside) == 0 {
		return nil, fmt.Errorf("%w: no text inside region", documentModel.ErrTableDetectionFailure)
	}

	var grid [][]string
	for _, ln := range d.buildLines(inside) {
		row := make([]string, 0, len(ln.cells))
		for _, c := range ln.cells {
			row = append(row, c.text)
		}
		grid = append(grid, row)
	}
	return grid, nil
}

func (d *LayoutDetector) minRows() int {
	if d.MinRows < 2 {
		return 2
	}
	return d.MinRows
}

// buildLines returns lines top to bottom (PDF y grows upwards).
func (d *LayoutDetector) buildLines(glyphs []pdfsource.Glyph) []line {
	var visible []pdfsource.Glyph
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) != "" {
			visible = append(visible, g)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Y != visible[j].Y {
			return visible[i].Y > visible[j].Y
		}
		return visible[i].X < visible[j].X
	})

	var lines []line
	var current []pdfsource.Glyph
	for _, g := range visible {
		if len(current) > 0 {
			ref := current[0]
			if math.Abs(ref.Y-g.Y) > 0.5*math.Max(ref.Size, 1) {
				lines = append(lines, d.toLine(current))
				current = nil
			}
		}
		current = append(current, g)
	}
	if len(current) > 0 {
		lines = append(lines, d.toLine(current))
	}
	return lines
}

func (d *LayoutDetector) toLine(glyphs []pdfsource.Glyph) line {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	ln := line{y: glyphs[0].Y}
	var b strings.Builder
	var cur cell
	started := false
	prevEnd := 0.0
	for _, g := range glyphs {
		size := math.Max(g.Size, 1)
		ln.height = math.Max(ln.height, size)
		gap := g.X - prevEnd
		switch {
		case !started:
			cur = cell{x1: g.X}
			started = true
		case gap > d.CellGapFactor*size:
			cur.text = strings.TrimSpace(b.String())
			ln.cells = append(ln.cells, cur)
			b.Reset()
			cur = cell{x1: g.X}
		case gap > 0.15*size:
			b.WriteByte(' ')
		}
		b.WriteString(g.S)
		prevEnd = g.X + g.W
		cur.x2 = prevEnd
	}
	cur.text = strings.TrimSpace(b.String())
	ln.cells = append(ln.cells, cur)
	return ln
}

// newCandidate scores a run by how consistently its rows share one column count,
// with a small bonus for longer runs.
func newCandidate(rows []line) Candidate {
	bbox := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	counts := make(map[int]int)
	for _, r := range rows {
		counts[len(r.cells)]++
		bbox[0] = math.Min(bbox[0], r.cells[0].x1)
		bbox[2] = math.Max(bbox[2], r.cells[len(r.cells)-1].x2)
		bbox[1] = math.Min(bbox[1], r.y)
		bbox[3] = math.Max(bbox[3], r.y+r.height)
	}
	modal := 0
	for _, n := range counts {
		if n > modal {
			modal = n
		}
	}
	consistency := float64(modal) / float64(len(rows))
	length := math.Min(1, float64(len(rows))/4)
	confidence := 0.7*consistency + 0.3*length
	return Candidate{BBox: bbox, Confidence: math.Round(confidence*1000) / 1000}
}
