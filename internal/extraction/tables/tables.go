// Package tables locates tabular regions on a page and extracts their cell grids.
package tables

import (
	"context"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/pdfsource"
	"github.com/akolanti/FinDocAPI/internal/metrics"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

// Candidate is a detected region before its content is read.
// BBox is [x1, y1, x2, y2] in PDF points.
type Candidate struct {
	BBox       [4]float64
	Confidence float64
}

type Detector interface {
	Detect(ctx context.Context, page pdfsource.Page) ([]Candidate, error)
}

type GridExtractor interface {
	ExtractGrid(ctx context.Context, page pdfsource.Page, bbox [4]float64) ([][]string, error)
}

type Service struct {
	Detector  Detector
	Grid      GridExtractor
	Threshold float64
	logger    *logger_i.Logger
}

func NewService(detector Detector, grid GridExtractor, threshold float64) *Service {
	if threshold <= 0 {
		threshold = config.TableConfidenceThreshold
	}
	return &Service{
		Detector:  detector,
		Grid:      grid,
		Threshold: threshold,
		logger:    logger_i.NewLogger("tables"),
	}
}

// ExtractTables returns the regions at or above the confidence threshold. A region
// whose grid cannot be read is kept with an empty grid and GridError set. The error
// return is only for detection itself failing; the caller records no tables then.
func (s *Service) ExtractTables(ctx context.Context, page pdfsource.Page) ([]documentModel.Table, error) {
	candidates, err := s.Detector.Detect(ctx, page)
	if err != nil {
		return []documentModel.Table{}, err
	}

	out := make([]documentModel.Table, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence < s.Threshold {
			continue
		}
		table := documentModel.Table{
			Coordinates: c.BBox,
			Confidence:  clamp01(c.Confidence),
			Grid:        [][]string{},
		}
		grid, err := s.Grid.ExtractGrid(ctx, page, c.BBox)
		if err != nil {
			s.logger.WithTrace(ctx).Warn("grid extraction failed", "page", page.Number(), "error", err)
			table.GridError = err.Error()
		} else if grid != nil {
			table.Grid = grid
		}
		metrics.CaptureTableRegion(err == nil)
		out = append(out, table)
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
