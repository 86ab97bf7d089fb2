// Package ocr wraps external OCR services. Engines are opaque: they take a single-page
// PDF and return its text.
package ocr

import (
	"context"
	"fmt"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

type Options struct {
	// Language uses tesseract syntax, e.g. "heb+eng".
	Language string
	DPI      int
}

type Engine interface {
	Name() string
	Recognize(ctx context.Context, pagePDF []byte, opts Options) (string, error)
}

var logger = logger_i.NewLogger("ocr")

// NoopEngine is used when OCR is disabled; pages without a text layer stay empty.
type NoopEngine struct{}

func (NoopEngine) Name() string { return config.OCREngineNone }

func (NoopEngine) Recognize(ctx context.Context, pagePDF []byte, opts Options) (string, error) {
	return "", nil
}

// NewEngine builds the engine selected in config. The returned closer releases the
// engine's resources and is never nil.
func NewEngine(ctx context.Context, cfg config.OCRConfig) (Engine, func(), error) {
	switch cfg.Engine {
	case config.OCREngineGemini:
		engine, err := NewGeminiEngine(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, func() {}, err
		}
		return engine, engine.Close, nil
	case config.OCREngineTesseract:
		return NewTesseractEngine(cfg.PdftoppmBin, cfg.TesseractBin), func() {}, nil
	case config.OCREngineNone, "":
		return NoopEngine{}, func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}
