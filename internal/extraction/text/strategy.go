// Package text turns PDF pages into text through an ordered list of strategies.
package text

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/ocr"
	"github.com/akolanti/FinDocAPI/internal/extraction/pdfsource"
)

type Strategy interface {
	Name() string
	Extract(ctx context.Context, page pdfsource.Page) (string, error)
}

// NativeStrategy reads the PDF text layer. Cheap and exact when the layer exists.
type NativeStrategy struct {
	Timeout time.Duration
}

func (NativeStrategy) Name() string { return documentModel.MethodNative }

func (n NativeStrategy) Extract(ctx context.Context, page pdfsource.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resChan <- result{"", fmt.Errorf("%w: page %d: %v", documentModel.ErrExtractionFailure, page.Number(), rec)}
			}
		}()
		content, err := page.PlainText()
		resChan <- result{content, err}
	}()

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case r := <-resChan:
		if r.err != nil && !errors.Is(r.err, documentModel.ErrExtractionFailure) {
			r.err = fmt.Errorf("%w: %v", documentModel.ErrExtractionFailure, r.err)
		}
		return r.content, r.err
	case <-time.After(timeout):
		return "", fmt.Errorf("%w: native extraction timed out on page %d", documentModel.ErrExtractionFailure, page.Number())
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// OCRStrategy hands a single-page PDF to an OCR engine.
type OCRStrategy struct {
	Engine  ocr.Engine
	Options ocr.Options
}

func (OCRStrategy) Name() string { return documentModel.MethodOCR }

func (o OCRStrategy) Extract(ctx context.Context, page pdfsource.Page) (string, error) {
	pagePDF, err := page.SinglePagePDF()
	if err != nil {
		return "", err
	}
	text, err := o.Engine.Recognize(ctx, pagePDF, o.Options)
	if err != nil {
		return "", fmt.Errorf("%w: %s ocr on page %d: %v", documentModel.ErrExtractionFailure, o.Engine.Name(), page.Number(), err)
	}
	return text, nil
}
