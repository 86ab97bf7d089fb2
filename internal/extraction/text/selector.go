package text

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/pdfsource"
	"github.com/akolanti/FinDocAPI/internal/metrics"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

var logger = logger_i.NewLogger("text selector")

var captureOCRFallback = metrics.CaptureOCRFallback

type Attempt struct {
	Strategy string
	Chars    int
	Err      error
}

// Result is the outcome for one page. Text is nil when every strategy failed.
type Result struct {
	Text     *string
	Method   string
	Attempts []Attempt
}

// Error summarizes failed attempts, empty when none failed.
func (r Result) Error() string {
	var msgs []string
	for _, a := range r.Attempts {
		if a.Err != nil {
			msgs = append(msgs, a.Strategy+": "+a.Err.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

// Selector tries strategies in order for each page independently. A result with at
// least MinChars non-whitespace characters is accepted immediately; otherwise the next
// strategy runs. When none is sufficient, the latest successful result is recorded.
type Selector struct {
	Strategies []Strategy
	MinChars   int
}

func (s *Selector) ExtractPage(ctx context.Context, page pdfsource.Page) Result {
	log := logger.WithTrace(ctx).With("page", page.Number())
	var res Result
	var fallbackMethod, fallbackText string

	for i, strategy := range s.Strategies {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if strategy.Name() == documentModel.MethodOCR {
				captureOCRFallback()
			}
			log.Debug("falling back", "strategy", strategy.Name())
		}

		text, err := safeExtract(ctx, strategy, page)
		attempt := Attempt{Strategy: strategy.Name(), Chars: NonSpaceChars(text), Err: err}
		res.Attempts = append(res.Attempts, attempt)
		if err != nil {
			log.Warn("strategy failed", "strategy", strategy.Name(), "error", err)
			continue
		}
		if attempt.Chars >= s.MinChars {
			res.Text = &text
			res.Method = strategy.Name()
			return res
		}
		fallbackMethod = strategy.Name()
		fallbackText = text
	}

	if fallbackMethod != "" {
		res.Text = &fallbackText
		res.Method = fallbackMethod
		return res
	}
	res.Method = documentModel.MethodNone
	return res
}

// ExtractAll maps page number to result. An empty map means the document had no pages
// or the context ended before any page ran.
func (s *Selector) ExtractAll(ctx context.Context, doc pdfsource.Document) map[int]Result {
	out := make(map[int]Result, doc.NumPages())
	for n := 1; n <= doc.NumPages(); n++ {
		if ctx.Err() != nil {
			break
		}
		out[n] = s.ExtractPage(ctx, doc.Page(n))
	}
	return out
}

func safeExtract(ctx context.Context, strategy Strategy, page pdfsource.Page) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: %s panicked: %v", documentModel.ErrExtractionFailure, strategy.Name(), rec)
		}
	}()
	return strategy.Extract(ctx, page)
}

func NonSpaceChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
