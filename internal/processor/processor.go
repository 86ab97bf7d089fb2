// Package processor drives one uploaded file through text extraction, table detection and
// pattern harvesting, persisting the document record as it evolves.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/ocr"
	"github.com/akolanti/FinDocAPI/internal/extraction/patterns"
	"github.com/akolanti/FinDocAPI/internal/extraction/pdfsource"
	"github.com/akolanti/FinDocAPI/internal/extraction/tables"
	"github.com/akolanti/FinDocAPI/internal/extraction/text"
	"github.com/akolanti/FinDocAPI/internal/metrics"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

// Upload is a file accepted for processing. Path must stay readable until Process returns.
type Upload struct {
	Id       string
	Path     string
	Filename string
	Options  documentModel.ProcessOptions
}

type Processor struct {
	store    documentModel.DocumentStore
	engine   ocr.Engine
	tables   *tables.Service
	patterns patterns.Extractor
	cfg      config.ExtractionConfig
	logger   *logger_i.Logger

	// Open is pdfsource.Open unless replaced.
	Open pdfsource.OpenFunc
}

func New(store documentModel.DocumentStore, engine ocr.Engine, cfg config.ExtractionConfig) *Processor {
	if engine == nil {
		engine = ocr.NoopEngine{}
	}
	layout := tables.NewLayoutDetector()
	return &Processor{
		store:    store,
		engine:   engine,
		tables:   tables.NewService(layout, layout, cfg.TableThreshold),
		patterns: patterns.Extractor{ValidateISINChecksum: cfg.ValidateISINChecksum},
		cfg:      cfg,
		logger:   logger_i.NewLogger("processor"),
		Open:     pdfsource.Open,
	}
}

// Process runs the pipeline for one upload. A document that could not be processed is
// returned in failed status together with the classifying error. Storage errors are
// wrapped in ErrPersistenceFailure and leave the record as last written, unless ctx
// ended first, in which case the document is failed as interrupted.
func (p *Processor) Process(ctx context.Context, up Upload) (documentModel.Document, error) {
	start := time.Now()
	log := p.logger.WithTrace(ctx).With("documentId", up.Id)

	doc, err := p.load(ctx, up)
	if err != nil {
		return doc, err
	}

	doc.Status = documentModel.StatusProcessing
	if err := p.put(ctx, &doc); err != nil {
		return doc, err
	}
	log.Info("processing document", "filename", up.Filename)

	file, err := p.Open(up.Path)
	if err != nil {
		log.Warn("cannot open document", "error", err)
		return p.fail(ctx, doc, start, reasonFor(err), err)
	}
	defer file.Close()

	doc.PageCount = file.NumPages()
	if doc.PageCount == 0 {
		return p.fail(ctx, doc, start, "document has no pages", documentModel.ErrUnreadable)
	}

	if err := p.runPages(ctx, &doc, file); err != nil {
		// a store that honours deadlines fails the page write too; the timeout is the cause
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.fail(ctx, doc, start, "processing interrupted: "+ctxErr.Error(), ctxErr)
		}
		if errors.Is(err, documentModel.ErrPersistenceFailure) {
			log.Error("persisting page failed", "error", err)
			return doc, err
		}
		return p.fail(ctx, doc, start, "processing interrupted: "+err.Error(), err)
	}
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, doc, start, "processing interrupted: "+err.Error(), err)
	}

	doc.FinancialData = p.harvest(doc.Pages)
	doc.Status = documentModel.StatusComplete
	if err := p.put(ctx, &doc); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.fail(ctx, doc, start, "processing interrupted: "+ctxErr.Error(), ctxErr)
		}
		return doc, err
	}
	metrics.CaptureDocumentMetrics(string(doc.Status), time.Since(start))
	log.Info("document complete", "pages", doc.PageCount, "isins", len(doc.FinancialData.ISINs))
	return doc, nil
}

// load returns the pending record written at upload time, or creates it.
func (p *Processor) load(ctx context.Context, up Upload) (documentModel.Document, error) {
	doc, err := p.store.Get(ctx, up.Id)
	if err == nil {
		if doc.Pages == nil {
			doc.Pages = make(map[int]documentModel.Page)
		}
		return doc, nil
	}
	if !errors.Is(err, documentModel.ErrNotFound) {
		return documentModel.Document{}, fmt.Errorf("%w: loading %s: %v", documentModel.ErrPersistenceFailure, up.Id, err)
	}
	doc = documentModel.NewDocument(up.Id, up.Filename, up.Options)
	if err := p.put(ctx, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func (p *Processor) runPages(ctx context.Context, doc *documentModel.Document, file pdfsource.Document) error {
	selector := p.selector(doc.Options)
	workers := p.cfg.PageWorkers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for n := 1; n <= file.NumPages(); n++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			page := p.processPage(gctx, selector, file.Page(n))

			mu.Lock()
			defer mu.Unlock()
			doc.Pages[n] = page
			return p.put(context.WithoutCancel(gctx), doc)
		})
	}
	return g.Wait()
}

func (p *Processor) selector(opts documentModel.ProcessOptions) *text.Selector {
	ocrOpts := ocr.Options{Language: opts.Language, DPI: opts.DPI}
	if ocrOpts.Language == "" {
		ocrOpts.Language = p.cfg.Language
	}
	if ocrOpts.DPI <= 0 {
		ocrOpts.DPI = p.cfg.DPI
	}
	return &text.Selector{
		Strategies: []text.Strategy{
			text.NativeStrategy{Timeout: config.PageExtractTimeout},
			text.OCRStrategy{Engine: p.engine, Options: ocrOpts},
		},
		MinChars: p.cfg.MinNativeChars,
	}
}

// processPage never fails: problems end up in the page's Error field.
func (p *Processor) processPage(ctx context.Context, selector *text.Selector, raw pdfsource.Page) (page documentModel.Page) {
	number := raw.Number()
	log := p.logger.WithTrace(ctx).With("page", number)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("page processing panicked", "panic", rec)
			page = documentModel.Page{
				Tables: []documentModel.Table{},
				Method: documentModel.MethodNone,
				Error:  fmt.Sprintf("%v: %v", documentModel.ErrExtractionFailure, rec),
			}
		}
	}()

	source := pdfsource.Cached(raw)
	res := selector.ExtractPage(ctx, source)
	metrics.CapturePageMethod(res.Method)

	found, err := p.tables.ExtractTables(ctx, source)
	var problems []string
	if msg := res.Error(); msg != "" {
		problems = append(problems, msg)
	}
	if err != nil {
		log.Warn("table detection failed", "error", err)
		problems = append(problems, "tables: "+err.Error())
	}

	return documentModel.Page{
		Text:   res.Text,
		Tables: found,
		Method: res.Method,
		Error:  strings.Join(problems, "; "),
	}
}

// harvest builds the document-level sets from page text. Entities keep the first page
// each value was seen on.
func (p *Processor) harvest(pages map[int]documentModel.Page) documentModel.FinancialData {
	indexes := make([]int, 0, len(pages))
	for n := range pages {
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)

	isins := make(map[string]struct{})
	dates := make(map[string]struct{})
	amounts := make(map[string]struct{})
	ambiguous := make(map[string]struct{})
	seen := make(map[documentModel.EntityKind]map[string]struct{})
	var entities []documentModel.Entity

	for _, n := range indexes {
		page := pages[n]
		if page.Text == nil {
			continue
		}
		body := *page.Text
		addAll(isins, p.patterns.ISINs(body))
		addAll(dates, p.patterns.Dates(body))
		addAll(amounts, p.patterns.Amounts(body))
		addAll(ambiguous, p.patterns.AmbiguousDates(body))
		for _, e := range p.patterns.Entities(n, body) {
			if seen[e.Kind] == nil {
				seen[e.Kind] = make(map[string]struct{})
			}
			if _, ok := seen[e.Kind][e.Value]; ok {
				continue
			}
			seen[e.Kind][e.Value] = struct{}{}
			entities = append(entities, e)
		}
	}

	data := documentModel.FinancialData{
		ISINs:    sorted(isins),
		Dates:    sorted(dates),
		Amounts:  sorted(amounts),
		Entities: entities,
	}
	if len(ambiguous) > 0 {
		data.AmbiguousDates = sorted(ambiguous)
	}
	return data
}

func (p *Processor) fail(ctx context.Context, doc documentModel.Document, start time.Time, reason string, cause error) (documentModel.Document, error) {
	doc.Status = documentModel.StatusFailed
	doc.Reason = reason
	// the caller's context may already be done; the failed state still has to land
	if err := p.put(context.WithoutCancel(ctx), &doc); err != nil {
		return doc, errors.Join(cause, err)
	}
	metrics.CaptureDocumentMetrics(string(doc.Status), time.Since(start))
	p.logger.WithTrace(ctx).Warn("document failed", "documentId", doc.Id, "reason", reason)
	return doc, cause
}

func (p *Processor) put(ctx context.Context, doc *documentModel.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	if err := p.store.Put(ctx, doc.Id, *doc); err != nil {
		return fmt.Errorf("%w: %v", documentModel.ErrPersistenceFailure, err)
	}
	return nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, documentModel.ErrUnsupportedFormat):
		return "unsupported format: only PDF documents are accepted"
	case errors.Is(err, documentModel.ErrUnreadable):
		return "the file could not be read as a PDF"
	default:
		return err.Error()
	}
}

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		set[v] = struct{}{}
	}
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
