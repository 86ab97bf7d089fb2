package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/data/redisStore"
	"github.com/akolanti/FinDocAPI/internal/data/store"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/ocr"
	"github.com/akolanti/FinDocAPI/internal/extraction/pdfsource"
)

type fakePage struct {
	number int
	text   string
	err    error
	panics bool
	delay  time.Duration
}

func (p *fakePage) Number() int { return p.number }
func (p *fakePage) PlainText() (string, error) {
	if p.panics {
		panic("corrupt content stream")
	}
	time.Sleep(p.delay)
	return p.text, p.err
}
func (p *fakePage) Glyphs() ([]pdfsource.Glyph, error) { return nil, nil }
func (p *fakePage) SinglePagePDF() ([]byte, error) {
	return []byte("page-" + string(rune('0'+p.number))), nil
}

type fakeFile struct {
	pages  []*fakePage
	mu     sync.Mutex
	closed bool
}

func (f *fakeFile) NumPages() int                  { return len(f.pages) }
func (f *fakeFile) Page(number int) pdfsource.Page { return f.pages[number-1] }
func (f *fakeFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type pageEngine struct {
	byPage map[string]string
	calls  int
	mu     sync.Mutex
}

func (e *pageEngine) Name() string { return "fake" }
func (e *pageEngine) Recognize(ctx context.Context, pagePDF []byte, opts ocr.Options) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	text, ok := e.byPage[string(pagePDF)]
	if !ok {
		return "", errors.New("nothing to read")
	}
	return text, nil
}

// flakyStore fails every Put after the first okPuts.
type flakyStore struct {
	*store.InMemoryDocumentStore
	okPuts int
	puts   int
}

func (s *flakyStore) Put(ctx context.Context, id string, doc documentModel.Document) error {
	s.puts++
	if s.puts > s.okPuts {
		return errors.New("disk full")
	}
	return s.InMemoryDocumentStore.Put(ctx, id, doc)
}

func testConfig() config.ExtractionConfig {
	return config.ExtractionConfig{
		MinNativeChars:       20,
		TableThreshold:       0.7,
		Language:             "heb+eng",
		DPI:                  300,
		PageWorkers:          1,
		ValidateISINChecksum: true,
	}
}

func newTestProcessor(docs documentModel.DocumentStore, engine ocr.Engine, file *fakeFile, cfg config.ExtractionConfig) *Processor {
	p := New(docs, engine, cfg)
	p.Open = func(path string) (pdfsource.Document, error) { return file, nil }
	return p
}

const (
	page1 = "Portfolio statement. Held ISIN US0378331005 valued at $1,234.56 on 01/02/2024"
	page3 = "Closing balance €2,500.00 as of 31.12.2024, reference GB0002634946"
)

func TestProcess_PageTwoNativeThrows(t *testing.T) {
	file := &fakeFile{pages: []*fakePage{
		{number: 1, text: page1},
		{number: 2, panics: true},
		{number: 3, text: page3},
	}}
	engine := &pageEngine{byPage: map[string]string{"page-2": "Scanned page lists DE0007164600 at 1,000.00"}}
	docs := store.InitInMemoryDocumentStore()
	p := newTestProcessor(docs, engine, file, testConfig())

	doc, err := p.Process(context.Background(), Upload{Id: "doc-1", Path: "statement.pdf", Filename: "statement.pdf"})

	require.NoError(t, err)
	assert.Equal(t, documentModel.StatusComplete, doc.Status)
	assert.Equal(t, 3, doc.PageCount)
	require.Len(t, doc.Pages, 3)

	assert.Equal(t, documentModel.MethodNative, doc.Pages[1].Method)
	assert.Equal(t, page1, *doc.Pages[1].Text)
	assert.Equal(t, documentModel.MethodOCR, doc.Pages[2].Method)
	assert.Contains(t, *doc.Pages[2].Text, "DE0007164600")
	assert.Contains(t, doc.Pages[2].Error, "native")
	assert.Equal(t, documentModel.MethodNative, doc.Pages[3].Method)
	assert.Equal(t, 1, engine.calls, "ocr runs only for the failed page")

	assert.Equal(t, []string{"DE0007164600", "GB0002634946", "US0378331005"}, doc.FinancialData.ISINs)
	assert.Equal(t, []string{"01/02/2024", "31.12.2024"}, doc.FinancialData.Dates)
	assert.Equal(t, []string{"$1,234.56", "1,000.00", "€2,500.00"}, doc.FinancialData.Amounts)
	assert.Equal(t, []string{"01/02/2024"}, doc.FinancialData.AmbiguousDates)

	stored, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc, stored)
	assert.True(t, file.closed)
}

func TestProcess_EntitiesKeepFirstPage(t *testing.T) {
	file := &fakeFile{pages: []*fakePage{
		{number: 1, text: page1},
		{number: 2, text: page1 + " again"},
	}}
	p := newTestProcessor(store.InitInMemoryDocumentStore(), nil, file, testConfig())

	doc, err := p.Process(context.Background(), Upload{Id: "doc-2", Filename: "a.pdf"})

	require.NoError(t, err)
	for _, e := range doc.FinancialData.Entities {
		assert.Equal(t, 1, e.Page, "%s %s", e.Kind, e.Value)
	}
	assert.Len(t, doc.FinancialData.Entities, 3)
}

func TestProcess_AllStrategiesFailLeavesNullText(t *testing.T) {
	file := &fakeFile{pages: []*fakePage{{number: 1, err: errors.New("bad xref")}}}
	p := newTestProcessor(store.InitInMemoryDocumentStore(), &pageEngine{}, file, testConfig())

	doc, err := p.Process(context.Background(), Upload{Id: "doc-3", Filename: "scan.pdf"})

	require.NoError(t, err)
	assert.Equal(t, documentModel.StatusComplete, doc.Status)
	assert.Nil(t, doc.Pages[1].Text)
	assert.Equal(t, documentModel.MethodNone, doc.Pages[1].Method)
	assert.NotNil(t, doc.Pages[1].Tables)
	assert.Empty(t, doc.FinancialData.ISINs)
}

func TestProcess_TextFileIsUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("ISIN US0378331005"), 0o600))
	docs := store.InitInMemoryDocumentStore()
	p := New(docs, nil, testConfig())

	doc, err := p.Process(context.Background(), Upload{Id: "doc-4", Path: path, Filename: "notes.txt"})

	assert.ErrorIs(t, err, documentModel.ErrUnsupportedFormat)
	assert.Equal(t, documentModel.StatusFailed, doc.Status)
	assert.Contains(t, doc.Reason, "unsupported format")

	stored, getErr := docs.Get(context.Background(), "doc-4")
	require.NoError(t, getErr)
	assert.Equal(t, documentModel.StatusFailed, stored.Status)
	assert.Empty(t, stored.Pages)
	assert.Zero(t, stored.PageCount)
	assert.Equal(t, []string{}, stored.FinancialData.ISINs)
}

func TestProcess_PersistsAfterEachPage(t *testing.T) {
	file := &fakeFile{pages: []*fakePage{
		{number: 1, text: page1},
		{number: 2, text: page3},
		{number: 3, text: page1},
	}}
	// pending, processing and page 1 succeed; page 2 does not
	docs := &flakyStore{InMemoryDocumentStore: store.InitInMemoryDocumentStore(), okPuts: 3}
	p := newTestProcessor(docs, nil, file, testConfig())

	_, err := p.Process(context.Background(), Upload{Id: "doc-5", Filename: "a.pdf"})

	assert.ErrorIs(t, err, documentModel.ErrPersistenceFailure)
	stored, getErr := docs.Get(context.Background(), "doc-5")
	require.NoError(t, getErr)
	assert.Equal(t, documentModel.StatusProcessing, stored.Status)
	require.Len(t, stored.Pages, 1)
	assert.Equal(t, page1, *stored.Pages[1].Text)
	assert.True(t, file.closed)
}

func TestProcess_CancelledContextFailsDocument(t *testing.T) {
	file := &fakeFile{pages: []*fakePage{{number: 1, text: page1}}}
	docs := store.InitInMemoryDocumentStore()
	p := newTestProcessor(docs, nil, file, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, err := p.Process(ctx, Upload{Id: "doc-6", Filename: "a.pdf"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, documentModel.StatusFailed, doc.Status)
	assert.True(t, strings.HasPrefix(doc.Reason, "processing interrupted"))
	stored, getErr := docs.Get(context.Background(), "doc-6")
	require.NoError(t, getErr)
	assert.Equal(t, documentModel.StatusFailed, stored.Status)
}

func TestProcess_TimeoutWithRedisStoreFailsDocument(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), ContextTimeoutEnabled: true})
	t.Cleanup(func() { _ = client.Close() })
	docs := store.NewRedisDocumentStore(redisStore.NewStoreFromClient(client))

	file := &fakeFile{pages: []*fakePage{
		{number: 1, text: page1, delay: 300 * time.Millisecond},
		{number: 2, text: page3, delay: 300 * time.Millisecond},
	}}
	p := newTestProcessor(docs, nil, file, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	doc, err := p.Process(ctx, Upload{Id: "doc-timeout", Filename: "slow.pdf"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, documentModel.ErrPersistenceFailure)
	assert.Equal(t, documentModel.StatusFailed, doc.Status)
	stored, getErr := docs.Get(context.Background(), "doc-timeout")
	require.NoError(t, getErr)
	assert.Equal(t, documentModel.StatusFailed, stored.Status)
	assert.True(t, strings.HasPrefix(stored.Reason, "processing interrupted"), stored.Reason)
}

func TestProcess_KeepsPendingRecord(t *testing.T) {
	docs := store.InitInMemoryDocumentStore()
	pending := documentModel.NewDocument("doc-7", "upload.pdf", documentModel.ProcessOptions{Language: "eng", DPI: 150})
	pending.UploadedAt = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, docs.Put(context.Background(), pending.Id, pending))

	engine := &pageEngine{byPage: map[string]string{"page-1": "short"}}
	file := &fakeFile{pages: []*fakePage{{number: 1, text: "x"}}}
	p := newTestProcessor(docs, engine, file, testConfig())

	doc, err := p.Process(context.Background(), Upload{Id: "doc-7", Filename: "ignored.pdf"})

	require.NoError(t, err)
	assert.Equal(t, pending.UploadedAt, doc.UploadedAt)
	assert.Equal(t, "upload.pdf", doc.Filename)
	assert.Equal(t, documentModel.MethodOCR, doc.Pages[1].Method)
	assert.Equal(t, "short", *doc.Pages[1].Text)
}

func TestProcess_ParallelPages(t *testing.T) {
	var pages []*fakePage
	for n := 1; n <= 8; n++ {
		pages = append(pages, &fakePage{number: n, text: page1})
	}
	file := &fakeFile{pages: pages}
	cfg := testConfig()
	cfg.PageWorkers = 4
	docs := store.InitInMemoryDocumentStore()
	p := newTestProcessor(docs, nil, file, cfg)

	doc, err := p.Process(context.Background(), Upload{Id: "doc-8", Filename: "a.pdf"})

	require.NoError(t, err)
	assert.Equal(t, documentModel.StatusComplete, doc.Status)
	require.Len(t, doc.Pages, 8)
	for n := 1; n <= 8; n++ {
		assert.Equal(t, documentModel.MethodNative, doc.Pages[n].Method)
	}
	assert.Equal(t, []string{"US0378331005"}, doc.FinancialData.ISINs)
}
