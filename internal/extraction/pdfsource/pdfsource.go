// Package pdfsource opens uploaded PDFs and exposes them page by page to the
// extraction strategies and the table detector.
package pdfsource

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

const magicScanLimit = 1024

// Glyph is a positioned run of text in PDF user space (origin bottom-left).
type Glyph struct {
	X    float64
	Y    float64
	W    float64
	Size float64
	S    string
}

// Page is a single page as seen by strategies and detectors. Page numbers are 1-based.
type Page interface {
	Number() int
	PlainText() (string, error)
	Glyphs() ([]Glyph, error)
	SinglePagePDF() ([]byte, error)
}

type Document interface {
	NumPages() int
	Page(number int) Page
	Close() error
}

// OpenFunc lets the processor swap the parser in tests.
type OpenFunc func(path string) (Document, error)

var logger = logger_i.NewLogger("pdfsource")

type File struct {
	path   string
	osFile *os.File
	reader *pdf.Reader
	pages  int
}

// Open validates the file is a PDF and counts its pages. The text layer parser is
// optional: when it cannot read the file, pdfcpu supplies the page count and every
// page falls through to OCR.
func Open(path string) (Document, error) {
	if err := CheckFormat(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", documentModel.ErrUnreadable, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", documentModel.ErrUnreadable, err)
	}

	file := &File{path: path, osFile: f}
	reader, err := newReader(f, info.Size())
	if err == nil {
		file.reader = reader
		file.pages = safeNumPage(reader)
	} else {
		logger.Warn("text layer parser could not open pdf", "path", path, "error", err)
	}

	if file.pages == 0 {
		count, err := api.PageCountFile(path)
		if err != nil || count == 0 {
			f.Close()
			return nil, fmt.Errorf("%w: no parser could read %s", documentModel.ErrUnreadable, filepath.Base(path))
		}
		file.pages = count
	}
	return file, nil
}

// CheckFormat rejects anything that is not a .pdf carrying the %PDF- header.
func CheckFormat(path string) error {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return fmt.Errorf("%w: %s is not a pdf", documentModel.ErrUnsupportedFormat, filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", documentModel.ErrUnreadable, err)
	}
	defer f.Close()

	head := make([]byte, magicScanLimit)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("%w: %v", documentModel.ErrUnreadable, err)
	}
	if !bytes.Contains(head[:n], []byte("%PDF-")) {
		return fmt.Errorf("%w: %s has no pdf header", documentModel.ErrUnsupportedFormat, filepath.Base(path))
	}
	return nil
}

func newReader(f *os.File, size int64) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	return pdf.NewReader(f, size)
}

func safeNumPage(r *pdf.Reader) (n int) {
	defer func() {
		if rec := recover(); rec != nil {
			n = 0
		}
	}()
	return r.NumPage()
}

func (f *File) NumPages() int {
	return f.pages
}

func (f *File) Page(number int) Page {
	return &filePage{file: f, number: number}
}

func (f *File) Close() error {
	return f.osFile.Close()
}

type filePage struct {
	file   *File
	number int
}

func (p *filePage) Number() int {
	return p.number
}

func (p *filePage) PlainText() (text string, err error) {
	page, err := p.pdfPage()
	if err != nil {
		return "", err
	}
	defer recoverInto(&err)
	return page.GetPlainText(nil)
}

func (p *filePage) Glyphs() (glyphs []Glyph, err error) {
	page, err := p.pdfPage()
	if err != nil {
		return nil, err
	}
	defer recoverInto(&err)
	for _, t := range page.Content().Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}
	return glyphs, nil
}

// SinglePagePDF trims the document down to this page, the unit the OCR engines consume.
func (p *filePage) SinglePagePDF() ([]byte, error) {
	f, err := os.Open(p.file.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", documentModel.ErrExtractionFailure, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	if err := api.Trim(f, &buf, []string{strconv.Itoa(p.number)}, conf); err != nil {
		return nil, fmt.Errorf("%w: trim page %d: %v", documentModel.ErrExtractionFailure, p.number, err)
	}
	return buf.Bytes(), nil
}

func (p *filePage) pdfPage() (page pdf.Page, err error) {
	if p.file.reader == nil {
		return page, fmt.Errorf("%w: no text layer parser for page %d", documentModel.ErrExtractionFailure, p.number)
	}
	defer recoverInto(&err)
	page = p.file.reader.Page(p.number)
	if page.V.IsNull() {
		return page, fmt.Errorf("%w: page %d object is null", documentModel.ErrExtractionFailure, p.number)
	}
	return page, nil
}

// the parser panics on malformed content streams
func recoverInto(err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%w: pdf parser panic: %v", documentModel.ErrExtractionFailure, rec)
	}
}
