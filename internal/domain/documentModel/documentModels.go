package documentModel

import (
	"context"
	"time"
)

// SchemaVersion is bumped whenever the persisted Document shape changes.
const SchemaVersion = 1

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Extraction methods recorded on a page.
const (
	MethodNative = "native"
	MethodOCR    = "ocr"
	MethodNone   = "none"
)

// Document is the canonical per-upload record consumed by analysis, export and Q&A.
type Document struct {
	SchemaVersion int            `json:"schema_version"`
	Id            string         `json:"document_id"`
	Filename      string         `json:"filename"`
	UploadedAt    time.Time      `json:"uploaded_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Status        Status         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	PageCount     int            `json:"page_count"`
	Pages         map[int]Page   `json:"pages"`
	FinancialData FinancialData  `json:"financial_data"`
	Options       ProcessOptions `json:"options"`
}

// Page is keyed by its 1-based page index in Document.Pages.
type Page struct {
	Text   *string `json:"text"`
	Tables []Table `json:"tables"`
	Method string  `json:"method"`
	Error  string  `json:"error,omitempty"`
}

// Table rows may be ragged; consumers must not assume every row has the same length.
type Table struct {
	Coordinates [4]float64 `json:"coordinates"`
	Confidence  float64    `json:"confidence"`
	Grid        [][]string `json:"grid"`
	GridError   string     `json:"grid_error,omitempty"`
}

type FinancialData struct {
	ISINs          []string `json:"isins"`
	Dates          []string `json:"dates"`
	Amounts        []string `json:"amounts"`
	AmbiguousDates []string `json:"ambiguous_dates,omitempty"`
	Entities       []Entity `json:"entities,omitempty"`
}

type EntityKind string

const (
	EntityISIN   EntityKind = "isin"
	EntityDate   EntityKind = "date"
	EntityAmount EntityKind = "amount"
)

// Entity is a matched value with the page it was first seen on.
type Entity struct {
	Kind  EntityKind `json:"kind"`
	Value string     `json:"value"`
	Page  int        `json:"page"`
}

type ProcessOptions struct {
	Language string `json:"language,omitempty"`
	DPI      int    `json:"dpi,omitempty"`
}

func NewDocument(id string, filename string, opts ProcessOptions) Document {
	now := time.Now().UTC()
	return Document{
		SchemaVersion: SchemaVersion,
		Id:            id,
		Filename:      filename,
		UploadedAt:    now,
		UpdatedAt:     now,
		Status:        StatusPending,
		Pages:         make(map[int]Page),
		FinancialData: EmptyFinancialData(),
		Options:       opts,
	}
}

func EmptyFinancialData() FinancialData {
	return FinancialData{
		ISINs:   []string{},
		Dates:   []string{},
		Amounts: []string{},
	}
}

// Clone returns a copy that shares no mutable state with d.
func (d Document) Clone() Document {
	out := d
	out.Pages = make(map[int]Page, len(d.Pages))
	for idx, p := range d.Pages {
		out.Pages[idx] = p.clone()
	}
	out.FinancialData = FinancialData{
		ISINs:          cloneStrings(d.FinancialData.ISINs),
		Dates:          cloneStrings(d.FinancialData.Dates),
		Amounts:        cloneStrings(d.FinancialData.Amounts),
		AmbiguousDates: cloneStrings(d.FinancialData.AmbiguousDates),
	}
	if d.FinancialData.Entities != nil {
		out.FinancialData.Entities = append([]Entity(nil), d.FinancialData.Entities...)
	}
	return out
}

func (p Page) clone() Page {
	out := p
	if p.Text != nil {
		text := *p.Text
		out.Text = &text
	}
	if p.Tables != nil {
		out.Tables = make([]Table, len(p.Tables))
		for i, t := range p.Tables {
			t.Grid = cloneGrid(t.Grid)
			out.Tables[i] = t
		}
	}
	return out
}

func cloneGrid(grid [][]string) [][]string {
	if grid == nil {
		return nil
	}
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = cloneStrings(row)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

// DocumentStore is the repository the processor persists through.
// Get returns ErrNotFound for unknown ids.
type DocumentStore interface {
	Get(ctx context.Context, id string) (Document, error)
	Put(ctx context.Context, id string, doc Document) error
	List(ctx context.Context) ([]Document, error)
}
