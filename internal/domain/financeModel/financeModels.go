package financeModel

import "github.com/shopspring/decimal"

type RecordSource string

const (
	SourceTable RecordSource = "table"
	SourceText  RecordSource = "text"
)

// UnknownCurrency keys totals for values whose currency could not be resolved.
const UnknownCurrency = "UNKNOWN"

// SecurityRecord is one security found in a document. Partial records carry only the
// ISIN: the code appeared in text but in no table row. Value is nil when the row had no
// value or it could not be parsed.
type SecurityRecord struct {
	ISIN     string           `json:"isin"`
	Name     string           `json:"name,omitempty"`
	Currency string           `json:"currency,omitempty"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Value    *decimal.Decimal `json:"value,omitempty"`
	RawValue string           `json:"raw_value,omitempty"`
	Page     int              `json:"page,omitempty"`
	Source   RecordSource     `json:"source"`
	Partial  bool             `json:"partial"`
}

type Holding struct {
	Rank     int             `json:"rank"`
	ISIN     string          `json:"isin"`
	Name     string          `json:"name,omitempty"`
	Currency string          `json:"currency,omitempty"`
	Value    decimal.Decimal `json:"value"`
}

type AnalysisResult struct {
	DocumentId       string                     `json:"document_id"`
	Securities       []SecurityRecord           `json:"securities"`
	TotalValue       decimal.Decimal            `json:"total_value"`
	TotalsByCurrency map[string]decimal.Decimal `json:"totals_by_currency"`
	SkippedValues    int                        `json:"skipped_values"`
	TopHoldings      []Holding                  `json:"top_holdings"`
	ISINs            []string                   `json:"isins"`
	Dates            []string                   `json:"dates"`
	Amounts          []string                   `json:"amounts"`
	AmbiguousDates   []string                   `json:"ambiguous_dates,omitempty"`
}
