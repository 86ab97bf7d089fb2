// Package finance turns an extracted document into security records, totals and a
// ranked list of holdings.
package finance

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/domain/financeModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/patterns"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

type column int

const (
	colName column = iota
	colCurrency
	colQuantity
	colValue
)

// headerKeywords match lower-cased header cells. Hebrew labels cover the default
// heb+eng statements.
var headerKeywords = map[column][]string{
	colName:     {"name", "security", "description", "issuer", "instrument", "שם", "נייר"},
	colCurrency: {"currency", "ccy", "מטבע"},
	colQuantity: {"quantity", "qty", "units", "shares", "nominal", "כמות"},
	colValue:    {"market value", "value", "amount", "valuation", "שווי"},
}

type Analyzer struct {
	TopN     int
	patterns patterns.Extractor
	logger   *logger_i.Logger
}

func NewAnalyzer(topN int, validateISINChecksum bool) *Analyzer {
	if topN <= 0 {
		topN = config.TopHoldingsCount
	}
	return &Analyzer{
		TopN:     topN,
		patterns: patterns.Extractor{ValidateISINChecksum: validateISINChecksum},
		logger:   logger_i.NewLogger("finance analyzer"),
	}
}

// Analyze harvests entities from page text, resolves each ISIN against table rows and
// aggregates the resolved values. ISINs seen only in text become partial records.
func (a *Analyzer) Analyze(doc documentModel.Document) financeModel.AnalysisResult {
	pages := sortedPages(doc.Pages)

	isins := make(map[string]struct{})
	dates := make(map[string]struct{})
	amounts := make(map[string]struct{})
	ambiguous := make(map[string]struct{})
	firstPage := make(map[string]int)
	for _, n := range pages {
		page := doc.Pages[n]
		if page.Text == nil {
			continue
		}
		for _, isin := range a.patterns.ISINs(*page.Text) {
			isins[isin] = struct{}{}
			if _, ok := firstPage[isin]; !ok {
				firstPage[isin] = n
			}
		}
		addAll(dates, a.patterns.Dates(*page.Text))
		addAll(amounts, a.patterns.Amounts(*page.Text))
		addAll(ambiguous, a.patterns.AmbiguousDates(*page.Text))
	}

	fromTables := a.tableRecords(doc, pages)

	records := make([]financeModel.SecurityRecord, 0, len(isins)+len(fromTables))
	for _, isin := range sortedKeys(isins) {
		if rec, ok := fromTables[isin]; ok {
			records = append(records, rec)
			continue
		}
		records = append(records, financeModel.SecurityRecord{
			ISIN:    isin,
			Page:    firstPage[isin],
			Source:  financeModel.SourceText,
			Partial: true,
		})
	}
	// table rows whose ISIN never made it into the page text still count
	for _, isin := range sortedKeys(keysOf(fromTables)) {
		if _, ok := isins[isin]; !ok {
			records = append(records, fromTables[isin])
			isins[isin] = struct{}{}
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].ISIN < records[j].ISIN })

	total, byCurrency, skipped := Totals(records)
	result := financeModel.AnalysisResult{
		DocumentId:       doc.Id,
		Securities:       records,
		TotalValue:       total,
		TotalsByCurrency: byCurrency,
		SkippedValues:    skipped,
		TopHoldings:      RankHoldings(records, a.TopN),
		ISINs:            sortedKeys(isins),
		Dates:            sortedKeys(dates),
		Amounts:          sortedKeys(amounts),
	}
	if len(ambiguous) > 0 {
		result.AmbiguousDates = sortedKeys(ambiguous)
	}
	a.logger.Debug("analysis complete", "documentId", doc.Id, "securities", len(records), "skipped", skipped)
	return result
}

// tableRecords returns the first matching row per ISIN across all tables in page order.
func (a *Analyzer) tableRecords(doc documentModel.Document, pages []int) map[string]financeModel.SecurityRecord {
	out := make(map[string]financeModel.SecurityRecord)
	for _, n := range pages {
		for _, table := range doc.Pages[n].Tables {
			mapping := map[column]int{}
			for _, row := range table.Grid {
				// a row carrying an ISIN is data even when its labels read like headers
				isinIdx, isin := a.findISIN(row)
				if isin == "" {
					if m, ok := headerMapping(row); ok {
						mapping = m
					}
					continue
				}
				if _, seen := out[isin]; seen {
					continue
				}
				out[isin] = buildRecord(row, isinIdx, isin, mapping, n)
			}
		}
	}
	return out
}

func (a *Analyzer) findISIN(row []string) (int, string) {
	for i, cell := range row {
		if found := a.patterns.ISINs(cell); len(found) > 0 {
			return i, found[0]
		}
	}
	return -1, ""
}

// headerMapping recognizes a header row: at least two cells match known labels and none
// holds a number.
func headerMapping(row []string) (map[column]int, bool) {
	mapping := make(map[column]int)
	for i, cell := range row {
		label := strings.ToLower(strings.TrimSpace(cell))
		if label == "" {
			continue
		}
		if isNumeric(label) {
			return nil, false
		}
		for _, col := range []column{colValue, colQuantity, colCurrency, colName} {
			if _, taken := mapping[col]; taken {
				continue
			}
			if matchesAny(label, headerKeywords[col]) {
				mapping[col] = i
				break
			}
		}
	}
	return mapping, len(mapping) >= 2
}

func matchesAny(label string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}

// buildRecord reads the mapped columns, falling back to position: the value is the last
// numeric cell, the name the first non-numeric cell other than the ISIN.
func buildRecord(row []string, isinIdx int, isin string, mapping map[column]int, page int) financeModel.SecurityRecord {
	rec := financeModel.SecurityRecord{ISIN: isin, Page: page, Source: financeModel.SourceTable}
	cell := func(col column) (string, bool) {
		idx, ok := mapping[col]
		if !ok || idx >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[idx]), true
	}

	if name, ok := cell(colName); ok && name != "" {
		rec.Name = name
	} else {
		for i, c := range row {
			c = strings.TrimSpace(c)
			if i != isinIdx && c != "" && !isNumeric(c) && CurrencyCode(c) != c {
				rec.Name = c
				break
			}
		}
	}

	valueIdx := -1
	if _, ok := mapping[colValue]; ok {
		valueIdx = mapping[colValue]
	} else {
		for i := len(row) - 1; i >= 0; i-- {
			if i != isinIdx && isNumeric(row[i]) {
				valueIdx = i
				break
			}
		}
	}
	if valueIdx >= 0 && valueIdx < len(row) {
		rec.RawValue = strings.TrimSpace(row[valueIdx])
		if v, currency, err := ParseAmount(rec.RawValue); err == nil {
			rec.Value = &v
			rec.Currency = currency
		}
	}

	if qty, ok := cell(colQuantity); ok && qty != "" {
		if q, _, err := ParseAmount(qty); err == nil {
			rec.Quantity = &q
		}
	}

	if c, ok := cell(colCurrency); ok && c != "" {
		if code := CurrencyCode(strings.ToUpper(c)); code != "" {
			rec.Currency = code
		} else if code := currencyFromSymbol(c); code != "" {
			rec.Currency = code
		}
	}
	if rec.Currency == "" {
		for i, c := range row {
			if i == isinIdx {
				continue
			}
			if code := currencyFromSymbol(c); code != "" {
				rec.Currency = code
				break
			}
			if code := CurrencyCode(c); code != "" {
				rec.Currency = code
				break
			}
		}
	}
	return rec
}

// Totals sums the resolved values, overall and per currency. Records without a numeric
// value are counted in skipped, never an error.
func Totals(records []financeModel.SecurityRecord) (decimal.Decimal, map[string]decimal.Decimal, int) {
	total := decimal.Zero
	byCurrency := make(map[string]decimal.Decimal)
	skipped := 0
	for _, rec := range records {
		if rec.Value == nil {
			skipped++
			continue
		}
		total = total.Add(*rec.Value)
		key := rec.Currency
		if key == "" {
			key = financeModel.UnknownCurrency
		}
		byCurrency[key] = byCurrency[key].Add(*rec.Value)
	}
	return total, byCurrency, skipped
}

// RankHoldings orders records with a value by value descending, ties by ISIN ascending,
// and keeps the first n. n <= 0 keeps all.
func RankHoldings(records []financeModel.SecurityRecord, n int) []financeModel.Holding {
	valued := make([]financeModel.SecurityRecord, 0, len(records))
	for _, rec := range records {
		if rec.Value != nil {
			valued = append(valued, rec)
		}
	}
	sort.SliceStable(valued, func(i, j int) bool {
		if c := valued[i].Value.Cmp(*valued[j].Value); c != 0 {
			return c > 0
		}
		return valued[i].ISIN < valued[j].ISIN
	})
	if n > 0 && len(valued) > n {
		valued = valued[:n]
	}

	out := make([]financeModel.Holding, 0, len(valued))
	for i, rec := range valued {
		out = append(out, financeModel.Holding{
			Rank:     i + 1,
			ISIN:     rec.ISIN,
			Name:     rec.Name,
			Currency: rec.Currency,
			Value:    *rec.Value,
		})
	}
	return out
}

func sortedPages(pages map[int]documentModel.Page) []int {
	out := make([]int, 0, len(pages))
	for n := range pages {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		set[v] = struct{}{}
	}
}

func keysOf(m map[string]financeModel.SecurityRecord) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
