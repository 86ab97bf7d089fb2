// Package export writes analysis results as CSV and XLSX spreadsheets.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/akolanti/FinDocAPI/internal/domain/financeModel"
)

const (
	securitiesSheet = "Securities"
	summarySheet    = "Summary"
)

// WriterFunc renders an analysis result in one export format.
type WriterFunc func(w io.Writer, result financeModel.AnalysisResult) error

// SecurityRow is the flat CSV shape of a security record. Empty value means unresolved.
type SecurityRow struct {
	ISIN     string `csv:"isin"`
	Name     string `csv:"name"`
	Currency string `csv:"currency"`
	Quantity string `csv:"quantity"`
	Value    string `csv:"value"`
	RawValue string `csv:"raw_value"`
	Page     int    `csv:"page"`
	Source   string `csv:"source"`
	Partial  bool   `csv:"partial"`
}

func Rows(result financeModel.AnalysisResult) []SecurityRow {
	rows := make([]SecurityRow, 0, len(result.Securities))
	for _, rec := range result.Securities {
		row := SecurityRow{
			ISIN:     rec.ISIN,
			Name:     rec.Name,
			Currency: rec.Currency,
			RawValue: rec.RawValue,
			Page:     rec.Page,
			Source:   string(rec.Source),
			Partial:  rec.Partial,
		}
		if rec.Quantity != nil {
			row.Quantity = rec.Quantity.String()
		}
		if rec.Value != nil {
			row.Value = rec.Value.StringFixed(2)
		}
		rows = append(rows, row)
	}
	return rows
}

func WriteCSV(w io.Writer, result financeModel.AnalysisResult) error {
	rows := Rows(result)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with the security records and a summary sheet holding the
// totals and the top holdings.
func WriteXLSX(w io.Writer, result financeModel.AnalysisResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", securitiesSheet); err != nil {
		return err
	}
	header := []interface{}{"ISIN", "Name", "Currency", "Quantity", "Value", "Raw value", "Page", "Source", "Partial"}
	if err := f.SetSheetRow(securitiesSheet, "A1", &header); err != nil {
		return err
	}
	for i, rec := range result.Securities {
		row := []interface{}{rec.ISIN, rec.Name, rec.Currency, nil, nil, rec.RawValue, rec.Page, string(rec.Source), rec.Partial}
		if rec.Quantity != nil {
			row[3] = rec.Quantity.InexactFloat64()
		}
		if rec.Value != nil {
			row[4] = rec.Value.InexactFloat64()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(securitiesSheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"Document", result.DocumentId},
		{"Total value", result.TotalValue.InexactFloat64()},
		{"Skipped values", result.SkippedValues},
	}
	currencies := make([]string, 0, len(result.TotalsByCurrency))
	for code := range result.TotalsByCurrency {
		currencies = append(currencies, code)
	}
	sort.Strings(currencies)
	for _, code := range currencies {
		summary = append(summary, []interface{}{"Total " + code, result.TotalsByCurrency[code].InexactFloat64()})
	}
	summary = append(summary, []interface{}{}, []interface{}{"Rank", "ISIN", "Name", "Currency", "Value"})
	for _, h := range result.TopHoldings {
		summary = append(summary, []interface{}{h.Rank, h.ISIN, h.Name, h.Currency, h.Value.InexactFloat64()})
	}
	for i, row := range summary {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}
