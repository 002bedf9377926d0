// Package report writes dataset run reports as XLSX workbooks.
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

const (
	summarySheet   = "Run"
	documentsSheet = "Documents"
)

var documentHeader = []any{
	"Path", "State", "Succeeded", "Attempts", "Gate deferrals", "Elapsed (ms)", "Keywords", "Summary", "Error",
}

// WriteXLSX saves report to path with one sheet of run totals and one row per document.
func WriteXLSX(path string, report domain.RunReport) error {
	f, err := Build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func Build(report domain.RunReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSummary(f, report); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeDocuments(f, report.Outcomes); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeSummary(f *excelize.File, report domain.RunReport) error {
	rows := [][]any{
		{"Run ID", report.RunID},
		{"Downloaded", report.Downloaded},
		{"Processed", report.Processed},
		{"Failed", report.Failed},
		{"Skipped", report.Skipped},
		{"Elapsed (ms)", report.Elapsed.Milliseconds()},
	}
	for i, row := range rows {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 16)
}

func writeDocuments(f *excelize.File, outcomes []domain.ProcessingOutcome) error {
	if _, err := f.NewSheet(documentsSheet); err != nil {
		return fmt.Errorf("create documents sheet: %w", err)
	}
	if err := setRow(f, documentsSheet, 1, documentHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(documentsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, outcome := range outcomes {
		errText := ""
		if outcome.Err != nil {
			errText = outcome.Err.Error()
		}
		row := []any{
			outcome.Path,
			string(outcome.State),
			outcome.Succeeded,
			outcome.Attempts,
			outcome.GateDeferrals,
			outcome.Elapsed.Milliseconds(),
			strings.Join(outcome.Keywords, ", "),
			outcome.Summary,
			errText,
		}
		if err := setRow(f, documentsSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(documentsSheet, "A", "A", 48)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
