package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/storage"
)

const (
	CallsSheet   = "Calls"
	MetricsSheet = "Metrics"
)

var (
	callsHeader   = []any{"Call ID", "Caller", "Source", "Started", "Ended", "End Reason", "Overall Score", "Remark"}
	metricsHeader = []any{"Call ID", "Metric", "Raw Value", "Denominator", "Score", "Bucket"}
)

// Workbook builds a workbook with one row per call and one row per metric.
func Workbook(calls []storage.CallDetail) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", CallsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(MetricsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("add metrics sheet: %w", err)
	}

	if err := writeRow(f, CallsSheet, 1, callsHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeRow(f, MetricsSheet, 1, metricsHeader); err != nil {
		_ = f.Close()
		return nil, err
	}

	metricRow := 2
	for i, call := range calls {
		if err := writeRow(f, CallsSheet, i+2, callRow(call)); err != nil {
			_ = f.Close()
			return nil, err
		}
		if call.Report == nil {
			continue
		}
		for label, m := range call.Report.Metrics.All() {
			var denom any
			if m.RawDenominator != nil {
				denom = *m.RawDenominator
			}
			row := []any{call.ID, label, m.RawValue, denom, m.Score, string(m.Bucket)}
			if err := writeRow(f, MetricsSheet, metricRow, row); err != nil {
				_ = f.Close()
				return nil, err
			}
			metricRow++
		}
	}

	return f, nil
}

func callRow(call storage.CallDetail) []any {
	ended := ""
	if call.EndedAt != nil {
		ended = call.EndedAt.Local().Format(time.DateTime)
	}

	var score, remark any
	if call.OverallScore != nil {
		score = *call.OverallScore
		remark = report.Remark(*call.OverallScore)
	}
	return []any{
		call.ID,
		call.CallerID,
		call.Source,
		call.StartedAt.Local().Format(time.DateTime),
		ended,
		call.EndReason,
		score,
		remark,
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// Write streams the workbook for calls to w.
func Write(w io.Writer, calls []storage.CallDetail) error {
	f, err := Workbook(calls)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
