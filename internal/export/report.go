package export

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/JonMunkholm/workbench/internal/analysis"
	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/transform"
)

// TopN bounds the missing table and the correlation pair list.
const TopN = 20

// NotEnoughNumeric is the correlation note for tables with fewer than two
// numeric columns.
const NotEnoughNumeric = "Not enough numeric columns."

// OverviewSection is the structural part of the summary.
type OverviewSection struct {
	Rows            int `json:"rows"`
	Cols            int `json:"cols"`
	NumericCols     int `json:"numeric_cols"`
	CategoricalCols int `json:"categorical_cols"`
	Duplicates      int `json:"duplicates"`
}

// MissingSection lists the columns with the most missing cells.
type MissingSection struct {
	TotalMissingCells  int                       `json:"total_missing_cells"`
	ColumnsWithMissing int                       `json:"columns_with_missing"`
	MissingTableTop20  []transform.ColumnMissing `json:"missing_table_top20"`
}

// CorrelationSection holds either the strongest pairs or a note.
type CorrelationSection struct {
	Method           string          `json:"method"`
	TopAbsPairsTop20 []analysis.Pair `json:"top_abs_pairs_top20,omitempty"`
	Note             string          `json:"note,omitempty"`
}

// Summary is the eda_summary block of a report.
type Summary struct {
	Overview    OverviewSection    `json:"overview"`
	Missing     MissingSection     `json:"missing"`
	Correlation CorrelationSection `json:"correlation"`
}

// Report is the JSON export document.
type Report struct {
	MetaFromSession any    `json:"meta_from_session"`
	EDASummary      any    `json:"eda_summary"`
	GeneratedAt     string `json:"generated_at"`
}

// Summarize builds the eda_summary of t.
func Summarize(t *dataset.Table) Summary {
	var s Summary

	numeric := len(t.NumericColumns())
	s.Overview = OverviewSection{
		Rows:            t.Rows(),
		Cols:            t.Cols(),
		NumericCols:     numeric,
		CategoricalCols: t.Cols() - numeric,
		Duplicates:      analysis.CountDuplicates(t),
	}

	ms := transform.SummarizeMissing(t)
	top := ms.Columns
	if len(top) > TopN {
		top = top[:TopN]
	}
	s.Missing = MissingSection{
		TotalMissingCells:  ms.TotalMissing,
		ColumnsWithMissing: ms.ColumnsWithMissing,
		MissingTableTop20:  top,
	}

	s.Correlation.Method = analysis.MethodPearson
	if numeric < 2 {
		s.Correlation.Note = NotEnoughNumeric
		return s
	}
	m, _ := analysis.Correlate(t, analysis.MethodPearson)
	s.Correlation.TopAbsPairsTop20 = m.TopPairs(TopN)
	if s.Correlation.TopAbsPairsTop20 == nil {
		s.Correlation.TopAbsPairsTop20 = []analysis.Pair{}
	}
	return s
}

// BuildReport assembles the report document. Both sections go through
// SafeJSON so the document always encodes.
func BuildReport(t *dataset.Table, meta dataset.Metadata, now time.Time) Report {
	return Report{
		MetaFromSession: SafeJSON(meta),
		EDASummary:      SafeJSON(Summarize(t)),
		GeneratedAt:     Timestamp(now),
	}
}

// ReportJSON encodes a report with two-space indentation and without
// escaping non-ASCII or HTML characters.
func ReportJSON(r Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
