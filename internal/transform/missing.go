// Package transform holds the dataset transformations: missing-value
// treatment, IQR outlier treatment and the preprocessing pipeline.
//
// Every function is pure. It reads the input table, returns a new table and
// metadata carrying a treatment record, and never modifies its arguments.
// Callers replace the session dataset only when no error is returned.
package transform

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/stats"
)

// Missing treatment operations recorded in metadata.
const (
	OpDropColumns = "drop_columns"
	OpDropRows    = "drop_rows"
	OpImpute      = "impute"
)

// Row-drop rules.
const (
	RuleAny = "any"
	RuleAll = "all"
)

// Numeric imputation strategies for Impute.
const (
	FillMean   = "mean"
	FillMedian = "median"
	FillZero   = "zero"
)

// DefaultCategoricalFill is the placeholder for missing categorical cells.
const DefaultCategoricalFill = "Unknown"

// ColumnMissing is one row of the missing-value summary.
type ColumnMissing struct {
	Column  string             `json:"column"`
	Count   int                `json:"missing_count"`
	Percent float64            `json:"missing_pct"`
	Kind    dataset.ColumnKind `json:"dtype"`
}

// MissingSummary describes missingness across a table.
type MissingSummary struct {
	Rows               int             `json:"rows"`
	Cols               int             `json:"cols"`
	TotalMissing       int             `json:"total_missing_cells"`
	ColumnsWithMissing int             `json:"columns_with_missing"`
	Ratio              float64         `json:"missing_ratio"`
	Columns            []ColumnMissing `json:"columns"`
}

// SummarizeMissing counts missing cells per column. Columns are ordered by
// missing count, largest first; ties keep table order.
func SummarizeMissing(t *dataset.Table) MissingSummary {
	s := MissingSummary{Rows: t.Rows(), Cols: t.Cols()}
	s.Columns = make([]ColumnMissing, t.Cols())
	for i := 0; i < t.Cols(); i++ {
		col := t.Column(i)
		n := countMissing(col.Values)
		s.Columns[i] = ColumnMissing{
			Column:  col.Name,
			Count:   n,
			Percent: percent(n, t.Rows()),
			Kind:    dataset.Classify(col.Values),
		}
		s.TotalMissing += n
		if n > 0 {
			s.ColumnsWithMissing++
		}
	}
	if cells := t.Rows() * t.Cols(); cells > 0 {
		s.Ratio = float64(s.TotalMissing) / float64(cells)
	}
	sort.SliceStable(s.Columns, func(a, b int) bool {
		return s.Columns[a].Count > s.Columns[b].Count
	})
	return s
}

func countMissing(values []dataset.Value) int {
	n := 0
	for _, v := range values {
		if v.IsNull() {
			n++
		}
	}
	return n
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

// DropColumns removes every column whose missing percentage is strictly
// greater than threshold. threshold must lie in [0, 100].
func DropColumns(t *dataset.Table, meta dataset.Metadata, threshold float64) (*dataset.Table, dataset.Metadata, error) {
	if threshold < 0 || threshold > 100 || math.IsNaN(threshold) {
		return nil, meta, fmt.Errorf("%w: threshold %v outside [0, 100]", dataset.ErrInvalidOption, threshold)
	}

	var drop []string
	for i := 0; i < t.Cols(); i++ {
		col := t.Column(i)
		if percent(countMissing(col.Values), t.Rows()) > threshold {
			drop = append(drop, col.Name)
		}
	}

	out := t.DropColumns(drop...)
	th := threshold
	rec := dataset.MissingTreatment{
		Operation:      OpDropColumns,
		Threshold:      &th,
		ColumnsDropped: drop,
	}
	return out, meta.WithShape(out).WithMissingTreatment(rec), nil
}

// DropRows removes rows with missing values in cols. With RuleAny a row
// goes if any listed cell is missing; with RuleAll only if all are.
func DropRows(t *dataset.Table, meta dataset.Metadata, cols []string, rule string) (*dataset.Table, dataset.Metadata, error) {
	if len(cols) == 0 {
		return nil, meta, fmt.Errorf("%w: select at least one column", dataset.ErrInvalidSelection)
	}
	if rule != RuleAny && rule != RuleAll {
		return nil, meta, fmt.Errorf("%w: rule %q, want any or all", dataset.ErrInvalidOption, rule)
	}
	idx, err := columnIndexes(t, cols)
	if err != nil {
		return nil, meta, err
	}

	keep := make([]int, 0, t.Rows())
	for r := 0; r < t.Rows(); r++ {
		missing := 0
		for _, c := range idx {
			if t.Value(r, c).IsNull() {
				missing++
			}
		}
		drop := (rule == RuleAny && missing > 0) || (rule == RuleAll && missing == len(idx))
		if !drop {
			keep = append(keep, r)
		}
	}

	out := t.SelectRows(keep)
	rec := dataset.MissingTreatment{
		Operation:   OpDropRows,
		Rule:        rule,
		Columns:     slices.Clone(cols),
		RowsRemoved: t.Rows() - out.Rows(),
	}
	return out, meta.WithShape(out).WithMissingTreatment(rec), nil
}

// ImputeOptions configures Impute. An empty Columns means every column.
type ImputeOptions struct {
	Columns         []string `json:"columns" mapstructure:"columns"`
	NumericStrategy string   `json:"numeric_strategy" mapstructure:"numeric_strategy"`
	CategoricalFill string   `json:"categorical_fill" mapstructure:"categorical_fill"`
}

// Impute fills missing cells. Numeric columns use the mean, median or zero
// of their own non-missing values; a numeric column with no values stays
// missing under mean and median. Categorical columns get the placeholder.
func Impute(t *dataset.Table, meta dataset.Metadata, opts ImputeOptions) (*dataset.Table, dataset.Metadata, error) {
	strategy := opts.NumericStrategy
	if strategy == "" {
		strategy = FillMean
	}
	if strategy != FillMean && strategy != FillMedian && strategy != FillZero {
		return nil, meta, fmt.Errorf("%w: numeric strategy %q", dataset.ErrInvalidOption, strategy)
	}
	placeholder := opts.CategoricalFill
	if placeholder == "" {
		placeholder = DefaultCategoricalFill
	}

	targets := opts.Columns
	if len(targets) == 0 {
		targets = t.Names()
	}
	if _, err := columnIndexes(t, targets); err != nil {
		return nil, meta, err
	}

	out := t
	filled := 0
	for _, name := range targets {
		col, _ := out.Lookup(name)
		n := countMissing(col.Values)
		if n == 0 {
			continue
		}

		var fill dataset.Value
		if dataset.Classify(col.Values) == dataset.Numeric {
			xs, _ := dataset.Floats(col.Values)
			switch {
			case strategy == FillZero:
				fill = dataset.Number(0)
			case len(xs) == 0:
				continue
			case strategy == FillMedian:
				fill = dataset.Number(stats.Median(xs))
			default:
				fill = dataset.Number(stats.Mean(xs))
			}
		} else {
			fill = dataset.Text(placeholder)
		}

		vals := make([]dataset.Value, len(col.Values))
		for i, v := range col.Values {
			if v.IsNull() {
				vals[i] = fill
			} else {
				vals[i] = v
			}
		}
		var err error
		if out, err = out.ReplaceColumn(name, vals); err != nil {
			return nil, meta, err
		}
		filled += n
	}

	rec := dataset.MissingTreatment{
		Operation:       OpImpute,
		Columns:         slices.Clone(opts.Columns),
		NumericStrategy: strategy,
		CategoricalFill: placeholder,
		CellsFilled:     filled,
	}
	return out, meta.WithShape(out).WithMissingTreatment(rec), nil
}

func columnIndexes(t *dataset.Table, cols []string) ([]int, error) {
	idx := make([]int, len(cols))
	for i, name := range cols {
		j := t.IndexOf(name)
		if j < 0 {
			return nil, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, name)
		}
		idx[i] = j
	}
	return idx, nil
}
