// Package analysis computes the read-only views over a dataset: overview,
// univariate and bivariate profiles and correlations. Nothing here changes
// a table.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/stats"
)

// PreviewRows is how many leading rows the overview carries.
const PreviewRows = 20

// ColumnInfo is one row of the unique-values table.
type ColumnInfo struct {
	Column  string             `json:"column"`
	Unique  int                `json:"unique_values"`
	Missing int                `json:"missing"`
	Kind    dataset.ColumnKind `json:"dtype"`
}

// NumericSummary is the describe() row of one numeric column.
type NumericSummary struct {
	Column string `json:"column"`
	stats.Summary
}

// Overview is the high-level structure of a table.
type Overview struct {
	Rows            int              `json:"rows"`
	Cols            int              `json:"cols"`
	NumericCols     int              `json:"numeric_cols"`
	CategoricalCols int              `json:"categorical_cols"`
	Duplicates      int              `json:"duplicates"`
	Columns         []ColumnInfo     `json:"columns"`
	Describe        []NumericSummary `json:"describe"`
	Preview         *dataset.Table   `json:"preview"`
}

// Summarize builds the overview of t. Columns are ordered by unique count,
// largest first.
func Summarize(t *dataset.Table) Overview {
	o := Overview{
		Rows:       t.Rows(),
		Cols:       t.Cols(),
		Duplicates: CountDuplicates(t),
		Columns:    make([]ColumnInfo, t.Cols()),
		Preview:    t.Head(PreviewRows),
	}

	for i := 0; i < t.Cols(); i++ {
		col := t.Column(i)
		kind := dataset.Classify(col.Values)
		if kind == dataset.Numeric {
			o.NumericCols++
			xs, _ := dataset.Floats(col.Values)
			o.Describe = append(o.Describe, NumericSummary{Column: col.Name, Summary: stats.Describe(xs)})
		} else {
			o.CategoricalCols++
		}
		o.Columns[i] = ColumnInfo{
			Column:  col.Name,
			Unique:  CountUnique(col.Values),
			Missing: len(col.Values) - nonMissing(col.Values),
			Kind:    kind,
		}
	}
	sort.SliceStable(o.Columns, func(a, b int) bool {
		return o.Columns[a].Unique > o.Columns[b].Unique
	})
	return o
}

// CountDuplicates returns how many rows repeat an earlier row exactly.
// The first occurrence is not counted.
func CountDuplicates(t *dataset.Table) int {
	seen := make(map[string]struct{}, t.Rows())
	dups := 0
	var b strings.Builder
	for r := 0; r < t.Rows(); r++ {
		b.Reset()
		for c := 0; c < t.Cols(); c++ {
			writeKey(&b, t.Value(r, c))
		}
		key := b.String()
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// CountUnique counts distinct non-missing values.
func CountUnique(values []dataset.Value) int {
	seen := make(map[string]struct{})
	var b strings.Builder
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		b.Reset()
		writeKey(&b, v)
		seen[b.String()] = struct{}{}
	}
	return len(seen)
}

// writeKey appends a kind-tagged, length-prefixed form of v so that the
// number 1 and the text "1" never collide, nor do cells that contain the
// separator.
func writeKey(b *strings.Builder, v dataset.Value) {
	switch v.Kind() {
	case dataset.KindNull:
		b.WriteString("n;")
	case dataset.KindNumber:
		s := v.String()
		fmt.Fprintf(b, "f%d:%s", len(s), s)
	default:
		s := v.String()
		fmt.Fprintf(b, "s%d:%s", len(s), s)
	}
}

func nonMissing(values []dataset.Value) int {
	n := 0
	for _, v := range values {
		if !v.IsNull() {
			n++
		}
	}
	return n
}
