package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/stats"
)

// Correlation methods.
const (
	MethodPearson  = "pearson"
	MethodSpearman = "spearman"
)

// Matrix is a symmetric correlation matrix over numeric columns. Values is
// indexed like Columns on both axes.
type Matrix struct {
	Method  string      `json:"method"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Pair is one off-diagonal matrix entry.
type Pair struct {
	Feature1    string  `json:"feature_1"`
	Feature2    string  `json:"feature_2"`
	Correlation float64 `json:"correlation"`
}

// Correlate computes the correlation matrix of every numeric column of t,
// each entry over the rows where both columns are present.
func Correlate(t *dataset.Table, method string) (Matrix, error) {
	if method == "" {
		method = MethodPearson
	}
	var corr func(x, y []float64) float64
	switch method {
	case MethodPearson:
		corr = stats.Pearson
	case MethodSpearman:
		corr = stats.Spearman
	default:
		return Matrix{}, fmt.Errorf("%w: correlation method %q", dataset.ErrInvalidOption, method)
	}

	names := t.NumericColumns()
	cols := make([][]dataset.Value, len(names))
	for i, n := range names {
		c, _ := t.Lookup(n)
		cols[i] = c.Values
	}

	m := Matrix{Method: method, Columns: names, Values: make([][]float64, len(names))}
	for i := range names {
		m.Values[i] = make([]float64, len(names))
	}
	for i := range names {
		for j := i; j < len(names); j++ {
			xs, ys := completePairs(cols[i], cols[j])
			r := corr(xs, ys)
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m, nil
}

// TopPairs returns up to n upper-triangle pairs ordered by absolute
// correlation, largest first, rounded to six places. Undefined entries are
// skipped.
func (m Matrix) TopPairs(n int) []Pair {
	var pairs []Pair
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			r := m.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, Pair{Feature1: m.Columns[i], Feature2: m.Columns[j], Correlation: r})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Correlation) > math.Abs(pairs[b].Correlation)
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	for i := range pairs {
		pairs[i].Correlation = stats.Round(pairs[i].Correlation, 6)
	}
	return pairs
}

func completePairs(a, b []dataset.Value) (xs, ys []float64) {
	for i := range a {
		x, okx := a[i].Float()
		y, oky := b[i].Float()
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	return xs, ys
}
