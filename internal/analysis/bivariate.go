package analysis

import (
	"fmt"
	"sort"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/stats"
)

// Pairing kinds of a bivariate view.
const (
	PairNumericNumeric         = "numeric_numeric"
	PairNumericCategorical     = "numeric_categorical"
	PairCategoricalCategorical = "categorical_categorical"
)

// Point is one sampled scatter point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NumericPair is the numeric x numeric view.
type NumericPair struct {
	Pearson  float64 `json:"pearson"`
	Spearman float64 `json:"spearman"`
	Points   []Point `json:"points"`
}

// GroupStats summarises the numeric variable within one category.
type GroupStats struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Std      float64 `json:"std"`
}

// GroupedPair is the numeric x categorical view.
type GroupedPair struct {
	Numeric     string       `json:"numeric"`
	Categorical string       `json:"categorical"`
	Groups      []GroupStats `json:"groups"`
}

// Contingency is the categorical x categorical cross tabulation. Counts is
// indexed [row][col].
type Contingency struct {
	Rows   []string `json:"rows"`
	Cols   []string `json:"cols"`
	Counts [][]int  `json:"counts"`
}

// Bivariate is the relationship view of two columns.
type Bivariate struct {
	X           string       `json:"x"`
	Y           string       `json:"y"`
	Kind        string       `json:"kind"`
	Pairs       int          `json:"complete_pairs"`
	Numeric     *NumericPair `json:"numeric,omitempty"`
	Grouped     *GroupedPair `json:"grouped,omitempty"`
	Contingency *Contingency `json:"contingency,omitempty"`
}

// Relate computes the bivariate view of x and y over rows where both are
// present.
func Relate(t *dataset.Table, x, y string, opts Options) (Bivariate, error) {
	opts, err := opts.resolve()
	if err != nil {
		return Bivariate{}, err
	}
	if x == y {
		return Bivariate{}, fmt.Errorf("%w: select two different variables", dataset.ErrInvalidSelection)
	}
	xc, ok := t.Lookup(x)
	if !ok {
		return Bivariate{}, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, x)
	}
	yc, ok := t.Lookup(y)
	if !ok {
		return Bivariate{}, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, y)
	}

	var xs, ys []dataset.Value
	for i := range xc.Values {
		if xc.Values[i].IsNull() || yc.Values[i].IsNull() {
			continue
		}
		xs = append(xs, xc.Values[i])
		ys = append(ys, yc.Values[i])
	}

	b := Bivariate{X: x, Y: y, Pairs: len(xs)}
	xNum := dataset.Classify(xc.Values) == dataset.Numeric
	yNum := dataset.Classify(yc.Values) == dataset.Numeric

	switch {
	case xNum && yNum:
		b.Kind = PairNumericNumeric
		b.Numeric = numericPair(xs, ys, opts)
	case xNum || yNum:
		b.Kind = PairNumericCategorical
		if xNum {
			b.Grouped = groupedPair(x, y, xs, ys)
		} else {
			b.Grouped = groupedPair(y, x, ys, xs)
		}
	default:
		b.Kind = PairCategoricalCategorical
		b.Contingency = crossTab(xs, ys)
	}
	return b, nil
}

func numericPair(xv, yv []dataset.Value, opts Options) *NumericPair {
	xs := floats(xv)
	ys := floats(yv)
	p := &NumericPair{
		Pearson:  stats.Pearson(xs, ys),
		Spearman: stats.Spearman(xs, ys),
	}
	idx := SampleIndexes(len(xs), opts.SampleCap, opts.Seed)
	p.Points = make([]Point, len(idx))
	for i, j := range idx {
		p.Points[i] = Point{X: xs[j], Y: ys[j]}
	}
	return p
}

func groupedPair(numName, catName string, num, cat []dataset.Value) *GroupedPair {
	groups := make(map[string][]float64)
	for i, v := range cat {
		f, _ := num[i].Float()
		key := v.String()
		groups[key] = append(groups[key], f)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	g := &GroupedPair{Numeric: numName, Categorical: catName, Groups: make([]GroupStats, len(keys))}
	for i, k := range keys {
		xs := groups[k]
		g.Groups[i] = GroupStats{
			Category: k,
			Count:    len(xs),
			Mean:     stats.Mean(xs),
			Median:   stats.Median(xs),
			Std:      stats.SampleStd(xs),
		}
	}
	return g
}

func crossTab(xv, yv []dataset.Value) *Contingency {
	rowPos := make(map[string]int)
	colPos := make(map[string]int)
	var rows, cols []string
	for i := range xv {
		if _, ok := rowPos[xv[i].String()]; !ok {
			rowPos[xv[i].String()] = 0
			rows = append(rows, xv[i].String())
		}
		if _, ok := colPos[yv[i].String()]; !ok {
			colPos[yv[i].String()] = 0
			cols = append(cols, yv[i].String())
		}
	}
	sort.Strings(rows)
	sort.Strings(cols)
	for i, r := range rows {
		rowPos[r] = i
	}
	for i, c := range cols {
		colPos[c] = i
	}

	counts := make([][]int, len(rows))
	for i := range counts {
		counts[i] = make([]int, len(cols))
	}
	for i := range xv {
		counts[rowPos[xv[i].String()]][colPos[yv[i].String()]]++
	}
	return &Contingency{Rows: rows, Cols: cols, Counts: counts}
}

func floats(values []dataset.Value) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i], _ = v.Float()
	}
	return out
}
