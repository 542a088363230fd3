package transform

import (
	"fmt"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/stats"
)

// MethodIQR is the only outlier rule.
const MethodIQR = "IQR"

// IQRFactor widens the quartile range into the fences.
const IQRFactor = 1.5

// OutlierSampleSize caps how many outlier values InspectOutliers returns.
const OutlierSampleSize = 20

// OutlierAction is what TreatOutliers does with values outside the fences.
type OutlierAction string

const (
	ActionRemove OutlierAction = "remove"
	ActionCap    OutlierAction = "cap"
)

// ParseOutlierAction validates a raw action name.
func ParseOutlierAction(s string) (OutlierAction, error) {
	switch a := OutlierAction(s); a {
	case ActionRemove, ActionCap:
		return a, nil
	default:
		return "", fmt.Errorf("%w: outlier action %q, want remove or cap", dataset.ErrInvalidOption, s)
	}
}

// Bounds are the quartiles and fences of a column.
type Bounds struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Outside reports whether x lies beyond either fence.
func (b Bounds) Outside(x float64) bool {
	return x < b.Lower || x > b.Upper
}

// Clamp pulls x into [Lower, Upper].
func (b Bounds) Clamp(x float64) float64 {
	if x < b.Lower {
		return b.Lower
	}
	if x > b.Upper {
		return b.Upper
	}
	return x
}

// IQRBounds computes quartiles with linear interpolation and the
// 1.5 x IQR fences around them.
func IQRBounds(xs []float64) (Bounds, error) {
	if len(xs) == 0 {
		return Bounds{}, dataset.ErrEmptyColumn
	}
	s := stats.Sorted(xs)
	q1 := stats.Quantile(s, 0.25)
	q3 := stats.Quantile(s, 0.75)
	iqr := q3 - q1
	return Bounds{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: q1 - IQRFactor*iqr,
		Upper: q3 + IQRFactor*iqr,
	}, nil
}

// OutlierReport is the inspection result for one column.
type OutlierReport struct {
	Column string    `json:"column"`
	Bounds Bounds    `json:"bounds"`
	Total  int       `json:"total"`
	Count  int       `json:"outliers"`
	Ratio  float64   `json:"outlier_pct"`
	Sample []float64 `json:"sample"`
}

// InspectOutliers reports the IQR fences of col and which values fall
// outside them, without changing anything.
func InspectOutliers(t *dataset.Table, col string) (OutlierReport, error) {
	xs, _, err := numericTarget(t, col)
	if err != nil {
		return OutlierReport{}, err
	}
	b, err := IQRBounds(xs)
	if err != nil {
		return OutlierReport{}, fmt.Errorf("%w: %q", err, col)
	}

	var out []float64
	for _, x := range xs {
		if b.Outside(x) {
			out = append(out, x)
		}
	}
	sample := stats.Sorted(out)
	if len(sample) > OutlierSampleSize {
		sample = sample[:OutlierSampleSize]
	}
	return OutlierReport{
		Column: col,
		Bounds: b,
		Total:  len(xs),
		Count:  len(out),
		Ratio:  percent(len(out), len(xs)),
		Sample: sample,
	}, nil
}

// TreatOutliers removes or caps values of col outside its IQR fences.
// Remove also drops rows whose value is missing; cap leaves them missing.
func TreatOutliers(t *dataset.Table, meta dataset.Metadata, col string, action OutlierAction) (*dataset.Table, dataset.Metadata, error) {
	if _, err := ParseOutlierAction(string(action)); err != nil {
		return nil, meta, err
	}
	xs, values, err := numericTarget(t, col)
	if err != nil {
		return nil, meta, err
	}
	b, err := IQRBounds(xs)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: %q", err, col)
	}

	var out *dataset.Table
	switch action {
	case ActionRemove:
		keep := make([]int, 0, len(values))
		for r, v := range values {
			if f, ok := v.Float(); ok && !b.Outside(f) {
				keep = append(keep, r)
			}
		}
		out = t.SelectRows(keep)
	case ActionCap:
		capped := make([]dataset.Value, len(values))
		for r, v := range values {
			if f, ok := v.Float(); ok {
				capped[r] = dataset.Number(b.Clamp(f))
			} else {
				capped[r] = v
			}
		}
		if out, err = t.ReplaceColumn(col, capped); err != nil {
			return nil, meta, err
		}
	}

	rec := dataset.OutlierTreatment{
		Column: col,
		Method: MethodIQR,
		Action: string(action),
		Lower:  b.Lower,
		Upper:  b.Upper,
	}
	return out, meta.WithShape(out).WithOutlierTreatment(rec), nil
}

// numericTarget resolves col and returns its non-missing numeric values
// together with the full cell slice.
func numericTarget(t *dataset.Table, col string) ([]float64, []dataset.Value, error) {
	c, ok := t.Lookup(col)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, col)
	}
	if dataset.Classify(c.Values) != dataset.Numeric {
		return nil, nil, fmt.Errorf("%w: %q", dataset.ErrNotNumeric, col)
	}
	xs, _ := dataset.Floats(c.Values)
	return xs, c.Values, nil
}
