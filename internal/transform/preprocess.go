package transform

import (
	"fmt"
	"slices"
	"sort"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/stats"
)

// Numeric imputation strategies for the pipeline.
const (
	NumImputeMean     = "mean"
	NumImputeMedian   = "median"
	NumImputeConstant = "constant"
)

// Categorical imputation strategies for the pipeline.
const (
	CatImputeMostFrequent = "most_frequent"
	CatImputeConstant     = "constant"
)

// Scalers.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
	ScalerRobust   = "robust"
	ScalerNone     = "none"
)

// PreprocessOptions selects the columns and strategies of a pipeline.
type PreprocessOptions struct {
	NumericCols     []string `json:"numeric_cols" mapstructure:"numeric_cols"`
	CategoricalCols []string `json:"categorical_cols" mapstructure:"categorical_cols"`
	NumImputation   string   `json:"num_imputation" mapstructure:"num_imputation"`
	CatImputation   string   `json:"cat_imputation" mapstructure:"cat_imputation"`
	Scaler          string   `json:"scaler" mapstructure:"scaler"`
	NumFillValue    *float64 `json:"num_fill_value,omitempty" mapstructure:"num_fill_value"`
	CatFillValue    *string  `json:"cat_fill_value,omitempty" mapstructure:"cat_fill_value"`
}

// DefaultPreprocessOptions selects every numeric and categorical column of t
// with mean imputation, most-frequent imputation and standard scaling.
func DefaultPreprocessOptions(t *dataset.Table) PreprocessOptions {
	return PreprocessOptions{
		NumericCols:     t.NumericColumns(),
		CategoricalCols: t.CategoricalColumns(),
		NumImputation:   NumImputeMean,
		CatImputation:   CatImputeMostFrequent,
		Scaler:          ScalerStandard,
	}
}

func (o PreprocessOptions) withDefaults() PreprocessOptions {
	if o.NumImputation == "" {
		o.NumImputation = NumImputeMean
	}
	if o.CatImputation == "" {
		o.CatImputation = CatImputeMostFrequent
	}
	if o.Scaler == "" {
		o.Scaler = ScalerStandard
	}
	return o
}

func (o PreprocessOptions) validate() error {
	if len(o.NumericCols) == 0 && len(o.CategoricalCols) == 0 {
		return dataset.ErrNoColumnsSelected
	}
	switch o.NumImputation {
	case NumImputeMean, NumImputeMedian, NumImputeConstant:
	default:
		return fmt.Errorf("%w: numeric imputation %q", dataset.ErrInvalidOption, o.NumImputation)
	}
	switch o.CatImputation {
	case CatImputeMostFrequent, CatImputeConstant:
	default:
		return fmt.Errorf("%w: categorical imputation %q", dataset.ErrInvalidOption, o.CatImputation)
	}
	switch o.Scaler {
	case ScalerStandard, ScalerMinMax, ScalerRobust, ScalerNone:
	default:
		return fmt.Errorf("%w: scaler %q", dataset.ErrInvalidOption, o.Scaler)
	}

	seen := make(map[string]string, len(o.NumericCols)+len(o.CategoricalCols))
	for _, c := range o.NumericCols {
		if seen[c] != "" {
			return fmt.Errorf("%w: %q listed twice", dataset.ErrInvalidSelection, c)
		}
		seen[c] = "numeric"
	}
	for _, c := range o.CategoricalCols {
		if prev := seen[c]; prev != "" {
			return fmt.Errorf("%w: %q selected as both %s and categorical", dataset.ErrInvalidSelection, c, prev)
		}
		seen[c] = "categorical"
	}
	return nil
}

func (o PreprocessOptions) numFill() float64 {
	if o.NumFillValue != nil {
		return *o.NumFillValue
	}
	return 0
}

func (o PreprocessOptions) catFill() string {
	if o.CatFillValue != nil {
		return *o.CatFillValue
	}
	return DefaultCategoricalFill
}

// Pipeline is a fitted preprocessing transformation. It can be applied to
// any table that has the selected columns.
type Pipeline struct {
	opts   PreprocessOptions
	fitted dataset.FittedPipeline
}

// FitPipeline learns imputation values, scaling parameters and category
// levels from t.
func FitPipeline(t *dataset.Table, opts PreprocessOptions) (*Pipeline, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{opts: opts}
	for _, name := range opts.NumericCols {
		fn, err := fitNumeric(t, name, opts)
		if err != nil {
			return nil, err
		}
		p.fitted.Numeric = append(p.fitted.Numeric, fn)
	}
	for _, name := range opts.CategoricalCols {
		fc, err := fitCategorical(t, name, opts)
		if err != nil {
			return nil, err
		}
		p.fitted.Categorical = append(p.fitted.Categorical, fc)
	}
	return p, nil
}

func fitNumeric(t *dataset.Table, name string, opts PreprocessOptions) (dataset.FittedNumeric, error) {
	col, ok := t.Lookup(name)
	if !ok {
		return dataset.FittedNumeric{}, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, name)
	}
	if dataset.Classify(col.Values) != dataset.Numeric {
		return dataset.FittedNumeric{}, fmt.Errorf("%w: %q", dataset.ErrNotNumeric, name)
	}

	xs, _ := dataset.Floats(col.Values)
	var fill float64
	switch opts.NumImputation {
	case NumImputeConstant:
		fill = opts.numFill()
	case NumImputeMedian, NumImputeMean:
		if len(xs) == 0 {
			return dataset.FittedNumeric{}, fmt.Errorf("%w: %q has no values to impute from", dataset.ErrEmptyColumn, name)
		}
		if opts.NumImputation == NumImputeMedian {
			fill = stats.Median(xs)
		} else {
			fill = stats.Mean(xs)
		}
	}

	imputed := make([]float64, len(col.Values))
	for i, v := range col.Values {
		if f, ok := v.Float(); ok {
			imputed[i] = f
		} else {
			imputed[i] = fill
		}
	}

	center, scale := scaleParams(imputed, opts.Scaler)
	return dataset.FittedNumeric{Column: name, Fill: fill, Center: center, Scale: scale}, nil
}

// scaleParams returns the centre and divisor of a scaler. A zero divisor is
// replaced by 1 so constant columns map to zero instead of NaN.
func scaleParams(xs []float64, scaler string) (center, scale float64) {
	if len(xs) == 0 || scaler == ScalerNone {
		return 0, 1
	}
	switch scaler {
	case ScalerStandard:
		center, scale = stats.Mean(xs), stats.PopulationStd(xs)
	case ScalerMinMax:
		lo, hi := stats.MinMax(xs)
		center, scale = lo, hi-lo
	case ScalerRobust:
		s := stats.Sorted(xs)
		center = stats.Quantile(s, 0.5)
		scale = stats.Quantile(s, 0.75) - stats.Quantile(s, 0.25)
	}
	if scale == 0 {
		scale = 1
	}
	return center, scale
}

func fitCategorical(t *dataset.Table, name string, opts PreprocessOptions) (dataset.FittedCategorical, error) {
	col, ok := t.Lookup(name)
	if !ok {
		return dataset.FittedCategorical{}, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, name)
	}

	counts := make(map[string]int)
	missing := false
	for _, v := range col.Values {
		if v.IsNull() {
			missing = true
			continue
		}
		counts[v.String()]++
	}

	var fill string
	switch opts.CatImputation {
	case CatImputeConstant:
		fill = opts.catFill()
	case CatImputeMostFrequent:
		if len(counts) == 0 {
			return dataset.FittedCategorical{}, fmt.Errorf("%w: %q has no values to impute from", dataset.ErrEmptyColumn, name)
		}
		fill = mostFrequent(counts)
	}
	if missing {
		counts[fill]++
	}

	levels := make([]string, 0, len(counts))
	for level := range counts {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	return dataset.FittedCategorical{Column: name, Fill: fill, Levels: levels}, nil
}

// mostFrequent returns the most common key; ties go to the smallest.
func mostFrequent(counts map[string]int) string {
	best, bestN := "", -1
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

// Transform applies the fitted pipeline. The output holds the numeric
// columns in selection order followed by one indicator column per
// category level, named "<column>_<level>". Categories not seen during
// fit encode as all zeros.
func (p *Pipeline) Transform(t *dataset.Table) (*dataset.Table, error) {
	cols := make([]dataset.Column, 0, len(p.fitted.Numeric)+len(p.fitted.Categorical))

	for _, fn := range p.fitted.Numeric {
		col, ok := t.Lookup(fn.Column)
		if !ok {
			return nil, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, fn.Column)
		}
		if dataset.Classify(col.Values) != dataset.Numeric {
			return nil, fmt.Errorf("%w: %q", dataset.ErrNotNumeric, fn.Column)
		}
		vals := make([]dataset.Value, len(col.Values))
		for i, v := range col.Values {
			x, ok := v.Float()
			if !ok {
				x = fn.Fill
			}
			vals[i] = dataset.Number((x - fn.Center) / fn.Scale)
		}
		cols = append(cols, dataset.Column{Name: fn.Column, Values: vals})
	}

	for _, fc := range p.fitted.Categorical {
		col, ok := t.Lookup(fc.Column)
		if !ok {
			return nil, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, fc.Column)
		}
		pos := make(map[string]int, len(fc.Levels))
		indicators := make([][]dataset.Value, len(fc.Levels))
		for i, level := range fc.Levels {
			pos[level] = i
			indicators[i] = make([]dataset.Value, len(col.Values))
		}
		for r, v := range col.Values {
			s := fc.Fill
			if !v.IsNull() {
				s = v.String()
			}
			hit, known := pos[s]
			for i := range indicators {
				if known && i == hit {
					indicators[i][r] = dataset.Number(1)
				} else {
					indicators[i][r] = dataset.Number(0)
				}
			}
		}
		for i, level := range fc.Levels {
			cols = append(cols, dataset.Column{Name: fc.Column + "_" + level, Values: indicators[i]})
		}
	}

	if len(cols) == 0 {
		// Every categorical column had no levels; keep the row count.
		return t.DropColumns(t.Names()...), nil
	}
	out, err := dataset.NewTable(cols)
	if err != nil {
		return nil, fmt.Errorf("%w: output columns: %v", dataset.ErrInvalidSelection, err)
	}
	return out, nil
}

// OutputColumns lists the column names Transform produces.
func (p *Pipeline) OutputColumns() []string {
	var names []string
	for _, fn := range p.fitted.Numeric {
		names = append(names, fn.Column)
	}
	for _, fc := range p.fitted.Categorical {
		for _, level := range fc.Levels {
			names = append(names, fc.Column+"_"+level)
		}
	}
	return names
}

// Record describes the pipeline for the preprocessing metadata entry.
func (p *Pipeline) Record() dataset.PreprocessingRecord {
	fitted := dataset.FittedPipeline{
		Numeric:     slices.Clone(p.fitted.Numeric),
		Categorical: make([]dataset.FittedCategorical, len(p.fitted.Categorical)),
	}
	for i, fc := range p.fitted.Categorical {
		fc.Levels = slices.Clone(fc.Levels)
		fitted.Categorical[i] = fc
	}
	rec := dataset.PreprocessingRecord{
		NumericCols:     slices.Clone(p.opts.NumericCols),
		CategoricalCols: slices.Clone(p.opts.CategoricalCols),
		NumImputation:   p.opts.NumImputation,
		CatImputation:   p.opts.CatImputation,
		Scaler:          p.opts.Scaler,
		Fitted:          &fitted,
	}
	if p.opts.NumImputation == NumImputeConstant {
		v := p.opts.numFill()
		rec.NumFillValue = &v
	}
	if p.opts.CatImputation == CatImputeConstant {
		v := p.opts.catFill()
		rec.CatFillValue = &v
	}
	return rec
}

// PipelineFromRecord rebuilds a fitted pipeline from its metadata entry.
func PipelineFromRecord(rec dataset.PreprocessingRecord) (*Pipeline, error) {
	if rec.Fitted == nil {
		return nil, fmt.Errorf("%w: preprocessing record has no fitted parameters", dataset.ErrInvalidOption)
	}
	opts := PreprocessOptions{
		NumericCols:     rec.NumericCols,
		CategoricalCols: rec.CategoricalCols,
		NumImputation:   rec.NumImputation,
		CatImputation:   rec.CatImputation,
		Scaler:          rec.Scaler,
		NumFillValue:    rec.NumFillValue,
		CatFillValue:    rec.CatFillValue,
	}.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Pipeline{opts: opts, fitted: *rec.Fitted}, nil
}

// Preprocess fits a pipeline on t and returns its output, with the fitted
// pipeline recorded in metadata.
func Preprocess(t *dataset.Table, meta dataset.Metadata, opts PreprocessOptions) (*dataset.Table, dataset.Metadata, error) {
	p, err := FitPipeline(t, opts)
	if err != nil {
		return nil, meta, err
	}
	out, err := p.Transform(t)
	if err != nil {
		return nil, meta, err
	}
	return out, meta.WithShape(out).WithPreprocessing(p.Record()), nil
}
