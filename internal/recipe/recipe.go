// Package recipe replays a declarative sequence of dataset treatments.
//
// A recipe is a YAML (or JSON) document:
//
//	name: tidy-sales
//	steps:
//	  - op: drop_missing_columns
//	    params: {threshold: 40}
//	  - op: impute_missing
//	    params: {numeric_strategy: median}
//	  - op: treat_outliers
//	    params: {column: price, action: cap}
//	  - op: preprocess
//	    params: {scaler: robust}
//
// Step params are decoded into the option types of the transform package.
// Every step is validated before the first one runs, and a failing step
// leaves the input untouched.
package recipe

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/transform"
)

// Step operations.
const (
	OpDropMissingColumns = "drop_missing_columns"
	OpDropMissingRows    = "drop_missing_rows"
	OpImputeMissing      = "impute_missing"
	OpTreatOutliers      = "treat_outliers"
	OpPreprocess         = "preprocess"
)

// Ops lists the step operations in documentation order.
var Ops = []string{OpDropMissingColumns, OpDropMissingRows, OpImputeMissing, OpTreatOutliers, OpPreprocess}

// ErrNoSteps is returned for a recipe without steps.
var ErrNoSteps = errors.New("recipe has no steps")

// Recipe is a named list of steps.
type Recipe struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// Step is one treatment with its raw parameters.
type Step struct {
	Op     string         `yaml:"op" json:"op"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// DropColumnsParams configures drop_missing_columns.
type DropColumnsParams struct {
	Threshold float64 `mapstructure:"threshold"`
}

// DropRowsParams configures drop_missing_rows.
type DropRowsParams struct {
	Columns []string `mapstructure:"columns"`
	Rule    string   `mapstructure:"rule"`
}

// OutlierParams configures treat_outliers.
type OutlierParams struct {
	Column string `mapstructure:"column"`
	Action string `mapstructure:"action"`
}

// Parse decodes a recipe document and validates its steps.
func Parse(data []byte) (Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Recipe{}, fmt.Errorf("%w: parse recipe: %v", dataset.ErrInvalidOption, err)
	}
	if _, err := r.compile(); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

// ParseFile reads and parses the recipe at path.
func ParseFile(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recipe{}, fmt.Errorf("read recipe: %w", err)
	}
	return Parse(data)
}

// Result summarizes one applied step.
type Result struct {
	Op   string `json:"op"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

type applyFunc func(*dataset.Table, dataset.Metadata) (*dataset.Table, dataset.Metadata, error)

// Apply runs every step in order and returns the final table and metadata.
// On failure the error names the step and the caller's table is unchanged.
func (r Recipe) Apply(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, []Result, error) {
	steps, err := r.compile()
	if err != nil {
		return nil, dataset.Metadata{}, nil, err
	}

	results := make([]Result, 0, len(steps))
	for i, apply := range steps {
		t, meta, err = apply(t, meta)
		if err != nil {
			return nil, dataset.Metadata{}, nil, fmt.Errorf("step %d (%s): %w", i+1, r.Steps[i].Op, err)
		}
		results = append(results, Result{Op: r.Steps[i].Op, Rows: t.Rows(), Cols: t.Cols()})
	}
	return t, meta, results, nil
}

func (r Recipe) compile() ([]applyFunc, error) {
	if len(r.Steps) == 0 {
		return nil, ErrNoSteps
	}
	out := make([]applyFunc, len(r.Steps))
	for i, s := range r.Steps {
		fn, err := compileStep(s)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, s.Op, err)
		}
		out[i] = fn
	}
	return out, nil
}

func compileStep(s Step) (applyFunc, error) {
	switch s.Op {
	case OpDropMissingColumns:
		var p DropColumnsParams
		if err := decodeParams(s.Params, &p); err != nil {
			return nil, err
		}
		return func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			return transform.DropColumns(t, meta, p.Threshold)
		}, nil

	case OpDropMissingRows:
		var p DropRowsParams
		if err := decodeParams(s.Params, &p); err != nil {
			return nil, err
		}
		if p.Rule == "" {
			p.Rule = transform.RuleAny
		}
		return func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			cols := p.Columns
			if len(cols) == 0 {
				cols = t.Names()
			}
			return transform.DropRows(t, meta, cols, p.Rule)
		}, nil

	case OpImputeMissing:
		var p transform.ImputeOptions
		if err := decodeParams(s.Params, &p); err != nil {
			return nil, err
		}
		return func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			return transform.Impute(t, meta, p)
		}, nil

	case OpTreatOutliers:
		var p OutlierParams
		if err := decodeParams(s.Params, &p); err != nil {
			return nil, err
		}
		action, err := transform.ParseOutlierAction(p.Action)
		if err != nil {
			return nil, err
		}
		if p.Column == "" {
			return nil, fmt.Errorf("%w: treat_outliers needs a column", dataset.ErrInvalidSelection)
		}
		return func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			return transform.TreatOutliers(t, meta, p.Column, action)
		}, nil

	case OpPreprocess:
		var p transform.PreprocessOptions
		if err := decodeParams(s.Params, &p); err != nil {
			return nil, err
		}
		return func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			opts := p
			if opts.NumericCols == nil && opts.CategoricalCols == nil {
				def := transform.DefaultPreprocessOptions(t)
				opts.NumericCols, opts.CategoricalCols = def.NumericCols, def.CategoricalCols
			}
			return transform.Preprocess(t, meta, opts)
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown step %q", dataset.ErrInvalidOption, s.Op)
	}
}

// decodeParams maps raw params onto out, rejecting unknown keys.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %v", dataset.ErrInvalidOption, err)
	}
	return nil
}
