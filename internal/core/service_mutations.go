package core

import (
	"context"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/recipe"
	"github.com/JonMunkholm/workbench/internal/session"
	"github.com/JonMunkholm/workbench/internal/transform"
)

// DropMissingColumns drops columns whose missing percentage exceeds
// threshold (0-100).
func (s *Service) DropMissingColumns(ctx context.Context, id string, threshold float64) (session.Snapshot, error) {
	return s.mutate(ctx, id, OpDropColumns, map[string]any{"threshold": threshold},
		func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			return transform.DropColumns(t, meta, threshold)
		})
}

// DropMissingRows drops rows with missing values in cols. rule is "any"
// or "all".
func (s *Service) DropMissingRows(ctx context.Context, id string, cols []string, rule string) (session.Snapshot, error) {
	return s.mutate(ctx, id, OpDropRows, map[string]any{"columns": cols, "rule": rule},
		func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			return transform.DropRows(t, meta, cols, rule)
		})
}

// ImputeMissing fills missing cells.
func (s *Service) ImputeMissing(ctx context.Context, id string, opts transform.ImputeOptions) (session.Snapshot, error) {
	details := map[string]any{
		"columns":          opts.Columns,
		"numeric_strategy": opts.NumericStrategy,
		"categorical_fill": opts.CategoricalFill,
	}
	return s.mutate(ctx, id, OpImpute, details,
		func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			return transform.Impute(t, meta, opts)
		})
}

// TreatOutliers removes or caps the IQR outliers of a numeric column.
func (s *Service) TreatOutliers(ctx context.Context, id, column string, action transform.OutlierAction) (session.Snapshot, error) {
	return s.mutate(ctx, id, OpTreatOutliers, map[string]any{"column": column, "action": string(action)},
		func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			return transform.TreatOutliers(t, meta, column, action)
		})
}

// Preprocess fits and applies an imputation, scaling and one-hot pipeline.
// The fitted parameters are recorded in the metadata. When neither column
// list is set, every numeric and categorical column is selected.
func (s *Service) Preprocess(ctx context.Context, id string, opts transform.PreprocessOptions) (session.Snapshot, error) {
	details := map[string]any{
		"numeric_cols":     opts.NumericCols,
		"categorical_cols": opts.CategoricalCols,
		"scaler":           opts.Scaler,
	}
	return s.mutate(ctx, id, OpPreprocess, details,
		func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			if opts.NumericCols == nil && opts.CategoricalCols == nil {
				def := transform.DefaultPreprocessOptions(t)
				opts.NumericCols, opts.CategoricalCols = def.NumericCols, def.CategoricalCols
			}
			return transform.Preprocess(t, meta, opts)
		})
}

// ApplyRecipe runs every step of r as one replacement of the dataset.
// Either all steps apply or the session is unchanged.
func (s *Service) ApplyRecipe(ctx context.Context, id string, r recipe.Recipe) (session.Snapshot, []recipe.Result, error) {
	var results []recipe.Result
	snap, err := s.mutate(ctx, id, OpApplyRecipe, map[string]any{"recipe": r.Name, "steps": len(r.Steps)},
		func(t *dataset.Table, meta dataset.Metadata) (*dataset.Table, dataset.Metadata, error) {
			out, outMeta, res, err := r.Apply(t, meta)
			results = res
			return out, outMeta, err
		})
	if err != nil {
		return session.Snapshot{}, nil, err
	}
	return snap, results, nil
}
