package core

import (
	"context"

	"github.com/JonMunkholm/workbench/internal/analysis"
	"github.com/JonMunkholm/workbench/internal/export"
	"github.com/JonMunkholm/workbench/internal/session"
	"github.com/JonMunkholm/workbench/internal/transform"
)

// Overview summarizes the structure of the session dataset.
func (s *Service) Overview(ctx context.Context, id string) (analysis.Overview, error) {
	var out analysis.Overview
	err := s.read(ctx, id, OpOverview, func(snap session.Snapshot) error {
		out = analysis.Summarize(snap.Table)
		return nil
	})
	return out, err
}

// MissingSummary counts missing cells per column.
func (s *Service) MissingSummary(ctx context.Context, id string) (transform.MissingSummary, error) {
	var out transform.MissingSummary
	err := s.read(ctx, id, OpMissingSummary, func(snap session.Snapshot) error {
		out = transform.SummarizeMissing(snap.Table)
		return nil
	})
	return out, err
}

// Univariate profiles one column.
func (s *Service) Univariate(ctx context.Context, id, column string, opts analysis.Options) (analysis.Univariate, error) {
	var out analysis.Univariate
	err := s.read(ctx, id, OpUnivariate, func(snap session.Snapshot) error {
		var err error
		out, err = analysis.Profile(snap.Table, column, s.analysisOptions(opts))
		return err
	})
	return out, err
}

// Bivariate relates two columns.
func (s *Service) Bivariate(ctx context.Context, id, x, y string, opts analysis.Options) (analysis.Bivariate, error) {
	var out analysis.Bivariate
	err := s.read(ctx, id, OpBivariate, func(snap session.Snapshot) error {
		var err error
		out, err = analysis.Relate(snap.Table, x, y, s.analysisOptions(opts))
		return err
	})
	return out, err
}

// Correlation computes the correlation matrix of the numeric columns.
func (s *Service) Correlation(ctx context.Context, id, method string) (analysis.Matrix, error) {
	var out analysis.Matrix
	err := s.read(ctx, id, OpCorrelation, func(snap session.Snapshot) error {
		var err error
		out, err = analysis.Correlate(snap.Table, method)
		return err
	})
	return out, err
}

// InspectOutliers reports the IQR outliers of a numeric column without
// changing the dataset.
func (s *Service) InspectOutliers(ctx context.Context, id, column string) (transform.OutlierReport, error) {
	var out transform.OutlierReport
	err := s.read(ctx, id, OpInspectOutliers, func(snap session.Snapshot) error {
		var err error
		out, err = transform.InspectOutliers(snap.Table, column)
		return err
	})
	return out, err
}

// Export renders the session dataset as a downloadable payload.
func (s *Service) Export(ctx context.Context, id string, format export.Format, opts export.Options) (export.Payload, error) {
	var out export.Payload
	err := s.read(ctx, id, OpExport, func(snap session.Snapshot) error {
		var err error
		out, err = export.Build(snap.Table, snap.Meta, format, opts, s.now())
		if err != nil {
			return err
		}
		s.metrics.ExportsTotal.WithLabelValues(string(format)).Inc()
		s.LogAudit(ctx, AuditLogParams{
			Action:     ActionExport,
			SessionID:  id,
			FileName:   snap.Meta.FileName,
			RowsBefore: snap.Meta.Rows,
			ColsBefore: snap.Meta.Cols,
			RowsAfter:  snap.Meta.Rows,
			ColsAfter:  snap.Meta.Cols,
			Details:    map[string]any{"format": string(format), "file": out.FileName, "bytes": len(out.Data)},
		})
		return nil
	})
	return out, err
}

// analysisOptions fills zero fields of opts from the service defaults.
func (s *Service) analysisOptions(opts analysis.Options) analysis.Options {
	def := s.cfg.Analysis
	if opts.SampleCap == 0 {
		opts.SampleCap = def.SampleCap
	}
	if opts.Seed == 0 {
		opts.Seed = def.Seed
	}
	if opts.TopK == 0 {
		opts.TopK = def.TopK
	}
	return opts
}
