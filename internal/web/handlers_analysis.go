package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/workbench/internal/analysis"
	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/export"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.service.Overview(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleMissingSummary(w http.ResponseWriter, r *http.Request) {
	ms, err := s.service.MissingSummary(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) handleUnivariate(w http.ResponseWriter, r *http.Request) {
	opts, err := analysisParams(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	u, err := s.service.Univariate(r.Context(), sessionID(r), chi.URLParam(r, "column"), opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleBivariate relates the columns named by the x and y parameters.
func (s *Server) handleBivariate(w http.ResponseWriter, r *http.Request) {
	opts, err := analysisParams(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	b, err := s.service.Bivariate(r.Context(), sessionID(r), q.Get("x"), q.Get("y"), opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// CorrelationResponse is the matrix with its strongest pairs.
type CorrelationResponse struct {
	analysis.Matrix
	TopPairs []analysis.Pair `json:"top_pairs"`
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("method")
	if method == "" {
		method = analysis.MethodPearson
	}
	m, err := s.service.Correlation(r.Context(), sessionID(r), method)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CorrelationResponse{Matrix: m, TopPairs: m.TopPairs(export.TopN)})
}

func (s *Server) handleInspectOutliers(w http.ResponseWriter, r *http.Request) {
	rep, err := s.service.InspectOutliers(r.Context(), sessionID(r), chi.URLParam(r, "column"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleExport downloads the dataset as csv, xlsx or zip, or the JSON
// report. csv and zip accept delimiter and index parameters.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var opts export.Options
	q := r.URL.Query()
	if d := q.Get("delimiter"); d != "" {
		if opts.Delimiter, err = export.ParseDelimiter(d); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	if idx := q.Get("index"); idx != "" {
		if opts.IncludeIndex, err = strconv.ParseBool(idx); err != nil {
			s.respondError(w, r, fmt.Errorf("%w: index %q", dataset.ErrInvalidOption, idx))
			return
		}
	}

	p, err := s.service.Export(r.Context(), sessionID(r), format, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", p.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.FileName))
	_, _ = w.Write(p.Data)
}

// analysisParams reads sample_cap, seed and top_k. Missing values stay zero
// so the service defaults apply.
func analysisParams(r *http.Request) (analysis.Options, error) {
	var opts analysis.Options
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		set  func(string) error
	}{
		{"sample_cap", func(v string) (err error) { opts.SampleCap, err = strconv.Atoi(v); return }},
		{"seed", func(v string) (err error) { opts.Seed, err = strconv.ParseUint(v, 10, 64); return }},
		{"top_k", func(v string) (err error) { opts.TopK, err = strconv.Atoi(v); return }},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		if err := p.set(v); err != nil {
			return opts, fmt.Errorf("%w: %s %q", dataset.ErrInvalidOption, p.name, v)
		}
	}
	return opts, nil
}
