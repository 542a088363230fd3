package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/recipe"
	"github.com/JonMunkholm/workbench/internal/session"
	"github.com/JonMunkholm/workbench/internal/transform"
)

// maxRecipeSize bounds recipe uploads.
const maxRecipeSize = 1 << 20

// DropColumnsRequest is the body of POST /api/missing/drop-columns.
type DropColumnsRequest struct {
	Threshold *float64 `json:"threshold"`
}

// DropRowsRequest is the body of POST /api/missing/drop-rows.
type DropRowsRequest struct {
	Columns []string `json:"columns"`
	Rule    string   `json:"rule"`
}

// TreatOutliersRequest is the body of POST /api/outliers/{column}.
type TreatOutliersRequest struct {
	Action string `json:"action"`
}

// RecipeResponse reports a recipe run.
type RecipeResponse struct {
	DatasetResponse
	Steps []recipe.Result `json:"steps"`
}

func (s *Server) handleDropColumns(w http.ResponseWriter, r *http.Request) {
	var req DropColumnsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Threshold == nil {
		s.respondError(w, r, fmt.Errorf("%w: threshold is required", dataset.ErrInvalidOption))
		return
	}
	snap, err := s.service.DropMissingColumns(r.Context(), sessionID(r), *req.Threshold)
	s.respondMutation(w, r, snap, err)
}

func (s *Server) handleDropRows(w http.ResponseWriter, r *http.Request) {
	req := DropRowsRequest{Rule: transform.RuleAny}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	snap, err := s.service.DropMissingRows(r.Context(), sessionID(r), req.Columns, req.Rule)
	s.respondMutation(w, r, snap, err)
}

func (s *Server) handleImpute(w http.ResponseWriter, r *http.Request) {
	var opts transform.ImputeOptions
	if err := decodeJSON(r, &opts); err != nil {
		s.respondError(w, r, err)
		return
	}
	snap, err := s.service.ImputeMissing(r.Context(), sessionID(r), opts)
	s.respondMutation(w, r, snap, err)
}

func (s *Server) handleTreatOutliers(w http.ResponseWriter, r *http.Request) {
	var req TreatOutliersRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	action, err := transform.ParseOutlierAction(req.Action)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	snap, err := s.service.TreatOutliers(r.Context(), sessionID(r), chi.URLParam(r, "column"), action)
	s.respondMutation(w, r, snap, err)
}

// handlePreprocess runs the pipeline. An empty body selects every numeric
// and categorical column with the default strategies.
func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	var opts transform.PreprocessOptions
	if err := decodeJSON(r, &opts); err != nil {
		s.respondError(w, r, err)
		return
	}
	snap, err := s.service.Preprocess(r.Context(), sessionID(r), opts)
	s.respondMutation(w, r, snap, err)
}

// handleRecipe applies a YAML or JSON recipe from the request body.
func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecipeSize))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: recipe body: %v", dataset.ErrInvalidOption, err))
		return
	}
	rec, err := recipe.Parse(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	snap, results, err := s.service.ApplyRecipe(r.Context(), sessionID(r), rec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecipeResponse{DatasetResponse: datasetResponse(snap), Steps: results})
}

func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, snap session.Snapshot, err error) {
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetResponse(snap))
}
