package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/workbench/internal/analysis"
	"github.com/JonMunkholm/workbench/internal/core"
	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/export"
	"github.com/JonMunkholm/workbench/internal/loader"
	"github.com/JonMunkholm/workbench/internal/session"
)

// multipartOverhead covers form boundaries and headers around the file.
const multipartOverhead = 1 << 20

// DatasetResponse describes the session dataset.
type DatasetResponse struct {
	Meta    dataset.Metadata `json:"meta"`
	Columns []string         `json:"columns"`
	Preview *dataset.Table   `json:"preview"`
}

func datasetResponse(snap session.Snapshot) DatasetResponse {
	return DatasetResponse{
		Meta:    snap.Meta,
		Columns: snap.Table.Names(),
		Preview: snap.Table.Head(analysis.PreviewRows),
	}
}

// handleUpload loads the multipart "file" field into the session. The
// optional "delimiter" field sets the CSV and TXT separator (default: comma).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			err = fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
		case errors.Is(err, http.ErrMissingFile):
			err = core.ErrNoFile
		default:
			err = fmt.Errorf("%w: %v", dataset.ErrMalformedFile, err)
		}
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: read upload: %v", dataset.ErrMalformedFile, err))
		return
	}

	var opts []loader.Option
	if d := r.FormValue("delimiter"); d != "" {
		delim, err := export.ParseDelimiter(d)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		opts = append(opts, loader.WithDelimiter(delim))
	}

	snap, err := s.service.LoadDataset(r.Context(), sessionID(r), header.Filename, data, opts...)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, datasetResponse(snap))
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Dataset(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetResponse(snap))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearDataset(r.Context(), sessionID(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ModuleStatus is a module with its availability for this session.
type ModuleStatus struct {
	core.Module
	Available bool `json:"available"`
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	has := s.service.HasDataset(r.Context(), sessionID(r))
	mods := core.Modules()
	out := make([]ModuleStatus, len(mods))
	for i, m := range mods {
		out[i] = ModuleStatus{Module: m, Available: has || !m.NeedsDataset}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAuditLog lists the caller's own audit entries. Query parameters:
// action, since and until (RFC 3339 or YYYY-MM-DD), limit, offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.AuditLogFilter{
		SessionID: sessionID(r),
		Action:    core.AuditAction(q.Get("action")),
		Limit:     intParam(r, "limit", core.DefaultAuditLimit),
		Offset:    intParam(r, "offset", 0),
	}
	var err error
	if f.Since, err = timeParam(r, "since"); err != nil {
		s.respondError(w, r, err)
		return
	}
	if f.Until, err = timeParam(r, "until"); err != nil {
		s.respondError(w, r, err)
		return
	}

	entries, err := s.service.AuditLog(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.UploadStatus())
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// unchanged.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: request body: %v", dataset.ErrInvalidOption, err)
	}
	return nil
}

// intParam parses a non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return def
	}
	return i
}

func timeParam(r *http.Request, name string) (time.Time, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q", dataset.ErrInvalidOption, name, val)
	}
	return t, nil
}
