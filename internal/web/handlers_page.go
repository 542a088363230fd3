package web

import (
	"net/http"

	"github.com/JonMunkholm/workbench/internal/core"
	"github.com/JonMunkholm/workbench/internal/export"
	"github.com/JonMunkholm/workbench/internal/logging"
	"github.com/JonMunkholm/workbench/internal/web/templates"
)

// PageTitle is shown in the browser tab and page header.
const PageTitle = "EDA Workbench"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	params := templates.PageParams{Title: PageTitle}

	snap, err := s.service.Dataset(r.Context(), sessionID(r))
	if err == nil {
		params.Dataset = &templates.DatasetSummary{
			FileName: snap.Meta.FileName,
			FileType: snap.Meta.FileType,
			Rows:     snap.Meta.Rows,
			Cols:     snap.Meta.Cols,
		}
	}
	for _, m := range core.Modules() {
		params.Modules = append(params.Modules, templates.ModuleLink{
			Key:         m.Key,
			Title:       m.Title,
			Description: m.Description,
			Available:   params.Dataset != nil || !m.NeedsDataset,
		})
	}
	for _, f := range export.Formats {
		params.Formats = append(params.Formats, string(f))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Page(params).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
	}
}
