package adapthttp

import (
	"bytes"
	"net/http"

	"fitlog/internal/app"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	entries, summary, err := s.entries.Dashboard(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    s.profile(user),
		"entries": entries,
		"summary": summary,
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var buf bytes.Buffer
	if err := s.export.ExportCSV(r.Context(), user.ID, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+app.ExportFilename+`"`)
	writeBuffered(w, "text/csv; charset=utf-8", &buf)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var buf bytes.Buffer
	if err := s.charts.RenderPNG(r.Context(), user.ID, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeBuffered(w, "image/png", &buf)
}

func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	series, err := s.charts.GetSeries(r.Context(), user.ID, dateRange(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}
