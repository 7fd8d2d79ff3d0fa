package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ashureev/healthjournal/internal/identity"
	"github.com/ashureev/healthjournal/internal/insights"
	"github.com/go-chi/chi/v5"
)

// InsightsHandler serves the analysis page and report export.
type InsightsHandler struct {
	*Handler
	analyzer *insights.Analyzer
	exporter *insights.Exporter
}

// NewInsightsHandler creates an insights handler.
func NewInsightsHandler(base *Handler, analyzer *insights.Analyzer, exporter *insights.Exporter) *InsightsHandler {
	return &InsightsHandler{Handler: base, analyzer: analyzer, exporter: exporter}
}

// RegisterRoutes registers the insights routes.
func (h *InsightsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/insights", h.GetInsights)
	r.Post("/api/insights/report", h.ExportReport)
}

// GetInsights returns the summary of the caller's trailing window.
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analyzer.Analyze(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, summary)
}

// ExportReport builds a CSV report. Uploaded reports are returned as a link;
// otherwise the file is the response body.
func (h *InsightsHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	sess := identity.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	report, err := h.exporter.Export(r.Context(), sess.User)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if report.URL != "" {
		JSON(w, http.StatusOK, report)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report.Data); err != nil {
		h.logger.Debug("Failed to write report", "error", err, "user_id", sess.UserID())
	}
}
