package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/messages"
	"github.com/vbonduro/foodiepass/internal/scan"
	"github.com/vbonduro/foodiepass/internal/service"
	"github.com/vbonduro/foodiepass/internal/upload"
)

// maxFormMemory is how much of a multipart body is held in memory; the rest
// spills to temporary files. Oversize uploads still parse so the validator can
// reject them with a proper message.
const maxFormMemory = upload.MaxSize + 1<<20

var scanPage = []string{"base.html", "pages/scan.html"}

func (s *Server) handleScanPage(w http.ResponseWriter, r *http.Request) {
	s.service.LeaveResults()
	s.renderScan(w, r, http.StatusOK, s.service.LastError())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	sel := s.service.Selection()
	sel.Language = r.FormValue("language")
	sel.Currency = r.FormValue("currency")
	if v := r.FormValue("originLanguage"); v != "" {
		sel.OriginLanguage = v
	}
	if v := r.FormValue("originCurrency"); v != "" {
		sel.OriginCurrency = v
	}
	s.service.SetSelection(sel)

	file, fh, err := r.FormFile("image")
	if err != nil {
		s.renderScan(w, r, http.StatusUnprocessableEntity, apperr.New(apperr.KindValidation, service.ErrNoFile))
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	f, err := upload.FromMultipart(fh)
	if err != nil {
		s.logger.Error("read upload failed", "name", fh.Filename, "error", err)
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}
	if err := s.service.SelectFile(f); err != nil {
		s.renderScan(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	if _, err := s.service.Scan(r.Context()); err != nil {
		s.renderScan(w, r, scanStatus(err), err)
		return
	}
	http.Redirect(w, r, "/results", http.StatusSeeOther)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	_, err := s.service.Retry(r.Context())
	switch {
	case err == nil:
		http.Redirect(w, r, "/results", http.StatusSeeOther)
	case errors.Is(err, service.ErrNotRetryable), errors.Is(err, service.ErrNoFile):
		http.Redirect(w, r, "/scan", http.StatusSeeOther)
	default:
		s.renderScan(w, r, scanStatus(err), err)
	}
}

// renderScan draws the upload form, with err shown as a localized message.
// The raw error only reaches the log.
func (s *Server) renderScan(w http.ResponseWriter, r *http.Request, status int, err error) {
	ctx := r.Context()
	data := map[string]any{
		"Languages":  s.service.Languages(ctx),
		"Currencies": s.service.Currencies(ctx),
		"Selection":  s.service.Selection(),
		"HasFile":    s.service.HasFile(),
	}
	if err != nil {
		msg := messages.For(err, s.locale)
		data["Error"] = &msg
		s.logger.Info("scan failed", "key", msg.Key, "status", status, "error", err)
	}
	if rerr := s.renderPage(w, status, data, scanPage...); rerr != nil {
		s.logger.Error("render failed", "page", "scan", "error", rerr)
	}
}

func scanStatus(err error) int {
	switch {
	case errors.Is(err, scan.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindDecode:
		return http.StatusUnprocessableEntity
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	view := s.service.View()
	if view == nil {
		if err := s.renderPage(w, http.StatusNotFound, map[string]any{"View": nil}, resultsPage...); err != nil {
			s.logger.Error("render failed", "page", "results", "error", err)
		}
		return
	}

	session := s.service.Survey()
	if session != nil {
		session.Mount(context.WithoutCancel(r.Context()))
	}
	data := map[string]any{
		"View":   view,
		"Survey": s.surveyData(session),
	}
	if err := s.renderPage(w, http.StatusOK, data, resultsPage...); err != nil {
		s.logger.Error("render failed", "page", "results", "error", err)
	}
}

var resultsPage = []string{"base.html", "pages/results.html", "partials/menu_item.html", "partials/survey.html"}

func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
