package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/foodiepass/internal/messages"
	"github.com/vbonduro/foodiepass/internal/survey"
)

const surveyPartial = "partials/survey.html"

// surveyData is what partials/survey.html draws. An inactive survey renders
// as an empty placeholder that stops polling.
type surveyData struct {
	Active          bool
	ControlsVisible bool
	ControlsEnabled bool
	ThankYou        bool
	Error           string
}

func (s *Server) surveyData(session *survey.Session) surveyData {
	if session == nil {
		return surveyData{}
	}
	v := session.View()
	d := surveyData{
		Active:          v.State != survey.Closed,
		ControlsVisible: v.ControlsVisible,
		ControlsEnabled: v.ControlsEnabled,
		ThankYou:        v.ThankYou,
	}
	if v.Err != nil {
		d.Error = messages.For(v.Err, s.locale).Text
	}
	return d
}

func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request) {
	s.renderSurvey(w, http.StatusOK, s.service.Survey())
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var hasConfidence bool
	switch r.FormValue("answer") {
	case "yes":
		hasConfidence = true
	case "no":
	default:
		http.Error(w, "answer must be yes or no", http.StatusBadRequest)
		return
	}

	session := s.service.Survey()
	if session == nil {
		s.renderSurvey(w, http.StatusConflict, nil)
		return
	}

	// A failed submission is shown inside the partial, so it is still a 200
	// for HTMX to swap in.
	err := session.Answer(r.Context(), hasConfidence)
	if errors.Is(err, survey.ErrNotOffered) {
		s.renderSurvey(w, http.StatusConflict, session)
		return
	}
	s.renderSurvey(w, http.StatusOK, session)
}

func (s *Server) renderSurvey(w http.ResponseWriter, status int, session *survey.Session) {
	if err := s.renderPartial(w, status, surveyPartial, s.surveyData(session)); err != nil {
		s.logger.Error("render failed", "partial", "survey", "error", err)
	}
}
