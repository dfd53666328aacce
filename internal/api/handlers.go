package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/localization"
	"ContentLocalizer/internal/usecase"
)

type ensureResponse struct {
	ContentID string `json:"content_id"`
	Language  string `json:"language"`
	URL       string `json:"url,omitempty"`
	Origin    string `json:"origin"`
	Cached    bool   `json:"cached"`
	Attempts  int    `json:"attempts"`
}

type statusResponse struct {
	ContentID  string    `json:"content_id"`
	Language   string    `json:"language"`
	Status     string    `json:"status"`
	ResultURL  string    `json:"result_url,omitempty"`
	Progress   int       `json:"progress,omitempty"`
	Error      string    `json:"error,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

type availabilityResponse struct {
	Language  string `json:"language"`
	Available bool   `json:"available"`
	Origin    string `json:"origin"`
	URL       string `json:"url,omitempty"`
}

type historyResponse struct {
	Language       string    `json:"language"`
	SourceLanguage string    `json:"source_language,omitempty"`
	Status         string    `json:"status"`
	ResultURL      string    `json:"result_url,omitempty"`
	Error          string    `json:"error,omitempty"`
	Attempts       int       `json:"attempts"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *Server) handleEnsure(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = s.opts.SourceLanguage
	}

	res, err := s.svc.Ensure(r.Context(), usecase.Request{
		ContentID:      chi.URLParam(r, "contentID"),
		SourceLanguage: source,
		TargetLanguage: chi.URLParam(r, "language"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ensureResponse{
		ContentID: res.ContentID,
		Language:  res.Language,
		URL:       res.URL,
		Origin:    string(res.Origin),
		Cached:    res.Cached,
		Attempts:  res.Attempts,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	contentID, language := chi.URLParam(r, "contentID"), chi.URLParam(r, "language")

	job, err := s.svc.Status(r.Context(), contentID, language)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if job.ContentID == "" {
		job.ContentID = contentID
	}
	if job.TargetLanguage == "" {
		job.TargetLanguage = domain.NormalizeLanguage(language)
	}
	writeJSON(w, http.StatusOK, statusResponse{
		ContentID:  job.ContentID,
		Language:   job.TargetLanguage,
		Status:     string(job.Status),
		ResultURL:  job.ResultURL,
		Progress:   job.Progress,
		Error:      job.Error,
		ObservedAt: job.ObservedAt,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Cancel(r.Context(), chi.URLParam(r, "contentID"), chi.URLParam(r, "language")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Availability(r.Context(), chi.URLParam(r, "contentID"), r.URL.Query()["lang"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]availabilityResponse, 0, len(view))
	for _, v := range view {
		out = append(out, availabilityResponse{Language: v.Language, Available: v.Available, Origin: string(v.Origin), URL: v.URL})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.History(r.Context(), chi.URLParam(r, "contentID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyResponse{
			Language:       e.Language,
			SourceLanguage: e.SourceLanguage,
			Status:         string(e.Status),
			ResultURL:      e.ResultURL,
			Error:          e.Error,
			Attempts:       e.Attempts,
			UpdatedAt:      e.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, localization.ErrJobFailed):
		return http.StatusBadGateway
	case errors.Is(err, usecase.ErrTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
