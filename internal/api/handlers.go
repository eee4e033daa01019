package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/daihinmin-arena/internal/store"
)

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.errorHandler.Handle(w, r, http.StatusNotFound, ErrTypeNotFound, err)
		return
	}
	s.errorHandler.Handle(w, r, http.StatusInternalServerError, ErrTypeInternal, err)
}

// study resolves the {name} URL parameter, writing the error itself.
func (s *Server) study(w http.ResponseWriter, r *http.Request) (*store.Study, bool) {
	st, err := s.db.GetStudy(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return st, true
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

func (s *Server) handleListStudies(w http.ResponseWriter, r *http.Request) {
	studies, err := s.db.ListStudies(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"studies": studies})
}

func (s *Server) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	if st, ok := s.study(w, r); ok {
		s.writeJSON(w, http.StatusOK, st)
	}
}

func (s *Server) handleListTrials(w http.ResponseWriter, r *http.Request) {
	st, ok := s.study(w, r)
	if !ok {
		return
	}
	page, ok := s.intQuery(w, r, "page", 1)
	if !ok {
		return
	}
	perPage, ok := s.intQuery(w, r, "perPage", 50)
	if !ok {
		return
	}
	trials, err := s.db.ListTrials(r.Context(), st.ID, page, perPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trials)
}

func (s *Server) handleBestTrial(w http.ResponseWriter, r *http.Request) {
	st, ok := s.study(w, r)
	if !ok {
		return
	}
	best, err := s.db.BestTrial(r.Context(), st.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, best)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	st, ok := s.study(w, r)
	if !ok {
		return
	}
	sum, err := s.db.Summary(r.Context(), st.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleGetTrial(w http.ResponseWriter, r *http.Request) {
	t, err := s.db.GetTrial(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.db.GetTrial(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	limit, ok := s.intQuery(w, r, "limit", 1000)
	if !ok {
		return
	}
	offset, ok := s.intQuery(w, r, "offset", 0)
	if !ok {
		return
	}
	matches, err := s.db.ListMatches(r.Context(), id, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// intQuery reads a non-negative integer query parameter.
func (s *Server) intQuery(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		apiErr := NewError(ErrTypeValidation, "Validation failed: "+key+" must be a non-negative integer").
			WithContext("field", key).
			WithContext("value", raw).
			Build()
		s.errorHandler.Handle(w, r, http.StatusBadRequest, ErrTypeValidation, apiErr)
		return 0, false
	}
	return v, true
}
