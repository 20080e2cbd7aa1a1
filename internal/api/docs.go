package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gotuzzoj23/SolanaDApp/internal/docs"
)

// Docs serves the rendered reference pages
type Docs interface {
	ListDocs() ([]string, error)
	GetDoc(ctx context.Context, name string) (string, error)
}

// SetDocs enables the docs endpoints.
func (s *Service) SetDocs(d Docs) {
	s.docs = d
}

// HandleDocs dispatches to the list or the page handler.
// @Title: List Docs
// @Route: GET /api/docs
// @Description: Lists the reference pages the client ships with
// @Response: ["api.adoc"]
func (s *Service) HandleDocs(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.docs == nil {
		s.writeError(w, http.StatusNotFound, "Docs are not enabled")
		return
	}

	name := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/docs"), "/")
	if name == "" {
		list, err := s.docs.ListDocs()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "Failed to list docs: "+err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, list)
		return
	}

	s.handleDoc(w, r, name)
}

// handleDoc writes one page as an HTML fragment.
// @Title: Get Doc
// @Route: GET /api/docs/{name}
// @Description: Returns a reference page rendered to an HTML fragment
// @Response: text/html fragment
func (s *Service) handleDoc(w http.ResponseWriter, r *http.Request, name string) {
	html, err := s.docs.GetDoc(r.Context(), name)
	if errors.Is(err, docs.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Doc not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to render doc: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}
