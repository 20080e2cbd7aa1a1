package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// maxBody bounds request bodies; entries are short URIs
const maxBody = 64 << 10

// mutationResponse is returned by every successful intent
type mutationResponse struct {
	OpID     string         `json:"op_id,omitempty"`
	Snapshot types.Snapshot `json:"snapshot"`
}

// @Title: Get State
// @Route: GET /api/state
// @Description: Returns the wallet identity, the mirrored list and the last failure
// @Response: Snapshot object
func (s *Service) HandleState(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.portal.Snapshot())
}

// @Title: Connect Wallet
// @Route: POST /api/connect
// @Description: Prompts the wallet for a connection and loads the list
// @Response: {"snapshot": {...}}
func (s *Service) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.portal.Connect(r.Context()); err != nil {
		s.writeFailure(w, "", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mutationResponse{Snapshot: s.portal.Snapshot()})
}

// @Title: Refresh
// @Route: POST /api/refresh
// @Description: Re-reads the shared account from the ledger
// @Response: {"snapshot": {...}}
func (s *Service) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.portal.Refresh(r.Context()); err != nil {
		s.writeFailure(w, "", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mutationResponse{Snapshot: s.portal.Snapshot()})
}

// @Title: Initialize Account
// @Route: POST /api/initialize
// @Description: Runs the one-time creation of the shared account
// @Response: {"op_id": "...", "snapshot": {...}}
func (s *Service) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	opID, err := s.portal.Initialize(r.Context())
	if err != nil {
		s.writeFailure(w, opID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mutationResponse{OpID: opID, Snapshot: s.portal.Snapshot()})
}

// @Title: Set Input
// @Route: POST /api/input
// @Description: Replaces the pending input buffer
// @Body: {"text": "..."}
// @Response: 204 No Content
func (s *Service) HandleInput(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.portal.SetInput(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

// @Title: Submit Entry
// @Route: POST /api/submit
// @Description: Appends a URI to the shared list. Without a body the pending input buffer is submitted.
// @Body: {"content": "https://..."} (optional)
// @Response: {"op_id": "...", "snapshot": {...}}
func (s *Service) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Content *string `json:"content"`
	}
	if r.ContentLength != 0 {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	var (
		opID string
		err  error
	)
	if req.Content != nil {
		opID, err = s.portal.Submit(r.Context(), *req.Content)
	} else {
		opID, err = s.portal.SubmitInput(r.Context())
	}
	if err != nil {
		s.writeFailure(w, opID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mutationResponse{OpID: opID, Snapshot: s.portal.Snapshot()})
}

// @Title: Get Notices
// @Route: GET /api/notices?limit=N
// @Description: Returns recent user-visible notices, newest first
// @Response: Array of notice objects
func (s *Service) HandleNotices(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.logger.GetRecent(limit))
}
