// Package api implements the JSON endpoints the renderer uses to read the
// portal state and forward user intents.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gotuzzoj23/SolanaDApp/internal/logger"
	"github.com/gotuzzoj23/SolanaDApp/internal/portal"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// Portal defines the controller operations exposed over HTTP
type Portal interface {
	Snapshot() types.Snapshot
	Connect(ctx context.Context) error
	Refresh(ctx context.Context) error
	Initialize(ctx context.Context) (string, error)
	SetInput(text string)
	Submit(ctx context.Context, content string) (string, error)
	SubmitInput(ctx context.Context) (string, error)
}

// Service handles API requests
type Service struct {
	portal Portal
	logger *logger.Logger
	docs   Docs
}

// NewService creates a new API service
func NewService(p Portal, logger *logger.Logger) *Service {
	return &Service{
		portal: p,
		logger: logger,
	}
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure writes a classified portal error
func (s *Service) writeFailure(w http.ResponseWriter, opID string, err error) {
	kind := portal.Classify(err)
	body := map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	}
	if opID != "" {
		body["op_id"] = opID
	}
	var inProgress *portal.InProgressError
	if errors.As(err, &inProgress) {
		body["pending_op_id"] = inProgress.OpID
	}
	s.writeJSON(w, StatusFor(kind), body)
}

// StatusFor maps a failure kind to an HTTP status code.
func StatusFor(kind types.FailureKind) int {
	switch kind {
	case types.FailureNone:
		return http.StatusOK
	case types.FailureInvalidContent:
		return http.StatusBadRequest
	case types.FailureUserRejected:
		return http.StatusForbidden
	case types.FailureNotConnected, types.FailureAccountUninitialized,
		types.FailureAlreadyInitialized, types.FailureInProgress:
		return http.StatusConflict
	case types.FailureFetch, types.FailureTransaction:
		return http.StatusBadGateway
	case types.FailureWalletUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// requireMethod rejects requests that do not use method
func (s *Service) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}
