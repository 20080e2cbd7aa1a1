package api

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status
// @Response: {"status": "ok"}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns the client version and the shared account address
// @Response: {"version": "...", "build_time": "...", "account": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		"account":    s.portal.Snapshot().Account,
	}
	s.writeJSON(w, http.StatusOK, response)
}
