package api

import (
	"net/http"

	"github.com/taskmaster-hq/taskmaster-api/internal/api/shared"
)

// Root answers GET / with the plain-text liveness banner.
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Server is running successfully!"))
}

// Health answers GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
