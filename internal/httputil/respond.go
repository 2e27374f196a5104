// Package httputil holds HTTP helpers shared by the API and the web UI.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/kartoza/solvency/internal/logger"
)

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Logger.Warnw("Error encoding response", logger.FieldError, err)
	}
}

// RespondError sends a JSON error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}
