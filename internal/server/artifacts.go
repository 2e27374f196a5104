package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/httputil"
	"github.com/kartoza/solvency/internal/logger"
	"github.com/kartoza/solvency/internal/store"
)

// handleArtifactsStatus reports where the loaded artifacts came from
func (s *Server) handleArtifactsStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"loaded": s.store != nil,
		"dir":    s.cfg.Artifacts.Dir,
		"kind":   s.cfg.Artifacts.Source,
	}
	if s.store != nil {
		status["source"] = s.store.Source()
		status["models"] = s.store.Models()
	}
	if manifest, ok := store.ReadPackManifest(s.cfg.Artifacts.Dir); ok {
		status["version"] = manifest.Version
		status["description"] = manifest.Description
		status["requires"] = manifest.Requires
	}
	httputil.RespondJSON(w, http.StatusOK, status)
}

// handleArtifactsInstall validates and unpacks an artifact pack zip.
// Loaded models are not swapped; the new artifacts take effect on restart.
func (s *Server) handleArtifactsInstall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "path is required")
		return
	}
	if _, err := os.Stat(req.Path); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "file not found: "+req.Path)
		return
	}

	manifest, err := store.InstallPack(r.Context(), req.Path, s.cfg.Artifacts, s.cfg.Version)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsFatal(err) || len(errors.GetAllHints(err)) > 0 {
			status = http.StatusBadRequest
		}
		httputil.RespondError(w, status, errors.UserMessage(err))
		return
	}

	logger.FromContext(r.Context(), logger.ComponentLogger("server")).Infow("Artifact pack installed",
		logger.FieldSource, req.Path)
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"installed":        true,
		"dir":              s.cfg.Artifacts.Dir,
		"version":          manifest.Version,
		"restart_required": true,
		"message":          "Artifact pack installed. Restart the application to load it.",
	})
}
