package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/httputil"
	"github.com/kartoza/solvency/internal/i18n"
	"github.com/kartoza/solvency/internal/logger"
	"github.com/kartoza/solvency/internal/models"
	"github.com/kartoza/solvency/internal/pipeline"
	"github.com/kartoza/solvency/internal/store"
)

// Handler provides HTTP API endpoints
type Handler struct {
	store    *store.Store
	pipeline *pipeline.Pipeline
	limiter  *httputil.RateLimiter
	cfg      config.Config
	loadErr  error
}

// NewHandler creates a new API handler
func NewHandler(
	st *store.Store,
	pipe *pipeline.Pipeline,
	cfg config.Config,
) *Handler {
	return &Handler{
		store:    st,
		pipeline: pipe,
		cfg:      cfg,
	}
}

// SetRateLimiter limits the predict endpoint per client
func (h *Handler) SetRateLimiter(rl *httputil.RateLimiter) {
	h.limiter = rl
}

// SetLoadError records why the models could not be loaded
func (h *Handler) SetLoadError(err error) {
	h.loadErr = err
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Models and scoring
	r.HandleFunc("/models", h.handleListModels).Methods("GET")

	var predict http.Handler = http.HandlerFunc(h.handlePredict)
	if h.limiter != nil {
		predict = httputil.RateLimit(h.limiter)(predict)
	}
	r.Handle("/predict", predict).Methods("POST")
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{"status": "ok"}
	if h.store == nil {
		response["status"] = "degraded"
		if h.loadErr != nil {
			response["error"] = errors.UserMessage(h.loadErr)
		}
	}
	httputil.RespondJSON(w, http.StatusOK, response)
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":       h.cfg.Version,
		"models_loaded": h.store != nil,
		"default_model": h.cfg.Model.Default,
		"language":      h.cfg.UI.Language,
		"cache":         h.cfg.Cache.Backend,
	}
	if h.store != nil {
		info["source"] = h.store.Source()
		info["fingerprint"] = h.store.Fingerprint()
		info["models"] = h.store.Models()
	}
	if h.loadErr != nil {
		info["load_error"] = errors.UserMessage(h.loadErr)
	}
	if h.pipeline != nil {
		info["threshold"] = h.pipeline.Threshold()
	}
	httputil.RespondJSON(w, http.StatusOK, info)
}

// handleListModels returns the loaded classifiers
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httputil.RespondJSON(w, http.StatusOK, []store.ModelInfo{})
		return
	}
	httputil.RespondJSON(w, http.StatusOK, h.store.Models())
}

// handlePredict scores one client record
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		msg := "models not loaded"
		if h.loadErr != nil {
			msg += ": " + errors.UserMessage(h.loadErr)
		}
		httputil.RespondError(w, http.StatusServiceUnavailable, msg)
		return
	}

	var req models.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := req.Model
	if name == "" {
		name = h.cfg.Model.Default
	}
	sel, err := store.ParseSelector(name)
	if err != nil {
		respondPredictError(w, err)
		return
	}

	res, err := h.pipeline.Predict(r.Context(), req.ClientRecord, sel)
	if err != nil {
		logger.FromContext(r.Context(), logger.ComponentLogger("api")).Infow("Prediction rejected",
			logger.FieldModel, sel, logger.FieldError, err)
		respondPredictError(w, err)
		return
	}

	loc := h.localizer(r)
	httputil.RespondJSON(w, http.StatusOK, models.PredictResponse{
		Label:       string(res.Label),
		Solvent:     res.Solvent(),
		Probability: res.Probability,
		Percent:     loc.Percent(res.Probability),
		Message:     loc.Verdict(res),
		Model:       string(res.Model),
		ModelName:   res.Model.DisplayName(),
		Cached:      res.Cached,
	})
}

// localizer honours ?lang= and falls back to the configured language
func (h *Handler) localizer(r *http.Request) *i18n.Localizer {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return i18n.New(lang)
	}
	return i18n.New(h.cfg.UI.Language)
}

// respondPredictError maps pipeline errors to status codes
func respondPredictError(w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, ""
	switch {
	case errors.IsInvalidRecord(err):
		status, kind = http.StatusBadRequest, models.ErrorKindInvalidRecord
	case errors.Is(err, errors.ErrUnknownModel):
		status, kind = http.StatusBadRequest, models.ErrorKindUnknownModel
	case errors.Is(err, errors.ErrInference):
		status, kind = http.StatusUnprocessableEntity, models.ErrorKindInference
	}
	httputil.RespondJSON(w, status, models.ErrorResponse{Error: errors.UserMessage(err), Kind: kind})
}
