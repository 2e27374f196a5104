package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartoza/solvency/internal/api"
	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/httputil"
	"github.com/kartoza/solvency/internal/i18n"
	"github.com/kartoza/solvency/internal/logger"
	"github.com/kartoza/solvency/internal/model"
	"github.com/kartoza/solvency/internal/pipeline"
	"github.com/kartoza/solvency/internal/store"
)

//go:embed static/*
var staticFS embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	store      *store.Store
	pipeline   *pipeline.Pipeline
	limiter    *httputil.RateLimiter
	page       *template.Template
	api        *api.Handler
	loadErr    error
}

// New creates a new Server over a loaded store.
// st and pipe may be nil when loading failed; call SetLoadError to show why.
func New(cfg config.Config, st *store.Store, pipe *pipeline.Pipeline) (*Server, error) {
	page, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse page template")
	}

	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		store:    st,
		pipeline: pipe,
		limiter:  httputil.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow),
		page:     page,
	}

	// Set up routes
	s.setupRoutes()

	return s, nil
}

// SetLoadError makes every page and the API report a failed model load
func (s *Server) SetLoadError(err error) {
	s.loadErr = err
	s.api.SetLoadError(err)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestLogger, httputil.Recover)

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	s.api = api.NewHandler(s.store, s.pipeline, s.cfg)
	s.api.SetRateLimiter(s.limiter)
	s.api.RegisterRoutes(apiRouter)

	// Artifact pack management routes
	apiRouter.HandleFunc("/artifacts/status", s.handleArtifactsStatus).Methods("GET")
	apiRouter.HandleFunc("/artifacts/install", s.handleArtifactsInstall).Methods("POST")

	// Static assets (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		logger.ComponentLogger("server").Warnw("Could not load embedded static files", logger.FieldError, err)
	} else {
		s.router.PathPrefix("/static/").Handler(
			http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	}

	// Prediction form
	s.router.HandleFunc("/", s.handleForm).Methods("GET")
	s.router.Handle("/", httputil.RateLimit(s.limiter)(http.HandlerFunc(s.handleSubmit))).Methods("POST")
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.ComponentLogger("server").Infow("Server listening",
		logger.FieldAddress, fmt.Sprintf("http://localhost:%d", s.cfg.Server.Port),
		logger.FieldPort, s.cfg.Server.Port)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.limiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type option struct {
	Value   string
	Label   string
	Checked bool
}

type pageData struct {
	L         *i18n.Localizer
	Lang      string
	Record    model.ClientRecord
	MinAge    int
	MaxAge    int
	Marital   []option
	Models    []option
	Error     string
	Verdict   string
	Solvent   bool
	ModelUsed string
}

func (s *Server) newPage(r *http.Request, rec model.ClientRecord, sel store.Selector) pageData {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = s.cfg.UI.Language
	}
	loc := i18n.New(lang)

	data := pageData{
		L:      loc,
		Lang:   loc.Lang(),
		Record: rec,
		MinAge: model.MinAge,
		MaxAge: model.MaxAge,
	}
	for _, m := range model.MaritalStatuses {
		data.Marital = append(data.Marital, option{
			Value:   strconv.Itoa(int(m)),
			Label:   loc.Marital(m),
			Checked: m == rec.Marital,
		})
	}
	for _, m := range store.Selectors() {
		data.Models = append(data.Models, option{
			Value:   string(m),
			Label:   m.DisplayName(),
			Checked: m == sel,
		})
	}
	return data
}

func (s *Server) defaultSelector() store.Selector {
	sel, err := store.ParseSelector(s.cfg.Model.Default)
	if err != nil {
		return store.SelectorKNN
	}
	return sel
}

// handleForm renders the empty form
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(r, model.DefaultRecord(), s.defaultSelector())
	if s.pipeline == nil {
		data.Error = s.loadErrorMessage(data.L)
		s.render(w, r, http.StatusServiceUnavailable, data)
		return
	}
	s.render(w, r, http.StatusOK, data)
}

func (s *Server) loadErrorMessage(loc *i18n.Localizer) string {
	msg := "models not loaded"
	if s.loadErr != nil {
		msg = errors.UserMessage(s.loadErr)
	}
	return loc.T(i18n.MsgLoadErr, msg)
}

// handleSubmit scores the submitted form and renders the verdict
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	rec, sel, parseErr := parseForm(r, s.defaultSelector())
	data := s.newPage(r, rec, sel)

	if parseErr != nil {
		data.Error = data.L.T(i18n.MsgInvalidRecord, errors.UserMessage(parseErr))
		s.render(w, r, http.StatusBadRequest, data)
		return
	}
	if s.pipeline == nil {
		data.Error = s.loadErrorMessage(data.L)
		s.render(w, r, http.StatusServiceUnavailable, data)
		return
	}

	res, err := s.pipeline.Predict(r.Context(), rec, sel)
	switch {
	case err == nil:
		data.Verdict = data.L.Verdict(res)
		data.Solvent = res.Solvent()
		data.ModelUsed = data.L.ModelUsed(res.Model.DisplayName())
		s.render(w, r, http.StatusOK, data)
	case errors.IsInvalidRecord(err):
		data.Error = data.L.T(i18n.MsgInvalidRecord, errors.UserMessage(err))
		s.render(w, r, http.StatusBadRequest, data)
	default:
		data.Error = data.L.T(i18n.MsgPredictionErr, errors.UserMessage(err))
		s.render(w, r, http.StatusUnprocessableEntity, data)
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		logger.FromContext(r.Context(), logger.ComponentLogger("server")).Errorw("Render failed", logger.FieldError, err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// parseForm reads the client record and model selection from a form post.
// Fields that fail to parse keep their default values in the returned record.
func parseForm(r *http.Request, fallback store.Selector) (model.ClientRecord, store.Selector, error) {
	rec := model.DefaultRecord()
	if err := r.ParseForm(); err != nil {
		return rec, fallback, errors.WithHint(errors.Mark(errors.Wrap(err, "parse form"), errors.ErrInvalidRecord), "could not read the form")
	}

	var problems []string
	if v := strings.TrimSpace(r.PostFormValue("age")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rec.Age = n
		} else {
			problems = append(problems, "age must be a whole number")
		}
	}
	if v := strings.TrimSpace(r.PostFormValue("marital")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rec.Marital = model.MaritalStatus(n)
		} else {
			problems = append(problems, "marital status must be 1, 2 or 3")
		}
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"expenses", &rec.Expenses},
		{"income", &rec.Income},
		{"amount", &rec.Amount},
		{"price", &rec.Price},
	} {
		v := strings.TrimSpace(r.PostFormValue(f.name))
		if v == "" {
			continue
		}
		n, err := parseAmount(v)
		if err != nil {
			problems = append(problems, f.name+" "+err.Error())
			continue
		}
		*f.dst = n
	}

	sel := fallback
	if v := r.PostFormValue("model"); v != "" {
		parsed, err := store.ParseSelector(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("unknown model %q", v))
		} else {
			sel = parsed
		}
	}

	if len(problems) > 0 {
		msg := strings.Join(problems, "; ")
		return rec, sel, errors.WithHint(errors.Wrap(errors.ErrInvalidRecord, msg), msg)
	}
	return rec, sel, nil
}

// parseAmount reads a number written with either "." or "," as the decimal
// separator. Thousands separators are rejected rather than guessed.
func parseAmount(v string) (float64, error) {
	if strings.Contains(v, ",") {
		comma := strings.Index(v, ",")
		switch {
		case strings.Count(v, ",") > 1 || strings.Contains(v, "."):
			return 0, errors.New("must not contain thousands separators")
		case len(v)-comma-1 == 3:
			return 0, errors.Newf("%q is ambiguous, write the decimals with a dot or drop the separator", v)
		}
		v = strings.Replace(v, ",", ".", 1)
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.New("must be a number")
	}
	return n, nil
}
