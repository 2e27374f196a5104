package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/httputil"
	"github.com/kartoza/solvency/internal/model"
	"github.com/kartoza/solvency/internal/model/modeltest"
	"github.com/kartoza/solvency/internal/models"
	"github.com/kartoza/solvency/internal/pipeline"
	"github.com/kartoza/solvency/internal/store"
)

func testConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Model:   config.ModelConfig{Threshold: 0.5, Default: "knn"},
		UI:      config.UIConfig{Language: "fr"},
		Version: "test",
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	p := modeltest.WriteArtifacts(t, t.TempDir())
	st, err := store.Load(context.Background(), store.NewDirSource(map[string]string{
		store.ArtifactScaler:    p.Scaler,
		store.ArtifactLogistic:  p.Logistic,
		store.ArtifactKNN:       p.KNN,
		store.ArtifactKNNLegacy: p.KNNLegacy,
	}))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return NewHandler(st, pipeline.New(st), testConfig())
}

func newRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postPredict(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newRouter(newTestHandler(t))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	json.NewDecoder(w.Body).Decode(&response)

	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", response["status"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	r := newRouter(newTestHandler(t))

	req := httptest.NewRequest("GET", "/info", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)

	if response["version"] != "test" {
		t.Errorf("Expected version 'test', got '%v'", response["version"])
	}
	if response["models_loaded"] != true {
		t.Errorf("Expected models_loaded true, got %v", response["models_loaded"])
	}
	if response["threshold"] != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", response["threshold"])
	}
}

func TestInfoWithoutModels(t *testing.T) {
	r := newRouter(NewHandler(nil, nil, testConfig()))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]string
	json.NewDecoder(w.Body).Decode(&response)
	if response["status"] != "degraded" {
		t.Errorf("Expected status 'degraded', got '%s'", response["status"])
	}

	w = postPredict(t, r, "/predict", model.DefaultRecord())
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestLoadErrorReported(t *testing.T) {
	h := NewHandler(nil, nil, testConfig())
	h.SetLoadError(errors.ArtifactLoad(
		errors.WithHint(errors.New("open scaler.json: no such file"), "artifact scaler.json not found"),
		store.ArtifactScaler))
	r := newRouter(h)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var health map[string]string
	json.NewDecoder(w.Body).Decode(&health)
	if health["status"] != "degraded" {
		t.Errorf("Expected status 'degraded', got '%s'", health["status"])
	}
	if health["error"] != "artifact scaler.json not found" {
		t.Errorf("Expected load error hint, got '%s'", health["error"])
	}

	w = postPredict(t, r, "/predict", model.DefaultRecord())
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "artifact scaler.json not found") {
		t.Errorf("Expected load error in body, got %s", w.Body.String())
	}
}

func TestListModels(t *testing.T) {
	r := newRouter(newTestHandler(t))

	req := httptest.NewRequest("GET", "/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response []store.ModelInfo
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(response) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(response))
	}
	if response[0].DisplayName != "K-Nearest Neighbors" {
		t.Errorf("Expected KNN first, got %s", response[0].DisplayName)
	}
	if response[1].DisplayName != "Régression Logistique" {
		t.Errorf("Expected logistic second, got %s", response[1].DisplayName)
	}
}

func TestPredictDefaultModel(t *testing.T) {
	r := newRouter(newTestHandler(t))

	w := postPredict(t, r, "/predict", models.PredictRequest{ClientRecord: model.DefaultRecord()})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response models.PredictResponse
	json.NewDecoder(w.Body).Decode(&response)

	if response.Model != "knn" {
		t.Errorf("Expected knn, got %s", response.Model)
	}
	if response.Label != string(pipeline.LabelNotSolvent) || response.Solvent {
		t.Errorf("Expected not solvent, got %+v", response)
	}
	if response.Message != "Non Solvable (Probabilité: 66,7 %)" {
		t.Errorf("Unexpected message %q", response.Message)
	}
}

func TestPredictLogisticByDisplayName(t *testing.T) {
	r := newRouter(newTestHandler(t))

	w := postPredict(t, r, "/predict?lang=en", models.PredictRequest{
		ClientRecord: model.DefaultRecord(),
		Model:        "Régression Logistique",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response models.PredictResponse
	json.NewDecoder(w.Body).Decode(&response)

	if response.Model != "log_reg" || !response.Solvent {
		t.Errorf("Expected solvent from log_reg, got %+v", response)
	}
	if response.Probability < 0 || response.Probability >= 0.5 {
		t.Errorf("Expected probability below 0.5, got %v", response.Probability)
	}
	if !strings.HasPrefix(response.Message, "Solvent (default probability: ") {
		t.Errorf("Expected English message, got %q", response.Message)
	}
}

func TestPredictErrors(t *testing.T) {
	r := newRouter(newTestHandler(t))

	young := model.DefaultRecord()
	young.Age = 17

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantKind string
	}{
		{"age below range", models.PredictRequest{ClientRecord: young}, http.StatusBadRequest, models.ErrorKindInvalidRecord},
		{"unknown model", models.PredictRequest{ClientRecord: model.DefaultRecord(), Model: "svm"}, http.StatusBadRequest, models.ErrorKindUnknownModel},
		{"malformed body", "not an object", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postPredict(t, r, "/predict", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			var response models.ErrorResponse
			json.NewDecoder(w.Body).Decode(&response)
			if response.Error == "" {
				t.Error("Expected error message")
			}
			if response.Kind != tt.wantKind {
				t.Errorf("Expected kind %q, got %q", tt.wantKind, response.Kind)
			}
		})
	}
}

func TestPredictRateLimited(t *testing.T) {
	h := newTestHandler(t)
	rl := httputil.NewRateLimiter(1, time.Hour)
	defer rl.Stop()
	h.SetRateLimiter(rl)
	r := newRouter(h)

	body := models.PredictRequest{ClientRecord: model.DefaultRecord()}
	if w := postPredict(t, r, "/predict", body); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w := postPredict(t, r, "/predict", body); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
}
