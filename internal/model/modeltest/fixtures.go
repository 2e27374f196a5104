// Package modeltest provides small fitted artifacts for tests.
//
// The statistics are hand-picked so that DefaultRecord scores below 0.5 with
// the logistic model and 2/3 with the 3-nearest-neighbors model.
package modeltest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kartoza/solvency/internal/model"
)

// Paths locates artifacts written by WriteArtifacts
type Paths struct {
	Dir       string
	Scaler    string
	Logistic  string
	KNN       string
	KNNLegacy string
}

// ScalerDoc returns a scaler fitted on the canonical columns
func ScalerDoc() model.ScalerDocument {
	return model.ScalerDocument{
		Header:       model.Header{Kind: model.KindScaler, FormatVersion: model.FormatVersion},
		FeatureNames: model.Columns(),
		Mean:         []float64{37, 1.8, 600, 2500, 9000, 11000},
		Scale:        []float64{11, 0.7, 250, 1200, 5000, 6000},
	}
}

// LogisticDoc returns a binary logistic model
func LogisticDoc() model.LogisticDocument {
	return model.LogisticDocument{
		Header:       model.Header{Kind: model.KindLogistic, FormatVersion: model.FormatVersion},
		FeatureNames: model.Columns(),
		Classes:      []int{0, 1},
		Coef:         []float64{-0.3, 0.1, 0.8, -1.2, 0.9, -0.2},
		Intercept:    -0.5,
	}
}

// Samples are standardized training points and their labels
var Samples = [][]float64{
	{-0.2, -1.1, -0.4, -0.4, 0.2, 0.2},
	{0, -1.1, -0.3, -0.5, 0.3, 0.1},
	{-0.3, -1.2, -0.5, -0.3, 0.1, 0.2},
	{2, 1, 2, 2, -2, -2},
	{1.5, 0.8, 1.5, 1.8, -1.5, -1.5},
	{-2, -1, 2, -2, 2, 2},
}

// Labels holds the class of each sample
var Labels = []int{1, 1, 0, 0, 0, 1}

// KNNDoc returns a native 3-neighbor model over Samples
func KNNDoc() model.KNNDocument {
	return model.KNNDocument{
		Header:       model.Header{Kind: model.KindKNN, FormatVersion: model.FormatVersion},
		FeatureNames: model.Columns(),
		Classes:      []int{0, 1},
		NNeighbors:   3,
		Weights:      model.WeightUniform,
		P:            2,
		FitX:         Samples,
		Y:            Labels,
	}
}

// LegacyKNNDoc returns the same model in the legacy raw layout
func LegacyKNNDoc() model.LegacyKNNDocument {
	return model.LegacyKNNDocument{
		FitX:       Samples,
		Y:          Labels,
		Classes:    []int{0, 1},
		NNeighbors: 3,
	}
}

// WriteJSON marshals doc to path, creating parent directories
func WriteJSON(t testing.TB, path string, doc interface{}) {
	t.Helper()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteArtifacts lays out native artifacts under dir the way the default config expects.
// The legacy path is returned but not written.
func WriteArtifacts(t testing.TB, dir string) Paths {
	t.Helper()

	p := Paths{
		Dir:       dir,
		Scaler:    filepath.Join(dir, "scaler.json"),
		Logistic:  filepath.Join(dir, "models", "log_model.json"),
		KNN:       filepath.Join(dir, "models", "knn.json"),
		KNNLegacy: filepath.Join(dir, "knn.json"),
	}
	WriteJSON(t, p.Scaler, ScalerDoc())
	WriteJSON(t, p.Logistic, LogisticDoc())
	WriteJSON(t, p.KNN, KNNDoc())
	return p
}
