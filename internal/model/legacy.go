package model

import (
	"encoding/json"
	"io"

	"github.com/kartoza/solvency/internal/errors"
)

// LegacyKNNDocument is the raw neighbor data of an older KNN export.
// It has no kind/version envelope and no feature names.
type LegacyKNNDocument struct {
	FitX       [][]float64 `json:"_fit_X"`
	Y          []int       `json:"_y"`
	Classes    []int       `json:"classes_"`
	NNeighbors int         `json:"n_neighbors"`
	Weights    Weighting   `json:"weights,omitempty"`
	P          float64     `json:"p,omitempty"`
}

// LegacyKNN adapts raw neighbor data to the Classifier capability
type LegacyKNN struct {
	index *neighborIndex
}

// NewLegacyKNN wraps a decoded legacy document
func NewLegacyKNN(doc LegacyKNNDocument) (*LegacyKNN, error) {
	index, err := newNeighborIndex(doc.FitX, doc.Y, doc.Classes, doc.NNeighbors, doc.Weights, doc.P)
	if err != nil {
		return nil, errors.Wrap(err, "legacy knn")
	}
	return &LegacyKNN{index: index}, nil
}

// DecodeLegacyKNN reads a legacy document from r
func DecodeLegacyKNN(r io.Reader) (*LegacyKNN, error) {
	var doc LegacyKNNDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode legacy knn")
	}
	if len(doc.FitX) == 0 {
		return nil, errors.New("legacy knn document has no _fit_X samples")
	}
	return NewLegacyKNN(doc)
}

func (m *LegacyKNN) Name() string { return KindKNN + "_legacy" }

func (m *LegacyKNN) Classes() []int { return append([]int(nil), m.index.classes...) }

func (m *LegacyKNN) NumFeatures() int { return m.index.dim() }

// FeatureNames is nil: legacy exports do not record column names
func (m *LegacyKNN) FeatureNames() []string { return nil }

func (m *LegacyKNN) PredictProba(x []float64) ([]float64, error) {
	return m.index.predictProba(m.Name(), x)
}

func (m *LegacyKNN) Predict(x []float64) (int, error) {
	return predictFromProba(m, x)
}
