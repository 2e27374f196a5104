package model

import (
	"encoding/json"

	"github.com/kartoza/solvency/internal/errors"
)

// FormatVersion is the artifact document version this build decodes natively
const FormatVersion = 1

// Artifact kinds
const (
	KindScaler   = "standard_scaler"
	KindLogistic = "logistic_regression"
	KindKNN      = "knn"
)

// Header is the envelope shared by all native artifact documents
type Header struct {
	Kind          string `json:"kind"`
	FormatVersion int    `json:"format_version"`
}

// ScalerDocument is the serialized form of a StandardScaler
type ScalerDocument struct {
	Header
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// LogisticDocument is the serialized form of a LogisticRegression
type LogisticDocument struct {
	Header
	FeatureNames []string  `json:"feature_names"`
	Classes      []int     `json:"classes"`
	Coef         []float64 `json:"coef"`
	Intercept    float64   `json:"intercept"`
}

// KNNDocument is the serialized form of a KNN
type KNNDocument struct {
	Header
	FeatureNames []string    `json:"feature_names"`
	Classes      []int       `json:"classes"`
	NNeighbors   int         `json:"n_neighbors"`
	Weights      Weighting   `json:"weights"`
	P            float64     `json:"p"`
	FitX         [][]float64 `json:"fit_x"`
	Y            []int       `json:"y"`
}

// CheckHeader reads the envelope of data and checks it can be decoded natively as kind.
// Documents without an envelope or with an unsupported version yield ErrLegacyFormat.
func CheckHeader(data []byte, kind string) (Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return Header{}, errors.Wrap(err, "parse artifact envelope")
	}
	if h.Kind == "" {
		return h, errors.Wrap(errors.ErrLegacyFormat, "artifact has no kind")
	}
	if h.Kind != kind {
		return h, errors.Newf("artifact kind %q, expected %q", h.Kind, kind)
	}
	if h.FormatVersion < 1 || h.FormatVersion > FormatVersion {
		return h, errors.Wrapf(errors.ErrLegacyFormat, "%s format_version %d not supported (want 1..%d)", kind, h.FormatVersion, FormatVersion)
	}
	return h, nil
}

// DecodeScaler decodes a scaler document
func DecodeScaler(data []byte) (*StandardScaler, error) {
	if _, err := CheckHeader(data, KindScaler); err != nil {
		return nil, err
	}
	var doc ScalerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode scaler")
	}
	return NewStandardScaler(doc.FeatureNames, doc.Mean, doc.Scale)
}

// DecodeLogistic decodes a logistic regression document
func DecodeLogistic(data []byte) (*LogisticRegression, error) {
	if _, err := CheckHeader(data, KindLogistic); err != nil {
		return nil, err
	}
	var doc LogisticDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode logistic regression")
	}
	return NewLogisticRegression(doc.FeatureNames, doc.Classes, doc.Coef, doc.Intercept)
}

// DecodeKNN decodes a native KNN document.
// ErrLegacyFormat means the caller should use the legacy adapter instead.
func DecodeKNN(data []byte) (*KNN, error) {
	if _, err := CheckHeader(data, KindKNN); err != nil {
		return nil, err
	}
	var doc KNNDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode knn")
	}
	return NewKNN(KNNParams{
		FeatureNames: doc.FeatureNames,
		Classes:      doc.Classes,
		NNeighbors:   doc.NNeighbors,
		Weights:      doc.Weights,
		P:            doc.P,
		FitX:         doc.FitX,
		Y:            doc.Y,
	})
}

// EncodeDocument marshals an artifact document with indentation
func EncodeDocument(doc interface{}) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
