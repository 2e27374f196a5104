package model

import (
	"math"

	"github.com/kartoza/solvency/internal/errors"
)

// LogisticRegression is a fitted binary logistic model
type LogisticRegression struct {
	featureNames []string
	classes      []int
	coef         []float64
	intercept    float64
}

// NewLogisticRegression builds a binary model; coef follows featureNames order
func NewLogisticRegression(featureNames []string, classes []int, coef []float64, intercept float64) (*LogisticRegression, error) {
	if err := checkClasses(classes); err != nil {
		return nil, err
	}
	if len(classes) != 2 {
		return nil, errors.Newf("logistic regression supports 2 classes, got %d", len(classes))
	}
	if len(coef) == 0 {
		return nil, errors.New("logistic regression has no coefficients")
	}
	if len(featureNames) > 0 && len(featureNames) != len(coef) {
		return nil, errors.Newf("logistic regression has %d feature names for %d coefficients", len(featureNames), len(coef))
	}
	for i, c := range coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, errors.Newf("coefficient %d is not finite", i)
		}
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, errors.New("intercept is not finite")
	}

	return &LogisticRegression{
		featureNames: append([]string(nil), featureNames...),
		classes:      append([]int(nil), classes...),
		coef:         append([]float64(nil), coef...),
		intercept:    intercept,
	}, nil
}

func (m *LogisticRegression) Name() string { return KindLogistic }

func (m *LogisticRegression) Classes() []int { return append([]int(nil), m.classes...) }

func (m *LogisticRegression) NumFeatures() int { return len(m.coef) }

func (m *LogisticRegression) FeatureNames() []string {
	if len(m.featureNames) == 0 {
		return nil
	}
	return append([]string(nil), m.featureNames...)
}

// DecisionFunction returns coef·x + intercept
func (m *LogisticRegression) DecisionFunction(x []float64) (float64, error) {
	if err := checkInput(m.Name(), x, len(m.coef)); err != nil {
		return 0, err
	}
	z := m.intercept
	for i, v := range x {
		z += m.coef[i] * v
	}
	return z, nil
}

// PredictProba returns [1-p, p] where p is the probability of classes[1]
func (m *LogisticRegression) PredictProba(x []float64) ([]float64, error) {
	z, err := m.DecisionFunction(x)
	if err != nil {
		return nil, err
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (m *LogisticRegression) Predict(x []float64) (int, error) {
	return predictFromProba(m, x)
}

// sigmoid avoids overflow of exp for large |z|
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
