package model

import (
	"math"

	"github.com/kartoza/solvency/internal/errors"
)

// PositiveClass is the index of the "not solvent" class in PredictProba output
const PositiveClass = 1

// Classifier is the capability every loaded model exposes
type Classifier interface {
	// Name identifies the implementation, e.g. "logistic_regression"
	Name() string
	// Classes returns the class labels in PredictProba order
	Classes() []int
	// NumFeatures is the expected input vector length
	NumFeatures() int
	// FeatureNames returns the fitted column names, or nil when the artifact carries none
	FeatureNames() []string
	// PredictProba returns one probability per class for a standardized vector
	PredictProba(x []float64) ([]float64, error)
	// Predict returns the most probable class label
	Predict(x []float64) (int, error)
}

// predictFromProba picks the class with the highest probability, first wins ties
func predictFromProba(c Classifier, x []float64) (int, error) {
	proba, err := c.PredictProba(x)
	if err != nil {
		return 0, err
	}
	classes := c.Classes()
	if len(proba) != len(classes) {
		return 0, errors.Newf("%s returned %d probabilities for %d classes", c.Name(), len(proba), len(classes))
	}
	best := 0
	for i := range proba {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return classes[best], nil
}

func checkInput(name string, x []float64, dim int) error {
	if len(x) != dim {
		return errors.Newf("%s expects %d features, got %d", name, dim, len(x))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Newf("%s feature %d is not finite", name, i)
		}
	}
	return nil
}

func checkClasses(classes []int) error {
	if len(classes) < 2 {
		return errors.Newf("need at least 2 classes, got %d", len(classes))
	}
	seen := make(map[int]bool, len(classes))
	for _, c := range classes {
		if seen[c] {
			return errors.Newf("duplicate class %d", c)
		}
		seen[c] = true
	}
	return nil
}
