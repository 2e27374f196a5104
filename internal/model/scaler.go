package model

import (
	"math"

	"github.com/kartoza/solvency/internal/errors"
)

// StandardScaler standardizes features with the mean and scale captured at fit time
type StandardScaler struct {
	featureNames []string
	mean         []float64
	scale        []float64
}

// NewStandardScaler builds a scaler from fitted statistics.
// A zero scale leaves the centered value unscaled.
func NewStandardScaler(featureNames []string, mean, scale []float64) (*StandardScaler, error) {
	n := len(featureNames)
	if n == 0 {
		return nil, errors.New("scaler has no features")
	}
	if len(mean) != n || len(scale) != n {
		return nil, errors.Newf("scaler has %d features but %d means and %d scales", n, len(mean), len(scale))
	}

	names := make([]string, n)
	copy(names, featureNames)
	seen := make(map[string]bool, n)
	for _, name := range names {
		if seen[name] {
			return nil, errors.Newf("duplicate scaler feature %q", name)
		}
		seen[name] = true
	}

	m := make([]float64, n)
	s := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(mean[i]) || math.IsInf(mean[i], 0) || math.IsNaN(scale[i]) || math.IsInf(scale[i], 0) {
			return nil, errors.Newf("scaler statistics for %q are not finite", names[i])
		}
		if scale[i] < 0 {
			return nil, errors.Newf("scaler scale for %q is negative", names[i])
		}
		m[i] = mean[i]
		s[i] = scale[i]
		if s[i] == 0 {
			s[i] = 1
		}
	}

	return &StandardScaler{featureNames: names, mean: m, scale: s}, nil
}

// FeatureNames returns the fitted column order
func (s *StandardScaler) FeatureNames() []string {
	out := make([]string, len(s.featureNames))
	copy(out, s.featureNames)
	return out
}

// NumFeatures returns the number of fitted columns
func (s *StandardScaler) NumFeatures() int {
	return len(s.featureNames)
}

// Transform returns (x - mean) / scale
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if err := checkInput("scaler", x, len(s.featureNames)); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

// TransformRecord aligns the record by column name and standardizes it
func (s *StandardScaler) TransformRecord(r ClientRecord) ([]float64, error) {
	vec, err := Align(r, s.featureNames)
	if err != nil {
		return nil, err
	}
	return s.Transform(vec)
}
