package model

import (
	"math"
	"sort"

	"github.com/kartoza/solvency/internal/errors"
)

// Weighting selects how neighbor votes are weighted
type Weighting string

const (
	WeightUniform  Weighting = "uniform"
	WeightDistance Weighting = "distance"
)

// neighborIndex is a brute-force nearest neighbor vote over the training set.
// Both the native KNN and the legacy adapter predict through it.
type neighborIndex struct {
	fitX       [][]float64
	y          []int
	classes    []int
	classIndex map[int]int
	k          int
	weights    Weighting
	p          float64
}

func newNeighborIndex(fitX [][]float64, y []int, classes []int, k int, weights Weighting, p float64) (*neighborIndex, error) {
	if len(fitX) == 0 {
		return nil, errors.New("knn has no training samples")
	}
	if len(fitX) != len(y) {
		return nil, errors.Newf("knn has %d samples but %d labels", len(fitX), len(y))
	}
	if k <= 0 || k > len(fitX) {
		return nil, errors.Newf("n_neighbors %d must be in [1,%d]", k, len(fitX))
	}
	if weights == "" {
		weights = WeightUniform
	}
	if weights != WeightUniform && weights != WeightDistance {
		return nil, errors.Newf("unsupported knn weights %q", weights)
	}
	if p == 0 {
		p = 2
	}
	if p < 1 || math.IsNaN(p) {
		return nil, errors.Newf("minkowski p %v must be >= 1", p)
	}
	if len(classes) == 0 {
		classes = uniqueSorted(y)
	}
	if err := checkClasses(classes); err != nil {
		return nil, err
	}

	classIndex := make(map[int]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}

	dim := len(fitX[0])
	if dim == 0 {
		return nil, errors.New("knn samples have no features")
	}
	rows := make([][]float64, len(fitX))
	for i, row := range fitX {
		if len(row) != dim {
			return nil, errors.Newf("knn sample %d has %d features, expected %d", i, len(row), dim)
		}
		if _, ok := classIndex[y[i]]; !ok {
			return nil, errors.Newf("knn label %d of sample %d is not a known class", y[i], i)
		}
		rows[i] = append([]float64(nil), row...)
	}

	return &neighborIndex{
		fitX:       rows,
		y:          append([]int(nil), y...),
		classes:    append([]int(nil), classes...),
		classIndex: classIndex,
		k:          k,
		weights:    weights,
		p:          p,
	}, nil
}

func (n *neighborIndex) dim() int { return len(n.fitX[0]) }

func (n *neighborIndex) distance(a, b []float64) float64 {
	switch n.p {
	case 1:
		var s float64
		for i := range a {
			s += math.Abs(a[i] - b[i])
		}
		return s
	case 2:
		var s float64
		for i := range a {
			d := a[i] - b[i]
			s += d * d
		}
		return math.Sqrt(s)
	default:
		var s float64
		for i := range a {
			s += math.Pow(math.Abs(a[i]-b[i]), n.p)
		}
		return math.Pow(s, 1/n.p)
	}
}

type neighbor struct {
	index    int
	distance float64
}

// kneighbors returns the k closest samples, ties broken by training order
func (n *neighborIndex) kneighbors(x []float64) []neighbor {
	all := make([]neighbor, len(n.fitX))
	for i, row := range n.fitX {
		all[i] = neighbor{index: i, distance: n.distance(x, row)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].distance < all[j].distance
	})
	return all[:n.k]
}

func (n *neighborIndex) predictProba(name string, x []float64) ([]float64, error) {
	if err := checkInput(name, x, n.dim()); err != nil {
		return nil, err
	}
	nearest := n.kneighbors(x)

	weights := make([]float64, len(nearest))
	switch n.weights {
	case WeightDistance:
		// Exact matches take all the weight
		exact := false
		for _, nb := range nearest {
			if nb.distance == 0 {
				exact = true
				break
			}
		}
		for i, nb := range nearest {
			switch {
			case exact && nb.distance == 0:
				weights[i] = 1
			case exact:
				weights[i] = 0
			default:
				weights[i] = 1 / nb.distance
			}
		}
	default:
		for i := range weights {
			weights[i] = 1
		}
	}

	proba := make([]float64, len(n.classes))
	var total float64
	for i, nb := range nearest {
		proba[n.classIndex[n.y[nb.index]]] += weights[i]
		total += weights[i]
	}
	if total == 0 {
		return nil, errors.Newf("%s neighbor weights sum to zero", name)
	}
	for i := range proba {
		proba[i] /= total
	}
	return proba, nil
}

// KNN is a fitted k-nearest-neighbors classifier
type KNN struct {
	featureNames []string
	index        *neighborIndex
}

// KNNParams configures NewKNN
type KNNParams struct {
	FeatureNames []string
	Classes      []int
	NNeighbors   int
	Weights      Weighting
	P            float64
	FitX         [][]float64
	Y            []int
}

// NewKNN builds a classifier over the stored training samples
func NewKNN(params KNNParams) (*KNN, error) {
	index, err := newNeighborIndex(params.FitX, params.Y, params.Classes, params.NNeighbors, params.Weights, params.P)
	if err != nil {
		return nil, err
	}
	if len(params.FeatureNames) > 0 && len(params.FeatureNames) != index.dim() {
		return nil, errors.Newf("knn has %d feature names for %d-dimensional samples", len(params.FeatureNames), index.dim())
	}
	return &KNN{
		featureNames: append([]string(nil), params.FeatureNames...),
		index:        index,
	}, nil
}

func (m *KNN) Name() string { return KindKNN }

func (m *KNN) Classes() []int { return append([]int(nil), m.index.classes...) }

func (m *KNN) NumFeatures() int { return m.index.dim() }

func (m *KNN) FeatureNames() []string {
	if len(m.featureNames) == 0 {
		return nil
	}
	return append([]string(nil), m.featureNames...)
}

// NNeighbors returns k
func (m *KNN) NNeighbors() int { return m.index.k }

func (m *KNN) PredictProba(x []float64) ([]float64, error) {
	return m.index.predictProba(m.Name(), x)
}

func (m *KNN) Predict(x []float64) (int, error) {
	return predictFromProba(m, x)
}

func uniqueSorted(values []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
