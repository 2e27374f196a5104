package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/logger"
	"github.com/kartoza/solvency/internal/model"
)

// Selector chooses one of the loaded classifiers
type Selector string

const (
	SelectorKNN      Selector = "knn"
	SelectorLogistic Selector = "log_reg"
)

// Selectors lists the classifiers in display order
func Selectors() []Selector {
	return []Selector{SelectorKNN, SelectorLogistic}
}

// DisplayName returns the label shown in the model picker
func (s Selector) DisplayName() string {
	switch s {
	case SelectorKNN:
		return "K-Nearest Neighbors"
	case SelectorLogistic:
		return "Régression Logistique"
	default:
		return string(s)
	}
}

// ParseSelector accepts a selector id or its display name, case-insensitively
func ParseSelector(v string) (Selector, error) {
	v = strings.TrimSpace(v)
	for _, s := range Selectors() {
		if strings.EqualFold(v, string(s)) || strings.EqualFold(v, s.DisplayName()) {
			return s, nil
		}
	}
	return "", errors.WithHintf(errors.Wrapf(errors.ErrUnknownModel, "selector %q", v), "unknown model %q", v)
}

// ModelInfo describes a loaded classifier
type ModelInfo struct {
	Selector     Selector `json:"selector"`
	DisplayName  string   `json:"display_name"`
	Kind         string   `json:"kind"`
	Legacy       bool     `json:"legacy"`
	Classes      []int    `json:"classes"`
	FeatureNames []string `json:"feature_names"`
}

// Store holds the scaler and classifiers for the lifetime of the process.
// It is never mutated after Load returns, so it is safe for concurrent readers.
type Store struct {
	scaler      *model.StandardScaler
	classifiers map[Selector]model.Classifier
	models      []ModelInfo
	source      string
	fingerprint string
}

// Load reads every artifact from src.
// Any failure is marked errors.ErrArtifactLoad and must be treated as fatal.
func Load(ctx context.Context, src Source) (*Store, error) {
	log := logger.ComponentLogger("store").With(logger.FieldSource, src.Describe())
	digest := sha256.New()

	data, err := src.Read(ctx, ArtifactScaler)
	if err != nil {
		return nil, errors.ArtifactLoad(err, ArtifactScaler)
	}
	writeDigest(digest, ArtifactScaler, data)
	scaler, err := model.DecodeScaler(data)
	if err != nil {
		return nil, errors.ArtifactLoad(err, ArtifactScaler)
	}
	log.Debugw("Loaded scaler", "features", scaler.FeatureNames())

	data, err = src.Read(ctx, ArtifactLogistic)
	if err != nil {
		return nil, errors.ArtifactLoad(err, ArtifactLogistic)
	}
	writeDigest(digest, ArtifactLogistic, data)
	logistic, err := model.DecodeLogistic(data)
	if err != nil {
		return nil, errors.ArtifactLoad(err, ArtifactLogistic)
	}

	knn, legacy, err := loadKNN(ctx, src, digest, log)
	if err != nil {
		return nil, errors.ArtifactLoad(err, ArtifactKNN)
	}

	s := &Store{
		scaler:      scaler,
		classifiers: make(map[Selector]model.Classifier, 2),
		source:      src.Describe(),
		fingerprint: hex.EncodeToString(digest.Sum(nil))[:16],
	}
	for _, entry := range []struct {
		sel    Selector
		c      model.Classifier
		legacy bool
	}{
		{SelectorKNN, knn, legacy},
		{SelectorLogistic, logistic, false},
	} {
		if err := checkCompatible(scaler, entry.c); err != nil {
			return nil, errors.ArtifactLoad(err, string(entry.sel))
		}
		s.classifiers[entry.sel] = entry.c
		s.models = append(s.models, ModelInfo{
			Selector:     entry.sel,
			DisplayName:  entry.sel.DisplayName(),
			Kind:         entry.c.Name(),
			Legacy:       entry.legacy,
			Classes:      entry.c.Classes(),
			FeatureNames: entry.c.FeatureNames(),
		})
	}

	log.Infow("Models loaded", "models", len(s.models), "knn_legacy", legacy, "fingerprint", s.fingerprint)
	return s, nil
}

// loadKNN decodes the native document, or the memory-mapped legacy
// document when the primary one reports a legacy layout
func loadKNN(ctx context.Context, src Source, digest hash.Hash, log *zap.SugaredLogger) (model.Classifier, bool, error) {
	data, err := src.Read(ctx, ArtifactKNN)
	if err != nil {
		return nil, false, err
	}

	native, err := model.DecodeKNN(data)
	if err == nil {
		writeDigest(digest, ArtifactKNN, data)
		return native, false, nil
	}
	if !errors.Is(err, errors.ErrLegacyFormat) {
		return nil, false, err
	}

	log.Warnw("KNN artifact uses legacy layout, loading alternate through adapter", logger.FieldError, err)

	rc, err := src.OpenLegacy(ctx, ArtifactKNNLegacy)
	if err != nil {
		return nil, false, errors.Wrap(err, "open legacy knn")
	}
	defer rc.Close()

	fmt.Fprintf(digest, "%s:", ArtifactKNNLegacy)
	adapted, err := model.DecodeLegacyKNN(io.TeeReader(rc, digest))
	if err != nil {
		return nil, false, err
	}
	return adapted, true, nil
}

// writeDigest adds one named payload to the artifact fingerprint
func writeDigest(h hash.Hash, name string, data []byte) {
	fmt.Fprintf(h, "%s:%d:", name, len(data))
	h.Write(data)
}

// checkCompatible requires the classifier to consume the scaler output
func checkCompatible(scaler *model.StandardScaler, c model.Classifier) error {
	if c.NumFeatures() != scaler.NumFeatures() {
		return errors.Newf("%s expects %d features, scaler produces %d", c.Name(), c.NumFeatures(), scaler.NumFeatures())
	}
	if len(c.Classes()) <= model.PositiveClass {
		return errors.Newf("%s has no positive class", c.Name())
	}
	names := c.FeatureNames()
	if names == nil {
		return nil
	}
	for i, name := range scaler.FeatureNames() {
		if names[i] != name {
			return errors.Newf("%s feature %d is %q, scaler has %q", c.Name(), i, names[i], name)
		}
	}
	return nil
}

// Scaler returns the fitted scaler
func (s *Store) Scaler() *model.StandardScaler {
	return s.scaler
}

// Classifier returns the classifier for sel
func (s *Store) Classifier(sel Selector) (model.Classifier, error) {
	c, ok := s.classifiers[sel]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownModel, "selector %q", sel)
	}
	return c, nil
}

// Models describes the loaded classifiers in display order
func (s *Store) Models() []ModelInfo {
	out := make([]ModelInfo, len(s.models))
	copy(out, s.models)
	return out
}

// Fingerprint identifies the loaded artifact bytes.
// Loads of identical artifacts yield the same value wherever they are read from.
func (s *Store) Fingerprint() string {
	return s.fingerprint
}

// Source describes where the artifacts came from
func (s *Store) Source() string {
	return s.source
}
