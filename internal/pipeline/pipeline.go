// Package pipeline turns a client record into a solvency decision.
package pipeline

import (
	"context"

	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/logger"
	"github.com/kartoza/solvency/internal/model"
	"github.com/kartoza/solvency/internal/store"
)

// DefaultThreshold separates solvent from not solvent
const DefaultThreshold = 0.5

// Label is the decision shown to the user
type Label string

const (
	LabelSolvent    Label = "solvent"
	LabelNotSolvent Label = "not solvent"
)

// Result is one prediction
type Result struct {
	Label       Label          `json:"label"`
	Probability float64        `json:"probability"`
	Model       store.Selector `json:"model"`
	Cached      bool           `json:"cached"`
}

// Solvent reports whether the client was judged solvent
func (r *Result) Solvent() bool {
	return r.Label == LabelSolvent
}

// Models is the part of the store the pipeline reads
type Models interface {
	Scaler() *model.StandardScaler
	Classifier(sel store.Selector) (model.Classifier, error)
	Fingerprint() string
}

// Pipeline scores records against loaded models
type Pipeline struct {
	models    Models
	threshold float64
	cache     Cache
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithThreshold overrides the decision threshold
func WithThreshold(t float64) Option {
	return func(p *Pipeline) {
		if t > 0 && t < 1 {
			p.threshold = t
		}
	}
}

// WithCache memoizes positive-class probabilities
func WithCache(c Cache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// New creates a pipeline over models
func New(models Models, opts ...Option) *Pipeline {
	p := &Pipeline{models: models, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Threshold returns the decision threshold in use
func (p *Pipeline) Threshold() float64 {
	return p.threshold
}

// Decide maps a positive-class probability to a label
func (p *Pipeline) Decide(prob float64) Label {
	if prob >= p.threshold {
		return LabelNotSolvent
	}
	return LabelSolvent
}

// Predict validates rec, scales it and scores it with the classifier chosen by sel.
// Validation failures are marked errors.ErrInvalidRecord; everything else is marked errors.ErrInference.
func (p *Pipeline) Predict(ctx context.Context, rec model.ClientRecord, sel store.Selector) (*Result, error) {
	log := logger.FromContext(ctx, logger.ComponentLogger("pipeline"))

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	key := CacheKey(p.models.Fingerprint(), sel, rec)
	if p.cache != nil {
		if prob, ok := p.cache.Get(ctx, key); ok && validProbability(prob) {
			log.Debugw("Prediction cache hit", logger.FieldModel, sel, logger.FieldProbability, prob)
			return &Result{Label: p.Decide(prob), Probability: prob, Model: sel, Cached: true}, nil
		}
	}

	prob, err := p.score(rec, sel)
	if err != nil {
		log.Warnw("Inference failed", logger.FieldModel, sel, logger.FieldError, err)
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, prob); err != nil {
			log.Warnw("Prediction cache write failed", logger.FieldCache, key, logger.FieldError, err)
		}
	}

	res := &Result{Label: p.Decide(prob), Probability: prob, Model: sel}
	log.Infow("Prediction", logger.FieldModel, sel, logger.FieldLabel, res.Label, logger.FieldProbability, prob)
	return res, nil
}

// score returns the positive-class probability, converting panics into inference errors
func (p *Pipeline) score(rec model.ClientRecord, sel store.Selector) (prob float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			prob, err = 0, errors.Inference(errors.Newf("panic during inference with %s: %v", sel, r))
		}
	}()

	clf, err := p.models.Classifier(sel)
	if err != nil {
		return 0, errors.Inference(errors.WithHintf(err, "unknown model %q", sel))
	}

	x, err := p.models.Scaler().TransformRecord(rec)
	if err != nil {
		return 0, errors.Inference(errors.Wrap(err, "scale record"))
	}

	proba, err := clf.PredictProba(x)
	if err != nil {
		return 0, errors.Inference(errors.Wrapf(err, "%s predict_proba", clf.Name()))
	}
	if len(proba) <= model.PositiveClass {
		return 0, errors.Inference(errors.Newf("%s returned %d probabilities", clf.Name(), len(proba)))
	}

	prob = proba[model.PositiveClass]
	if !validProbability(prob) {
		return 0, errors.Inference(errors.Newf("%s returned probability %v", clf.Name(), prob))
	}
	return prob, nil
}
